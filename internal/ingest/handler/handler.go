package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/JoacoLucen/EPH-Insight-App/internal/ingest/service"
	"github.com/JoacoLucen/EPH-Insight-App/internal/ingest/transport"
	"github.com/JoacoLucen/EPH-Insight-App/internal/scheduler"
	"github.com/JoacoLucen/EPH-Insight-App/platform/httpkit"
	"github.com/JoacoLucen/EPH-Insight-App/platform/validator"
)

// Handler handles HTTP requests for ingestion.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid run id"
	msgMissingFile      = "file is required"
	msgFileTooLarge     = "file exceeds the maximum upload size"

	// multipartOverhead leaves room for form boundaries and headers.
	multipartOverhead = 1 << 20
)

// New creates a new ingestion handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// GetStatus describes the snapshot currently served.
// GET /api/v1/dataset/status
func (h *Handler) GetStatus(c *gin.Context) {
	result, err := h.svc.Status()
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Reload triggers a reload of the extract source.
// POST /api/v1/admin/ingest/reload
func (h *Handler) Reload(c *gin.Context) {
	result, err := h.svc.TriggerReload(c.Request.Context(), scheduler.TriggerManual)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusAccepted, result)
}

// Upload stores an extract sent as multipart form field "file". Pass
// reload=true to reload right after.
// POST /api/v1/admin/ingest/extracts
func (h *Handler) Upload(c *gin.Context) {
	if limit := h.svc.MaxUploadSize(); limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httpkit.Error(c, http.StatusRequestEntityTooLarge, msgFileTooLarge, nil)
			return
		}
		httpkit.Error(c, http.StatusBadRequest, msgMissingFile, nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	defer file.Close()

	reload, _ := strconv.ParseBool(c.DefaultQuery("reload", "false"))
	result, err := h.svc.Upload(c.Request.Context(), service.UploadInput{
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		Body:        file,
		Reload:      reload,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// PresignUpload returns a presigned URL to upload an extract directly.
// POST /api/v1/admin/ingest/extracts/presign
func (h *Handler) PresignUpload(c *gin.Context) {
	var req transport.PresignUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.PresignUpload(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListExtracts lists the stored survey extracts.
// GET /api/v1/admin/ingest/extracts
func (h *Handler) ListExtracts(c *gin.Context) {
	result, err := h.svc.ListExtracts(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeleteExtract removes a stored extract. Pass reload=true to reload right after.
// DELETE /api/v1/admin/ingest/extracts?fileKey=extracts/...
func (h *Handler) DeleteExtract(c *gin.Context) {
	var req transport.DeleteExtractRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.DeleteExtract(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListRuns lists ingestion runs.
// GET /api/v1/admin/ingest/runs
func (h *Handler) ListRuns(c *gin.Context) {
	var req transport.ListRunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.ListRuns(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetRun retrieves one ingestion run.
// GET /api/v1/admin/ingest/runs/:id
func (h *Handler) GetRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	result, err := h.svc.GetRun(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ExportNormalized writes the normalized tables of the current snapshot to storage.
// POST /api/v1/admin/ingest/normalized
func (h *Handler) ExportNormalized(c *gin.Context) {
	result, err := h.svc.ExportNormalized(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// GetNormalizedDownloadURL presigns a download of a normalized table.
// GET /api/v1/admin/ingest/normalized/:table/download
func (h *Handler) GetNormalizedDownloadURL(c *gin.Context) {
	result, err := h.svc.NormalizedDownloadURL(c.Request.Context(), c.Param("table"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
