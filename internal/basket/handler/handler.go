package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JoacoLucen/EPH-Insight-App/internal/basket/service"
	"github.com/JoacoLucen/EPH-Insight-App/internal/basket/transport"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/platform/httpkit"
	"github.com/JoacoLucen/EPH-Insight-App/platform/validator"
)

// Handler handles HTTP requests for basket values.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgMissingFile      = "file is required"
)

// New creates a new basket handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// ListValues lists monthly basket values.
// GET /api/v1/basket/values
func (h *Handler) ListValues(c *gin.Context) {
	var req transport.ListValuesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.List(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetQuarter returns the quarterly mean of the basket and its lines.
// GET /api/v1/basket/quarter?year=2024&quarter=3
func (h *Handler) GetQuarter(c *gin.Context) {
	var req transport.QuarterRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.Quarter(c.Request.Context(), microdata.Period{Year: req.Year, Quarter: req.Quarter})
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Import loads a monthly basket CSV.
// POST /api/v1/admin/basket/import
func (h *Handler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgMissingFile, nil)
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	defer file.Close()

	result, err := h.svc.Import(c.Request.Context(), file, fileHeader.Filename)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}
