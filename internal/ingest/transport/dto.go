package transport

import (
	"time"

	"github.com/google/uuid"
)

type PresignUploadRequest struct {
	FileName    string `json:"fileName" validate:"required,min=5,max=255"`
	ContentType string `json:"contentType" validate:"required,max=100"`
	SizeBytes   int64  `json:"sizeBytes" validate:"required,min=1"`
}

type PresignUploadResponse struct {
	UploadURL string    `json:"uploadUrl"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type UploadResponse struct {
	Bucket  string       `json:"bucket"`
	FileKey string       `json:"fileKey"`
	Size    int64        `json:"size"`
	Run     *RunResponse `json:"run,omitempty"`
}

type DeleteExtractRequest struct {
	FileKey string `form:"fileKey" validate:"required,max=512"`
	Reload  bool   `form:"reload"`
}

type ExtractResponse struct {
	FileKey      string    `json:"fileKey"`
	Kind         string    `json:"kind"`
	ContentType  string    `json:"contentType"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

type ExtractListResponse struct {
	Items []ExtractResponse `json:"items"`
	Total int               `json:"total"`
}

type DeleteExtractResponse struct {
	FileKey string       `json:"fileKey"`
	Run     *RunResponse `json:"run,omitempty"`
}

type ReloadRequest struct {
	ExportNormalized bool `json:"exportNormalized"`
}

type ListRunsRequest struct {
	Page     int `form:"page" validate:"omitempty,min=1"`
	PageSize int `form:"pageSize" validate:"omitempty,min=1,max=100"`
}

type RunResponse struct {
	ID          uuid.UUID      `json:"id"`
	Trigger     string         `json:"trigger"`
	Status      string         `json:"status"`
	Fingerprint *string        `json:"fingerprint,omitempty"`
	Individuals int            `json:"individuals"`
	Households  int            `json:"households"`
	Periods     []string       `json:"periods"`
	Exclusions  map[string]int `json:"exclusions"`
	Error       *string        `json:"error,omitempty"`
	StartedAt   time.Time      `json:"startedAt"`
	FinishedAt  *time.Time     `json:"finishedAt,omitempty"`
}

type RunListResponse struct {
	Items      []RunResponse `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	TotalPages int           `json:"totalPages"`
}

type FileReport struct {
	Name       string         `json:"name"`
	Kind       string         `json:"kind"`
	Rows       int            `json:"rows"`
	Exclusions map[string]int `json:"exclusions,omitempty"`
}

// StatusResponse describes the snapshot currently served.
type StatusResponse struct {
	Fingerprint     string         `json:"fingerprint"`
	LoadedAt        time.Time      `json:"loadedAt"`
	Individuals     int            `json:"individuals"`
	Households      int            `json:"households"`
	Periods         []string       `json:"periods"`
	Files           []FileReport   `json:"files"`
	Exclusions      map[string]int `json:"exclusions"`
	UnknownClusters map[string]int `json:"unknownClusters,omitempty"`
}

type NormalizedObject struct {
	Table   string `json:"table"`
	FileKey string `json:"fileKey"`
	Size    int64  `json:"size"`
}

type NormalizedExportResponse struct {
	Fingerprint string             `json:"fingerprint"`
	Objects     []NormalizedObject `json:"objects"`
}

type DownloadURLResponse struct {
	URL       string    `json:"url"`
	FileKey   string    `json:"fileKey"`
	ExpiresAt time.Time `json:"expiresAt"`
}
