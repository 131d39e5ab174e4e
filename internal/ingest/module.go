// Package ingest provides the ingestion module: extract uploads, reload runs
// and normalized table exports.
package ingest

import (
	"github.com/JoacoLucen/EPH-Insight-App/internal/adapters/storage"
	"github.com/JoacoLucen/EPH-Insight-App/internal/events"
	apphttp "github.com/JoacoLucen/EPH-Insight-App/internal/http"
	"github.com/JoacoLucen/EPH-Insight-App/internal/ingest/handler"
	"github.com/JoacoLucen/EPH-Insight-App/internal/ingest/repository"
	"github.com/JoacoLucen/EPH-Insight-App/internal/ingest/service"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
	"github.com/JoacoLucen/EPH-Insight-App/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the ingestion module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the ingestion module. storageSvc may be nil.
func NewModule(pool *pgxpool.Pool, store service.Reloader, storageSvc storage.StorageService, buckets service.Buckets, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(store, repository.New(pool), storageSvc, buckets, bus, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ingest"
}

// Service returns the service layer, which also processes reload tasks.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts ingestion routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/dataset/status", m.handler.GetStatus)

	adminGroup := ctx.Admin.Group("/ingest")
	adminGroup.POST("/reload", m.handler.Reload)
	adminGroup.GET("/extracts", m.handler.ListExtracts)
	adminGroup.POST("/extracts", m.handler.Upload)
	adminGroup.DELETE("/extracts", m.handler.DeleteExtract)
	adminGroup.POST("/extracts/presign", m.handler.PresignUpload)
	adminGroup.GET("/runs", m.handler.ListRuns)
	adminGroup.GET("/runs/:id", m.handler.GetRun)
	adminGroup.POST("/normalized", m.handler.ExportNormalized)
	adminGroup.GET("/normalized/:table/download", m.handler.GetNormalizedDownloadURL)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
