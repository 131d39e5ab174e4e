// Package basket provides the monthly basic basket module. Its quarterly
// poverty and indigence lines feed the income classification report.
package basket

import (
	"github.com/JoacoLucen/EPH-Insight-App/internal/basket/handler"
	"github.com/JoacoLucen/EPH-Insight-App/internal/basket/repository"
	"github.com/JoacoLucen/EPH-Insight-App/internal/basket/service"
	apphttp "github.com/JoacoLucen/EPH-Insight-App/internal/http"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
	"github.com/JoacoLucen/EPH-Insight-App/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the basket module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
}

// NewModule creates and initializes the basket module.
func NewModule(pool *pgxpool.Pool, val *validator.Validator, log *logger.Logger) *Module {
	return newModule(repository.New(pool), val, log)
}

func newModule(repo repository.Repository, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(repo, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "basket"
}

// Service returns the service layer for use by other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts basket routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.V1.GET("/basket/values", m.handler.ListValues)
	ctx.V1.GET("/basket/quarter", m.handler.GetQuarter)

	ctx.Admin.POST("/basket/import", m.handler.Import)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
