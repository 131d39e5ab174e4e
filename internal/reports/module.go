// Package reports provides the public survey report endpoints. Every report
// runs against the current dataset snapshot and can be downloaded as CSV or
// XLSX with ?format=.
package reports

import (
	"context"

	"github.com/JoacoLucen/EPH-Insight-App/internal/events"
	apphttp "github.com/JoacoLucen/EPH-Insight-App/internal/http"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/cache"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/handler"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/service"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
	"github.com/JoacoLucen/EPH-Insight-App/platform/validator"
)

// Module is the reports module implementing http.Module.
type Module struct {
	handler *handler.Handler
	service *service.Service
	log     *logger.Logger
}

// NewModule creates and initializes the reports module.
func NewModule(store service.SnapshotSource, c cache.Cache, lines service.LinesProvider, val *validator.Validator, log *logger.Logger) *Module {
	svc := service.New(store, c, lines, log)
	return &Module{
		handler: handler.New(svc, val),
		service: svc,
		log:     log,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "reports"
}

// Service returns the service layer for use by other modules.
func (m *Module) Service() *service.Service {
	return m.service
}

// RegisterRoutes mounts report routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	r := ctx.V1.Group("/reports")
	r.GET("/periods", m.handler.ListPeriods)
	r.GET("/clusters", m.handler.ListClusters)

	edu := r.Group("/education")
	edu.GET("/level-share", m.handler.EducationLevelShare)
	edu.GET("/clusters/:cluster", m.handler.EducationByCluster)
	edu.GET("/foreign-born-higher", m.handler.ForeignBornHigherEducation)
	edu.GET("/top-households", m.handler.TopHigherEducatedHouseholds)
	edu.GET("/university-attendance", m.handler.UniversityAttendance)
	edu.GET("/literacy", m.handler.Literacy)
	edu.GET("/literacy/by-year", m.handler.LiteracyByYear)
	edu.GET("/incomplete-secondary", m.handler.IncompleteSecondary)
	edu.GET("/higher-insufficient-housing", m.handler.HigherEducatedInInsufficientHousing)
	edu.GET("/age-groups", m.handler.EducationByAgeGroup)

	emp := r.Group("/employment")
	emp.GET("/unemployment", m.handler.UnemploymentByPeriod)
	emp.GET("/unemployment/lowest", m.handler.LowestUnemployment)
	emp.GET("/rates/by-year", m.handler.EmploymentRatesByYear)
	emp.GET("/rates/by-cluster", m.handler.EmploymentRatesByCluster)
	emp.GET("/unemployed-by-education", m.handler.UnemployedByEducation)
	emp.GET("/sectors", m.handler.EmploymentSector)

	housing := r.Group("/housing")
	housing.GET("/retirees-insufficient", m.handler.RetireesInInsufficientHousing)
	housing.GET("/owner-occupied", m.handler.OwnerOccupied)
	housing.GET("/tenants-by-region", m.handler.TenantsByRegion)
	housing.GET("/precarious-roof", m.handler.PrecariousRoof)
	housing.GET("/bathroomless-crowded", m.handler.BathroomlessCrowded)
	housing.GET("/tenure/:cluster", m.handler.TenureEvolution)
	housing.GET("/habitability", m.handler.Habitability)
	housing.GET("/dwelling-types", m.handler.DwellingTypes)
	housing.GET("/floors", m.handler.PredominantFloor)
	housing.GET("/indoor-bathroom", m.handler.IndoorBathroom)
	housing.GET("/informal-settlements", m.handler.InformalSettlements)
	housing.GET("/poverty", m.handler.Poverty)

	demo := r.Group("/demography")
	demo.GET("/average-age", m.handler.AverageAge)
	demo.GET("/age-structure", m.handler.AgeStructure)
	demo.GET("/age-evolution", m.handler.AgeEvolution)
}

// RegisterHandlers subscribes the module to dataset events.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.DatasetLoaded{}.EventName(), m)
}

// Handle implements events.Handler. Every snapshot swap warms the report
// cache for the new fingerprint.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.DatasetLoaded:
		_, err := m.service.Warm(ctx, e.Fingerprint)
		return err
	default:
		m.log.Warn("reports: unhandled event", "event", event.EventName())
		return nil
	}
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
var _ events.Handler = (*Module)(nil)
