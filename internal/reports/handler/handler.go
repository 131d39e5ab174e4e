package handler

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/export"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/service"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/transport"
	"github.com/JoacoLucen/EPH-Insight-App/platform/httpkit"
	"github.com/JoacoLucen/EPH-Insight-App/platform/validator"
)

// Handler handles HTTP requests for survey reports.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// New creates a new reports handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// bindQuery binds and validates query parameters, writing a 400 on failure.
func (h *Handler) bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return false
	}
	return true
}

// respond writes result as JSON, or as a CSV or XLSX attachment when format
// asks for one.
func respond[T any](c *gin.Context, format string, result transport.Report[T], err error, toTable func(T) export.Table) {
	if httpkit.HandleError(c, err) {
		return
	}
	if format == "" || format == export.FormatJSON {
		httpkit.OK(c, result)
		return
	}

	table := toTable(result.Data)
	var buf bytes.Buffer
	if err := export.Write(&buf, table, format); err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.Attachment(c, table.FileName(format), export.ContentType(format), buf.Bytes())
}

// ListPeriods lists the loaded survey waves.
// GET /api/v1/reports/periods
func (h *Handler) ListPeriods(c *gin.Context) {
	result, err := h.svc.Periods()
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListClusters lists the known geographic clusters.
// GET /api/v1/reports/clusters
func (h *Handler) ListClusters(c *gin.Context) {
	result, err := h.svc.Clusters()
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// =============================================================================
// Education
// =============================================================================

// EducationLevelShare returns the share of adults at one education level.
// GET /api/v1/reports/education/level-share?level=6
func (h *Handler) EducationLevelShare(c *gin.Context) {
	var req transport.EducationLevelRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.EducationLevelShare(c.Request.Context(), req.Level)
	respond(c, req.Format, result, err, clusterSeriesTable("education-level-share"))
}

// EducationByCluster returns adults per education label and period.
// GET /api/v1/reports/education/clusters/:cluster
func (h *Handler) EducationByCluster(c *gin.Context) {
	req := transport.ClusterRequest{Cluster: c.Param("cluster")}
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.EducationByCluster(c.Request.Context(), req.Cluster)
	respond(c, req.Format, result, err, periodTable("education-by-cluster"))
}

// GET /api/v1/reports/education/foreign-born-higher?period=2024-T3
func (h *Handler) ForeignBornHigherEducation(c *gin.Context) {
	var req transport.PeriodRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.ForeignBornHigherEducation(c.Request.Context(), req.Period)
	respond(c, req.Format, result, err, shareTable("foreign-born-higher-education"))
}

// GET /api/v1/reports/education/top-households
func (h *Handler) TopHigherEducatedHouseholds(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.TopHigherEducatedHouseholds(c.Request.Context())
	respond(c, req.Format, result, err, rankingTable("top-higher-educated-households", "cluster"))
}

// GET /api/v1/reports/education/university-attendance
func (h *Handler) UniversityAttendance(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.UniversityAttendance(c.Request.Context())
	respond(c, req.Format, result, err, rankingTable("university-attendance", "cluster"))
}

// GET /api/v1/reports/education/literacy?period=2024-T3
func (h *Handler) Literacy(c *gin.Context) {
	var req transport.PeriodRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.Literacy(c.Request.Context(), req.Period)
	respond(c, req.Format, result, err, literacyTable("literacy"))
}

// GET /api/v1/reports/education/literacy/by-year
func (h *Handler) LiteracyByYear(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.LiteracyByYear(c.Request.Context())
	respond(c, req.Format, result, err, literacySeriesTable("literacy-by-year"))
}

// IncompleteSecondary compares incomplete secondary education in two clusters.
// GET /api/v1/reports/education/incomplete-secondary?a=32&b=33
func (h *Handler) IncompleteSecondary(c *gin.Context) {
	var req transport.ComparisonRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.IncompleteSecondary(c.Request.Context(), req.A, req.B)
	respond(c, req.Format, result, err, comparisonTable("incomplete-secondary"))
}

// GET /api/v1/reports/education/higher-insufficient-housing?year=2024
func (h *Handler) HigherEducatedInInsufficientHousing(c *gin.Context) {
	var req transport.YearRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.HigherEducatedInInsufficientHousing(c.Request.Context(), req.Year)
	respond(c, req.Format, result, err, shareTable("higher-educated-insufficient-housing"))
}

// EducationByAgeGroup returns the most common education label per age group.
// GET /api/v1/reports/education/age-groups?year=2024&group=20-29&group=%2B60
func (h *Handler) EducationByAgeGroup(c *gin.Context) {
	var req transport.AgeGroupsRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.EducationByAgeGroup(c.Request.Context(), req.Year, req.Groups)
	respond(c, req.Format, result, err, rankingTable("education-by-age-group", "group"))
}

// =============================================================================
// Employment
// =============================================================================

// GET /api/v1/reports/employment/unemployment
func (h *Handler) UnemploymentByPeriod(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.UnemploymentByPeriod(c.Request.Context())
	respond(c, req.Format, result, err, periodRatesTable("unemployment-by-period"))
}

// GET /api/v1/reports/employment/unemployment/lowest
func (h *Handler) LowestUnemployment(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.LowestUnemployment(c.Request.Context())
	respond(c, req.Format, result, err, lowestUnemploymentTable("lowest-unemployment"))
}

// GET /api/v1/reports/employment/rates/by-year
func (h *Handler) EmploymentRatesByYear(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.EmploymentRatesByYear(c.Request.Context())
	respond(c, req.Format, result, err, yearRatesTable("employment-rates-by-year"))
}

// GET /api/v1/reports/employment/rates/by-cluster
func (h *Handler) EmploymentRatesByCluster(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.EmploymentRatesByCluster(c.Request.Context())
	respond(c, req.Format, result, err, clusterRatesTable("employment-rates-by-cluster"))
}

// GET /api/v1/reports/employment/unemployed-by-education?period=2024-T3
func (h *Handler) UnemployedByEducation(c *gin.Context) {
	var req transport.PeriodRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.UnemployedByEducation(c.Request.Context(), req.Period)
	respond(c, req.Format, result, err, rankingTable("unemployed-by-education", "education"))
}

// GET /api/v1/reports/employment/sectors?period=2024-T3
func (h *Handler) EmploymentSector(c *gin.Context) {
	var req transport.PeriodRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.EmploymentSector(c.Request.Context(), req.Period)
	respond(c, req.Format, result, err, breakdownTable("employment-sector", "cluster"))
}

// =============================================================================
// Housing
// =============================================================================

// GET /api/v1/reports/housing/retirees-insufficient
func (h *Handler) RetireesInInsufficientHousing(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.RetireesInInsufficientHousing(c.Request.Context())
	respond(c, req.Format, result, err, rankingTable("retirees-insufficient-housing", "cluster"))
}

// GET /api/v1/reports/housing/owner-occupied
func (h *Handler) OwnerOccupied(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.OwnerOccupied(c.Request.Context())
	respond(c, req.Format, result, err, rankingTable("owner-occupied", "cluster"))
}

// GET /api/v1/reports/housing/tenants-by-region
func (h *Handler) TenantsByRegion(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.TenantsByRegion(c.Request.Context())
	respond(c, req.Format, result, err, rankingTable("tenants-by-region", "region"))
}

// GET /api/v1/reports/housing/precarious-roof?year=2024
func (h *Handler) PrecariousRoof(c *gin.Context) {
	var req transport.YearRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.PrecariousRoof(c.Request.Context(), req.Year)
	respond(c, req.Format, result, err, extremesTable("precarious-roof"))
}

// GET /api/v1/reports/housing/bathroomless-crowded
func (h *Handler) BathroomlessCrowded(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.BathroomlessCrowded(c.Request.Context())
	respond(c, req.Format, result, err, leaderTable("bathroomless-crowded"))
}

// TenureEvolution returns tenure categories per period in one cluster.
// GET /api/v1/reports/housing/tenure/:cluster
func (h *Handler) TenureEvolution(c *gin.Context) {
	req := transport.ClusterRequest{Cluster: c.Param("cluster")}
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.TenureEvolution(c.Request.Context(), req.Cluster)
	respond(c, req.Format, result, err, periodTable("tenure-evolution"))
}

// GET /api/v1/reports/housing/habitability?period=2024-T3
func (h *Handler) Habitability(c *gin.Context) {
	var req transport.PeriodRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.Habitability(c.Request.Context(), req.Period)
	respond(c, req.Format, result, err, breakdownTable("habitability", "cluster"))
}

// GET /api/v1/reports/housing/dwelling-types?period=2024-T3
func (h *Handler) DwellingTypes(c *gin.Context) {
	var req transport.PeriodRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.DwellingTypes(c.Request.Context(), req.Period)
	respond(c, req.Format, result, err, rankingTable("dwelling-types", "type"))
}

// GET /api/v1/reports/housing/floors?period=2024-T3
func (h *Handler) PredominantFloor(c *gin.Context) {
	var req transport.PeriodRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.PredominantFloor(c.Request.Context(), req.Period)
	respond(c, req.Format, result, err, rankingTable("predominant-floor", "cluster"))
}

// GET /api/v1/reports/housing/indoor-bathroom?period=2024-T3
func (h *Handler) IndoorBathroom(c *gin.Context) {
	var req transport.PeriodRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.IndoorBathroom(c.Request.Context(), req.Period)
	respond(c, req.Format, result, err, rankingTable("indoor-bathroom", "cluster"))
}

// GET /api/v1/reports/housing/informal-settlements?period=2024-T3
func (h *Handler) InformalSettlements(c *gin.Context) {
	var req transport.PeriodRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.InformalSettlements(c.Request.Context(), req.Period)
	respond(c, req.Format, result, err, settlementTable("informal-settlements"))
}

// Poverty classifies four-member households by income.
// GET /api/v1/reports/housing/poverty?period=2024-T3&povertyLine=...&indigenceLine=...
func (h *Handler) Poverty(c *gin.Context) {
	var req transport.PovertyRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.Poverty(c.Request.Context(), req)
	respond(c, req.Format, result, err, povertyTable("poverty"))
}

// =============================================================================
// Demography
// =============================================================================

// GET /api/v1/reports/demography/average-age?period=2024-T3
func (h *Handler) AverageAge(c *gin.Context) {
	var req transport.PeriodRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.AverageAge(c.Request.Context(), req.Period)
	respond(c, req.Format, result, err, rankingTable("average-age", "cluster"))
}

// GET /api/v1/reports/demography/age-structure?period=2024-T3
func (h *Handler) AgeStructure(c *gin.Context) {
	var req transport.PeriodRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.AgeStructure(c.Request.Context(), req.Period)
	respond(c, req.Format, result, err, breakdownTable("age-structure", "bucket"))
}

// GET /api/v1/reports/demography/age-evolution
func (h *Handler) AgeEvolution(c *gin.Context) {
	var req transport.FormatRequest
	if !h.bindQuery(c, &req) {
		return
	}
	result, err := h.svc.AgeEvolution(c.Request.Context())
	respond(c, req.Format, result, err, ageSeriesTable("age-evolution"))
}
