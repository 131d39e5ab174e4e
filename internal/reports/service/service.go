// Package service answers report requests against the current dataset
// snapshot, caching serialized results per snapshot fingerprint.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/JoacoLucen/EPH-Insight-App/internal/analytics"
	"github.com/JoacoLucen/EPH-Insight-App/internal/dataset"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/cache"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/transport"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
)

// SnapshotSource returns the snapshot queries run against.
type SnapshotSource interface {
	Current() (*dataset.Snapshot, error)
}

// LinesProvider returns the poverty and indigence lines of a quarter.
type LinesProvider interface {
	QuarterLines(ctx context.Context, period microdata.Period) (analytics.Lines, error)
}

// Service handles report business logic.
type Service struct {
	store SnapshotSource
	cache cache.Cache
	lines LinesProvider
	log   *logger.Logger
}

// New creates a report service. A nil cache disables caching and a nil lines
// provider requires explicit lines on poverty requests.
func New(store SnapshotSource, c cache.Cache, lines LinesProvider, log *logger.Logger) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	return &Service{store: store, cache: c, lines: lines, log: log}
}

// cached runs compute against the snapshot unless a result for the same
// fingerprint, report and params is already cached. Cache failures are
// logged and never fail the request.
func cached[T any](ctx context.Context, s *Service, snap *dataset.Snapshot, report, params string, compute func(*analytics.Engine) (T, error)) (transport.Report[T], error) {
	key := cache.Key(snap.Fingerprint, report, params)
	result := transport.Report[T]{Report: report, Fingerprint: snap.Fingerprint}

	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.log.Warn("report cache read failed", "key", key, "error", err)
	}
	if ok {
		if err := json.Unmarshal(raw, &result.Data); err == nil {
			return result, nil
		}
		s.log.Warn("discarding unreadable cached report", "key", key)
	}

	data, err := compute(snap.Engine)
	if err != nil {
		return transport.Report[T]{}, err
	}
	result.Data = data

	if encoded, err := json.Marshal(data); err == nil {
		if err := s.cache.Set(ctx, key, encoded); err != nil {
			s.log.Warn("report cache write failed", "key", key, "error", err)
		}
	}
	return result, nil
}

// whole runs a query that takes no parameters.
func whole[T any](ctx context.Context, s *Service, report string, fn func(*analytics.Engine) T) (transport.Report[T], error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.Report[T]{}, err
	}
	return cached(ctx, s, snap, report, "", func(e *analytics.Engine) (T, error) {
		return fn(e), nil
	})
}

// byPeriod runs a query for one period, the latest when raw is empty.
func byPeriod[T any](ctx context.Context, s *Service, report, raw string, fn func(*analytics.Engine, microdata.Period) T) (transport.Report[T], error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.Report[T]{}, err
	}
	period, err := resolvePeriod(snap.Engine, raw)
	if err != nil {
		return transport.Report[T]{}, err
	}
	return cached(ctx, s, snap, report, "period="+period.String(), func(e *analytics.Engine) (T, error) {
		return fn(e, period), nil
	})
}

// byYear runs a query for one year, the latest when year is zero.
func byYear[T any](ctx context.Context, s *Service, report string, year int, fn func(*analytics.Engine, int) T) (transport.Report[T], error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.Report[T]{}, err
	}
	year = resolveYear(snap.Engine, year)
	return cached(ctx, s, snap, report, "year="+strconv.Itoa(year), func(e *analytics.Engine) (T, error) {
		return fn(e, year), nil
	})
}

func resolvePeriod(e *analytics.Engine, raw string) (microdata.Period, error) {
	if strings.TrimSpace(raw) == "" {
		latest, _ := e.LatestPeriod()
		return latest, nil
	}
	period, err := microdata.ParsePeriod(raw)
	if err != nil {
		return microdata.Period{}, apperr.Validation(err.Error())
	}
	return period, nil
}

func resolveYear(e *analytics.Engine, year int) int {
	if year != 0 {
		return year
	}
	latest, _ := e.LatestPeriod()
	return latest.Year
}

// Periods lists the loaded survey waves.
func (s *Service) Periods() (transport.PeriodsResponse, error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.PeriodsResponse{}, err
	}
	periods := snap.Engine.Periods()
	resp := transport.PeriodsResponse{Fingerprint: snap.Fingerprint, Periods: make([]string, 0, len(periods))}
	for _, p := range periods {
		resp.Periods = append(resp.Periods, p.String())
	}
	if latest, ok := snap.Engine.LatestPeriod(); ok {
		label := latest.String()
		resp.Latest = &label
	}
	return resp, nil
}

// Clusters lists the codebook clusters ordered by name.
func (s *Service) Clusters() (transport.ClusterListResponse, error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.ClusterListResponse{}, err
	}
	cb := snap.Engine.Codebook()
	codes := cb.ClusterCodesByName()
	items := make([]transport.ClusterResponse, 0, len(codes))
	for _, code := range codes {
		items = append(items, transport.ClusterResponse{Code: code, Name: cb.ClusterLabel(code)})
	}
	return transport.ClusterListResponse{Items: items, Total: len(items)}, nil
}

// =============================================================================
// Education
// =============================================================================

func (s *Service) EducationLevelShare(ctx context.Context, level string) (transport.Report[analytics.ClusterPeriodSeries], error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.Report[analytics.ClusterPeriodSeries]{}, err
	}
	level = microdata.NormalizeCode(level)
	return cached(ctx, s, snap, "education-level-share", "level="+level, func(e *analytics.Engine) (analytics.ClusterPeriodSeries, error) {
		return e.EducationLevelShareByCluster(level)
	})
}

func (s *Service) EducationByCluster(ctx context.Context, cluster string) (transport.Report[analytics.PeriodTable], error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.Report[analytics.PeriodTable]{}, err
	}
	return cached(ctx, s, snap, "education-by-cluster", "cluster="+cluster, func(e *analytics.Engine) (analytics.PeriodTable, error) {
		return e.EducationTableByCluster(cluster)
	})
}

func (s *Service) ForeignBornHigherEducation(ctx context.Context, period string) (transport.Report[analytics.Share], error) {
	return byPeriod(ctx, s, "foreign-born-higher-education", period, (*analytics.Engine).ForeignBornHigherEducation)
}

func (s *Service) TopHigherEducatedHouseholds(ctx context.Context) (transport.Report[analytics.Ranking], error) {
	return whole(ctx, s, "top-higher-educated-households", (*analytics.Engine).TopHigherEducatedHouseholds)
}

func (s *Service) UniversityAttendance(ctx context.Context) (transport.Report[analytics.Ranking], error) {
	return whole(ctx, s, "university-attendance", (*analytics.Engine).UniversityAttendanceByCluster)
}

func (s *Service) Literacy(ctx context.Context, period string) (transport.Report[analytics.LiteracyPoint], error) {
	return byPeriod(ctx, s, "literacy", period, (*analytics.Engine).Literacy)
}

func (s *Service) LiteracyByYear(ctx context.Context) (transport.Report[analytics.LiteracySeries], error) {
	return whole(ctx, s, "literacy-by-year", (*analytics.Engine).LiteracyByYear)
}

func (s *Service) IncompleteSecondary(ctx context.Context, a, b string) (transport.Report[analytics.SecondaryComparison], error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.Report[analytics.SecondaryComparison]{}, err
	}
	return cached(ctx, s, snap, "incomplete-secondary", "a="+a+"&b="+b, func(e *analytics.Engine) (analytics.SecondaryComparison, error) {
		return e.IncompleteSecondaryComparison(a, b)
	})
}

func (s *Service) HigherEducatedInInsufficientHousing(ctx context.Context, year int) (transport.Report[analytics.Share], error) {
	return byYear(ctx, s, "higher-educated-insufficient-housing", year, (*analytics.Engine).HigherEducatedInInsufficientHousing)
}

// EducationByAgeGroup returns the most common education label per age
// group. No groups means analytics.DefaultAgeGroups.
func (s *Service) EducationByAgeGroup(ctx context.Context, year int, groups []string) (transport.Report[analytics.Ranking], error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.Report[analytics.Ranking]{}, err
	}
	if len(groups) == 0 {
		groups = analytics.DefaultAgeGroups
	}
	year = resolveYear(snap.Engine, year)
	params := fmt.Sprintf("year=%d&groups=%s", year, strings.Join(groups, ","))
	return cached(ctx, s, snap, "education-by-age-group", params, func(e *analytics.Engine) (analytics.Ranking, error) {
		return e.MostCommonEducationByAgeGroup(year, groups)
	})
}

// =============================================================================
// Employment
// =============================================================================

func (s *Service) UnemploymentByPeriod(ctx context.Context) (transport.Report[analytics.PeriodRateSeries], error) {
	return whole(ctx, s, "unemployment-by-period", (*analytics.Engine).UnemploymentRateByPeriod)
}

func (s *Service) LowestUnemployment(ctx context.Context) (transport.Report[analytics.LowestUnemployment], error) {
	return whole(ctx, s, "lowest-unemployment", (*analytics.Engine).LowestUnemploymentPeriod)
}

func (s *Service) EmploymentRatesByYear(ctx context.Context) (transport.Report[[]analytics.YearRates], error) {
	return whole(ctx, s, "employment-rates-by-year", (*analytics.Engine).EmploymentRatesByYear)
}

func (s *Service) EmploymentRatesByCluster(ctx context.Context) (transport.Report[analytics.ClusterRatesTable], error) {
	return whole(ctx, s, "employment-rates-by-cluster", (*analytics.Engine).EmploymentRatesByCluster)
}

func (s *Service) UnemployedByEducation(ctx context.Context, period string) (transport.Report[analytics.Ranking], error) {
	return byPeriod(ctx, s, "unemployed-by-education", period, (*analytics.Engine).UnemployedByEducation)
}

func (s *Service) EmploymentSector(ctx context.Context, period string) (transport.Report[analytics.BreakdownTable], error) {
	return byPeriod(ctx, s, "employment-sector", period, (*analytics.Engine).EmploymentSectorByCluster)
}

// =============================================================================
// Housing
// =============================================================================

func (s *Service) RetireesInInsufficientHousing(ctx context.Context) (transport.Report[analytics.Ranking], error) {
	return whole(ctx, s, "retirees-insufficient-housing", (*analytics.Engine).RetireesInInsufficientHousing)
}

func (s *Service) OwnerOccupied(ctx context.Context) (transport.Report[analytics.Ranking], error) {
	return whole(ctx, s, "owner-occupied", (*analytics.Engine).OwnerOccupiedByCluster)
}

func (s *Service) TenantsByRegion(ctx context.Context) (transport.Report[analytics.Ranking], error) {
	return whole(ctx, s, "tenants-by-region", (*analytics.Engine).TenantsByRegion)
}

func (s *Service) PrecariousRoof(ctx context.Context, year int) (transport.Report[analytics.Extremes], error) {
	return byYear(ctx, s, "precarious-roof", year, (*analytics.Engine).PrecariousRoofExtremes)
}

func (s *Service) BathroomlessCrowded(ctx context.Context) (transport.Report[analytics.Leader], error) {
	return whole(ctx, s, "bathroomless-crowded", (*analytics.Engine).BathroomlessCrowdedLeader)
}

func (s *Service) TenureEvolution(ctx context.Context, cluster string) (transport.Report[analytics.PeriodTable], error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.Report[analytics.PeriodTable]{}, err
	}
	return cached(ctx, s, snap, "tenure-evolution", "cluster="+cluster, func(e *analytics.Engine) (analytics.PeriodTable, error) {
		return e.TenureEvolution(cluster)
	})
}

func (s *Service) Habitability(ctx context.Context, period string) (transport.Report[analytics.BreakdownTable], error) {
	return byPeriod(ctx, s, "habitability", period, (*analytics.Engine).HabitabilityByCluster)
}

func (s *Service) DwellingTypes(ctx context.Context, period string) (transport.Report[analytics.Ranking], error) {
	return byPeriod(ctx, s, "dwelling-types", period, (*analytics.Engine).DwellingTypeShares)
}

func (s *Service) PredominantFloor(ctx context.Context, period string) (transport.Report[analytics.Ranking], error) {
	return byPeriod(ctx, s, "predominant-floor", period, (*analytics.Engine).PredominantFloorByCluster)
}

func (s *Service) IndoorBathroom(ctx context.Context, period string) (transport.Report[analytics.Ranking], error) {
	return byPeriod(ctx, s, "indoor-bathroom", period, (*analytics.Engine).IndoorBathroomByCluster)
}

func (s *Service) InformalSettlements(ctx context.Context, period string) (transport.Report[analytics.SettlementTable], error) {
	return byPeriod(ctx, s, "informal-settlements", period, (*analytics.Engine).InformalSettlementByCluster)
}

// Poverty classifies households of a period. Lines given in the request win;
// otherwise the quarter's basket lines are used.
func (s *Service) Poverty(ctx context.Context, req transport.PovertyRequest) (transport.Report[analytics.Poverty], error) {
	snap, err := s.store.Current()
	if err != nil {
		return transport.Report[analytics.Poverty]{}, err
	}
	period, err := resolvePeriod(snap.Engine, req.Period)
	if err != nil {
		return transport.Report[analytics.Poverty]{}, err
	}

	lines, err := s.resolveLines(ctx, period, req)
	if err != nil {
		return transport.Report[analytics.Poverty]{}, err
	}
	if err := lines.Validate(); err != nil {
		return transport.Report[analytics.Poverty]{}, err
	}

	params := fmt.Sprintf("period=%s&poverty=%.2f&indigence=%.2f", period, lines.Poverty, lines.Indigence)
	return cached(ctx, s, snap, "poverty", params, func(e *analytics.Engine) (analytics.Poverty, error) {
		return e.PovertyClassification(period, lines)
	})
}

func (s *Service) resolveLines(ctx context.Context, period microdata.Period, req transport.PovertyRequest) (analytics.Lines, error) {
	if req.PovertyLine > 0 || req.IndigenceLine > 0 {
		return analytics.Lines{Poverty: req.PovertyLine, Indigence: req.IndigenceLine}, nil
	}
	if s.lines == nil {
		return analytics.Lines{}, apperr.Validation("povertyLine and indigenceLine are required")
	}
	return s.lines.QuarterLines(ctx, period)
}

// =============================================================================
// Demography
// =============================================================================

func (s *Service) AverageAge(ctx context.Context, period string) (transport.Report[analytics.Ranking], error) {
	return byPeriod(ctx, s, "average-age", period, (*analytics.Engine).AverageAgeByCluster)
}

func (s *Service) AgeStructure(ctx context.Context, period string) (transport.Report[analytics.BreakdownTable], error) {
	return byPeriod(ctx, s, "age-structure", period, (*analytics.Engine).AgeStructure)
}

func (s *Service) AgeEvolution(ctx context.Context) (transport.Report[analytics.AgeSeries], error) {
	return whole(ctx, s, "age-evolution", (*analytics.Engine).AgeEvolution)
}
