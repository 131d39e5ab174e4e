package service

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"testing"

	"github.com/JoacoLucen/EPH-Insight-App/internal/analytics"
	"github.com/JoacoLucen/EPH-Insight-App/internal/codebook"
	"github.com/JoacoLucen/EPH-Insight-App/internal/dataset"
	"github.com/JoacoLucen/EPH-Insight-App/internal/indicators"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/cache"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/transport"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
)

var q1 = microdata.Period{Year: 2024, Quarter: 1}

type fakeStore struct {
	snap *dataset.Snapshot
}

func (s *fakeStore) Current() (*dataset.Snapshot, error) {
	if s.snap == nil {
		return nil, apperr.Unavailable("dataset not loaded yet")
	}
	return s.snap, nil
}

type mapCache struct {
	mu     sync.Mutex
	values map[string][]byte
	gets   int
}

func newMapCache() *mapCache {
	return &mapCache{values: make(map[string][]byte)}
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.values[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
	return nil
}

type fakeLines struct {
	lines  analytics.Lines
	called microdata.Period
}

func (f *fakeLines) QuarterLines(_ context.Context, period microdata.Period) (analytics.Lines, error) {
	f.called = period
	return f.lines, nil
}

func record(t *testing.T, codusu string, weight float64, extra ...string) microdata.Record {
	t.Helper()
	fields := map[string]string{
		"CODUSU":     codusu,
		"NRO_HOGAR":  "1",
		"AGLOMERADO": "32",
		"ANO4":       strconv.Itoa(q1.Year),
		"TRIMESTRE":  strconv.Itoa(q1.Quarter),
		"PONDERA":    strconv.FormatFloat(weight, 'f', -1, 64),
	}
	for i := 0; i+1 < len(extra); i += 2 {
		fields[extra[i]] = extra[i+1]
	}
	rec, reason := microdata.NewRecord(fields)
	if reason != "" {
		t.Fatalf("unexpected exclusion %q", reason)
	}
	return rec
}

func testSnapshot(t *testing.T, fingerprint string) *dataset.Snapshot {
	t.Helper()
	cb, err := codebook.Default()
	if err != nil {
		t.Fatalf("load codebook: %v", err)
	}
	ds := microdata.NewDataset()
	ds.Individuals = []microdata.Individual{
		{Record: record(t, "A", 10, "ESTADO", "2")},
		{Record: record(t, "B", 20, "ESTADO", "1")},
		{Record: record(t, "C", 30, "ESTADO", "1")},
	}
	ds.Households = []microdata.Household{
		{Record: record(t, "A", 10, "IX_TOT", "4", "ITF", "50")},
		{Record: record(t, "B", 20, "IX_TOT", "4", "ITF", "150")},
		{Record: record(t, "C", 30, "IX_TOT", "4", "ITF", "500")},
	}
	indicators.Derive(ds)
	return &dataset.Snapshot{Fingerprint: fingerprint, Dataset: ds, Engine: analytics.New(ds, cb)}
}

func TestUnemploymentByPeriod_ComputesAndCaches(t *testing.T) {
	c := newMapCache()
	svc := New(&fakeStore{snap: testSnapshot(t, "fp1")}, c, nil, logger.Discard())

	got, err := svc.UnemploymentByPeriod(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Fingerprint != "fp1" || len(got.Data.Items) != 1 || got.Data.Items[0].Unemployment != 16.67 {
		t.Fatalf("expected 16.67%% unemployment for fp1, got %+v", got)
	}
	if _, ok := c.values[cache.Key("fp1", "unemployment-by-period", "")]; !ok {
		t.Fatalf("expected result cached under the fingerprint, got keys %v", c.values)
	}
}

func TestUnemploymentByPeriod_ServesCachedResult(t *testing.T) {
	c := newMapCache()
	seeded, _ := json.Marshal(analytics.PeriodRateSeries{Items: []analytics.PeriodRates{{Period: q1, Rates: analytics.Rates{Unemployment: 99}}}})
	c.values[cache.Key("fp1", "unemployment-by-period", "")] = seeded
	svc := New(&fakeStore{snap: testSnapshot(t, "fp1")}, c, nil, logger.Discard())

	got, err := svc.UnemploymentByPeriod(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Data.Items[0].Unemployment != 99 {
		t.Fatalf("expected cached value 99, got %v", got.Data.Items[0].Unemployment)
	}
}

func TestCache_NewFingerprintRecomputes(t *testing.T) {
	c := newMapCache()
	seeded, _ := json.Marshal(analytics.PeriodRateSeries{Items: []analytics.PeriodRates{{Period: q1, Rates: analytics.Rates{Unemployment: 99}}}})
	c.values[cache.Key("old", "unemployment-by-period", "")] = seeded
	svc := New(&fakeStore{snap: testSnapshot(t, "new")}, c, nil, logger.Discard())

	got, err := svc.UnemploymentByPeriod(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Data.Items[0].Unemployment != 16.67 {
		t.Fatalf("expected fresh value 16.67, got %v", got.Data.Items[0].Unemployment)
	}
}

func TestReports_UnavailableBeforeFirstLoad(t *testing.T) {
	svc := New(&fakeStore{}, nil, nil, logger.Discard())

	_, err := svc.TenantsByRegion(context.Background())
	if !apperr.Is(err, apperr.KindUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestByPeriod_DefaultsToLatestAndRejectsGarbage(t *testing.T) {
	c := newMapCache()
	svc := New(&fakeStore{snap: testSnapshot(t, "fp1")}, c, nil, logger.Discard())

	got, err := svc.Literacy(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Data.Period != q1 {
		t.Fatalf("expected latest period 2024-T1, got %v", got.Data.Period)
	}
	if _, ok := c.values[cache.Key("fp1", "literacy", "period=2024-T1")]; !ok {
		t.Fatal("expected cache key with the resolved period")
	}

	if _, err := svc.Literacy(context.Background(), "2024-Q9"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPoverty_UsesBasketLinesWhenOmitted(t *testing.T) {
	lines := &fakeLines{lines: analytics.Lines{Poverty: 200, Indigence: 100}}
	svc := New(&fakeStore{snap: testSnapshot(t, "fp1")}, nil, lines, logger.Discard())

	got, err := svc.Poverty(context.Background(), transport.PovertyRequest{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines.called != q1 {
		t.Fatalf("expected lines requested for 2024-T1, got %v", lines.called)
	}
	if !got.Data.Found || got.Data.Indigent != 10 || got.Data.Poor != 30 {
		t.Fatalf("expected 10 indigent and 30 poor, got %+v", got.Data)
	}
}

func TestPoverty_ExplicitLinesWin(t *testing.T) {
	lines := &fakeLines{lines: analytics.Lines{Poverty: 1, Indigence: 1}}
	svc := New(&fakeStore{snap: testSnapshot(t, "fp1")}, nil, lines, logger.Discard())

	got, err := svc.Poverty(context.Background(), transport.PovertyRequest{PovertyLine: 600, IndigenceLine: 100})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !lines.called.IsZero() {
		t.Fatal("expected basket lines not to be requested")
	}
	if got.Data.Poor != 60 {
		t.Fatalf("expected every household poor, got %+v", got.Data)
	}
}

func TestPoverty_WithoutLinesIsValidationError(t *testing.T) {
	svc := New(&fakeStore{snap: testSnapshot(t, "fp1")}, nil, nil, logger.Discard())

	_, err := svc.Poverty(context.Background(), transport.PovertyRequest{})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestClusters_OrderedByName(t *testing.T) {
	svc := New(&fakeStore{snap: testSnapshot(t, "fp1")}, nil, nil, logger.Discard())

	got, err := svc.Clusters()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Total == 0 || got.Total != len(got.Items) {
		t.Fatalf("expected every codebook cluster, got %d items (total %d)", len(got.Items), got.Total)
	}
}

func TestWarm_FillsCacheForCurrentSnapshot(t *testing.T) {
	c := newMapCache()
	svc := New(&fakeStore{snap: testSnapshot(t, "fp1")}, c, nil, logger.Discard())

	n, err := svc.Warm(context.Background(), "fp1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n == 0 || len(c.values) == 0 || len(c.values) > n {
		t.Fatalf("expected up to %d cached reports, got %d", n, len(c.values))
	}
	if _, ok := c.values[cache.Key("fp1", "unemployment-by-period", "")]; !ok {
		t.Fatal("expected unemployment report to be warmed")
	}
}

func TestWarm_SkipsSupersededSnapshot(t *testing.T) {
	c := newMapCache()
	svc := New(&fakeStore{snap: testSnapshot(t, "fp2")}, c, nil, logger.Discard())

	n, err := svc.Warm(context.Background(), "fp1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 || len(c.values) != 0 {
		t.Fatalf("expected nothing warmed, got %d entries", len(c.values))
	}
}
