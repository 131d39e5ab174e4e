package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/JoacoLucen/EPH-Insight-App/internal/basket/repository"
	"github.com/JoacoLucen/EPH-Insight-App/internal/basket/transport"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
)

type fakeRepo struct {
	values []repository.Value
}

func (r *fakeRepo) Upsert(_ context.Context, values []repository.Value) (int, error) {
	r.values = append(r.values, values...)
	return len(values), nil
}

func (r *fakeRepo) ListRange(_ context.Context, from, to time.Time) ([]repository.Value, error) {
	var out []repository.Value
	for _, v := range r.values {
		if !from.IsZero() && v.Month.Before(from) {
			continue
		}
		if !to.IsZero() && !v.Month.Before(to) {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

const basketCSV = "indice_tiempo,canasta_basica_total,linea_pobreza,linea_indigencia,otra\n" +
	"2024-06-01,100,300,120,x\n" +
	"2024-07-01,110,330,130,x\n" +
	"2024-08-01,120,360,140,x\n" +
	"2024-09-01,131,391,151,x\n"

func TestImport_StoresEveryMonth(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo, logger.Discard())

	resp, err := svc.Import(context.Background(), strings.NewReader(basketCSV), "canasta.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Imported != 4 {
		t.Fatalf("expected 4 months imported, got %d", resp.Imported)
	}
	if got := repo.values[1].Month; got != time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("expected July 2024, got %v", got)
	}
}

func TestParseCSV_MissingColumn(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("indice_tiempo,linea_pobreza\n2024-01-01,1\n"), "canasta.csv")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected malformed file error, got %v", err)
	}
}

func TestParseCSV_BadNumberReportsLine(t *testing.T) {
	data := "indice_tiempo,canasta_basica_total,linea_pobreza,linea_indigencia\n" +
		"2024-01-01,1,2,3\n" +
		"2024-02-01,uno,2,3\n"

	_, err := ParseCSV(strings.NewReader(data), "canasta.csv")
	var appErr *apperr.Error
	if err == nil {
		t.Fatal("expected error for non-numeric basket value")
	}
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	details, ok := appErr.Details.(map[string]interface{})
	if !ok || details["line"] != 3 {
		t.Fatalf("expected line 3 in details, got %v", appErr.Details)
	}
}

func TestQuarterLines_AveragesMonthsOfQuarter(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo, logger.Discard())
	if _, err := svc.Import(context.Background(), strings.NewReader(basketCSV), "canasta.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines, err := svc.QuarterLines(context.Background(), microdata.Period{Year: 2024, Quarter: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lines.Poverty != 360.33 {
		t.Fatalf("expected poverty line 360.33, got %v", lines.Poverty)
	}
	if lines.Indigence != 140.33 {
		t.Fatalf("expected indigence line 140.33, got %v", lines.Indigence)
	}
}

func TestQuarter_NoValuesIsNotFound(t *testing.T) {
	svc := New(&fakeRepo{}, logger.Discard())

	_, err := svc.Quarter(context.Background(), microdata.Period{Year: 2019, Quarter: 1})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestList_ToIsInclusive(t *testing.T) {
	repo := &fakeRepo{}
	svc := New(repo, logger.Discard())
	if _, err := svc.Import(context.Background(), strings.NewReader(basketCSV), "canasta.csv"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := svc.List(context.Background(), transport.ListValuesRequest{From: "2024-07", To: "2024-08"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Total != 2 || resp.Items[1].Month != "2024-08" {
		t.Fatalf("expected July and August, got %+v", resp.Items)
	}
}
