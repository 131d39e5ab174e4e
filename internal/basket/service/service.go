package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/JoacoLucen/EPH-Insight-App/internal/aggregate"
	"github.com/JoacoLucen/EPH-Insight-App/internal/analytics"
	"github.com/JoacoLucen/EPH-Insight-App/internal/basket/repository"
	"github.com/JoacoLucen/EPH-Insight-App/internal/basket/transport"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
	"github.com/JoacoLucen/EPH-Insight-App/platform/logger"
)

// Columns of the published monthly basket series.
const (
	ColMonth         = "indice_tiempo"
	ColTotalBasket   = "canasta_basica_total"
	ColPovertyLine   = "linea_pobreza"
	ColIndigenceLine = "linea_indigencia"
)

const monthLayout = "2006-01"

// Service provides business logic for basket values.
type Service struct {
	repo repository.Repository
	log  *logger.Logger
}

// New creates a new basket service.
func New(repo repository.Repository, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Import parses the monthly series and stores every month.
func (s *Service) Import(ctx context.Context, r io.Reader, fileName string) (transport.ImportResponse, error) {
	values, err := ParseCSV(r, fileName)
	if err != nil {
		return transport.ImportResponse{}, err
	}
	if len(values) == 0 {
		return transport.ImportResponse{}, apperr.Validation("basket file has no rows").WithDetails(map[string]string{"file": fileName})
	}

	n, err := s.repo.Upsert(ctx, values)
	if err != nil {
		s.log.DatabaseError("upsert basket values", err)
		return transport.ImportResponse{}, err
	}

	s.log.Info("basket values imported", "file", fileName, "months", n)
	return transport.ImportResponse{Imported: n}, nil
}

// List returns stored months between from and to, both "YYYY-MM" and inclusive.
func (s *Service) List(ctx context.Context, req transport.ListValuesRequest) (transport.ValueListResponse, error) {
	var from, to time.Time
	if req.From != "" {
		month, err := time.Parse(monthLayout, req.From)
		if err != nil {
			return transport.ValueListResponse{}, apperr.BadRequest("invalid from month")
		}
		from = month
	}
	if req.To != "" {
		month, err := time.Parse(monthLayout, req.To)
		if err != nil {
			return transport.ValueListResponse{}, apperr.BadRequest("invalid to month")
		}
		to = month.AddDate(0, 1, 0)
	}

	values, err := s.repo.ListRange(ctx, from, to)
	if err != nil {
		return transport.ValueListResponse{}, err
	}

	items := make([]transport.ValueResponse, 0, len(values))
	for _, v := range values {
		items = append(items, toValueResponse(v))
	}
	return transport.ValueListResponse{Items: items, Total: len(items)}, nil
}

// Quarter averages the monthly values of a survey quarter.
func (s *Service) Quarter(ctx context.Context, period microdata.Period) (transport.QuarterResponse, error) {
	from := time.Date(period.Year, time.Month((period.Quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	values, err := s.repo.ListRange(ctx, from, from.AddDate(0, 3, 0))
	if err != nil {
		return transport.QuarterResponse{}, err
	}
	if len(values) == 0 {
		return transport.QuarterResponse{}, apperr.NotFound("no basket values for period").
			WithDetails(map[string]string{"period": period.String()})
	}

	var total, poverty, indigence float64
	for _, v := range values {
		total += v.TotalBasket
		poverty += v.PovertyLine
		indigence += v.IndigenceLine
	}
	n := float64(len(values))

	return transport.QuarterResponse{
		Period:        period.String(),
		Months:        len(values),
		TotalBasket:   aggregate.Round2(total / n),
		PovertyLine:   aggregate.Round2(poverty / n),
		IndigenceLine: aggregate.Round2(indigence / n),
	}, nil
}

// QuarterLines returns the averaged poverty and indigence lines of a period.
func (s *Service) QuarterLines(ctx context.Context, period microdata.Period) (analytics.Lines, error) {
	q, err := s.Quarter(ctx, period)
	if err != nil {
		return analytics.Lines{}, err
	}
	return analytics.Lines{Poverty: q.PovertyLine, Indigence: q.IndigenceLine}, nil
}

// ParseCSV reads the comma-separated monthly series. Columns are found by
// header name; extra columns are ignored.
func ParseCSV(r io.Reader, fileName string) ([]repository.Value, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperr.Malformed(fileName, 0, errors.New("empty file"))
		}
		return nil, apperr.Malformed(fileName, 1, err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimPrefix(strings.TrimSpace(name), "\ufeff")] = i
	}
	for _, col := range []string{ColMonth, ColTotalBasket, ColPovertyLine, ColIndigenceLine} {
		if _, ok := index[col]; !ok {
			return nil, apperr.Malformed(fileName, 1, fmt.Errorf("missing column %s", col))
		}
	}

	var values []repository.Value
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, apperr.Malformed(fileName, line, err)
		}

		v, err := parseRow(row, index)
		if err != nil {
			return nil, apperr.Malformed(fileName, line, err)
		}
		values = append(values, v)
	}
	return values, nil
}

func parseRow(row []string, index map[string]int) (repository.Value, error) {
	field := func(col string) string {
		i := index[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	month, err := parseMonth(field(ColMonth))
	if err != nil {
		return repository.Value{}, err
	}

	var v repository.Value
	v.Month = month
	for _, target := range []struct {
		col string
		dst *float64
	}{
		{ColTotalBasket, &v.TotalBasket},
		{ColPovertyLine, &v.PovertyLine},
		{ColIndigenceLine, &v.IndigenceLine},
	} {
		f, err := strconv.ParseFloat(field(target.col), 64)
		if err != nil {
			return repository.Value{}, fmt.Errorf("%s: %w", target.col, err)
		}
		*target.dst = f
	}
	return v, nil
}

// parseMonth accepts "2016-04-01" and "2016-04" and returns the first of the month.
func parseMonth(value string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", monthLayout} {
		if t, err := time.Parse(layout, value); err == nil {
			return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: invalid month %q", ColMonth, value)
}

func toValueResponse(v repository.Value) transport.ValueResponse {
	return transport.ValueResponse{
		Month:         v.Month.Format(monthLayout),
		TotalBasket:   v.TotalBasket,
		PovertyLine:   v.PovertyLine,
		IndigenceLine: v.IndigenceLine,
		ImportedAt:    v.ImportedAt.Format(time.RFC3339),
	}
}
