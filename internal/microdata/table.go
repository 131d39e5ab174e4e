package microdata

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/JoacoLucen/EPH-Insight-App/internal/aggregate"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
)

const (
	// Delimiter separates fields in EPH extracts.
	Delimiter = ';'
	utf8BOM   = "\ufeff"
)

// EachRow streams a semicolon-delimited table whose first row is the header.
// fn receives the 1-based line number and the row keyed by header name.
// Rows shorter than the header leave the trailing columns absent.
func EachRow(r io.Reader, file string, fn func(line int, fields map[string]string) error) error {
	reader := csv.NewReader(r)
	reader.Comma = Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return apperr.Malformed(file, 1, errors.New("missing header row"))
	}
	if err != nil {
		return apperr.Malformed(file, 1, err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		columns[i] = name
	}

	line := 1
	for {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		line++
		if err != nil {
			return apperr.Malformed(file, line, err)
		}
		if len(values) == 1 && strings.TrimSpace(values[0]) == "" {
			continue
		}

		fields := make(map[string]string, len(columns))
		for i, name := range columns {
			if i >= len(values) {
				break
			}
			fields[name] = values[i]
		}
		if err := fn(line, fields); err != nil {
			return err
		}
	}
}

// ReadHouseholds parses a households table. Rows without a usable identity or
// weight are left out and counted by reason.
func ReadHouseholds(r io.Reader, file string) ([]Household, aggregate.Exclusions, error) {
	var out []Household
	excluded := aggregate.Exclusions{}
	err := EachRow(r, file, func(_ int, fields map[string]string) error {
		rec, reason := NewRecord(fields)
		if reason != "" {
			excluded.Inc(reason)
			return nil
		}
		out = append(out, Household{Record: rec})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, excluded, nil
}

// ReadIndividuals parses an individuals table. Rows without a usable identity
// or weight are left out and counted by reason.
func ReadIndividuals(r io.Reader, file string) ([]Individual, aggregate.Exclusions, error) {
	var out []Individual
	excluded := aggregate.Exclusions{}
	err := EachRow(r, file, func(_ int, fields map[string]string) error {
		rec, reason := NewRecord(fields)
		if reason != "" {
			excluded.Inc(reason)
			return nil
		}
		out = append(out, Individual{Record: rec})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, excluded, nil
}
