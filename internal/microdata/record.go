// Package microdata holds the typed survey records built from EPH extracts
// and the readers and writers for their semicolon-delimited text format.
package microdata

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which EPH table a file carries.
type Kind string

const (
	KindIndividuals Kind = "individuals"
	KindHouseholds  Kind = "households"
)

// Raw column names shared by both tables.
const (
	ColYear     = "ANO4"
	ColQuarter  = "TRIMESTRE"
	ColCODUSU   = "CODUSU"
	ColNroHogar = "NRO_HOGAR"
	ColWeight   = "PONDERA"
	ColCluster  = "AGLOMERADO"
	ColRegion   = "REGION"
)

// Derived column names written by the normalizer.
const (
	ColRoofing        = "MATERIAL_TECHUMBRE"
	ColHabitability   = "CONDICION_DE_HABITABILIDAD"
	ColHouseholdType  = "TIPO_HOGAR"
	ColEducationLabel = "NIVEL_ED_str"
	ColGenderLabel    = "CH04_str"
	ColUniversity     = "UNIVERSITARIO"
	ColSector         = "SECTOR"
)

// Exclusion reasons for rows that cannot be placed in any aggregation.
const (
	ReasonMissingYear    = "missing_year"
	ReasonInvalidYear    = "invalid_year"
	ReasonMissingQuarter = "missing_quarter"
	ReasonInvalidQuarter = "invalid_quarter"
	ReasonMissingWeight  = "missing_weight"
	ReasonInvalidWeight  = "invalid_weight"
	ReasonMissingCODUSU  = "missing_codusu"
)

// Period is one survey wave.
type Period struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
}

// String formats the period as "2024-T3".
func (p Period) String() string {
	return fmt.Sprintf("%d-T%d", p.Year, p.Quarter)
}

// Before reports whether p is an earlier wave than other.
func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Quarter < other.Quarter
}

// IsZero reports whether p was never set.
func (p Period) IsZero() bool {
	return p.Year == 0 && p.Quarter == 0
}

// ParsePeriod parses "2024-T3".
func ParsePeriod(value string) (Period, error) {
	var p Period
	if _, err := fmt.Sscanf(strings.TrimSpace(value), "%d-T%d", &p.Year, &p.Quarter); err != nil {
		return Period{}, fmt.Errorf("invalid period %q", value)
	}
	if p.Quarter < 1 || p.Quarter > 4 {
		return Period{}, fmt.Errorf("invalid quarter in period %q", value)
	}
	return p, nil
}

// Record carries the parsed identity of one row plus every raw column as text.
type Record struct {
	Period   Period
	CODUSU   string
	NroHogar string
	Weight   float64
	Cluster  string
	Fields   map[string]string
}

// Field returns the trimmed raw value of a column, or "" when absent.
func (r Record) Field(name string) string {
	return strings.TrimSpace(r.Fields[name])
}

// Has reports whether the column exists in the source row.
func (r Record) Has(name string) bool {
	_, ok := r.Fields[name]
	return ok
}

// Is reports whether the column equals any of the given codes.
func (r Record) Is(name string, codes ...string) bool {
	value := r.Field(name)
	for _, code := range codes {
		if value == code {
			return true
		}
	}
	return false
}

// Int parses a column as an integer.
func (r Record) Int(name string) (int, bool) {
	return ParseInt(r.Field(name))
}

// Float parses a column as a number, accepting a decimal comma.
func (r Record) Float(name string) (float64, bool) {
	return ParseFloat(r.Field(name))
}

// Household is a household row with its derived indicators.
type Household struct {
	Record
	Roofing      string
	Habitability string
	Type         string
}

// Members returns IX_TOT.
func (h Household) Members() (int, bool) {
	return h.Int("IX_TOT")
}

// Individual is a person row with its derived indicators.
type Individual struct {
	Record
	// EducationLabel is nil when the source row has no NIVEL_ED column.
	EducationLabel *string
	GenderLabel    string
	// University is nil when the flag does not apply.
	University *int
	Sector     string
}

// Age returns CH06.
func (i Individual) Age() (int, bool) {
	return i.Int("CH06")
}

// ParseInt parses a survey code. Values such as "3.0" are accepted.
func ParseInt(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n, true
	}
	f, ok := ParseFloat(value)
	if !ok || f != float64(int(f)) {
		return 0, false
	}
	return int(f), true
}

// ParseFloat parses a number written with either a dot or a comma.
func ParseFloat(value string) (float64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// NewRecord builds a Record from a raw row. When the row lacks a usable
// identity or weight it returns the exclusion reason instead.
func NewRecord(fields map[string]string) (Record, string) {
	rec := Record{Fields: fields}

	yearRaw := rec.Field(ColYear)
	if yearRaw == "" {
		return Record{}, ReasonMissingYear
	}
	year, ok := ParseInt(yearRaw)
	if !ok || year <= 0 {
		return Record{}, ReasonInvalidYear
	}

	quarterRaw := rec.Field(ColQuarter)
	if quarterRaw == "" {
		return Record{}, ReasonMissingQuarter
	}
	quarter, ok := ParseInt(quarterRaw)
	if !ok || quarter < 1 || quarter > 4 {
		return Record{}, ReasonInvalidQuarter
	}

	weightRaw := rec.Field(ColWeight)
	if weightRaw == "" {
		return Record{}, ReasonMissingWeight
	}
	weight, ok := ParseFloat(weightRaw)
	if !ok || weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return Record{}, ReasonInvalidWeight
	}

	codusu := rec.Field(ColCODUSU)
	if codusu == "" {
		return Record{}, ReasonMissingCODUSU
	}

	rec.Period = Period{Year: year, Quarter: quarter}
	rec.CODUSU = codusu
	rec.NroHogar = rec.Field(ColNroHogar)
	rec.Weight = weight
	rec.Cluster = NormalizeCode(rec.Field(ColCluster))
	return rec, ""
}

// NormalizeCode rewrites numeric codes in canonical form so "02" and "2.0"
// both become "2". Non-numeric codes are only trimmed.
func NormalizeCode(code string) string {
	code = strings.TrimSpace(code)
	if n, ok := ParseInt(code); ok {
		return strconv.Itoa(n)
	}
	return code
}
