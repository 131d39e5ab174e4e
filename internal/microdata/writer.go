package microdata

import (
	"encoding/csv"
	"io"
	"strconv"
)

// File names of the normalized tables.
const (
	HouseholdsFile  = "hogares.csv"
	IndividualsFile = "individuos.csv"
)

// WriteHouseholds writes households as one semicolon-delimited table: every raw
// column in first-seen order, then the derived columns.
func WriteHouseholds(w io.Writer, households []Household) error {
	records := make([]Record, len(households))
	for i, h := range households {
		records[i] = h.Record
	}
	derived := []string{ColRoofing, ColHabitability, ColHouseholdType}
	return writeTable(w, records, derived, func(i int) []string {
		h := households[i]
		return []string{h.Roofing, h.Habitability, h.Type}
	})
}

// WriteIndividuals writes individuals the same way as WriteHouseholds.
// Unset derived values are written as empty fields.
func WriteIndividuals(w io.Writer, individuals []Individual) error {
	records := make([]Record, len(individuals))
	for i, ind := range individuals {
		records[i] = ind.Record
	}
	derived := []string{ColEducationLabel, ColGenderLabel, ColUniversity, ColSector}
	return writeTable(w, records, derived, func(i int) []string {
		ind := individuals[i]
		education := ""
		if ind.EducationLabel != nil {
			education = *ind.EducationLabel
		}
		university := ""
		if ind.University != nil {
			university = strconv.Itoa(*ind.University)
		}
		return []string{education, ind.GenderLabel, university, ind.Sector}
	})
}

func writeTable(w io.Writer, records []Record, derived []string, derivedValues func(i int) []string) error {
	columns := rawColumns(records, derived)

	writer := csv.NewWriter(w)
	writer.Comma = Delimiter
	if err := writer.Write(append(append([]string{}, columns...), derived...)); err != nil {
		return err
	}

	row := make([]string, len(columns)+len(derived))
	for i, rec := range records {
		for j, name := range columns {
			row[j] = rec.Fields[name]
		}
		copy(row[len(columns):], derivedValues(i))
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// rawColumns returns the identity columns first, then every other source
// column in lexical order.
func rawColumns(records []Record, derived []string) []string {
	skip := make(map[string]struct{}, len(derived))
	for _, name := range derived {
		skip[name] = struct{}{}
	}
	union := make(map[string]string)
	for _, rec := range records {
		for name := range rec.Fields {
			if _, ok := skip[name]; !ok {
				union[name] = ""
			}
		}
	}

	var columns []string
	for _, name := range []string{ColCODUSU, ColNroHogar, ColYear, ColQuarter, ColRegion, ColCluster, ColWeight} {
		if _, ok := union[name]; ok {
			columns = append(columns, name)
			delete(union, name)
		}
	}
	return append(columns, sortedKeys(union)...)
}
