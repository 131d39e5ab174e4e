package microdata

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"

	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
)

const householdsTable = "\ufeffCODUSU;ANO4;TRIMESTRE;NRO_HOGAR;AGLOMERADO;PONDERA;IX_TOT;IV4\n" +
	"TQRMNOQ;2024;3;1;32;150;2;1\n" +
	"TQRMNOR;2024;3;1;32;;3;5\n" +
	"TQRMNOS;2024;x;1;32;90;1;2\n" +
	"TQRMNOT;2024;4;1;93;210;5;9\n"

const individualsTable = "CODUSU;ANO4;TRIMESTRE;NRO_HOGAR;AGLOMERADO;PONDERA;CH06;NIVEL_ED\n" +
	"TQRMNOQ;2024;3;1;32;150;34;6\n" +
	";2024;3;1;32;150;12;1\n"

func buildZip(t *testing.T, members map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range members {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create member: %v", err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write member: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestNewRecord_ExclusionReasons(t *testing.T) {
	cases := []struct {
		fields map[string]string
		reason string
	}{
		{map[string]string{"TRIMESTRE": "1", "PONDERA": "1", "CODUSU": "A"}, ReasonMissingYear},
		{map[string]string{"ANO4": "dos mil", "TRIMESTRE": "1", "PONDERA": "1", "CODUSU": "A"}, ReasonInvalidYear},
		{map[string]string{"ANO4": "2024", "TRIMESTRE": "5", "PONDERA": "1", "CODUSU": "A"}, ReasonInvalidQuarter},
		{map[string]string{"ANO4": "2024", "TRIMESTRE": "1", "CODUSU": "A"}, ReasonMissingWeight},
		{map[string]string{"ANO4": "2024", "TRIMESTRE": "1", "PONDERA": "-3", "CODUSU": "A"}, ReasonInvalidWeight},
		{map[string]string{"ANO4": "2024", "TRIMESTRE": "1", "PONDERA": "NaN", "CODUSU": "A"}, ReasonInvalidWeight},
		{map[string]string{"ANO4": "2024", "TRIMESTRE": "1", "PONDERA": "Inf", "CODUSU": "A"}, ReasonInvalidWeight},
		{map[string]string{"ANO4": "2024", "TRIMESTRE": "1", "PONDERA": "-infinity", "CODUSU": "A"}, ReasonInvalidWeight},
		{map[string]string{"ANO4": "2024", "TRIMESTRE": "1", "PONDERA": "3"}, ReasonMissingCODUSU},
		{map[string]string{"ANO4": "2024", "TRIMESTRE": "1", "PONDERA": "3,5", "CODUSU": " A "}, ""},
	}

	for _, tc := range cases {
		rec, reason := NewRecord(tc.fields)
		if reason != tc.reason {
			t.Fatalf("expected reason %q for %v, got %q", tc.reason, tc.fields, reason)
		}
		if reason == "" && (rec.Weight != 3.5 || rec.CODUSU != "A") {
			t.Fatalf("expected weight 3.5 and CODUSU A, got %v %q", rec.Weight, rec.CODUSU)
		}
	}
}

func TestReadHouseholds_CountsExcludedRows(t *testing.T) {
	rows, excluded, err := ReadHouseholds(strings.NewReader(householdsTable), "usu_hogar_T324.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 households, got %d", len(rows))
	}
	if excluded[ReasonMissingWeight] != 1 || excluded[ReasonInvalidQuarter] != 1 {
		t.Fatalf("unexpected exclusions: %v", excluded)
	}
	if rows[0].CODUSU != "TQRMNOQ" {
		t.Fatalf("expected BOM to be stripped from the first header, got CODUSU %q", rows[0].CODUSU)
	}
	if rows[1].Period != (Period{Year: 2024, Quarter: 4}) {
		t.Fatalf("unexpected period %v", rows[1].Period)
	}
}

func TestEachRow_EmptyInputIsMalformed(t *testing.T) {
	err := EachRow(strings.NewReader(""), "empty.txt", func(int, map[string]string) error { return nil })
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestKindOf(t *testing.T) {
	cases := map[string]Kind{
		"EPH_usu_3_Trim_2024_txt/usu_individual_T324.txt": KindIndividuals,
		"usu_hogar_T324.TXT": KindHouseholds,
		"usu_hogar_T324.xls": "",
		"readme.txt":         "",
	}
	for name, want := range cases {
		got, _ := KindOf(name)
		if got != want {
			t.Fatalf("expected %q for %s, got %q", want, name, got)
		}
	}
}

func TestReadArchive_ParsesBothTables(t *testing.T) {
	data := buildZip(t, map[string]string{
		"EPH_usu_3_Trim_2024_txt/usu_hogar_T324.txt":      householdsTable,
		"EPH_usu_3_Trim_2024_txt/usu_individual_T324.txt": individualsTable,
		"EPH_usu_3_Trim_2024_txt/Disenio de registro.pdf": "pdf",
	})

	ds, err := ReadArchive(data, "EPH_usu_3_Trim_2024_txt.zip")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.Households) != 2 || len(ds.Individuals) != 1 {
		t.Fatalf("expected 2 households and 1 individual, got %d and %d", len(ds.Households), len(ds.Individuals))
	}
	if ds.Report.Exclusions[ReasonMissingCODUSU] != 1 {
		t.Fatalf("expected missing CODUSU to be counted, got %v", ds.Report.Exclusions)
	}
	if len(ds.Report.Files) != 2 {
		t.Fatalf("expected 2 file reports, got %d", len(ds.Report.Files))
	}

	periods := ds.Periods()
	if len(periods) != 2 || periods[0].Quarter != 3 || periods[1].Quarter != 4 {
		t.Fatalf("expected sorted periods [2024-T3 2024-T4], got %v", periods)
	}
}

func TestReadArchive_NoSurveyTables(t *testing.T) {
	data := buildZip(t, map[string]string{"notes.txt": "hola"})

	_, err := ReadArchive(data, "notes.zip")
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected malformed archive error, got %v", err)
	}
}

func TestFlagUnknownClusters_KeepsRows(t *testing.T) {
	rows, _, err := ReadHouseholds(strings.NewReader(householdsTable), "hogares.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ds := NewDataset()
	ds.Households = rows

	ds.FlagUnknownClusters(func(code string) bool { return code == "32" })

	if ds.Report.UnknownClusters["93"] != 1 {
		t.Fatalf("expected cluster 93 to be flagged, got %v", ds.Report.UnknownClusters)
	}
	if len(ds.Households) != 2 {
		t.Fatalf("expected flagged rows to stay, got %d", len(ds.Households))
	}
}

func TestWriteHouseholds_AppendsDerivedColumns(t *testing.T) {
	rows, _, err := ReadHouseholds(strings.NewReader(householdsTable), "hogares.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows[0].Roofing = "Material durable"
	rows[0].Habitability = "Buena"
	rows[0].Type = "Nuclear"

	var buf bytes.Buffer
	if err := WriteHouseholds(&buf, rows); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.HasPrefix(lines[0], "CODUSU;NRO_HOGAR;ANO4;TRIMESTRE;AGLOMERADO;PONDERA;") {
		t.Fatalf("expected identity columns first, got %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "MATERIAL_TECHUMBRE;CONDICION_DE_HABITABILIDAD;TIPO_HOGAR") {
		t.Fatalf("expected derived columns last, got %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "Material durable;Buena;Nuclear") {
		t.Fatalf("expected derived values, got %q", lines[1])
	}
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2023-T4")
	if err != nil || p.Year != 2023 || p.Quarter != 4 {
		t.Fatalf("unexpected period %v, err %v", p, err)
	}
	if _, err := ParsePeriod("2023-T5"); err == nil {
		t.Fatal("expected error for quarter 5")
	}
}

func TestReadHouseholds_NonFiniteWeightIsExcluded(t *testing.T) {
	table := "CODUSU;ANO4;TRIMESTRE;NRO_HOGAR;AGLOMERADO;PONDERA;II7\n" +
		"A;2024;1;1;32;100;1\n" +
		"B;2024;1;1;32;NaN;1\n" +
		"C;2024;1;1;32;+Inf;2\n"

	rows, excluded, err := ReadHouseholds(strings.NewReader(table), "usu_hogar_T124.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0].CODUSU != "A" {
		t.Fatalf("expected only household A, got %+v", rows)
	}
	if excluded[ReasonInvalidWeight] != 2 {
		t.Fatalf("expected 2 invalid weights, got %v", excluded)
	}
}
