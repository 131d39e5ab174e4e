package export

import (
	"bytes"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func sampleTable() Table {
	t := Table{Title: "tenants-by-region", Columns: []string{"region", "percent"}}
	t.AddRow("Patagonia", 22.5)
	t.AddRow("Noreste", 17.126)
	return t
}

func TestWriteCSV_FormatsNumbers(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, sampleTable()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "region,percent\nPatagonia,22.50\nNoreste,17.13\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestWriteXLSX_WritesHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteXLSX(&buf, sampleTable()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("expected readable workbook, got %v", err)
	}
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows("tenants-by-region")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0][0] != "region" || rows[1][0] != "Patagonia" {
		t.Fatalf("expected header and first region, got %v", rows[:2])
	}
	if rows[1][1] != "22.5" {
		t.Fatalf("expected numeric cell 22.5, got %q", rows[1][1])
	}
}

func TestSheetName_StripsInvalidCharacters(t *testing.T) {
	got := sheetName("Hogares [2024/T3]: una tabla con un nombre larguísimo")
	if strings.ContainsAny(got, `:\/?*[]`) {
		t.Fatalf("expected no invalid characters, got %q", got)
	}
	if len([]rune(got)) > maxSheetName {
		t.Fatalf("expected at most %d characters, got %d", maxSheetName, len([]rune(got)))
	}
}

func TestFileName(t *testing.T) {
	table := Table{Title: "Unemployment By Period"}
	if got := table.FileName(FormatXLSX); got != "unemployment_by_period.xlsx" {
		t.Fatalf("expected unemployment_by_period.xlsx, got %q", got)
	}
}

func TestWrite_RejectsUnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, sampleTable(), "pdf"); err == nil {
		t.Fatal("expected error for pdf format")
	}
}
