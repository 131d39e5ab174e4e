package storage

import "testing"

func TestValidateContentType(t *testing.T) {
	allowed := []string{"application/zip", "text/csv; charset=utf-8", "TEXT/PLAIN"}
	for _, ct := range allowed {
		if err := validateContentType(ct); err != nil {
			t.Fatalf("expected %q to be allowed, got %v", ct, err)
		}
	}
	if err := validateContentType("image/png"); err == nil {
		t.Fatal("expected image/png to be rejected")
	}
}

func TestValidateFileSize(t *testing.T) {
	if err := validateFileSize(0, 10); err == nil {
		t.Fatal("expected empty file to be rejected")
	}
	if err := validateFileSize(11, 10); err == nil {
		t.Fatal("expected oversized file to be rejected")
	}
	if err := validateFileSize(10, 10); err != nil {
		t.Fatalf("expected file at the limit to pass, got %v", err)
	}
}

func TestContentTypeFor(t *testing.T) {
	cases := map[string]string{
		"EPH_usu_1_Trim_2024_txt.ZIP": ContentTypeZip,
		"hogares.csv":                 ContentTypeCSV,
		"reporte.xlsx":                ContentTypeXLSX,
		"sin_extension":               "application/octet-stream",
	}
	for name, want := range cases {
		if got := ContentTypeFor(name); got != want {
			t.Fatalf("expected %q for %s, got %q", want, name, got)
		}
	}
	if !IsArchive("a/b/c.zip") || IsArchive("c.txt") {
		t.Fatal("unexpected archive detection")
	}
}
