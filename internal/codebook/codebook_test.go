package codebook

import (
	"testing"

	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
)

func TestDefault_ClosedClusterSet(t *testing.T) {
	cb, err := Default()
	if err != nil {
		t.Fatalf("load default codebook: %v", err)
	}

	codes := cb.ClusterCodes()
	if len(codes) != 32 {
		t.Fatalf("expected 32 cluster codes, got %d", len(codes))
	}
	if codes[0] != "2" || codes[len(codes)-1] != "93" {
		t.Fatalf("expected numeric order from 2 to 93, got %s..%s", codes[0], codes[len(codes)-1])
	}
	if !cb.IsKnownCluster("32") || cb.IsKnownCluster("1") {
		t.Fatal("unexpected cluster membership")
	}
}

func TestClusterName_UnknownCodeIsValidationError(t *testing.T) {
	cb, err := Default()
	if err != nil {
		t.Fatalf("load default codebook: %v", err)
	}

	name, err := cb.ClusterName("32")
	if err != nil || name != "Ciudad Autónoma de Buenos Aires" {
		t.Fatalf("unexpected name %q, err %v", name, err)
	}

	if _, err := cb.ClusterName("99"); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := cb.ClusterLabel("99"); got != "99" {
		t.Fatalf("expected raw code fallback, got %q", got)
	}
}

func TestClusterCodesByName_SpanishCollation(t *testing.T) {
	cb, err := Parse([]byte(`
clusters:
  "1": Río Gallegos
  "2": Rawson
  "3": Bahía Blanca
`))
	if err != nil {
		t.Fatalf("parse codebook: %v", err)
	}

	got := cb.ClusterCodesByName()
	want := []string{"3", "2", "1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestParse_RequiresClusters(t *testing.T) {
	if _, err := Parse([]byte("regions: {}")); err == nil {
		t.Fatal("expected error for codebook without clusters")
	}
}

func TestTenureCodes_NumericOrder(t *testing.T) {
	cb, err := Default()
	if err != nil {
		t.Fatalf("load default codebook: %v", err)
	}
	codes := cb.TenureCodes()
	if len(codes) != 8 || codes[0] != "1" || codes[7] != "8" {
		t.Fatalf("unexpected tenure codes %v", codes)
	}
}
