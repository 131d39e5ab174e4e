package household

import (
	"testing"

	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
)

func hh(codusu, nro string, year, quarter int, habitability string) microdata.Household {
	return microdata.Household{
		Record:       microdata.Record{CODUSU: codusu, NroHogar: nro, Period: microdata.Period{Year: year, Quarter: quarter}},
		Habitability: habitability,
	}
}

func person(codusu, nro string, year, quarter int) microdata.Individual {
	return microdata.Individual{Record: microdata.Record{CODUSU: codusu, NroHogar: nro, Period: microdata.Period{Year: year, Quarter: quarter}}}
}

func TestIndex_NeverCrossesPeriods(t *testing.T) {
	idx := NewIndex([]microdata.Household{
		hh("A", "1", 2024, 1, "Buena"),
		hh("A", "1", 2024, 2, "Insuficiente"),
	})

	got, ok := idx.Lookup(person("A", "1", 2024, 2))
	if !ok || got.Habitability != "Insuficiente" {
		t.Fatalf("expected Insuficiente from the same period, got %+v (%v)", got, ok)
	}
	if _, ok := idx.Lookup(person("A", "1", 2024, 3)); ok {
		t.Fatal("expected no household for an unloaded period")
	}
}

func TestIndex_LookupUsesOwningHousehold(t *testing.T) {
	idx := NewIndex([]microdata.Household{
		hh("B", "1", 2024, 1, "Regular"),
		hh("B", "2", 2024, 1, "Buena"),
	})

	h, ok := idx.Lookup(person("B", "2", 2024, 1))
	if !ok || h.Habitability != "Buena" {
		t.Fatalf("expected second household by NRO_HOGAR, got %+v", h)
	}
	if _, ok := idx.Lookup(person("B", "9", 2024, 1)); ok {
		t.Fatal("expected no exact match for NRO_HOGAR 9")
	}
	if got := len(idx.Dwelling(person("B", "9", 2024, 1))); got != 2 {
		t.Fatalf("expected 2 households in the dwelling, got %d", got)
	}
	if idx.Len() != 2 {
		t.Fatalf("expected 2 indexed households, got %d", idx.Len())
	}
}

func TestIndex_InsufficientHousingJudgesOwnHousehold(t *testing.T) {
	idx := NewIndex([]microdata.Household{
		hh("H1", "1", 2024, 1, "Buena"),
		hh("H1", "2", 2024, 1, "Insuficiente"),
	})

	insufficient, found := idx.InsufficientHousing(person("H1", "2", 2024, 1))
	if !found || !insufficient {
		t.Fatalf("expected household 2 to be insufficient, got %v (found %v)", insufficient, found)
	}
	insufficient, found = idx.InsufficientHousing(person("H1", "1", 2024, 1))
	if !found || insufficient {
		t.Fatalf("expected household 1 to be sufficient, got %v (found %v)", insufficient, found)
	}
	if _, found := idx.InsufficientHousing(person("H1", "3", 2024, 1)); found {
		t.Fatal("expected no household for NRO_HOGAR 3")
	}
}

func TestIndex_InsufficientHousingWithoutNroHogarChecksDwelling(t *testing.T) {
	idx := NewIndex([]microdata.Household{
		hh("H2", "1", 2024, 1, "Buena"),
		hh("H2", "2", 2024, 1, "Insuficiente"),
		hh("H3", "1", 2024, 1, "Regular"),
	})

	if insufficient, found := idx.InsufficientHousing(person("H2", "", 2024, 1)); !found || !insufficient {
		t.Fatalf("expected any insufficient household to count, got %v (found %v)", insufficient, found)
	}
	if insufficient, found := idx.InsufficientHousing(person("H3", "", 2024, 1)); !found || insufficient {
		t.Fatalf("expected sufficient dwelling, got %v (found %v)", insufficient, found)
	}
	if _, found := idx.InsufficientHousing(person("H2", "", 2024, 2)); found {
		t.Fatal("expected no dwelling in an unloaded period")
	}
}
