package indicators

import "github.com/JoacoLucen/EPH-Insight-App/internal/microdata"

// DeriveHouseholds fills roofing, habitability and household type in place,
// in that order. Running it twice yields the same values.
func DeriveHouseholds(households []microdata.Household) {
	for i := range households {
		h := &households[i]
		h.Roofing = RoofingMaterial(h.Field("IV4"))
		h.Habitability = Habitability(*h)
		h.Type = HouseholdType(h.Field("IX_TOT"))
	}
}

// DeriveIndividuals fills the education, gender, university and sector
// labels in place.
func DeriveIndividuals(individuals []microdata.Individual) {
	for i := range individuals {
		ind := &individuals[i]
		present := ind.Has("NIVEL_ED")
		ind.EducationLabel = EducationLabel(ind.Field("NIVEL_ED"), present)
		ind.GenderLabel = GenderLabel(ind.Field("CH04"))
		ind.University = UniversityFlag(ind.Field("NIVEL_ED"), present, ind.Field("CH06"))
		ind.Sector = EmploymentSector(ind.Field("PP04A"))
	}
}

// Derive runs both pipelines over a dataset.
func Derive(ds *microdata.Dataset) {
	DeriveHouseholds(ds.Households)
	DeriveIndividuals(ds.Individuals)
}
