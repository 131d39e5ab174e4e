// Package indicators derives the categorical fields every survey query reads.
// All functions are pure and total: a code they do not recognise falls back
// to a fixed category instead of failing.
package indicators

import "github.com/JoacoLucen/EPH-Insight-App/internal/microdata"

// Roofing categories.
const (
	RoofDurable       = "Material durable"
	RoofPrecarious    = "Material precario"
	RoofNotApplicable = "No aplica"
	NoData            = "Sin Datos"
)

// Household composition categories.
const (
	HouseholdSingle   = "Unipersonal"
	HouseholdNuclear  = "Nuclear"
	HouseholdExtended = "Extendido"
)

// Education labels.
const (
	PrimaryIncomplete   = "Primario incompleto"
	PrimaryComplete     = "Primario completo"
	SecondaryIncomplete = "Secundario incompleto"
	SecondaryComplete   = "Secundario completo"
	HigherEducation     = "Superior o universitario"
	NoInformation       = "Sin informacion"
)

// Gender labels.
const (
	Male          = "Masculino"
	Female        = "Femenino"
	GenderUnknown = "Sin información"
)

// Employment sectors.
const (
	SectorPublic  = "Estatal"
	SectorPrivate = "Privado"
	SectorOther   = "Otro"
)

// University flag values.
const (
	UniversityBelow   = 0
	UniversityCurrent = 1
	UniversityAbove   = 2
)

// EducationLabels lists the labels in their natural order.
var EducationLabels = []string{
	PrimaryIncomplete,
	PrimaryComplete,
	SecondaryIncomplete,
	SecondaryComplete,
	HigherEducation,
	NoInformation,
}

// RoofingMaterial classifies IV4.
func RoofingMaterial(iv4 string) string {
	switch microdata.NormalizeCode(iv4) {
	case "1", "2", "3", "4":
		return RoofDurable
	case "5", "6", "7":
		return RoofPrecarious
	case "9":
		return RoofNotApplicable
	default:
		return NoData
	}
}

// HouseholdType classifies IX_TOT.
func HouseholdType(ixTot string) string {
	n, ok := microdata.ParseInt(ixTot)
	switch {
	case !ok || n <= 0:
		return NoData
	case n == 1:
		return HouseholdSingle
	case n <= 4:
		return HouseholdNuclear
	default:
		return HouseholdExtended
	}
}

// EducationLabel maps NIVEL_ED. It returns nil when the column is absent
// from the source row, which is not the same as an unknown code.
func EducationLabel(value string, present bool) *string {
	if !present {
		return nil
	}
	var label string
	switch microdata.NormalizeCode(value) {
	case "1":
		label = PrimaryIncomplete
	case "2":
		label = PrimaryComplete
	case "3":
		label = SecondaryIncomplete
	case "4":
		label = SecondaryComplete
	case "5", "6":
		label = HigherEducation
	default:
		label = NoInformation
	}
	return &label
}

// GenderLabel maps CH04.
func GenderLabel(ch04 string) string {
	switch microdata.NormalizeCode(ch04) {
	case "1":
		return Male
	case "2":
		return Female
	default:
		return GenderUnknown
	}
}

// UniversityFlag compares NIVEL_ED against the university level for adults.
// It returns nil for minors, missing ages and absent or zero levels.
func UniversityFlag(nivelEd string, present bool, age string) *int {
	if !present {
		return nil
	}
	level, ok := microdata.ParseInt(nivelEd)
	if !ok || level == 0 {
		return nil
	}
	years, ok := microdata.ParseInt(age)
	if !ok || years < 18 {
		return nil
	}
	flag := UniversityBelow
	switch {
	case level == 6:
		flag = UniversityCurrent
	case level > 6:
		flag = UniversityAbove
	}
	return &flag
}

// EmploymentSector maps PP04A.
func EmploymentSector(pp04a string) string {
	switch microdata.NormalizeCode(pp04a) {
	case "1":
		return SectorPublic
	case "2":
		return SectorPrivate
	default:
		return SectorOther
	}
}
