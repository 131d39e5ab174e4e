package indicators

import "github.com/JoacoLucen/EPH-Insight-App/internal/microdata"

// Habitability categories, worst first.
const (
	HabitabilityInsufficient = "Insuficiente"
	HabitabilityRegular      = "Regular"
	HabitabilityHealthy      = "Saludable"
	HabitabilityGood         = "Buena"
)

// HabitabilityLevels lists the categories worst first.
var HabitabilityLevels = []string{
	HabitabilityInsufficient,
	HabitabilityRegular,
	HabitabilityHealthy,
	HabitabilityGood,
}

// habitabilityPoints scores each housing attribute. Codes not listed score 0.
var habitabilityPoints = map[string]map[string]int{
	"IV3":  {"2": 1, "1": 2},
	"IV6":  {"2": 1, "1": 2},
	"IV7":  {"3": 1, "2": 2, "1": 3},
	"IV9":  {"2": 1, "1": 3},
	"IV10": {"2": 1, "1": 2},
	"IV11": {"2": 2, "1": 4},
}

var roofingPoints = map[string]int{
	RoofPrecarious: 1,
	RoofDurable:    2,
}

// Habitability classifies a household. It reads Roofing, so RoofingMaterial
// must have been applied first.
func Habitability(h microdata.Household) string {
	if microdata.NormalizeCode(h.Field("IV8")) == "2" || microdata.NormalizeCode(h.Field("IV6")) == "3" {
		return HabitabilityInsufficient
	}
	return HabitabilityFromScore(HabitabilityScore(h))
}

// HabitabilityScore sums the attribute points of a household.
func HabitabilityScore(h microdata.Household) int {
	score := 0
	for field, points := range habitabilityPoints {
		score += points[microdata.NormalizeCode(h.Field(field))]
	}
	return score + roofingPoints[h.Roofing]
}

// HabitabilityFromScore applies the category thresholds.
func HabitabilityFromScore(score int) string {
	switch {
	case score <= 4:
		return HabitabilityInsufficient
	case score <= 8:
		return HabitabilityRegular
	case score < 16:
		return HabitabilityHealthy
	default:
		return HabitabilityGood
	}
}
