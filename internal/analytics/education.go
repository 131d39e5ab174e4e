package analytics

import (
	"sort"
	"strconv"
	"strings"

	"github.com/JoacoLucen/EPH-Insight-App/internal/aggregate"
	"github.com/JoacoLucen/EPH-Insight-App/internal/indicators"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
)

const adultAge = 18

// ClusterPeriodValue is one cell of a cluster by period series.
type ClusterPeriodValue struct {
	Cluster     string           `json:"cluster"`
	ClusterName string           `json:"clusterName"`
	Period      microdata.Period `json:"period"`
	Value       float64          `json:"value"`
}

// ClusterPeriodSeries lists values ordered by cluster code, then period.
type ClusterPeriodSeries struct {
	Items    []ClusterPeriodValue `json:"items"`
	Excluded aggregate.Exclusions `json:"excluded,omitempty"`
}

type clusterPeriod struct {
	cluster string
	period  microdata.Period
}

// EducationLevelShareByCluster returns, per cluster and period, the share of
// adults whose NIVEL_ED equals level.
func (e *Engine) EducationLevelShareByCluster(level string) (ClusterPeriodSeries, error) {
	level = microdata.NormalizeCode(level)
	if level == "" {
		return ClusterPeriodSeries{}, apperr.Validation("education level is required")
	}

	excluded := aggregate.Exclusions{}
	num := aggregate.NewSums[clusterPeriod]()
	den := aggregate.NewSums[clusterPeriod]()
	for _, ind := range e.individuals {
		if !e.knownCluster(ind.Record, excluded) || !ageAtLeast(ind, adultAge, excluded) {
			continue
		}
		key := clusterPeriod{cluster: ind.Cluster, period: ind.Period}
		den.Add(key, ind.Weight)
		if code(ind.Record, "NIVEL_ED") == level {
			num.Add(key, ind.Weight)
		}
	}

	entries := aggregate.Percentages(num, den)
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Key, entries[j].Key
		if a.cluster != b.cluster {
			return e.clusterLess(a.cluster, b.cluster)
		}
		return a.period.Before(b.period)
	})

	items := make([]ClusterPeriodValue, 0, len(entries))
	for _, entry := range entries {
		items = append(items, ClusterPeriodValue{
			Cluster:     entry.Key.cluster,
			ClusterName: e.codebook.ClusterLabel(entry.Key.cluster),
			Period:      entry.Key.period,
			Value:       entry.Value,
		})
	}
	return ClusterPeriodSeries{Items: items, Excluded: excluded}, nil
}

// tableLabels are the education columns of the adult education table.
var tableLabels = []string{
	indicators.PrimaryIncomplete,
	indicators.PrimaryComplete,
	indicators.SecondaryIncomplete,
	indicators.SecondaryComplete,
	indicators.HigherEducation,
}

// EducationTableByCluster returns the weighted number of adults per period and
// education label in one cluster.
func (e *Engine) EducationTableByCluster(cluster string) (PeriodTable, error) {
	cluster = microdata.NormalizeCode(cluster)
	name, err := e.codebook.ClusterName(cluster)
	if err != nil {
		return PeriodTable{}, err
	}

	excluded := aggregate.Exclusions{}
	table := aggregate.NewCrossTab[microdata.Period, string]()
	for _, ind := range e.individuals {
		if ind.Cluster != cluster || !ageAtLeast(ind, adultAge, excluded) {
			continue
		}
		if ind.EducationLabel == nil {
			excluded.Inc(ReasonNoEducation)
			continue
		}
		table.Add(ind.Period, *ind.EducationLabel, ind.Weight)
	}

	return PeriodTable{
		Cluster:     cluster,
		ClusterName: name,
		Rows:        periodRows(table, tableLabels, nil),
		Excluded:    excluded,
	}, nil
}

// periodRows renders a period by category table in period order.
func periodRows(table *aggregate.CrossTab[microdata.Period, string], cols []string, label func(string) string) []PeriodRow {
	periods := table.Rows()
	sortPeriods(periods)
	rows := make([]PeriodRow, 0, len(periods))
	for _, p := range periods {
		entries := make([]aggregate.Entry[string], 0, len(cols))
		for _, col := range cols {
			entries = append(entries, aggregate.Entry[string]{Key: col, Value: aggregate.Round2(table.Get(p, col))})
		}
		rows = append(rows, PeriodRow{Period: p, Total: aggregate.Round2(table.RowTotal(p)), Values: labelItems(entries, label)})
	}
	return rows
}

// ForeignBornHigherEducation returns the share of the population of period
// born abroad (CH15 4 or 5) with tertiary or university education (CH12 5 or 6).
func (e *Engine) ForeignBornHigherEducation(period microdata.Period) Share {
	var num, den float64
	for _, ind := range e.individuals {
		if ind.Period != period {
			continue
		}
		den += ind.Weight
		if isCode(ind.Record, "CH15", "4", "5") && isCode(ind.Record, "CH12", "5", "6") {
			num += ind.Weight
		}
	}
	return Share{
		Period:      periodPtr(period),
		Found:       den > 0,
		Numerator:   num,
		Denominator: den,
		Value:       aggregate.Percent(num, den),
	}
}

type memberKey struct {
	codusu   string
	nroHogar string
}

// TopHigherEducatedHouseholds ranks clusters by the share of households, in
// the latest period, with at least two occupants and at least two members
// holding higher education.
func (e *Engine) TopHigherEducatedHouseholds() Ranking {
	result := newRanking()
	latest, ok := e.LatestPeriod()
	if !ok {
		return result
	}
	result.Period = periodPtr(latest)

	educated := make(map[memberKey]int)
	for _, ind := range e.individuals {
		if ind.Period == latest && ind.EducationLabel != nil && *ind.EducationLabel == indicators.HigherEducation {
			educated[memberKey{codusu: ind.CODUSU, nroHogar: ind.NroHogar}]++
		}
	}

	num := aggregate.NewSums[string]()
	den := aggregate.NewSums[string]()
	for _, h := range e.households {
		if h.Period != latest || !e.knownCluster(h.Record, result.Excluded) {
			continue
		}
		members, ok := h.Members()
		if !ok {
			result.Excluded.Inc(ReasonInvalidMembers)
			continue
		}
		den.Add(h.Cluster, h.Weight)
		if members >= 2 && educated[memberKey{codusu: h.CODUSU, nroHogar: h.NroHogar}] >= 2 {
			num.Add(h.Cluster, h.Weight)
		}
	}

	result.Items = e.clusterItems(aggregate.Top(aggregate.Percentages(num, den), TopN))
	return result
}

// UniversityAttendanceByCluster returns, per cluster, the share of individuals
// who attended at least some university level (CH12 6, 7 or 8), lowest first.
func (e *Engine) UniversityAttendanceByCluster() Ranking {
	result := newRanking()
	num := aggregate.NewSums[string]()
	den := aggregate.NewSums[string]()
	for _, ind := range e.individuals {
		if !e.knownCluster(ind.Record, result.Excluded) {
			continue
		}
		den.Add(ind.Cluster, ind.Weight)
		if isCode(ind.Record, "CH12", "6", "7", "8") {
			num.Add(ind.Cluster, ind.Weight)
		}
	}
	entries := aggregate.Percentages(num, den)
	aggregate.SortAsc(entries)
	result.Items = e.clusterItems(entries)
	return result
}

// LiteracyPoint is the literacy of the population aged six and over.
type LiteracyPoint struct {
	Period     microdata.Period `json:"period"`
	Population float64          `json:"population"`
	Literate   float64          `json:"literate"`
	Illiterate float64          `json:"illiterate"`
}

// LiteracySeries lists literacy per year.
type LiteracySeries struct {
	Items    []LiteracyPoint      `json:"items"`
	Excluded aggregate.Exclusions `json:"excluded,omitempty"`
}

const literacyMinAge = 6

func (e *Engine) literacy(period microdata.Period, excluded aggregate.Exclusions) LiteracyPoint {
	var population, literate, illiterate float64
	for _, ind := range e.individuals {
		if ind.Period != period || !ageAtLeast(ind, literacyMinAge, excluded) {
			continue
		}
		population += ind.Weight
		switch code(ind.Record, "CH09") {
		case "1":
			literate += ind.Weight
		case "2":
			illiterate += ind.Weight
		}
	}
	return LiteracyPoint{
		Period:     period,
		Population: population,
		Literate:   aggregate.Percent(literate, population),
		Illiterate: aggregate.Percent(illiterate, population),
	}
}

// Literacy returns the literacy of one period. An empty period yields 0 and 0.
func (e *Engine) Literacy(period microdata.Period) LiteracyPoint {
	return e.literacy(period, aggregate.Exclusions{})
}

// LiteracyByYear returns literacy for the last loaded quarter of every year.
func (e *Engine) LiteracyByYear() LiteracySeries {
	last := make(map[int]microdata.Period)
	for _, ind := range e.individuals {
		if current, ok := last[ind.Period.Year]; !ok || current.Before(ind.Period) {
			last[ind.Period.Year] = ind.Period
		}
	}
	periods := make([]microdata.Period, 0, len(last))
	for _, p := range last {
		periods = append(periods, p)
	}
	sortPeriods(periods)

	result := LiteracySeries{Items: make([]LiteracyPoint, 0, len(periods)), Excluded: aggregate.Exclusions{}}
	for _, p := range periods {
		result.Items = append(result.Items, e.literacy(p, result.Excluded))
	}
	return result
}

// SecondaryComparison puts two clusters side by side, period by period.
type SecondaryComparison struct {
	First    ClusterPeriodSeries `json:"first"`
	Second   ClusterPeriodSeries `json:"second"`
	Excluded aggregate.Exclusions `json:"excluded,omitempty"`
}

// IncompleteSecondaryComparison returns, per period, the weighted share of
// adults with incomplete secondary education in two clusters.
func (e *Engine) IncompleteSecondaryComparison(a, b string) (SecondaryComparison, error) {
	a, b = microdata.NormalizeCode(a), microdata.NormalizeCode(b)
	for _, c := range []string{a, b} {
		if _, err := e.codebook.ClusterName(c); err != nil {
			return SecondaryComparison{}, err
		}
	}

	excluded := aggregate.Exclusions{}
	num := aggregate.NewSums[clusterPeriod]()
	den := aggregate.NewSums[clusterPeriod]()
	for _, ind := range e.individuals {
		if ind.Cluster != a && ind.Cluster != b {
			continue
		}
		if !ageAtLeast(ind, adultAge, excluded) {
			continue
		}
		key := clusterPeriod{cluster: ind.Cluster, period: ind.Period}
		den.Add(key, ind.Weight)
		if code(ind.Record, "NIVEL_ED") == "3" {
			num.Add(key, ind.Weight)
		}
	}

	series := func(cluster string) ClusterPeriodSeries {
		out := ClusterPeriodSeries{Items: []ClusterPeriodValue{}}
		for _, entry := range aggregate.Percentages(num, den) {
			if entry.Key.cluster != cluster {
				continue
			}
			out.Items = append(out.Items, ClusterPeriodValue{
				Cluster:     cluster,
				ClusterName: e.codebook.ClusterLabel(cluster),
				Period:      entry.Key.period,
				Value:       entry.Value,
			})
		}
		sort.SliceStable(out.Items, func(i, j int) bool { return out.Items[i].Period.Before(out.Items[j].Period) })
		return out
	}
	return SecondaryComparison{First: series(a), Second: series(b), Excluded: excluded}, nil
}

// HigherEducatedInInsufficientHousing returns the weighted number of people
// with CH12 of 7 or more living in an insufficient household, in the last
// loaded quarter of year.
func (e *Engine) HigherEducatedInInsufficientHousing(year int) Share {
	period, ok := lastQuarterOf(e.households, homePeriod, year)
	if !ok {
		return Share{}
	}

	var count float64
	for _, ind := range e.individuals {
		if ind.Period != period {
			continue
		}
		level, ok := ind.Int("CH12")
		if !ok || level < 7 {
			continue
		}
		if insufficient, _ := e.index.InsufficientHousing(ind); insufficient {
			count += ind.Weight
		}
	}
	return Share{Period: periodPtr(period), Found: true, Numerator: count, Value: count}
}

// AgeGroup is an inclusive age range such as "20-29", or an open range "+60".
type AgeGroup struct {
	Label string
	Min   int
	Max   int
}

// Contains reports whether age falls in the group.
func (g AgeGroup) Contains(age int) bool {
	return age >= g.Min && (g.Max < 0 || age <= g.Max)
}

// ParseAgeGroup parses "20-29" or "+60".
func ParseAgeGroup(value string) (AgeGroup, error) {
	value = strings.TrimSpace(value)
	invalid := apperr.Validation("invalid age group").WithDetails(map[string]string{"group": value})
	if rest, ok := strings.CutPrefix(value, "+"); ok {
		from, err := strconv.Atoi(rest)
		if err != nil || from < 0 {
			return AgeGroup{}, invalid
		}
		return AgeGroup{Label: value, Min: from, Max: -1}, nil
	}
	lo, hi, ok := strings.Cut(value, "-")
	if !ok {
		return AgeGroup{}, invalid
	}
	from, errFrom := strconv.Atoi(lo)
	to, errTo := strconv.Atoi(hi)
	if errFrom != nil || errTo != nil || from < 0 || to < from {
		return AgeGroup{}, invalid
	}
	return AgeGroup{Label: value, Min: from, Max: to}, nil
}

// DefaultAgeGroups are the groups used when none are requested.
var DefaultAgeGroups = []string{"20-29", "30-39", "40-49", "50-59", "+60"}

const educationMinAge = 20

// MostCommonEducationByAgeGroup returns, for every age group, the education
// label with the highest weight among people aged 20 or more in year.
// Groups without people are omitted.
func (e *Engine) MostCommonEducationByAgeGroup(year int, groups []string) (Ranking, error) {
	if len(groups) == 0 {
		groups = DefaultAgeGroups
	}
	parsed := make([]AgeGroup, 0, len(groups))
	for _, g := range groups {
		group, err := ParseAgeGroup(g)
		if err != nil {
			return Ranking{}, err
		}
		parsed = append(parsed, group)
	}

	result := newRanking()
	table := aggregate.NewCrossTab[string, string]()
	for _, ind := range e.individuals {
		if ind.Period.Year != year {
			continue
		}
		age, ok := ind.Age()
		if !ok {
			result.Excluded.Inc(ReasonInvalidAge)
			continue
		}
		if age < educationMinAge {
			continue
		}
		if ind.EducationLabel == nil {
			result.Excluded.Inc(ReasonNoEducation)
			continue
		}
		for _, g := range parsed {
			if g.Contains(age) {
				table.Add(g.Label, *ind.EducationLabel, ind.Weight)
			}
		}
	}

	for _, g := range parsed {
		best, ok := aggregate.Max(table.Row(g.Label).Entries())
		if !ok {
			continue
		}
		result.Items = append(result.Items, Item{Key: g.Label, Label: best.Key, Value: aggregate.Round2(best.Value)})
	}
	return result, nil
}
