package analytics

import (
	"sort"

	"github.com/JoacoLucen/EPH-Insight-App/internal/aggregate"
	"github.com/JoacoLucen/EPH-Insight-App/internal/indicators"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
)

// ESTADO codes of the active population.
const (
	statusEmployed   = "1"
	statusUnemployed = "2"
)

// Rates are employment and unemployment over the active population.
type Rates struct {
	Active       float64 `json:"active"`
	Employment   float64 `json:"employment"`
	Unemployment float64 `json:"unemployment"`
}

type activity struct {
	employed   float64
	unemployed float64
}

func (a *activity) add(ind microdata.Individual) bool {
	switch code(ind.Record, "ESTADO") {
	case statusEmployed:
		a.employed += ind.Weight
	case statusUnemployed:
		a.unemployed += ind.Weight
	default:
		return false
	}
	return true
}

func (a activity) rates() Rates {
	active := a.employed + a.unemployed
	return Rates{
		Active:       active,
		Employment:   aggregate.Percent(a.employed, active),
		Unemployment: aggregate.Percent(a.unemployed, active),
	}
}

// PeriodRates are the rates of one survey wave.
type PeriodRates struct {
	Period microdata.Period `json:"period"`
	Rates
}

// PeriodRateSeries lists rates oldest period first.
type PeriodRateSeries struct {
	Items []PeriodRates `json:"items"`
}

// UnemploymentRateByPeriod returns the rates of every period with an active
// population.
func (e *Engine) UnemploymentRateByPeriod() PeriodRateSeries {
	tallies := make(map[microdata.Period]*activity)
	var periods []microdata.Period
	for _, ind := range e.individuals {
		t, ok := tallies[ind.Period]
		if !ok {
			t = &activity{}
			tallies[ind.Period] = t
			periods = append(periods, ind.Period)
		}
		t.add(ind)
	}
	sortPeriods(periods)

	result := PeriodRateSeries{Items: []PeriodRates{}}
	for _, p := range periods {
		r := tallies[p].rates()
		if r.Active == 0 {
			continue
		}
		result.Items = append(result.Items, PeriodRates{Period: p, Rates: r})
	}
	return result
}

// LowestUnemployment is the period with the lowest unemployment rate.
type LowestUnemployment struct {
	Found bool        `json:"found"`
	Point PeriodRates `json:"point"`
}

// LowestUnemploymentPeriod returns the period with the lowest unemployment
// rate. On ties the oldest period wins.
func (e *Engine) LowestUnemploymentPeriod() LowestUnemployment {
	series := e.UnemploymentRateByPeriod().Items
	var result LowestUnemployment
	for _, point := range series {
		if !result.Found || point.Unemployment < result.Point.Unemployment {
			result = LowestUnemployment{Found: true, Point: point}
		}
	}
	return result
}

// YearRates are the rates of one survey year.
type YearRates struct {
	Year int `json:"year"`
	Rates
}

// EmploymentRatesByYear returns the rates of every year with an active
// population, oldest first.
func (e *Engine) EmploymentRatesByYear() []YearRates {
	tallies := make(map[int]*activity)
	var years []int
	for _, ind := range e.individuals {
		t, ok := tallies[ind.Period.Year]
		if !ok {
			t = &activity{}
			tallies[ind.Period.Year] = t
			years = append(years, ind.Period.Year)
		}
		t.add(ind)
	}
	sort.Ints(years)

	out := []YearRates{}
	for _, y := range years {
		r := tallies[y].rates()
		if r.Active == 0 {
			continue
		}
		out = append(out, YearRates{Year: y, Rates: r})
	}
	return out
}

// ClusterRates compares a cluster's rates at the first and latest period.
type ClusterRates struct {
	Cluster     string `json:"cluster"`
	ClusterName string `json:"clusterName"`
	First       Rates  `json:"first"`
	Latest      Rates  `json:"latest"`
}

// ClusterRatesTable lists clusters in code order.
type ClusterRatesTable struct {
	FirstPeriod  microdata.Period     `json:"firstPeriod"`
	LatestPeriod microdata.Period     `json:"latestPeriod"`
	Items        []ClusterRates       `json:"items"`
	Excluded     aggregate.Exclusions `json:"excluded,omitempty"`
}

// EmploymentRatesByCluster returns the rates of every cluster at the oldest
// and the most recent period with an active population.
func (e *Engine) EmploymentRatesByCluster() ClusterRatesTable {
	result := ClusterRatesTable{Items: []ClusterRates{}, Excluded: aggregate.Exclusions{}}
	series := e.UnemploymentRateByPeriod().Items
	if len(series) == 0 {
		return result
	}
	first, latest := series[0].Period, series[len(series)-1].Period
	result.FirstPeriod, result.LatestPeriod = first, latest

	firstTally := make(map[string]*activity)
	latestTally := make(map[string]*activity)
	var clusters []string
	for _, ind := range e.individuals {
		if ind.Period != first && ind.Period != latest {
			continue
		}
		if !e.knownCluster(ind.Record, result.Excluded) {
			continue
		}
		if _, ok := firstTally[ind.Cluster]; !ok {
			firstTally[ind.Cluster] = &activity{}
			latestTally[ind.Cluster] = &activity{}
			clusters = append(clusters, ind.Cluster)
		}
		if ind.Period == first {
			firstTally[ind.Cluster].add(ind)
		}
		if ind.Period == latest {
			latestTally[ind.Cluster].add(ind)
		}
	}
	e.sortClusters(clusters)

	for _, cluster := range clusters {
		result.Items = append(result.Items, ClusterRates{
			Cluster:     cluster,
			ClusterName: e.codebook.ClusterLabel(cluster),
			First:       firstTally[cluster].rates(),
			Latest:      latestTally[cluster].rates(),
		})
	}
	return result
}

// UnemployedByEducation returns the weight of unemployed people per
// education label in period.
func (e *Engine) UnemployedByEducation(period microdata.Period) Ranking {
	result := newRanking()
	result.Period = periodPtr(period)
	sums := aggregate.NewSums[string]()
	for _, ind := range e.individuals {
		if ind.Period != period || !isCode(ind.Record, "ESTADO", statusUnemployed) {
			continue
		}
		if ind.EducationLabel == nil {
			result.Excluded.Inc(ReasonNoEducation)
			continue
		}
		sums.Add(*ind.EducationLabel, ind.Weight)
	}
	if sums.Len() == 0 {
		return result
	}
	result.Items = labelItems(sums.Reindex(indicators.EducationLabels).Entries(), nil)
	return result
}

var sectors = []string{indicators.SectorPublic, indicators.SectorPrivate, indicators.SectorOther}

// EmploymentSectorByCluster returns the weight of employed people per
// sector and cluster in period.
func (e *Engine) EmploymentSectorByCluster(period microdata.Period) BreakdownTable {
	result := newBreakdownTable(period)
	table := aggregate.NewCrossTab[string, string]()
	for _, ind := range e.individuals {
		if ind.Period != period || !isCode(ind.Record, "ESTADO", statusEmployed) {
			continue
		}
		if !e.knownCluster(ind.Record, result.Excluded) {
			continue
		}
		table.Add(ind.Cluster, ind.Sector, ind.Weight)
	}

	clusters := table.Rows()
	e.sortClusters(clusters)
	for _, cluster := range clusters {
		values := make([]Item, 0, len(sectors))
		for _, sector := range sectors {
			values = append(values, Item{Key: sector, Label: sector, Value: aggregate.Round2(table.Get(cluster, sector))})
		}
		result.Rows = append(result.Rows, Breakdown{
			Key:    cluster,
			Label:  e.codebook.ClusterLabel(cluster),
			Total:  aggregate.Round2(table.RowTotal(cluster)),
			Values: values,
		})
	}
	return result
}
