// Package analytics answers the survey questions over one loaded snapshot.
//
// Every query is a pure read: it never mutates records, it sums PONDERA
// instead of counting rows, and an empty selection yields a "no data" result
// rather than an error. Records a query cannot place (an unknown cluster, a
// non-numeric age) are skipped and tallied in the result's Excluded map.
package analytics

import (
	"sort"

	"github.com/JoacoLucen/EPH-Insight-App/internal/aggregate"
	"github.com/JoacoLucen/EPH-Insight-App/internal/codebook"
	"github.com/JoacoLucen/EPH-Insight-App/internal/household"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
)

// TopN is the size of every top ranking.
const TopN = 5

// NoneLabel marks an extreme that no cluster qualified for.
const NoneLabel = "Ninguno"

// Reasons a query skips a record.
const (
	ReasonUnknownCluster = "unknown_cluster"
	ReasonInvalidAge     = "invalid_age"
	ReasonNoHousehold    = "no_household"
	ReasonInvalidMembers = "invalid_members"
	ReasonInvalidIncome  = "invalid_income"
	ReasonMissingRegion  = "missing_region"
	ReasonNoEducation    = "no_education"
	ReasonAgeOutOfRange  = "age_out_of_range"
)

// Engine runs queries over an immutable snapshot.
type Engine struct {
	individuals []microdata.Individual
	households  []microdata.Household
	index       *household.Index
	codebook    *codebook.Codebook

	periods      []microdata.Period
	clusterRank  map[string]int
	latestPerson microdata.Period
	latestHome   microdata.Period
}

// New indexes a derived dataset. The dataset must not be modified afterwards.
func New(ds *microdata.Dataset, cb *codebook.Codebook) *Engine {
	e := &Engine{
		individuals: ds.Individuals,
		households:  ds.Households,
		index:       household.NewIndex(ds.Households),
		codebook:    cb,
		periods:     ds.Periods(),
		clusterRank: make(map[string]int),
	}
	for i, code := range cb.ClusterCodes() {
		e.clusterRank[code] = i
	}
	for _, ind := range ds.Individuals {
		if e.latestPerson.Before(ind.Period) {
			e.latestPerson = ind.Period
		}
	}
	for _, h := range ds.Households {
		if e.latestHome.Before(h.Period) {
			e.latestHome = h.Period
		}
	}
	return e
}

// Codebook returns the codebook queries label results with.
func (e *Engine) Codebook() *codebook.Codebook {
	return e.codebook
}

// Item is one labelled value of a result.
type Item struct {
	Key   string  `json:"key"`
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Ranking is an ordered list of labelled values.
type Ranking struct {
	Period   *microdata.Period    `json:"period,omitempty"`
	Items    []Item               `json:"items"`
	Excluded aggregate.Exclusions `json:"excluded,omitempty"`
}

// Share is a single weighted percentage.
type Share struct {
	Period      *microdata.Period `json:"period,omitempty"`
	Found       bool              `json:"found"`
	Numerator   float64           `json:"numerator"`
	Denominator float64           `json:"denominator"`
	Value       float64           `json:"value"`
}

// PeriodRow is one period of a period-by-category table.
type PeriodRow struct {
	Period microdata.Period `json:"period"`
	Total  float64          `json:"total"`
	Values []Item           `json:"values"`
}

// PeriodTable lists categories per period, oldest period first.
type PeriodTable struct {
	Cluster     string               `json:"cluster,omitempty"`
	ClusterName string               `json:"clusterName,omitempty"`
	Rows        []PeriodRow          `json:"rows"`
	Excluded    aggregate.Exclusions `json:"excluded,omitempty"`
}

// Breakdown splits one group into categories.
type Breakdown struct {
	Key    string  `json:"key"`
	Label  string  `json:"label"`
	Total  float64 `json:"total"`
	Values []Item  `json:"values"`
}

// BreakdownTable lists the breakdown of several groups in one period.
type BreakdownTable struct {
	Period   microdata.Period     `json:"period"`
	Rows     []Breakdown          `json:"rows"`
	Excluded aggregate.Exclusions `json:"excluded,omitempty"`
}

func newBreakdownTable(period microdata.Period) BreakdownTable {
	return BreakdownTable{Period: period, Rows: []Breakdown{}, Excluded: aggregate.Exclusions{}}
}

func newRanking() Ranking {
	return Ranking{Items: []Item{}, Excluded: aggregate.Exclusions{}}
}

func periodPtr(p microdata.Period) *microdata.Period {
	return &p
}

// Periods returns the loaded survey waves, oldest first.
func (e *Engine) Periods() []microdata.Period {
	return append([]microdata.Period(nil), e.periods...)
}

// LatestPeriod returns the most recent wave in the households table.
func (e *Engine) LatestPeriod() (microdata.Period, bool) {
	return e.latestHome, !e.latestHome.IsZero()
}

// HasPeriod reports whether any household or individual belongs to p.
func (e *Engine) HasPeriod(p microdata.Period) bool {
	for _, loaded := range e.periods {
		if loaded == p {
			return true
		}
	}
	for _, ind := range e.individuals {
		if ind.Period == p {
			return true
		}
	}
	return false
}

// lastQuarterOf returns the latest period of year found in records.
func lastQuarterOf[T any](records []T, period func(T) microdata.Period, year int) (microdata.Period, bool) {
	var best microdata.Period
	for _, rec := range records {
		p := period(rec)
		if p.Year == year && best.Before(p) {
			best = p
		}
	}
	return best, !best.IsZero()
}

func homePeriod(h microdata.Household) microdata.Period { return h.Period }
func homeWeight(h microdata.Household) float64          { return h.Weight }

// code returns a column in canonical code form.
func code(rec microdata.Record, field string) string {
	return microdata.NormalizeCode(rec.Field(field))
}

func isCode(rec microdata.Record, field string, codes ...string) bool {
	value := code(rec, field)
	for _, c := range codes {
		if value == c {
			return true
		}
	}
	return false
}

// knownCluster reports whether rec can be grouped by cluster, tallying it otherwise.
func (e *Engine) knownCluster(rec microdata.Record, excluded aggregate.Exclusions) bool {
	if e.codebook.IsKnownCluster(rec.Cluster) {
		return true
	}
	excluded.Inc(ReasonUnknownCluster)
	return false
}

// ageAtLeast reports whether the individual is at least years old,
// tallying a non-numeric age.
func ageAtLeast(ind microdata.Individual, years int, excluded aggregate.Exclusions) bool {
	age, ok := ind.Age()
	if !ok {
		excluded.Inc(ReasonInvalidAge)
		return false
	}
	return age >= years
}

func (e *Engine) clusterItems(entries []aggregate.Entry[string]) []Item {
	out := make([]Item, 0, len(entries))
	for _, entry := range entries {
		out = append(out, Item{Key: entry.Key, Label: e.codebook.ClusterLabel(entry.Key), Value: entry.Value})
	}
	return out
}

func labelItems(entries []aggregate.Entry[string], label func(string) string) []Item {
	out := make([]Item, 0, len(entries))
	for _, entry := range entries {
		name := entry.Key
		if label != nil {
			name = label(entry.Key)
		}
		out = append(out, Item{Key: entry.Key, Label: name, Value: entry.Value})
	}
	return out
}

func (e *Engine) clusterLess(a, b string) bool {
	ra, okA := e.clusterRank[a]
	rb, okB := e.clusterRank[b]
	if okA && okB {
		return ra < rb
	}
	return okA
}

func sortPeriods(periods []microdata.Period) {
	sort.Slice(periods, func(i, j int) bool { return periods[i].Before(periods[j]) })
}

func (e *Engine) sortClusters(clusters []string) {
	sort.SliceStable(clusters, func(i, j int) bool { return e.clusterLess(clusters[i], clusters[j]) })
}
