package analytics

import (
	"fmt"
	"sort"

	"github.com/JoacoLucen/EPH-Insight-App/internal/aggregate"
	"github.com/JoacoLucen/EPH-Insight-App/internal/indicators"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
)

// AverageAgeByCluster returns the weighted mean age per cluster in period,
// youngest first.
func (e *Engine) AverageAgeByCluster(period microdata.Period) Ranking {
	result := newRanking()
	result.Period = periodPtr(period)
	ageSums := aggregate.NewSums[string]()
	weights := aggregate.NewSums[string]()
	for _, ind := range e.individuals {
		if ind.Period != period || !e.knownCluster(ind.Record, result.Excluded) {
			continue
		}
		age, ok := ind.Age()
		if !ok {
			result.Excluded.Inc(ReasonInvalidAge)
			continue
		}
		ageSums.Add(ind.Cluster, float64(age)*ind.Weight)
		weights.Add(ind.Cluster, ind.Weight)
	}

	entries := make([]aggregate.Entry[string], 0, weights.Len())
	for _, w := range weights.Entries() {
		mean := 0.0
		if w.Value > 0 {
			mean = aggregate.Round2(ageSums.Get(w.Key) / w.Value)
		}
		entries = append(entries, aggregate.Entry[string]{Key: w.Key, Value: mean})
	}
	aggregate.SortAsc(entries)
	result.Items = e.clusterItems(entries)
	return result
}

const (
	ageBucketWidth = 10
	ageBucketLimit = 100
)

// AgeBuckets lists the ten-year age groups of the age structure.
var AgeBuckets = func() []string {
	out := make([]string, 0, ageBucketLimit/ageBucketWidth)
	for lo := 0; lo < ageBucketLimit; lo += ageBucketWidth {
		out = append(out, ageBucket(lo))
	}
	return out
}()

func ageBucket(age int) string {
	lo := age / ageBucketWidth * ageBucketWidth
	return fmt.Sprintf("%d-%d", lo, lo+ageBucketWidth-1)
}

var genders = []string{indicators.Female, indicators.Male}

// AgeStructure returns the weight per ten-year age group and gender in period.
// Ages of 100 and over fall outside the groups and are tallied.
func (e *Engine) AgeStructure(period microdata.Period) BreakdownTable {
	result := newBreakdownTable(period)
	table := aggregate.NewCrossTab[string, string]()
	for _, ind := range e.individuals {
		if ind.Period != period {
			continue
		}
		age, ok := ind.Age()
		if !ok {
			result.Excluded.Inc(ReasonInvalidAge)
			continue
		}
		if age < 0 || age >= ageBucketLimit {
			result.Excluded.Inc(ReasonAgeOutOfRange)
			continue
		}
		table.Add(ageBucket(age), ind.GenderLabel, ind.Weight)
	}
	if len(table.Rows()) == 0 {
		return result
	}

	for _, bucket := range AgeBuckets {
		values := make([]Item, 0, len(genders))
		for _, g := range genders {
			values = append(values, Item{Key: g, Label: g, Value: aggregate.Round2(table.Get(bucket, g))})
		}
		result.Rows = append(result.Rows, Breakdown{
			Key:    bucket,
			Label:  bucket,
			Total:  aggregate.Round2(table.RowTotal(bucket)),
			Values: values,
		})
	}
	return result
}

// AgePoint summarises the ages of one period. Dependency is nil when nobody
// aged 15 to 64 was surveyed.
type AgePoint struct {
	Period     microdata.Period `json:"period"`
	Mean       float64          `json:"mean"`
	Median     float64          `json:"median"`
	Dependency *float64         `json:"dependency,omitempty"`
}

// AgeSeries lists age summaries oldest period first.
type AgeSeries struct {
	Items    []AgePoint           `json:"items"`
	Excluded aggregate.Exclusions `json:"excluded,omitempty"`
}

type ageTally struct {
	ages     []int
	weighted float64
	weight   float64
	young    float64
	working  float64
	old      float64
}

// AgeEvolution returns, per period, the weighted mean age, the unweighted
// median age and the dependency ratio (0-14 plus 65+ over 15-64, times 100).
func (e *Engine) AgeEvolution() AgeSeries {
	result := AgeSeries{Items: []AgePoint{}, Excluded: aggregate.Exclusions{}}
	tallies := make(map[microdata.Period]*ageTally)
	var periods []microdata.Period
	for _, ind := range e.individuals {
		age, ok := ind.Age()
		if !ok {
			result.Excluded.Inc(ReasonInvalidAge)
			continue
		}
		t, seen := tallies[ind.Period]
		if !seen {
			t = &ageTally{}
			tallies[ind.Period] = t
			periods = append(periods, ind.Period)
		}
		t.ages = append(t.ages, age)
		t.weighted += float64(age) * ind.Weight
		t.weight += ind.Weight
		switch {
		case age <= 14:
			t.young += ind.Weight
		case age <= 64:
			t.working += ind.Weight
		default:
			t.old += ind.Weight
		}
	}
	sortPeriods(periods)

	for _, p := range periods {
		t := tallies[p]
		point := AgePoint{Period: p, Median: aggregate.Round2(median(t.ages))}
		if t.weight > 0 {
			point.Mean = aggregate.Round2(t.weighted / t.weight)
		}
		if t.working > 0 {
			ratio := aggregate.Round2((t.young + t.old) / t.working * 100)
			point.Dependency = &ratio
		}
		result.Items = append(result.Items, point)
	}
	return result
}

func median(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return float64(sorted[mid])
	}
	return float64(sorted[mid-1]+sorted[mid]) / 2
}
