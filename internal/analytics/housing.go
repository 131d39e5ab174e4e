package analytics

import (
	"github.com/JoacoLucen/EPH-Insight-App/internal/aggregate"
	"github.com/JoacoLucen/EPH-Insight-App/internal/indicators"
	"github.com/JoacoLucen/EPH-Insight-App/internal/microdata"
	"github.com/JoacoLucen/EPH-Insight-App/platform/apperr"
)

// RetireesInInsufficientHousing returns, per cluster, the share of retirees
// (CAT_INAC 1) in the latest period whose dwelling is insufficient, lowest first.
func (e *Engine) RetireesInInsufficientHousing() Ranking {
	result := newRanking()
	latest := e.latestPerson
	if latest.IsZero() {
		return result
	}
	result.Period = periodPtr(latest)

	num := aggregate.NewSums[string]()
	den := aggregate.NewSums[string]()
	for _, ind := range e.individuals {
		if ind.Period != latest || !isCode(ind.Record, "CAT_INAC", "1") {
			continue
		}
		if !e.knownCluster(ind.Record, result.Excluded) {
			continue
		}
		insufficient, found := e.index.InsufficientHousing(ind)
		if !found {
			result.Excluded.Inc(ReasonNoHousehold)
			continue
		}
		den.Add(ind.Cluster, ind.Weight)
		if insufficient {
			num.Add(ind.Cluster, ind.Weight)
		}
	}

	entries := aggregate.Percentages(num, den)
	aggregate.SortAsc(entries)
	result.Items = e.clusterItems(entries)
	return result
}

// OwnerOccupiedByCluster returns, per cluster, the share of owner-occupied
// dwellings (II7 1 or 2). Every known cluster is listed, lowest first.
func (e *Engine) OwnerOccupiedByCluster() Ranking {
	result := newRanking()
	num := aggregate.NewSums[string]()
	den := aggregate.NewSums[string]()
	for _, h := range e.households {
		if !e.knownCluster(h.Record, result.Excluded) {
			continue
		}
		den.Add(h.Cluster, h.Weight)
		if isCode(h.Record, "II7", "1", "2") {
			num.Add(h.Cluster, h.Weight)
		}
	}

	entries := aggregate.Percentages(num, den.Reindex(e.codebook.ClusterCodes()))
	aggregate.SortAsc(entries)
	result.Items = e.clusterItems(entries)
	return result
}

// TenantsByRegion returns, per region, the share of tenant households
// (II7 3), highest first.
func (e *Engine) TenantsByRegion() Ranking {
	result := newRanking()
	num := aggregate.NewSums[string]()
	den := aggregate.NewSums[string]()
	for _, h := range e.households {
		region := code(h.Record, microdata.ColRegion)
		if region == "" {
			result.Excluded.Inc(ReasonMissingRegion)
			continue
		}
		den.Add(region, h.Weight)
		if isCode(h.Record, "II7", "3") {
			num.Add(region, h.Weight)
		}
	}

	entries := aggregate.Percentages(num, den)
	aggregate.SortDesc(entries)
	result.Items = labelItems(entries, e.codebook.RegionLabel)
	return result
}

// Extremes holds the clusters with the highest and lowest value.
type Extremes struct {
	Year     int                  `json:"year"`
	Found    bool                 `json:"found"`
	Highest  Item                 `json:"highest"`
	Lowest   Item                 `json:"lowest"`
	Excluded aggregate.Exclusions `json:"excluded,omitempty"`
}

// PrecariousRoofExtremes returns the clusters with the highest and the lowest
// non-zero share of precarious roofs in year. When no cluster has a non-zero
// share the lowest is reported as "Ninguno" with 0.
func (e *Engine) PrecariousRoofExtremes(year int) Extremes {
	result := Extremes{Year: year, Excluded: aggregate.Exclusions{}}
	num := aggregate.NewSums[string]()
	den := aggregate.NewSums[string]()
	for _, h := range e.households {
		if h.Period.Year != year || !e.knownCluster(h.Record, result.Excluded) {
			continue
		}
		den.Add(h.Cluster, h.Weight)
		if h.Roofing == indicators.RoofPrecarious {
			num.Add(h.Cluster, h.Weight)
		}
	}
	if den.Len() == 0 {
		return result
	}
	result.Found = true

	entries := aggregate.Percentages(num, den)
	if highest, ok := aggregate.Max(entries); ok {
		result.Highest = e.clusterItems([]aggregate.Entry[string]{highest})[0]
	}
	lowest, ok := aggregate.Min(entries, func(entry aggregate.Entry[string]) bool { return entry.Value > 0 })
	if ok {
		result.Lowest = e.clusterItems([]aggregate.Entry[string]{lowest})[0]
	} else {
		result.Lowest = Item{Label: NoneLabel}
	}
	return result
}

// Leader is the single cluster with the highest weight.
type Leader struct {
	Found    bool                 `json:"found"`
	Item     Item                 `json:"item"`
	Excluded aggregate.Exclusions `json:"excluded,omitempty"`
}

// BathroomlessCrowdedLeader returns the cluster with the largest weight of
// dwellings without a bathroom (IV8 2) and two or more occupants.
func (e *Engine) BathroomlessCrowdedLeader() Leader {
	result := Leader{Item: Item{Label: NoneLabel}, Excluded: aggregate.Exclusions{}}
	sums := aggregate.NewSums[string]()
	for _, h := range e.households {
		if !isCode(h.Record, "IV8", "2") {
			continue
		}
		members, ok := h.Members()
		if !ok {
			result.Excluded.Inc(ReasonInvalidMembers)
			continue
		}
		if members < 2 || !e.knownCluster(h.Record, result.Excluded) {
			continue
		}
		sums.Add(h.Cluster, h.Weight)
	}

	best, ok := aggregate.Max(sums.Entries())
	if !ok {
		return result
	}
	result.Found = true
	result.Item = e.clusterItems([]aggregate.Entry[string]{best})[0]
	return result
}

// TenureEvolution returns the share of each tenure code (II7) per period in
// one cluster.
func (e *Engine) TenureEvolution(cluster string) (PeriodTable, error) {
	cluster = microdata.NormalizeCode(cluster)
	name, err := e.codebook.ClusterName(cluster)
	if err != nil {
		return PeriodTable{}, err
	}

	table := aggregate.NewCrossTab[microdata.Period, string]()
	for _, h := range e.households {
		if h.Cluster != cluster {
			continue
		}
		table.Add(h.Period, code(h.Record, "II7"), h.Weight)
	}

	cols := e.codebook.TenureCodes()
	periods := table.Rows()
	sortPeriods(periods)
	rows := make([]PeriodRow, 0, len(periods))
	for _, p := range periods {
		rows = append(rows, PeriodRow{
			Period: p,
			Total:  aggregate.Round2(table.RowTotal(p)),
			Values: labelItems(table.RowShares(p, cols), e.codebook.TenureLabel),
		})
	}
	return PeriodTable{Cluster: cluster, ClusterName: name, Rows: rows, Excluded: aggregate.Exclusions{}}, nil
}

// HabitabilityByCluster returns the share of each habitability category per
// cluster in period. Clusters are listed by name in Spanish collation order.
func (e *Engine) HabitabilityByCluster(period microdata.Period) BreakdownTable {
	result := newBreakdownTable(period)
	table := aggregate.NewCrossTab[string, string]()
	for _, h := range e.households {
		if h.Period != period || !e.knownCluster(h.Record, result.Excluded) {
			continue
		}
		table.Add(h.Cluster, h.Habitability, h.Weight)
	}

	for _, cluster := range e.codebook.ClusterCodesByName() {
		total := table.RowTotal(cluster)
		if total == 0 {
			continue
		}
		result.Rows = append(result.Rows, Breakdown{
			Key:    cluster,
			Label:  e.codebook.ClusterLabel(cluster),
			Total:  aggregate.Round2(total),
			Values: labelItems(table.RowShares(cluster, indicators.HabitabilityLevels), nil),
		})
	}
	return result
}

// DwellingTypeShares returns the share of each dwelling type (IV1) in period.
func (e *Engine) DwellingTypeShares(period microdata.Period) Ranking {
	result := newRanking()
	result.Period = periodPtr(period)
	sums := aggregate.WeightedSum(e.households,
		func(h microdata.Household) string { return code(h.Record, "IV1") },
		homeWeight,
		func(h microdata.Household) bool { return h.Period == period },
	)
	if sums.Len() == 0 {
		return result
	}

	total := sums.Total()
	ordered := sums.Reindex(e.codebook.DwellingTypeCodes())
	for _, key := range sums.Keys() {
		if !ordered.Has(key) {
			ordered.Add(key, sums.Get(key))
		}
	}
	entries := make([]aggregate.Entry[string], 0, ordered.Len())
	for _, entry := range ordered.Entries() {
		entries = append(entries, aggregate.Entry[string]{Key: entry.Key, Value: aggregate.Percent(entry.Value, total)})
	}
	result.Items = labelItems(entries, e.codebook.DwellingTypeLabel)
	return result
}

// PredominantFloorByCluster returns, per cluster, the floor material (IV3)
// with the highest weight in period.
func (e *Engine) PredominantFloorByCluster(period microdata.Period) Ranking {
	result := newRanking()
	result.Period = periodPtr(period)
	table := aggregate.NewCrossTab[string, string]()
	for _, h := range e.households {
		if h.Period != period || !e.knownCluster(h.Record, result.Excluded) {
			continue
		}
		table.Add(h.Cluster, code(h.Record, "IV3"), h.Weight)
	}

	clusters := table.Rows()
	e.sortClusters(clusters)
	for _, cluster := range clusters {
		best, ok := aggregate.Max(table.Row(cluster).Entries())
		if !ok {
			continue
		}
		result.Items = append(result.Items, Item{
			Key:   cluster,
			Label: e.codebook.ClusterLabel(cluster) + ": " + e.codebook.FloorTypeLabel(best.Key),
			Value: aggregate.Percent(best.Value, table.RowTotal(cluster)),
		})
	}
	return result
}

// IndoorBathroomByCluster returns, per cluster, the share of dwellings with
// the bathroom inside (IV9 1) in period, highest first.
func (e *Engine) IndoorBathroomByCluster(period microdata.Period) Ranking {
	result := newRanking()
	result.Period = periodPtr(period)
	num := aggregate.NewSums[string]()
	den := aggregate.NewSums[string]()
	for _, h := range e.households {
		if h.Period != period || !e.knownCluster(h.Record, result.Excluded) {
			continue
		}
		den.Add(h.Cluster, h.Weight)
		if isCode(h.Record, "IV9", "1") {
			num.Add(h.Cluster, h.Weight)
		}
	}
	entries := aggregate.Percentages(num, den)
	aggregate.SortDesc(entries)
	result.Items = e.clusterItems(entries)
	return result
}

// WeightedShare pairs a summed weight with its percentage.
type WeightedShare struct {
	Key     string  `json:"key"`
	Label   string  `json:"label"`
	Weight  float64 `json:"weight"`
	Percent float64 `json:"percent"`
}

// SettlementTable lists informal-settlement dwellings per cluster.
type SettlementTable struct {
	Period   microdata.Period     `json:"period"`
	Items    []WeightedShare      `json:"items"`
	Excluded aggregate.Exclusions `json:"excluded,omitempty"`
}

// InformalSettlementByCluster returns, per cluster, the weight and share of
// dwellings in an informal settlement (IV12_3 1) in period, highest first.
func (e *Engine) InformalSettlementByCluster(period microdata.Period) SettlementTable {
	result := SettlementTable{Period: period, Items: []WeightedShare{}, Excluded: aggregate.Exclusions{}}
	num := aggregate.NewSums[string]()
	den := aggregate.NewSums[string]()
	for _, h := range e.households {
		if h.Period != period || !e.knownCluster(h.Record, result.Excluded) {
			continue
		}
		den.Add(h.Cluster, h.Weight)
		if isCode(h.Record, "IV12_3", "1") {
			num.Add(h.Cluster, h.Weight)
		}
	}

	entries := aggregate.Percentages(num, den)
	aggregate.SortDesc(entries)
	for _, entry := range entries {
		result.Items = append(result.Items, WeightedShare{
			Key:     entry.Key,
			Label:   e.codebook.ClusterLabel(entry.Key),
			Weight:  num.Get(entry.Key),
			Percent: entry.Value,
		})
	}
	return result
}

// Lines are the income thresholds of a period.
type Lines struct {
	Poverty   float64 `json:"poverty"`
	Indigence float64 `json:"indigence"`
}

// Validate checks that the lines can classify incomes.
func (l Lines) Validate() error {
	if l.Poverty <= 0 || l.Indigence <= 0 {
		return apperr.Validation("poverty and indigence lines must be positive")
	}
	if l.Indigence > l.Poverty {
		return apperr.Validation("indigence line cannot exceed the poverty line")
	}
	return nil
}

// Poverty classifies four-member households by total family income.
type Poverty struct {
	Period          microdata.Period     `json:"period"`
	Found           bool                 `json:"found"`
	Lines           Lines                `json:"lines"`
	Total           float64              `json:"total"`
	Indigent        float64              `json:"indigent"`
	Poor            float64              `json:"poor"`
	NonPoor         float64              `json:"nonPoor"`
	IndigentPercent float64              `json:"indigentPercent"`
	PoorPercent     float64              `json:"poorPercent"`
	NonPoorPercent  float64              `json:"nonPoorPercent"`
	Excluded        aggregate.Exclusions `json:"excluded,omitempty"`
}

const povertyHouseholdSize = 4

// PovertyClassification splits four-member households of period by ITF:
// below the indigence line is indigent, below the poverty line is poor.
// Poor includes indigent, so poor and non-poor shares add up to 100.
func (e *Engine) PovertyClassification(period microdata.Period, lines Lines) (Poverty, error) {
	if err := lines.Validate(); err != nil {
		return Poverty{}, err
	}

	result := Poverty{Period: period, Lines: lines, Excluded: aggregate.Exclusions{}}
	for _, h := range e.households {
		if h.Period != period {
			continue
		}
		members, ok := h.Members()
		if !ok {
			result.Excluded.Inc(ReasonInvalidMembers)
			continue
		}
		if members != povertyHouseholdSize {
			continue
		}
		income, ok := h.Float("ITF")
		if !ok {
			result.Excluded.Inc(ReasonInvalidIncome)
			continue
		}

		result.Total += h.Weight
		if income < lines.Poverty {
			result.Poor += h.Weight
		}
		if income < lines.Indigence {
			result.Indigent += h.Weight
		}
	}
	if result.Total == 0 {
		return result, nil
	}

	result.Found = true
	result.NonPoor = result.Total - result.Poor
	result.IndigentPercent = aggregate.Percent(result.Indigent, result.Total)
	result.PoorPercent = aggregate.Percent(result.Poor, result.Total)
	result.NonPoorPercent = aggregate.Round2(100 - result.PoorPercent)
	return result, nil
}
