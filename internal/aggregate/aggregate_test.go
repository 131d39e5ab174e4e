package aggregate

import "testing"

type row struct {
	cluster string
	weight  float64
	flag    bool
}

func weightOf(r row) float64 { return r.weight }
func clusterOf(r row) string { return r.cluster }

func TestWeightedSum_SumsWeightsNotRows(t *testing.T) {
	rows := []row{
		{cluster: "2", weight: 10},
		{cluster: "3", weight: 5},
		{cluster: "2", weight: 30},
	}

	sums := WeightedSum(rows, clusterOf, weightOf, nil)

	if got := sums.Get("2"); got != 40 {
		t.Fatalf("expected weight 40 for cluster 2, got %v", got)
	}
	if got := sums.Keys(); len(got) != 2 || got[0] != "2" || got[1] != "3" {
		t.Fatalf("expected first-seen key order [2 3], got %v", got)
	}
}

func TestWeightedSum_PredicateOmitsEmptyKeys(t *testing.T) {
	rows := []row{
		{cluster: "2", weight: 10, flag: true},
		{cluster: "3", weight: 5},
	}

	sums := WeightedSum(rows, clusterOf, weightOf, func(r row) bool { return r.flag })

	if sums.Has("3") {
		t.Fatal("expected cluster 3 to be absent without matching records")
	}

	reindexed := sums.Reindex([]string{"3", "2", "4"})
	keys := reindexed.Keys()
	if len(keys) != 3 || keys[0] != "3" || keys[2] != "4" {
		t.Fatalf("expected universe order [3 2 4], got %v", keys)
	}
	if reindexed.Get("4") != 0 || reindexed.Get("2") != 10 {
		t.Fatalf("unexpected reindexed sums: 4=%v 2=%v", reindexed.Get("4"), reindexed.Get("2"))
	}
}

func TestPercentages_ZeroAndMissingNumerator(t *testing.T) {
	num := NewSums[string]()
	num.Add("a", 1)
	den := NewSums[string]()
	den.Add("a", 3)
	den.Add("b", 7)
	den.Add("c", 0)

	got := Percentages(num, den)

	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Value != 33.33 {
		t.Fatalf("expected 33.33 for a, got %v", got[0].Value)
	}
	if got[1].Value != 0 {
		t.Fatalf("expected 0 for denominator-only key, got %v", got[1].Value)
	}
	if got[2].Value != 0 {
		t.Fatalf("expected 0 for zero denominator, got %v", got[2].Value)
	}
}

func TestPercent_BinaryPartitionSumsToHundred(t *testing.T) {
	yes := Percent(10, 60)
	no := Percent(50, 60)

	if yes != 16.67 {
		t.Fatalf("expected 16.67, got %v", yes)
	}
	if diff := yes + no - 100; diff > 0.01 || diff < -0.01 {
		t.Fatalf("expected partition to sum to 100, got %v", yes+no)
	}
}

func TestTop_StableOnTies(t *testing.T) {
	entries := []Entry[string]{
		{Key: "x", Value: 40},
		{Key: "y", Value: 55},
		{Key: "z", Value: 10},
		{Key: "w", Value: 40},
	}

	got := Top(entries, 3)

	want := []string{"y", "x", "w"}
	for i, key := range want {
		if got[i].Key != key {
			t.Fatalf("expected %v at %d, got %v", key, i, got[i].Key)
		}
	}
	if entries[0].Key != "x" {
		t.Fatal("expected Top not to reorder its input")
	}
}

func TestMaxMin_StrictComparisonKeepsFirst(t *testing.T) {
	entries := []Entry[string]{
		{Key: "a", Value: 0},
		{Key: "b", Value: 20},
		{Key: "c", Value: 20},
		{Key: "d", Value: 5},
		{Key: "e", Value: 5},
	}

	max, ok := Max(entries)
	if !ok || max.Key != "b" {
		t.Fatalf("expected b as first max, got %v", max.Key)
	}

	min, ok := Min(entries, func(e Entry[string]) bool { return e.Value > 0 })
	if !ok || min.Key != "d" {
		t.Fatalf("expected d as first positive min, got %v", min.Key)
	}

	if _, ok := Min([]Entry[string]{{Key: "a", Value: 0}}, func(e Entry[string]) bool { return e.Value > 0 }); ok {
		t.Fatal("expected no min when nothing qualifies")
	}
}

func TestCrossTab_RowShares(t *testing.T) {
	rows := []struct {
		period string
		tenure string
		weight float64
	}{
		{"2024-T1", "1", 30},
		{"2024-T1", "3", 10},
		{"2024-T2", "1", 5},
	}

	table := NewCrossTab[string, string]()
	for _, r := range rows {
		table.Add(r.period, r.tenure, r.weight)
	}

	shares := table.RowShares("2024-T1", []string{"1", "3", "7"})
	if shares[0].Value != 75 || shares[1].Value != 25 || shares[2].Value != 0 {
		t.Fatalf("unexpected shares: %+v", shares)
	}
	if table.RowTotal("2024-T2") != 5 {
		t.Fatalf("expected row total 5, got %v", table.RowTotal("2024-T2"))
	}
}

func TestExclusions_MergeAndTotal(t *testing.T) {
	a := Exclusions{}
	a.Inc("missing_weight")
	a.Add("invalid_year", 2)
	b := Exclusions{"missing_weight": 3}

	a.Merge(b)

	if a.Total() != 6 {
		t.Fatalf("expected 6 exclusions, got %d", a.Total())
	}
	if reasons := a.Reasons(); reasons[0] != "invalid_year" {
		t.Fatalf("expected sorted reasons, got %v", reasons)
	}
}
