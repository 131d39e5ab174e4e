// Package aggregate provides the weighted grouping primitives every survey
// query is built from. Weights are always summed; rows are never counted.
package aggregate

import (
	"math"
	"sort"
)

// Sums maps group keys to summed weights and remembers the order in which
// keys were first seen, so rankings over equal values stay deterministic.
type Sums[K comparable] struct {
	keys   []K
	values map[K]float64
}

// NewSums returns an empty Sums.
func NewSums[K comparable]() *Sums[K] {
	return &Sums[K]{values: make(map[K]float64)}
}

// Add accumulates weight under key.
func (s *Sums[K]) Add(key K, weight float64) {
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] += weight
}

// Get returns the sum for key, or 0 when the key was never added.
func (s *Sums[K]) Get(key K) float64 {
	return s.values[key]
}

// Has reports whether key received at least one record.
func (s *Sums[K]) Has(key K) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns keys in first-seen order.
func (s *Sums[K]) Keys() []K {
	out := make([]K, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of keys.
func (s *Sums[K]) Len() int {
	return len(s.keys)
}

// Total returns the sum across all keys.
func (s *Sums[K]) Total() float64 {
	var total float64
	for _, key := range s.keys {
		total += s.values[key]
	}
	return total
}

// Entries returns (key, sum) pairs in first-seen order.
func (s *Sums[K]) Entries() []Entry[K] {
	out := make([]Entry[K], 0, len(s.keys))
	for _, key := range s.keys {
		out = append(out, Entry[K]{Key: key, Value: s.values[key]})
	}
	return out
}

// Reindex returns a copy ordered by universe, with zero sums for universe keys
// that received no records. Keys outside the universe are dropped.
func (s *Sums[K]) Reindex(universe []K) *Sums[K] {
	out := NewSums[K]()
	for _, key := range universe {
		out.Add(key, s.values[key])
	}
	return out
}

// Entry is one keyed value of a result.
type Entry[K comparable] struct {
	Key   K       `json:"key"`
	Value float64 `json:"value"`
}

// WeightedSum groups records by key and sums their weights. Records for which
// keep returns false are skipped; a nil keep accepts every record.
func WeightedSum[R any, K comparable](records []R, key func(R) K, weight func(R) float64, keep func(R) bool) *Sums[K] {
	sums := NewSums[K]()
	for _, rec := range records {
		if keep != nil && !keep(rec) {
			continue
		}
		sums.Add(key(rec), weight(rec))
	}
	return sums
}

// Total sums the weights of records accepted by keep.
func Total[R any](records []R, weight func(R) float64, keep func(R) bool) float64 {
	var total float64
	for _, rec := range records {
		if keep != nil && !keep(rec) {
			continue
		}
		total += weight(rec)
	}
	return total
}

// Percentages divides numerator by denominator key by key, following the
// denominator's key order. A key missing from the numerator yields 0, and so
// does a zero denominator.
func Percentages[K comparable](numerator, denominator *Sums[K]) []Entry[K] {
	out := make([]Entry[K], 0, denominator.Len())
	for _, key := range denominator.keys {
		out = append(out, Entry[K]{Key: key, Value: Percent(numerator.Get(key), denominator.values[key])})
	}
	return out
}

// Percent returns num/den*100 rounded to two decimals, or 0 when den is 0.
func Percent(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return Round2(num / den * 100)
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// SortDesc sorts entries by value, highest first. Equal values keep their order.
func SortDesc[K comparable](entries []Entry[K]) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Value > entries[j].Value })
}

// SortAsc sorts entries by value, lowest first. Equal values keep their order.
func SortAsc[K comparable](entries []Entry[K]) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Value < entries[j].Value })
}

// Top returns the n highest entries, ties broken by input order.
func Top[K comparable](entries []Entry[K], n int) []Entry[K] {
	sorted := make([]Entry[K], len(entries))
	copy(sorted, entries)
	SortDesc(sorted)
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

// Max returns the first entry holding the highest value.
func Max[K comparable](entries []Entry[K]) (Entry[K], bool) {
	if len(entries) == 0 {
		return Entry[K]{}, false
	}
	best := entries[0]
	for _, e := range entries[1:] {
		if e.Value > best.Value {
			best = e
		}
	}
	return best, true
}

// Min returns the first entry holding the lowest value among those accepted by keep.
func Min[K comparable](entries []Entry[K], keep func(Entry[K]) bool) (Entry[K], bool) {
	var best Entry[K]
	found := false
	for _, e := range entries {
		if keep != nil && !keep(e) {
			continue
		}
		if !found || e.Value < best.Value {
			best = e
			found = true
		}
	}
	return best, found
}
