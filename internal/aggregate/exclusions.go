package aggregate

import "sort"

// Exclusions counts records left out of an aggregation, by reason.
type Exclusions map[string]int

// Add records n exclusions for reason.
func (e Exclusions) Add(reason string, n int) {
	if n == 0 {
		return
	}
	e[reason] += n
}

// Inc records one exclusion for reason.
func (e Exclusions) Inc(reason string) {
	e[reason]++
}

// Merge adds every count from other.
func (e Exclusions) Merge(other Exclusions) {
	for reason, n := range other {
		e[reason] += n
	}
}

// Total returns the number of excluded records.
func (e Exclusions) Total() int {
	total := 0
	for _, n := range e {
		total += n
	}
	return total
}

// Reasons returns the reasons in lexical order.
func (e Exclusions) Reasons() []string {
	out := make([]string, 0, len(e))
	for reason := range e {
		out = append(out, reason)
	}
	sort.Strings(out)
	return out
}
