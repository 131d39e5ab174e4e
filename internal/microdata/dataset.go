package microdata

import (
	"sort"

	"github.com/JoacoLucen/EPH-Insight-App/internal/aggregate"
)

// Dataset is a loaded collection of both tables.
type Dataset struct {
	Individuals []Individual
	Households  []Household
	Report      LoadReport
}

// FileReport describes one parsed table.
type FileReport struct {
	Name       string               `json:"name"`
	Kind       Kind                 `json:"kind"`
	Rows       int                  `json:"rows"`
	Exclusions aggregate.Exclusions `json:"exclusions,omitempty"`
}

// LoadReport accounts for every row read, kept or not.
type LoadReport struct {
	Files           []FileReport         `json:"files"`
	Exclusions      aggregate.Exclusions `json:"exclusions"`
	UnknownClusters map[string]int       `json:"unknownClusters,omitempty"`
}

// NewDataset returns an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{Report: LoadReport{Exclusions: aggregate.Exclusions{}}}
}

func (r *LoadReport) addFile(name string, kind Kind, rows int, excluded aggregate.Exclusions) {
	r.Files = append(r.Files, FileReport{Name: name, Kind: kind, Rows: rows, Exclusions: excluded})
	if r.Exclusions == nil {
		r.Exclusions = aggregate.Exclusions{}
	}
	r.Exclusions.Merge(excluded)
}

// Merge appends other's rows and report into d.
func (d *Dataset) Merge(other *Dataset) {
	d.Individuals = append(d.Individuals, other.Individuals...)
	d.Households = append(d.Households, other.Households...)
	d.Report.Files = append(d.Report.Files, other.Report.Files...)
	if d.Report.Exclusions == nil {
		d.Report.Exclusions = aggregate.Exclusions{}
	}
	d.Report.Exclusions.Merge(other.Report.Exclusions)
	for code, n := range other.Report.UnknownClusters {
		d.Report.flagCluster(code, n)
	}
}

func (r *LoadReport) flagCluster(code string, n int) {
	if r.UnknownClusters == nil {
		r.UnknownClusters = make(map[string]int)
	}
	r.UnknownClusters[code] += n
}

// FlagUnknownClusters counts rows whose cluster code fails known. Flagged rows
// stay in the dataset; cluster-grouped queries leave them out and say so.
func (d *Dataset) FlagUnknownClusters(known func(code string) bool) {
	for _, h := range d.Households {
		if !known(h.Cluster) {
			d.Report.flagCluster(h.Cluster, 1)
		}
	}
	for _, i := range d.Individuals {
		if !known(i.Cluster) {
			d.Report.flagCluster(i.Cluster, 1)
		}
	}
}

// Periods returns the distinct periods found in the households table, oldest first.
func (d *Dataset) Periods() []Period {
	return PeriodsOf(d.Households)
}

// PeriodsOf returns the distinct periods of households, oldest first.
func PeriodsOf(households []Household) []Period {
	seen := make(map[Period]struct{})
	out := make([]Period, 0)
	for _, h := range households {
		if _, ok := seen[h.Period]; ok {
			continue
		}
		seen[h.Period] = struct{}{}
		out = append(out, h.Period)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
