package handler

import (
	"strconv"

	"github.com/JoacoLucen/EPH-Insight-App/internal/analytics"
	"github.com/JoacoLucen/EPH-Insight-App/internal/reports/export"
)

// Converters from query results to flat export tables. Numbers stay float64
// so spreadsheets keep them numeric.

func rankingTable(title, keyColumn string) func(analytics.Ranking) export.Table {
	return func(r analytics.Ranking) export.Table {
		t := export.Table{Title: title, Columns: []string{keyColumn, "name", "value"}}
		for _, item := range r.Items {
			t.AddRow(item.Key, item.Label, item.Value)
		}
		return t
	}
}

func shareTable(title string) func(analytics.Share) export.Table {
	return func(s analytics.Share) export.Table {
		t := export.Table{Title: title, Columns: []string{"period", "numerator", "denominator", "value"}}
		if !s.Found {
			return t
		}
		period := ""
		if s.Period != nil {
			period = s.Period.String()
		}
		t.AddRow(period, s.Numerator, s.Denominator, s.Value)
		return t
	}
}

func clusterSeriesTable(title string) func(analytics.ClusterPeriodSeries) export.Table {
	return func(s analytics.ClusterPeriodSeries) export.Table {
		t := export.Table{Title: title, Columns: []string{"cluster", "name", "period", "value"}}
		addClusterSeries(&t, "", s)
		return t
	}
}

func addClusterSeries(t *export.Table, series string, s analytics.ClusterPeriodSeries) {
	for _, item := range s.Items {
		if series == "" {
			t.AddRow(item.Cluster, item.ClusterName, item.Period.String(), item.Value)
			continue
		}
		t.AddRow(series, item.Cluster, item.ClusterName, item.Period.String(), item.Value)
	}
}

func comparisonTable(title string) func(analytics.SecondaryComparison) export.Table {
	return func(c analytics.SecondaryComparison) export.Table {
		t := export.Table{Title: title, Columns: []string{"series", "cluster", "name", "period", "value"}}
		addClusterSeries(&t, "a", c.First)
		addClusterSeries(&t, "b", c.Second)
		return t
	}
}

// periodTable renders one column per category in the order of the first row.
func periodTable(title string) func(analytics.PeriodTable) export.Table {
	return func(p analytics.PeriodTable) export.Table {
		t := export.Table{Title: title, Columns: []string{"period"}}
		if len(p.Rows) > 0 {
			for _, v := range p.Rows[0].Values {
				t.Columns = append(t.Columns, v.Label)
			}
		}
		t.Columns = append(t.Columns, "total")
		for _, row := range p.Rows {
			cells := []any{row.Period.String()}
			for _, v := range row.Values {
				cells = append(cells, v.Value)
			}
			t.AddRow(append(cells, row.Total)...)
		}
		return t
	}
}

// breakdownTable renders one column per category, in order of first
// appearance across groups. Missing categories are empty cells.
func breakdownTable(title, keyColumn string) func(analytics.BreakdownTable) export.Table {
	return func(b analytics.BreakdownTable) export.Table {
		var labels []string
		seen := make(map[string]bool)
		for _, row := range b.Rows {
			for _, v := range row.Values {
				if !seen[v.Label] {
					seen[v.Label] = true
					labels = append(labels, v.Label)
				}
			}
		}

		t := export.Table{Title: title, Columns: append(append([]string{keyColumn, "name"}, labels...), "total")}
		for _, row := range b.Rows {
			values := make(map[string]float64, len(row.Values))
			for _, v := range row.Values {
				values[v.Label] = v.Value
			}
			cells := []any{row.Key, row.Label}
			for _, label := range labels {
				if v, ok := values[label]; ok {
					cells = append(cells, v)
				} else {
					cells = append(cells, nil)
				}
			}
			t.AddRow(append(cells, row.Total)...)
		}
		return t
	}
}

func literacyTable(title string) func(analytics.LiteracyPoint) export.Table {
	return func(p analytics.LiteracyPoint) export.Table {
		return literacySeriesTable(title)(analytics.LiteracySeries{Items: []analytics.LiteracyPoint{p}})
	}
}

func literacySeriesTable(title string) func(analytics.LiteracySeries) export.Table {
	return func(s analytics.LiteracySeries) export.Table {
		t := export.Table{Title: title, Columns: []string{"period", "population", "literate", "illiterate"}}
		for _, p := range s.Items {
			t.AddRow(p.Period.String(), p.Population, p.Literate, p.Illiterate)
		}
		return t
	}
}

var rateColumns = []string{"active", "employment", "unemployment"}

func periodRatesTable(title string) func(analytics.PeriodRateSeries) export.Table {
	return func(s analytics.PeriodRateSeries) export.Table {
		t := export.Table{Title: title, Columns: append([]string{"period"}, rateColumns...)}
		for _, p := range s.Items {
			t.AddRow(p.Period.String(), p.Active, p.Employment, p.Unemployment)
		}
		return t
	}
}

func lowestUnemploymentTable(title string) func(analytics.LowestUnemployment) export.Table {
	return func(l analytics.LowestUnemployment) export.Table {
		series := analytics.PeriodRateSeries{}
		if l.Found {
			series.Items = []analytics.PeriodRates{l.Point}
		}
		return periodRatesTable(title)(series)
	}
}

func yearRatesTable(title string) func([]analytics.YearRates) export.Table {
	return func(years []analytics.YearRates) export.Table {
		t := export.Table{Title: title, Columns: append([]string{"year"}, rateColumns...)}
		for _, y := range years {
			t.AddRow(strconv.Itoa(y.Year), y.Active, y.Employment, y.Unemployment)
		}
		return t
	}
}

func clusterRatesTable(title string) func(analytics.ClusterRatesTable) export.Table {
	return func(c analytics.ClusterRatesTable) export.Table {
		first, latest := c.FirstPeriod.String(), c.LatestPeriod.String()
		t := export.Table{Title: title, Columns: []string{"cluster", "name"}}
		for _, col := range rateColumns {
			t.Columns = append(t.Columns, col+"_"+first)
		}
		for _, col := range rateColumns {
			t.Columns = append(t.Columns, col+"_"+latest)
		}
		for _, item := range c.Items {
			t.AddRow(item.Cluster, item.ClusterName,
				item.First.Active, item.First.Employment, item.First.Unemployment,
				item.Latest.Active, item.Latest.Employment, item.Latest.Unemployment)
		}
		return t
	}
}

func extremesTable(title string) func(analytics.Extremes) export.Table {
	return func(x analytics.Extremes) export.Table {
		t := export.Table{Title: title, Columns: []string{"position", "cluster", "name", "value"}}
		if !x.Found {
			return t
		}
		t.AddRow("highest", x.Highest.Key, x.Highest.Label, x.Highest.Value)
		t.AddRow("lowest", x.Lowest.Key, x.Lowest.Label, x.Lowest.Value)
		return t
	}
}

func leaderTable(title string) func(analytics.Leader) export.Table {
	return func(l analytics.Leader) export.Table {
		t := export.Table{Title: title, Columns: []string{"cluster", "name", "value"}}
		if l.Found {
			t.AddRow(l.Item.Key, l.Item.Label, l.Item.Value)
		}
		return t
	}
}

func settlementTable(title string) func(analytics.SettlementTable) export.Table {
	return func(s analytics.SettlementTable) export.Table {
		t := export.Table{Title: title, Columns: []string{"cluster", "name", "weight", "percent"}}
		for _, item := range s.Items {
			t.AddRow(item.Key, item.Label, item.Weight, item.Percent)
		}
		return t
	}
}

func povertyTable(title string) func(analytics.Poverty) export.Table {
	return func(p analytics.Poverty) export.Table {
		t := export.Table{Title: title, Columns: []string{"category", "households", "percent"}}
		if !p.Found {
			return t
		}
		t.AddRow("indigent", p.Indigent, p.IndigentPercent)
		t.AddRow("poor", p.Poor, p.PoorPercent)
		t.AddRow("non_poor", p.NonPoor, p.NonPoorPercent)
		t.AddRow("total", p.Total, 100.0)
		return t
	}
}

func ageSeriesTable(title string) func(analytics.AgeSeries) export.Table {
	return func(s analytics.AgeSeries) export.Table {
		t := export.Table{Title: title, Columns: []string{"period", "mean", "median", "dependency"}}
		for _, p := range s.Items {
			var dependency any
			if p.Dependency != nil {
				dependency = *p.Dependency
			}
			t.AddRow(p.Period.String(), p.Mean, p.Median, dependency)
		}
		return t
	}
}
