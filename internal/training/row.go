package training

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/2beens/fitdash/internal/warehouse"
)

var (
	ErrNoDataForWeek = errors.New("no data for week")
	ErrDuplicateRow  = errors.New("duplicate weekly metric row")
)

// Column names of the weekly metrics table.
const (
	ColDateWeek    = "date_week"
	ColMetricName  = "metric_name"
	ColMetricValue = "metric_value"
	ColAgg6w       = "metric_agg_6w"
	ColAgg13w      = "metric_agg_13w"
	ColAgg26w      = "metric_agg_26w"
	ColRankOverall = "metric_rank_overall"
	ColRank6w      = "metric_rank_6w"
	ColRank13w     = "metric_rank_13w"
	ColRank26w     = "metric_rank_26w"
)

// Row is one week of one metric, with the rolling averages and ranks
// precomputed upstream. Missing averages are NaN, missing ranks 0.
type Row struct {
	Week        time.Time
	Metric      string
	Value       float64
	Agg6w       float64
	Agg13w      float64
	Agg26w      float64
	RankOverall int
	Rank6w      int
	Rank13w     int
	Rank26w     int
}

// Series holds the rows of one metric, ordered by week.
type Series []Row

// RowsFromTable reads weekly metric rows, ordered by week and metric name.
// There must be exactly one row per week and metric.
func RowsFromTable(table *warehouse.Table) ([]Row, error) {
	required := []string{ColDateWeek, ColMetricName, ColMetricValue}
	for _, col := range required {
		if table.ColumnIndex(col) < 0 {
			return nil, fmt.Errorf("column [%s] missing", col)
		}
	}

	idx := map[string]int{}
	for _, col := range []string{
		ColDateWeek, ColMetricName, ColMetricValue,
		ColAgg6w, ColAgg13w, ColAgg26w,
		ColRankOverall, ColRank6w, ColRank13w, ColRank26w,
	} {
		idx[col] = table.ColumnIndex(col)
	}

	seen := map[string]bool{}
	rows := make([]Row, 0, len(table.Rows))
	for i, values := range table.Rows {
		week, ok := warehouse.AsTime(cell(values, idx[ColDateWeek]))
		if !ok {
			return nil, fmt.Errorf("row %d: invalid %s: %v", i, ColDateWeek, cell(values, idx[ColDateWeek]))
		}
		metric, ok := warehouse.AsString(cell(values, idx[ColMetricName]))
		if !ok {
			return nil, fmt.Errorf("row %d: invalid %s", i, ColMetricName)
		}

		key := week.Format(time.DateOnly) + "/" + metric
		if seen[key] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateRow, key)
		}
		seen[key] = true

		rows = append(rows, Row{
			Week:        week,
			Metric:      metric,
			Value:       floatOrNaN(cell(values, idx[ColMetricValue])),
			Agg6w:       floatOrNaN(cell(values, idx[ColAgg6w])),
			Agg13w:      floatOrNaN(cell(values, idx[ColAgg13w])),
			Agg26w:      floatOrNaN(cell(values, idx[ColAgg26w])),
			RankOverall: intOrZero(cell(values, idx[ColRankOverall])),
			Rank6w:      intOrZero(cell(values, idx[ColRank6w])),
			Rank13w:     intOrZero(cell(values, idx[ColRank13w])),
			Rank26w:     intOrZero(cell(values, idx[ColRank26w])),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].Week.Equal(rows[j].Week) {
			return rows[i].Week.Before(rows[j].Week)
		}
		return rows[i].Metric < rows[j].Metric
	})

	return rows, nil
}

// ForMetric selects the rows of one metric, keeping the week order.
func ForMetric(rows []Row, metric string) Series {
	var series Series
	for _, r := range rows {
		if r.Metric == metric {
			series = append(series, r)
		}
	}
	return series
}

func (s Series) Weeks() []time.Time {
	weeks := make([]time.Time, 0, len(s))
	for _, r := range s {
		weeks = append(weeks, r.Week)
	}
	return weeks
}

// Find returns the position of the given week, or -1.
func (s Series) Find(week time.Time) int {
	for i, r := range s {
		if r.Week.Equal(week) {
			return i
		}
	}
	return -1
}

// Latest returns the most recent week, if any.
func (s Series) Latest() (time.Time, bool) {
	if len(s) == 0 {
		return time.Time{}, false
	}
	return s[len(s)-1].Week, true
}

func cell(values []any, idx int) any {
	if idx < 0 || idx >= len(values) {
		return nil
	}
	return values[idx]
}

func floatOrNaN(v any) float64 {
	f, ok := warehouse.AsFloat(v)
	if !ok {
		return math.NaN()
	}
	return f
}

func intOrZero(v any) int {
	i, ok := warehouse.AsInt(v)
	if !ok {
		return 0
	}
	return i
}
