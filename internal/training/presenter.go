package training

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// Metric describes how a weekly metric is labelled, formatted and charted.
type Metric struct {
	Name          string      `json:"name"`
	Label         string      `json:"label"`
	Unit          string      `json:"unit,omitempty"`
	Format        ValueFormat `json:"format"`
	DefaultTarget float64     `json:"default_target"`
	TickGap       float64     `json:"tick_gap"`
}

func (m Metric) FormatValue(v float64) string {
	return FormatMetricValue(v, m.Format, m.Unit)
}

type Horizon string

const (
	Horizon6w      Horizon = "6w"
	Horizon13w     Horizon = "13w"
	Horizon26w     Horizon = "26w"
	HorizonOverall Horizon = "overall"
)

var AverageHorizons = []Horizon{Horizon6w, Horizon13w, Horizon26w}

func ParseHorizon(s string) (Horizon, error) {
	switch Horizon(s) {
	case Horizon6w, Horizon13w, Horizon26w:
		return Horizon(s), nil
	default:
		return "", fmt.Errorf("unknown horizon: %s", s)
	}
}

// Weeks is the horizon length; 0 for overall.
func (h Horizon) Weeks() int {
	switch h {
	case Horizon6w:
		return 6
	case Horizon13w:
		return 13
	case Horizon26w:
		return 26
	default:
		return 0
	}
}

// Average returns the precomputed rolling average of the row.
func (r Row) Average(h Horizon) float64 {
	switch h {
	case Horizon6w:
		return r.Agg6w
	case Horizon13w:
		return r.Agg13w
	case Horizon26w:
		return r.Agg26w
	default:
		return math.NaN()
	}
}

func (r Row) Rank(h Horizon) int {
	switch h {
	case Horizon6w:
		return r.Rank6w
	case Horizon13w:
		return r.Rank13w
	case Horizon26w:
		return r.Rank26w
	default:
		return r.RankOverall
	}
}

// Float marshals non-finite values as null.
type Float float64

func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

// Delta is the week over week change in percent, (current - previous) / current * 100,
// rounded to one decimal. A zero current value gives NaN or Inf.
func Delta(current, previous float64) float64 {
	return Round1((current - previous) / current * 100)
}

// Deltas computes the change of each rolling average between the given week
// and the week before it. Without a row for the week before, deltas are NaN.
func Deltas(series Series, week time.Time) (map[Horizon]float64, error) {
	idx := series.Find(week)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDataForWeek, week.Format(time.DateOnly))
	}

	hasPrevious := idx > 0 && series[idx-1].Week.Equal(week.AddDate(0, 0, -7))
	deltas := make(map[Horizon]float64, len(AverageHorizons))
	for _, h := range AverageHorizons {
		if !hasPrevious {
			deltas[h] = math.NaN()
			continue
		}
		deltas[h] = Delta(series[idx].Average(h), series[idx-1].Average(h))
	}
	return deltas, nil
}

// Window returns the rows of the n weeks ending at the given week, inclusive.
func Window(series Series, week time.Time, n int) Series {
	from := week.AddDate(0, 0, -7*(n-1))
	var window Series
	for _, r := range series {
		if !r.Week.Before(from) && !r.Week.After(week) {
			window = append(window, r)
		}
	}
	return window
}

// WeeksAboveTarget counts the rows with a value at or above the target,
// and their share of the window in percent, rounded to one decimal.
func WeeksAboveTarget(window Series, target float64) (int, float64) {
	if len(window) == 0 {
		return 0, 0
	}
	count := 0
	for _, r := range window {
		if r.Value >= target {
			count++
		}
	}
	return count, Round1(float64(count) / float64(len(window)) * 100)
}

// Ranked orders the window by value, highest first; ties go to the earlier week.
func Ranked(window Series) Series {
	ranked := make(Series, len(window))
	copy(ranked, window)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Value != ranked[j].Value {
			return ranked[i].Value > ranked[j].Value
		}
		return ranked[i].Week.Before(ranked[j].Week)
	})
	return ranked
}

// WindowRank is the 1 based rank of the week within the window, or 0 if missing.
func WindowRank(window Series, week time.Time) int {
	return Ranked(window).Find(week) + 1
}
