package training

import (
	"fmt"
	"time"
)

type AverageCard struct {
	Horizon      Horizon `json:"horizon"`
	Value        Float   `json:"value"`
	Display      string  `json:"display"`
	DeltaPercent Float   `json:"delta_percent"`
}

type RankCard struct {
	Horizon    Horizon `json:"horizon"`
	Rank       int     `json:"rank"`
	Display    string  `json:"display"`
	OutOf      int     `json:"out_of"`
	Percentile string  `json:"percentile"`
}

// Summary holds the metric cards of one week.
type Summary struct {
	Metric       string `json:"metric"`
	Label        string `json:"label"`
	Week         string `json:"week"`
	Value        Float  `json:"value"`
	ValueDisplay string `json:"value_display"`

	Target             float64 `json:"target"`
	TargetDisplay      string  `json:"target_display"`
	Window             int     `json:"window"`
	RowsInWindow       int     `json:"rows_in_window"`
	WeeksAboveTarget   int     `json:"weeks_above_target"`
	PercentAboveTarget float64 `json:"percent_above_target"`

	WindowRank        int    `json:"window_rank"`
	WindowRankDisplay string `json:"window_rank_display"`
	WindowPercentile  string `json:"window_percentile"`

	Averages []AverageCard `json:"averages"`
	Ranks    []RankCard    `json:"ranks"`
}

// Summarize builds the cards of the given week, with a lookback window of n weeks.
func Summarize(metric Metric, series Series, week time.Time, n int, target float64) (*Summary, error) {
	idx := series.Find(week)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoDataForWeek, week.Format(time.DateOnly))
	}
	current := series[idx]

	deltas, err := Deltas(series, week)
	if err != nil {
		return nil, err
	}

	window := Window(series, week, n)
	above, percent := WeeksAboveTarget(window, target)
	rank := WindowRank(window, week)

	summary := &Summary{
		Metric:             metric.Name,
		Label:              metric.Label,
		Week:               week.Format(time.DateOnly),
		Value:              Float(current.Value),
		ValueDisplay:       metric.FormatValue(current.Value),
		Target:             target,
		TargetDisplay:      metric.FormatValue(target),
		Window:             n,
		RowsInWindow:       len(window),
		WeeksAboveTarget:   above,
		PercentAboveTarget: percent,
		WindowRank:         rank,
		WindowRankDisplay:  FormatRank(rank),
		WindowPercentile:   PercentileExpression(rank, len(window)),
	}

	for _, h := range AverageHorizons {
		avg := current.Average(h)
		summary.Averages = append(summary.Averages, AverageCard{
			Horizon:      h,
			Value:        Float(avg),
			Display:      metric.FormatValue(avg),
			DeltaPercent: Float(deltas[h]),
		})
	}

	for _, h := range []Horizon{HorizonOverall, Horizon6w, Horizon13w, Horizon26w} {
		r := current.Rank(h)
		if r <= 0 {
			continue
		}
		outOf := h.Weeks()
		if h == HorizonOverall {
			outOf = len(series)
		}
		summary.Ranks = append(summary.Ranks, RankCard{
			Horizon:    h,
			Rank:       r,
			Display:    FormatRank(r),
			OutOf:      outOf,
			Percentile: PercentileExpression(r, outOf),
		})
	}

	return summary, nil
}
