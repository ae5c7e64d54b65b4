package charts

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/2beens/fitdash/internal/training"
)

var ErrEmptyWindow = errors.New("no rows to chart")

type View string

const (
	ViewTimeline View = "timeline"
	ViewRanked   View = "ranked"
)

func ParseView(s string) (View, error) {
	switch View(s) {
	case ViewTimeline, "":
		return ViewTimeline, nil
	case ViewRanked:
		return ViewRanked, nil
	default:
		return "", fmt.Errorf("unknown chart view: %s", s)
	}
}

const (
	ColorAboveTarget = "#2ca02c"
	ColorBelowTarget = "#d62728"
	ColorTarget      = "#7f7f7f"
)

var overlayColors = map[training.Horizon]string{
	training.Horizon6w:  "#1f77b4",
	training.Horizon13w: "#ff7f0e",
	training.Horizon26w: "#9467bd",
}

const (
	KindBar  = "bar"
	KindLine = "line"
)

// maxTickSteps bounds the number of y-axis tick intervals.
const maxTickSteps = 50

type Point struct {
	Label string         `json:"label"`
	Value training.Float `json:"value"`
}

type Series struct {
	Name   string  `json:"name"`
	Kind   string  `json:"kind"`
	Color  string  `json:"color"`
	Dashed bool    `json:"dashed,omitempty"`
	Data   []Point `json:"data"`
}

type Tick struct {
	Value float64 `json:"value"`
	Label string  `json:"label"`
}

// Figure describes a weekly chart for the UI charting library.
type Figure struct {
	ChartType  string   `json:"chartType"`
	Title      string   `json:"title"`
	View       View     `json:"view"`
	XAxis      string   `json:"xAxis"`
	YAxis      string   `json:"yAxis"`
	Labels     []string `json:"labels"`
	Series     []Series `json:"series"`
	YMax       float64  `json:"yMax"`
	YTicks     []Tick   `json:"yTicks"`
	Target     float64  `json:"target"`
	ShowLegend bool     `json:"showLegend"`
}

type FigureParams struct {
	Metric   training.Metric
	Window   training.Series
	Target   float64
	Overlays []training.Horizon
	View     View
}

// NewFigure builds the bars of the window, colored by the target, with the
// rolling average overlays and a dashed target line.
func NewFigure(params FigureParams) (*Figure, error) {
	if len(params.Window) == 0 {
		return nil, ErrEmptyWindow
	}

	rows := params.Window
	xAxis := "week"
	if params.View == ViewRanked {
		rows = training.Ranked(params.Window)
		xAxis = "rank"
	}

	labels := make([]string, len(rows))
	above := Series{Name: "above target", Kind: KindBar, Color: ColorAboveTarget}
	below := Series{Name: "below target", Kind: KindBar, Color: ColorBelowTarget}
	target := Series{Name: "target", Kind: KindLine, Color: ColorTarget, Dashed: true}

	maxValue := params.Target
	for i, r := range rows {
		if params.View == ViewRanked {
			labels[i] = training.FormatRank(i + 1)
		} else {
			labels[i] = r.Week.Format(time.DateOnly)
		}

		aboveValue, belowValue := math.NaN(), r.Value
		if r.Value >= params.Target {
			aboveValue, belowValue = r.Value, math.NaN()
		}
		above.Data = append(above.Data, Point{Label: labels[i], Value: training.Float(aboveValue)})
		below.Data = append(below.Data, Point{Label: labels[i], Value: training.Float(belowValue)})
		target.Data = append(target.Data, Point{Label: labels[i], Value: training.Float(params.Target)})
		maxValue = finiteMax(maxValue, r.Value)
	}

	series := []Series{above, below}
	for _, h := range params.Overlays {
		line := Series{Name: string(h) + " avg", Kind: KindLine, Color: overlayColors[h]}
		for i, r := range rows {
			avg := r.Average(h)
			line.Data = append(line.Data, Point{Label: labels[i], Value: training.Float(avg)})
			maxValue = finiteMax(maxValue, avg)
		}
		series = append(series, line)
	}
	series = append(series, target)

	yMax, ticks := YTicks(maxValue, params.Metric)

	title := params.Metric.Label
	if title == "" {
		title = params.Metric.Name
	}

	return &Figure{
		ChartType:  KindBar,
		Title:      title,
		View:       params.View,
		XAxis:      xAxis,
		YAxis:      params.Metric.Unit,
		Labels:     labels,
		Series:     series,
		YMax:       yMax,
		YTicks:     ticks,
		Target:     params.Target,
		ShowLegend: len(params.Overlays) > 0,
	}, nil
}

// YTicks rounds the max value up to a multiple of the metric tick gap,
// and returns the ticks from zero to it. The gap doubles while the
// axis would need more than maxTickSteps intervals.
func YTicks(maxValue float64, metric training.Metric) (float64, []Tick) {
	if math.IsNaN(maxValue) || math.IsInf(maxValue, 0) {
		maxValue = 0
	}
	gap := metric.TickGap
	if gap <= 0 {
		gap = defaultTickGap(maxValue)
	}
	for math.Ceil(maxValue/gap) > maxTickSteps {
		gap *= 2
	}

	yMax := math.Ceil(maxValue/gap) * gap
	if yMax <= 0 || math.IsNaN(yMax) {
		yMax = gap
	}

	var ticks []Tick
	steps := int(math.Round(yMax / gap))
	for i := 0; i <= steps; i++ {
		v := float64(i) * gap
		ticks = append(ticks, Tick{Value: v, Label: metric.FormatValue(v)})
	}
	return yMax, ticks
}

// defaultTickGap gives about 5 to 10 ticks.
func defaultTickGap(maxValue float64) float64 {
	if maxValue <= 0 || math.IsNaN(maxValue) || math.IsInf(maxValue, 0) {
		return 1
	}
	gap := math.Pow(10, math.Floor(math.Log10(maxValue)))
	if maxValue/gap < 5 {
		gap /= 2
	}
	return gap
}

func finiteMax(a, b float64) float64 {
	if math.IsNaN(b) || math.IsInf(b, 0) {
		return a
	}
	return math.Max(a, b)
}
