package charts

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatPNG  Format = "png"
	FormatSVG  Format = "svg"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, "":
		return FormatJSON, nil
	case FormatPNG:
		return FormatPNG, nil
	case FormatSVG:
		return FormatSVG, nil
	default:
		return "", fmt.Errorf("unknown chart format: %s", s)
	}
}

const (
	imageWidth  = 1024
	imageHeight = 512
	maxXLabels  = 13
)

// Render draws the figure as a PNG or SVG image. Bars are drawn as thick
// vertical segments, so they can share the plot with the line overlays.
func Render(fig *Figure, format Format, w io.Writer) error {
	var provider chart.RendererProvider
	switch format {
	case FormatPNG:
		provider = chart.PNG
	case FormatSVG:
		provider = chart.SVG
	default:
		return fmt.Errorf("cannot render image as: %s", format)
	}

	n := len(fig.Labels)
	if n == 0 {
		return ErrEmptyWindow
	}

	barWidth := math.Max(2, math.Min(40, imageWidth*0.6/float64(n)))

	var series []chart.Series
	for _, s := range fig.Series {
		switch s.Kind {
		case KindBar:
			series = append(series, barSeries(s, barWidth)...)
		case KindLine:
			if line, ok := lineSeries(s); ok {
				series = append(series, line)
			}
		}
	}

	xTicks := make([]chart.Tick, 0, n)
	every := int(math.Ceil(float64(n) / maxXLabels))
	for i, label := range fig.Labels {
		if i%every != 0 {
			continue
		}
		xTicks = append(xTicks, chart.Tick{Value: float64(i + 1), Label: label})
	}

	yTicks := make([]chart.Tick, 0, len(fig.YTicks))
	for _, t := range fig.YTicks {
		yTicks = append(yTicks, chart.Tick{Value: t.Value, Label: t.Label})
	}

	ch := chart.Chart{
		Title:      fig.Title,
		Width:      imageWidth,
		Height:     imageHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		XAxis: chart.XAxis{
			Name:  fig.XAxis,
			Range: &chart.ContinuousRange{Min: 0.5, Max: float64(n) + 0.5},
			Ticks: xTicks,
		},
		YAxis: chart.YAxis{
			Name:  fig.YAxis,
			Range: &chart.ContinuousRange{Min: 0, Max: fig.YMax},
			Ticks: yTicks,
		},
		Series: series,
	}

	if err := ch.Render(provider, w); err != nil {
		return fmt.Errorf("render %s chart: %w", format, err)
	}
	return nil
}

func barSeries(s Series, barWidth float64) []chart.Series {
	color := parseColor(s.Color)
	var bars []chart.Series
	for i, p := range s.Data {
		v := float64(p.Value)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		x := float64(i + 1)
		bars = append(bars, chart.ContinuousSeries{
			Name:    s.Name,
			XValues: []float64{x, x},
			YValues: []float64{0, v},
			Style: chart.Style{
				StrokeColor: color,
				StrokeWidth: barWidth,
			},
		})
	}
	return bars
}

// lineSeries skips the points with no value; a line needs two points.
func lineSeries(s Series) (chart.Series, bool) {
	var xs, ys []float64
	for i, p := range s.Data {
		v := float64(p.Value)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		xs = append(xs, float64(i+1))
		ys = append(ys, v)
	}
	if len(xs) < 2 {
		return nil, false
	}

	style := chart.Style{
		StrokeColor: parseColor(s.Color),
		StrokeWidth: 2,
	}
	if s.Dashed {
		style.StrokeDashArray = []float64{6, 4}
	}
	return chart.ContinuousSeries{
		Name:    s.Name,
		XValues: xs,
		YValues: ys,
		Style:   style,
	}, true
}

func parseColor(hex string) drawing.Color {
	if hex == "" {
		return chart.ColorBlack
	}
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}
