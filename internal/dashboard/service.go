package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/2beens/fitdash/internal/charts"
	"github.com/2beens/fitdash/internal/filters"
	"github.com/2beens/fitdash/internal/query"
	"github.com/2beens/fitdash/internal/telemetry/tracing"
	"github.com/2beens/fitdash/internal/training"
	"github.com/2beens/fitdash/internal/warehouse"

	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrUnknownPage   = errors.New("unknown page")
	ErrUnknownMetric = errors.New("unknown metric")
	ErrNoData        = errors.New("no data")
	ErrInvalidWindow = errors.New("invalid window")
)

const ParamPercent = "percent"

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=dashboard_test

type Querier interface {
	Query(ctx context.Context, sql string) (*warehouse.Table, error)
}

type PageInfo struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Filters     []string `json:"filters"`
	PercentMode bool     `json:"percent_mode"`
}

type DataResult struct {
	Query   string   `json:"query"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type WeeklyParams struct {
	// zero means the latest week
	Week   time.Time
	Window int
	// nil means the metric default target
	Target *float64
}

type ChartParams struct {
	WeeklyParams
	Overlays []training.Horizon
	View     charts.View
}

type Service struct {
	config   *Config
	querier  Querier
	resolver *filters.Resolver
	builder  *query.Builder
}

func NewService(config *Config, querier Querier, builder *query.Builder) *Service {
	return &Service{
		config:   config,
		querier:  querier,
		resolver: filters.NewResolver(querier),
		builder:  builder,
	}
}

func (s *Service) Pages() []PageInfo {
	pages := make([]PageInfo, 0, len(s.config.Pages))
	for _, p := range s.config.Pages {
		page, _ := s.config.Page(p.Name)
		info := PageInfo{
			Name:        page.Name,
			Title:       page.Title,
			PercentMode: page.PercentMode,
			Filters:     []string{},
		}
		for _, f := range page.Filters {
			info.Filters = append(info.Filters, f.Name)
		}
		pages = append(pages, info)
	}
	return pages
}

func (s *Service) page(name string) (*Page, error) {
	page, ok := s.config.Page(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPage, name)
	}
	return page, nil
}

func (s *Service) Controls(ctx context.Context, pageName string) (_ []filters.Control, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.dashboard.controls")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("page", pageName))

	page, err := s.page(pageName)
	if err != nil {
		return nil, err
	}
	return s.resolver.Resolve(ctx, page.Filters)
}

// Query resolves the page filters, applies the selection from params,
// and renders the page query.
func (s *Service) Query(ctx context.Context, pageName string, params url.Values) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.dashboard.query")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("page", pageName))

	page, err := s.page(pageName)
	if err != nil {
		return "", err
	}

	controls, err := s.resolver.Resolve(ctx, page.Filters)
	if err != nil {
		return "", err
	}
	values, err := s.resolver.Values(controls, params)
	if err != nil {
		return "", err
	}

	percent := false
	if page.PercentMode && params.Has(ParamPercent) {
		percent, err = strconv.ParseBool(params.Get(ParamPercent))
		if err != nil {
			return "", fmt.Errorf("%w: percent: %s", filters.ErrInvalidSelection, err)
		}
	}

	return s.builder.Build(page.Template, values, percent)
}

func (s *Service) Data(ctx context.Context, pageName string, params url.Values) (_ *DataResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.dashboard.data")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	sql, err := s.Query(ctx, pageName, params)
	if err != nil {
		return nil, err
	}

	table, err := s.querier.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	if table.Empty() {
		return nil, fmt.Errorf("%w: page %s", ErrNoData, pageName)
	}
	span.SetAttributes(attribute.Int("rows", len(table.Rows)))

	return &DataResult{
		Query:   sql,
		Columns: table.Columns,
		Rows:    table.Rows,
	}, nil
}

func (s *Service) series(ctx context.Context, metricName string) (training.Metric, training.Series, error) {
	metric, ok := s.config.Metric(metricName)
	if !ok {
		return training.Metric{}, nil, fmt.Errorf("%w: %s", ErrUnknownMetric, metricName)
	}

	sql, err := s.builder.Build(s.config.weeklyQuery, filters.Values{
		training.ColMetricName: filters.Single{Value: metric.Name},
	}, false)
	if err != nil {
		return training.Metric{}, nil, err
	}

	table, err := s.querier.Query(ctx, sql)
	if err != nil {
		return training.Metric{}, nil, err
	}
	rows, err := training.RowsFromTable(table)
	if err != nil {
		return training.Metric{}, nil, fmt.Errorf("weekly rows: %w", err)
	}

	return metric, training.ForMetric(rows, metric.Name), nil
}

// Weeks lists the weeks with data for the metric, latest first.
func (s *Service) Weeks(ctx context.Context, metricName string) (_ []string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.dashboard.weeks")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	_, series, err := s.series(ctx, metricName)
	if err != nil {
		return nil, err
	}

	weeks := make([]string, 0, len(series))
	for i := len(series) - 1; i >= 0; i-- {
		weeks = append(weeks, series[i].Week.Format(time.DateOnly))
	}
	return weeks, nil
}

func (s *Service) weekly(ctx context.Context, metricName string, params WeeklyParams) (training.Metric, training.Series, time.Time, int, float64, error) {
	metric, series, err := s.series(ctx, metricName)
	if err != nil {
		return training.Metric{}, nil, time.Time{}, 0, 0, err
	}

	week := params.Week
	if week.IsZero() {
		latest, ok := series.Latest()
		if !ok {
			return training.Metric{}, nil, time.Time{}, 0, 0, fmt.Errorf("%w: %s", training.ErrNoDataForWeek, metricName)
		}
		week = latest
	}

	window := params.Window
	if window == 0 {
		window = s.config.Weekly.DefaultWindow
	}
	if window < 1 || window > maxWindow {
		return training.Metric{}, nil, time.Time{}, 0, 0, fmt.Errorf("%w: %d, must be within [1, %d]", ErrInvalidWindow, window, maxWindow)
	}

	target := metric.DefaultTarget
	if params.Target != nil {
		target = *params.Target
	}

	return metric, series, week, window, target, nil
}

func (s *Service) WeeklySummary(ctx context.Context, metricName string, params WeeklyParams) (_ *training.Summary, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.dashboard.weeklySummary")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("metric", metricName))

	metric, series, week, window, target, err := s.weekly(ctx, metricName, params)
	if err != nil {
		return nil, err
	}
	return training.Summarize(metric, series, week, window, target)
}

func (s *Service) WeeklyChart(ctx context.Context, metricName string, params ChartParams) (_ *charts.Figure, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.dashboard.weeklyChart")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(
		attribute.String("metric", metricName),
		attribute.String("view", string(params.View)),
	)

	metric, series, week, window, target, err := s.weekly(ctx, metricName, params.WeeklyParams)
	if err != nil {
		return nil, err
	}
	if series.Find(week) < 0 {
		return nil, fmt.Errorf("%w: %s", training.ErrNoDataForWeek, week.Format(time.DateOnly))
	}

	return charts.NewFigure(charts.FigureParams{
		Metric:   metric,
		Window:   training.Window(series, week, window),
		Target:   target,
		Overlays: params.Overlays,
		View:     params.View,
	})
}
