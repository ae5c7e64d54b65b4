package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/2beens/fitdash/internal/charts"
	"github.com/2beens/fitdash/internal/filters"
	"github.com/2beens/fitdash/internal/telemetry/metrics"
	"github.com/2beens/fitdash/internal/training"
	"github.com/2beens/fitdash/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const noDataMessage = "No data to display"

// maxTarget bounds the target query parameter.
const maxTarget = 1e6

type Handler struct {
	service        *Service
	metricsManager *metrics.Manager
}

func NewHandler(service *Service, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		service:        service,
		metricsManager: metricsManager,
	}
}

func (handler *Handler) SetupRoutes(r *mux.Router) {
	r.HandleFunc("/pages", handler.HandlePages).Methods("GET", "OPTIONS").Name("pages")
	r.HandleFunc("/pages/{page}/filters", handler.HandleFilters).Methods("GET", "OPTIONS").Name("page-filters")
	r.HandleFunc("/pages/{page}/query", handler.HandleQuery).Methods("GET", "OPTIONS").Name("page-query")
	r.HandleFunc("/pages/{page}/data", handler.HandleData).Methods("GET", "OPTIONS").Name("page-data")
	r.HandleFunc("/weekly/{metric}/weeks", handler.HandleWeeks).Methods("GET", "OPTIONS").Name("weekly-weeks")
	r.HandleFunc("/weekly/{metric}/summary", handler.HandleSummary).Methods("GET", "OPTIONS").Name("weekly-summary")
	r.HandleFunc("/weekly/{metric}/chart", handler.HandleChart).Methods("GET", "OPTIONS").Name("weekly-chart")
}

func (handler *Handler) HandlePages(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSON(w, handler.service.Pages(), http.StatusOK)
}

func (handler *Handler) HandleFilters(w http.ResponseWriter, r *http.Request) {
	controls, err := handler.service.Controls(r.Context(), mux.Vars(r)["page"])
	if err != nil {
		writeError(w, "resolve filters", err)
		return
	}
	pkg.WriteJSON(w, controls, http.StatusOK)
}

func (handler *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	sql, err := handler.service.Query(r.Context(), mux.Vars(r)["page"], r.URL.Query())
	if err != nil {
		writeError(w, "build query", err)
		return
	}
	pkg.WriteTextResponseOK(w, sql)
}

func (handler *Handler) HandleData(w http.ResponseWriter, r *http.Request) {
	data, err := handler.service.Data(r.Context(), mux.Vars(r)["page"], r.URL.Query())
	if err != nil {
		writeError(w, "page data", err)
		return
	}
	pkg.WriteJSON(w, data, http.StatusOK)
}

func (handler *Handler) HandleWeeks(w http.ResponseWriter, r *http.Request) {
	weeks, err := handler.service.Weeks(r.Context(), mux.Vars(r)["metric"])
	if err != nil {
		writeError(w, "list weeks", err)
		return
	}
	pkg.WriteJSON(w, weeks, http.StatusOK)
}

func (handler *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	params, err := weeklyParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	summary, err := handler.service.WeeklySummary(r.Context(), mux.Vars(r)["metric"], params)
	if err != nil {
		writeError(w, "weekly summary", err)
		return
	}
	pkg.WriteJSON(w, summary, http.StatusOK)
}

func (handler *Handler) HandleChart(w http.ResponseWriter, r *http.Request) {
	weekly, err := weeklyParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	query := r.URL.Query()
	params := ChartParams{WeeklyParams: weekly}
	if params.View, err = charts.ParseView(query.Get("view")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, o := range query["overlay"] {
		horizon, err := training.ParseHorizon(o)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		params.Overlays = append(params.Overlays, horizon)
	}
	format, err := charts.ParseFormat(query.Get("format"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	fig, err := handler.service.WeeklyChart(r.Context(), mux.Vars(r)["metric"], params)
	if err != nil {
		writeError(w, "weekly chart", err)
		return
	}

	handler.metricsManager.CounterChartsRendered.WithLabelValues(string(format), string(fig.View)).Inc()

	if format == charts.FormatJSON {
		pkg.WriteJSON(w, fig, http.StatusOK)
		return
	}

	var buf bytes.Buffer
	if err := charts.Render(fig, format, &buf); err != nil {
		log.Errorf("render chart [%s]: %s", format, err)
		http.Error(w, "failed to render chart", http.StatusInternalServerError)
		return
	}

	contentType := pkg.ContentType.PNG
	if format == charts.FormatSVG {
		contentType = pkg.ContentType.SVG
	}
	pkg.WriteResponseBytesOK(w, contentType, buf.Bytes())
}

func weeklyParams(r *http.Request) (WeeklyParams, error) {
	query := r.URL.Query()
	var params WeeklyParams

	if weekStr := query.Get("week"); weekStr != "" {
		week, err := time.Parse(time.DateOnly, weekStr)
		if err != nil {
			return params, fmt.Errorf("invalid week format (expected YYYY-MM-DD): %s", weekStr)
		}
		params.Week = week
	}

	if windowStr := query.Get("window"); windowStr != "" {
		window, err := strconv.Atoi(windowStr)
		if err != nil || window <= 0 {
			return params, fmt.Errorf("invalid window (must be positive integer): %s", windowStr)
		}
		params.Window = window
	}

	if targetStr := query.Get("target"); targetStr != "" {
		target, err := strconv.ParseFloat(targetStr, 64)
		if err != nil || math.IsNaN(target) || math.Abs(target) > maxTarget {
			return params, fmt.Errorf("invalid target (must be a number within ±%g): %s", float64(maxTarget), targetStr)
		}
		params.Target = &target
	}

	return params, nil
}

func writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrUnknownPage), errors.Is(err, ErrUnknownMetric):
		pkg.WriteJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, filters.ErrInvalidSelection), errors.Is(err, ErrInvalidWindow):
		pkg.WriteJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, ErrNoData), errors.Is(err, training.ErrNoDataForWeek), errors.Is(err, charts.ErrEmptyWindow):
		pkg.WriteJSONError(w, noDataMessage, http.StatusNotFound)
	default:
		log.Errorf("%s: %s", op, err)
		pkg.WriteJSONError(w, err.Error(), http.StatusBadGateway)
	}
}
