package dashboard_test

import (
	"testing"
	"time"

	"github.com/2beens/fitdash/internal/dashboard"
	"github.com/2beens/fitdash/internal/query"
	"github.com/2beens/fitdash/internal/warehouse"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const sportsQuery = "SELECT DISTINCT sport FROM activities ORDER BY sport"

const testConfigJSON = `{
  "filters": [
    {"name": "sport", "input_type": "multiselect", "source_query": "SELECT DISTINCT sport FROM activities ORDER BY sport"},
    {"name": "date_granularity", "label": "Granularity", "input_type": "radio",
     "options": ["date_week", "date_month"], "aliases": {"date_week": "Week", "date_month": "Month"}},
    {"name": "measure", "input_type": "selectbox", "options": ["distance", "moving_time"], "default": "distance"}
  ],
  "metrics": [
    {"name": "run_minutes", "label": "Running time", "unit": "", "format": "hhmm", "default_target": 400, "tick_gap": 60},
    {"name": "ride_km", "label": "Riding distance", "unit": "km", "format": "decimal", "default_target": 100}
  ],
  "weekly": {
    "sql": "SELECT * FROM weekly_metrics WHERE 1=1\n{{.Where}}\nORDER BY date_week"
  },
  "pages": [
    {
      "name": "volume",
      "title": "Training volume",
      "filters": ["sport", "date_granularity", "measure"],
      "sql": "SELECT {{.DateGranularity}}, sport, {{.MeasureExpr}} AS value FROM activities WHERE 1=1\n{{.Where}}\nGROUP BY 1, 2",
      "percent_mode": true
    },
    {
      "name": "sports",
      "filters": ["sport"],
      "sql": "SELECT sport, COUNT(*) AS n FROM activities WHERE 1=1\n{{.Where}}\nGROUP BY 1"
    }
  ]
}`

const weeklyRunQuery = "SELECT * FROM weekly_metrics WHERE 1=1\nAND metric_name in (\"run_minutes\")\nORDER BY date_week"

func testConfig(t *testing.T) *dashboard.Config {
	t.Helper()
	cfg, err := dashboard.ParseConfig([]byte(testConfigJSON))
	require.NoError(t, err)
	return cfg
}

func newTestService(t *testing.T) (*dashboard.Service, *MockQuerier) {
	t.Helper()
	ctrl := gomock.NewController(t)
	querier := NewMockQuerier(ctrl)
	return dashboard.NewService(testConfig(t), querier, query.NewBuilder(query.BigQuery)), querier
}

func sportsTable() *warehouse.Table {
	return &warehouse.Table{
		Columns: []string{"sport"},
		Rows:    [][]any{{"Ride"}, {"Run"}, {nil}},
	}
}

var firstWeek = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// weeklyTable holds n consecutive weeks of run_minutes, valued 300, 310, ...
func weeklyTable(n int) *warehouse.Table {
	table := &warehouse.Table{
		Columns: []string{"date_week", "metric_name", "metric_value", "metric_agg_6w", "metric_rank_overall"},
	}
	for i := 0; i < n; i++ {
		value := float64(300 + 10*i)
		table.Rows = append(table.Rows, []any{
			firstWeek.AddDate(0, 0, 7*i),
			"run_minutes",
			value,
			value - 5,
			int64(n - i),
		})
	}
	return table
}
