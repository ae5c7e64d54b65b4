package dashboard_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/2beens/fitdash/internal/dashboard"
	"github.com/2beens/fitdash/internal/training"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	cfg := testConfig(t)

	require.Len(t, cfg.Filters, 3)
	require.Len(t, cfg.Metrics, 2)
	assert.Equal(t, 13, cfg.Weekly.DefaultWindow)

	page, ok := cfg.Page("volume")
	require.True(t, ok)
	assert.Equal(t, "Training volume", page.Title)
	assert.True(t, page.PercentMode)
	require.Len(t, page.Filters, 3)
	assert.Equal(t, "sport", page.Filters[0].Name)
	assert.Equal(t, "start_date", page.Template.DateColumn)

	page, ok = cfg.Page("sports")
	require.True(t, ok)
	assert.Equal(t, "sports", page.Title)
	assert.False(t, page.PercentMode)

	_, ok = cfg.Page("nope")
	assert.False(t, ok)

	metric, ok := cfg.Metric("run_minutes")
	require.True(t, ok)
	assert.Equal(t, training.FormatHHMM, metric.Format)
	assert.Equal(t, 400.0, metric.DefaultTarget)
	assert.Equal(t, "07:00", metric.FormatValue(420))

	metric, ok = cfg.Metric("ride_km")
	require.True(t, ok)
	assert.Equal(t, "101.3 km", metric.FormatValue(101.25))
}

func TestParseConfig_Invalid(t *testing.T) {
	for _, tc := range []struct {
		name     string
		config   string
		contains string
	}{
		{
			name:     "bad json",
			config:   `{"pages": [`,
			contains: "decode dashboard config",
		},
		{
			name: "duplicate filter",
			config: `{"filters": [
				{"name": "measure", "input_type": "selectbox", "options": ["distance"]},
				{"name": "measure", "input_type": "selectbox", "options": ["distance"]}
			]}`,
			contains: "duplicate filter: measure",
		},
		{
			name:     "metric format",
			config:   `{"metrics": [{"name": "x", "format": "roman"}], "weekly": {"sql": "SELECT 1"}}`,
			contains: "metric [x]",
		},
		{
			name:     "duplicate metric",
			config:   `{"metrics": [{"name": "x"}, {"name": "x"}], "weekly": {"sql": "SELECT 1"}}`,
			contains: "duplicate metric: x",
		},
		{
			name:     "weekly sql missing",
			config:   `{"metrics": [{"name": "x"}]}`,
			contains: "weekly sql not set",
		},
		{
			name:     "page name missing",
			config:   `{"pages": [{"sql": "SELECT 1"}]}`,
			contains: "page name not set",
		},
		{
			name:     "unknown page filter",
			config:   `{"pages": [{"name": "p", "filters": ["sport"], "sql": "SELECT 1"}]}`,
			contains: "page [p]: unknown filter: sport",
		},
		{
			name:     "duplicate page",
			config:   `{"pages": [{"name": "p", "sql": "SELECT 1"}, {"name": "p", "sql": "SELECT 2"}]}`,
			contains: "duplicate page: p",
		},
		{
			name:     "bad template",
			config:   `{"pages": [{"name": "p", "sql": "SELECT {{.Where"}]}`,
			contains: "page [p]",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := dashboard.ParseConfig([]byte(tc.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.contains)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dashboard.json")
	require.NoError(t, os.WriteFile(path, []byte(testConfigJSON), 0o600))

	cfg, err := dashboard.LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Pages, 2)

	_, err = dashboard.LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read dashboard config")
}
