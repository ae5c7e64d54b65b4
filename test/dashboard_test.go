//go:build integration_test || all_tests

package test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/2beens/fitdash/internal/dashboard"
	"github.com/2beens/fitdash/internal/filters"
	"github.com/2beens/fitdash/internal/middleware"
	"github.com/2beens/fitdash/internal/training"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (s *IntegrationTestSuite) get(ctx context.Context, path string, params url.Values, withToken bool) (int, []byte) {
	t := s.T()

	target := fmt.Sprintf("%s%s", serverEndpoint, path)
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	require.NoError(t, err)
	req.Header.Set("User-Agent", "test-agent")
	if withToken {
		req.Header.Set(middleware.AuthTokenHeader, testAuthToken)
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, respBytes
}

func (s *IntegrationTestSuite) TestAuth() {
	ctx := context.Background()

	code, _ := s.get(ctx, "/pages", nil, false)
	s.Equal(http.StatusUnauthorized, code)

	code, _ = s.get(ctx, "/health", nil, false)
	s.Equal(http.StatusOK, code)
}

func (s *IntegrationTestSuite) TestPagesAndFilters() {
	ctx := context.Background()
	t := s.T()

	code, body := s.get(ctx, "/pages", nil, true)
	require.Equal(t, http.StatusOK, code)
	var pages []dashboard.PageInfo
	require.NoError(t, json.Unmarshal(body, &pages))
	require.Len(t, pages, 1)
	assert.Equal(t, "Training volume", pages[0].Title)

	code, body = s.get(ctx, "/pages/volume/filters", nil, true)
	require.Equal(t, http.StatusOK, code)
	var controls []filters.Control
	require.NoError(t, json.Unmarshal(body, &controls))
	require.Len(t, controls, 4)

	assert.Equal(t, []filters.Option{
		{Value: "Ride", Label: "Ride"},
		{Value: "Run", Label: "Run"},
		{Value: filters.NullOption, Label: filters.NullOption},
	}, controls[0].Options)
	assert.Equal(t, "2024-01-01", controls[3].Min)
	assert.Equal(t, "2024-01-10", controls[3].Max)
}

func (s *IntegrationTestSuite) TestPageData() {
	ctx := context.Background()
	t := s.T()

	params := url.Values{
		"sport":            {"Run"},
		"date_granularity": {"date_week"},
		"measure":          {"distance"},
	}
	code, body := s.get(ctx, "/pages/volume/data", params, true)
	require.Equal(t, http.StatusOK, code, string(body))

	var data dashboard.DataResult
	require.NoError(t, json.Unmarshal(body, &data))
	assert.Contains(t, data.Query, "AND sport in ('Run')")
	assert.Equal(t, []string{"period", "sport", "value"}, data.Columns)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, 10.5, data.Rows[0][2])
	assert.Equal(t, 12.0, data.Rows[1][2])

	// served from the query cache the second time
	code, cachedBody := s.get(ctx, "/pages/volume/data", params, true)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, string(body), string(cachedBody))

	// percent of each week total
	params.Set("sport", filters.NullOption)
	params.Add("sport", "Run")
	params.Set("percent", "true")
	code, body = s.get(ctx, "/pages/volume/data", params, true)
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &data))
	assert.Contains(t, data.Query, "AND ( sport in ('Run') OR sport IS NULL )")
	assert.Contains(t, data.Query, "OVER (PARTITION BY date_week)")
	require.Len(t, data.Rows, 3)
	assert.InDelta(t, 100.0, data.Rows[0][2], 0.001)
	assert.InDelta(t, 80.0, data.Rows[1][2], 0.001)
	assert.Nil(t, data.Rows[2][1])

	// no activities in the selected range
	code, body = s.get(ctx, "/pages/volume/data", url.Values{
		"sport":      {"Ride"},
		"date_range": {"2024-01-08", "2024-01-10"},
	}, true)
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"No data to display"}`, string(body))
}

func (s *IntegrationTestSuite) TestWeeklySummary() {
	ctx := context.Background()
	t := s.T()

	code, body := s.get(ctx, "/weekly/run_minutes/weeks", nil, true)
	require.Equal(t, http.StatusOK, code)
	var weeks []string
	require.NoError(t, json.Unmarshal(body, &weeks))
	require.Len(t, weeks, seededWeeks)
	assert.Equal(t, "2024-03-25", weeks[0])

	code, body = s.get(ctx, "/weekly/run_minutes/summary", nil, true)
	require.Equal(t, http.StatusOK, code, string(body))

	var summary training.Summary
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, "2024-03-25", summary.Week)
	assert.Equal(t, "05:20", summary.ValueDisplay)
	assert.Equal(t, 13, summary.RowsInWindow)
	assert.Equal(t, 9, summary.WeeksAboveTarget)
	assert.Equal(t, 69.2, summary.PercentAboveTarget)
	assert.Equal(t, "top 8%", summary.WindowPercentile)
	require.Len(t, summary.Ranks, 2)
	assert.Equal(t, training.Horizon13w, summary.Ranks[1].Horizon)

	code, _ = s.get(ctx, "/weekly/run_minutes/summary", url.Values{"week": {"2023-01-02"}}, true)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = s.get(ctx, "/weekly/swim_km/summary", nil, true)
	assert.Equal(t, http.StatusNotFound, code)
}

func (s *IntegrationTestSuite) TestWeeklyChart() {
	ctx := context.Background()
	t := s.T()

	code, body := s.get(ctx, "/weekly/run_minutes/chart", url.Values{
		"window":  {"6"},
		"overlay": {"6w"},
	}, true)
	require.Equal(t, http.StatusOK, code, string(body))
	var fig map[string]any
	require.NoError(t, json.Unmarshal(body, &fig))
	assert.Len(t, fig["labels"], 6)
	assert.Equal(t, 360.0, fig["yMax"])

	code, body = s.get(ctx, "/weekly/run_minutes/chart", url.Values{
		"format": {"png"},
		"view":   {"ranked"},
	}, true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "\x89PNG", string(body[:4]))
}
