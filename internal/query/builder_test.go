package query

import (
	"strings"
	"testing"
	"time"

	"github.com/2beens/fitdash/internal/filters"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const activitiesSQL = `SELECT {{.DateGranularity}} AS period, sport, {{.MeasureExpr}} AS value
FROM activities
WHERE 1=1
{{.Where}}
GROUP BY 1, 2
ORDER BY 1`

func mustTemplate(t *testing.T, sql string) *Template {
	t.Helper()
	tmpl, err := NewTemplate("activities", sql, "start_date")
	require.NoError(t, err)
	return tmpl
}

func TestBuilder_Build(t *testing.T) {
	b := NewBuilder(BigQuery)
	values := filters.Values{
		"sport":            filters.Multi{Values: []string{"Run"}},
		"date_granularity": filters.Single{Value: "date_week"},
		"measure":          filters.Single{Value: "distance"},
	}

	sql, err := b.Build(mustTemplate(t, activitiesSQL), values, false)
	require.NoError(t, err)

	expected := `SELECT date_week AS period, sport, SUM(distance) AS value
FROM activities
WHERE 1=1
AND sport in ("Run")
GROUP BY 1, 2
ORDER BY 1`
	if diff := cmp.Diff(expected, sql); diff != "" {
		t.Errorf("query mismatch (-want +got):\n%s", diff)
	}
	assert.NotContains(t, sql, "date_granularity in")
	assert.NotContains(t, sql, "measure in")
}

func TestBuilder_NullSentinel(t *testing.T) {
	b := NewBuilder(BigQuery)

	where := b.Where("start_date", filters.Values{
		"sport": filters.Multi{Values: []string{"Run"}, IncludeNull: true},
	})
	assert.Equal(t, `AND ( sport in ("Run") OR sport IS NULL )`, where)

	where = b.Where("start_date", filters.Values{
		"sport": filters.Multi{Values: []string{"Run", filters.NullOption}},
	})
	assert.Equal(t, `AND ( sport in ("Run") OR sport IS NULL )`, where)

	where = b.Where("start_date", filters.Values{
		"gear": filters.Multi{IncludeNull: true},
	})
	assert.Equal(t, `AND gear IS NULL`, where)

	where = b.Where("start_date", filters.Values{
		"gear": filters.Single{Value: filters.NullOption},
	})
	assert.Equal(t, `AND gear IS NULL`, where)
}

func TestBuilder_EmptySelectionSkipped(t *testing.T) {
	b := NewBuilder(BigQuery)
	where := b.Where("start_date", filters.Values{
		"sport": filters.Multi{Values: []string{}},
	})
	assert.Empty(t, where)
}

func TestBuilder_Ranges(t *testing.T) {
	b := NewBuilder(BigQuery)
	values := filters.Values{
		"date_range": filters.DateRange{
			From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		},
		"distance": filters.NumberRange{Min: 8, Max: 12.5},
		"sport":    filters.Multi{Values: []string{"Run", "Ride"}},
	}

	where := b.Where("start_date", values)
	expected := strings.Join([]string{
		`AND start_date BETWEEN "2024-01-01" AND "2024-03-31"`,
		`AND distance BETWEEN 8 AND 12.5`,
		`AND sport in ("Run", "Ride")`,
	}, "\n")
	if diff := cmp.Diff(expected, where); diff != "" {
		t.Errorf("where mismatch (-want +got):\n%s", diff)
	}
}

func TestBuilder_PostgresDialect(t *testing.T) {
	dialect, err := DialectFor("postgres")
	require.NoError(t, err)
	b := NewBuilder(dialect)

	where := b.Where("start_date", filters.Values{
		"sport": filters.Multi{Values: []string{"Run"}, IncludeNull: true},
		"date_range": filters.DateRange{
			From: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		},
	})
	assert.Equal(t,
		"AND start_date BETWEEN '2024-01-01' AND '2024-01-31'\nAND ( sport in ('Run') OR sport IS NULL )",
		where,
	)

	_, err = DialectFor("snowflake")
	assert.Error(t, err)
}

func TestBuilder_PercentMode(t *testing.T) {
	b := NewBuilder(BigQuery)
	values := filters.Values{
		"date_granularity": filters.Single{Value: "date_month"},
		"measure":          filters.Single{Value: "moving_time"},
	}

	sql, err := b.Build(mustTemplate(t, activitiesSQL), values, true)
	require.NoError(t, err)
	assert.Contains(t, sql,
		"100.0 * SUM(moving_time) / SUM(SUM(moving_time)) OVER (PARTITION BY date_month) AS value",
	)
}

func TestBuilder_Idempotent(t *testing.T) {
	b := NewBuilder(BigQuery)
	tmpl := mustTemplate(t, activitiesSQL)
	values := filters.Values{
		"sport":            filters.Multi{Values: []string{"Run", "Hike"}, IncludeNull: true},
		"gear":             filters.Multi{Values: []string{"Pegasus 40"}},
		"distance":         filters.NumberRange{Min: 0, Max: 45},
		"date_granularity": filters.Single{Value: "date_week"},
		"measure":          filters.Single{Value: "distance"},
		"type":             filters.Single{Value: "Race"},
	}

	first, err := b.Build(tmpl, values, false)
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		sql, err := b.Build(tmpl, values, false)
		require.NoError(t, err)
		require.Equal(t, first, sql)
	}
}

func TestNewTemplate_Errors(t *testing.T) {
	_, err := NewTemplate("broken", "SELECT {{.Measure", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse sql template [broken]")

	tmpl, err := NewTemplate("unknown-field", "SELECT {{.Nope}}", "")
	require.NoError(t, err)
	assert.Equal(t, "start_date", tmpl.DateColumn)
	_, err = NewBuilder(BigQuery).Build(tmpl, filters.Values{}, false)
	require.Error(t, err)
}

func TestIsPassThrough(t *testing.T) {
	assert.True(t, IsPassThrough("zone_type"))
	assert.True(t, IsPassThrough("dimension"))
	assert.False(t, IsPassThrough("sport"))
	assert.False(t, IsPassThrough("date_range"))
}
