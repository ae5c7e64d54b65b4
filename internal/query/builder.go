package query

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/2beens/fitdash/internal/filters"
)

// Filters substituted into the template instead of the WHERE clause.
const (
	KeyDateGranularity = "date_granularity"
	KeyMeasure         = "measure"
	KeyDimension       = "dimension"
	KeyZoneType        = "zone_type"

	KeyDateRange = "date_range"
)

var passThroughKeys = map[string]bool{
	KeyDateGranularity: true,
	KeyMeasure:         true,
	KeyDimension:       true,
	KeyZoneType:        true,
}

func IsPassThrough(name string) bool {
	return passThroughKeys[name]
}

// Dialect controls how literals are quoted.
type Dialect struct {
	name  string
	quote string
}

var (
	BigQuery = Dialect{name: "bigquery", quote: `"`}
	Postgres = Dialect{name: "postgres", quote: `'`}
)

func DialectFor(warehouse string) (Dialect, error) {
	switch warehouse {
	case BigQuery.name:
		return BigQuery, nil
	case Postgres.name:
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("unknown sql dialect: %s", warehouse)
	}
}

func (d Dialect) String() string {
	return d.name
}

func (d Dialect) literal(value string) string {
	return d.quote + value + d.quote
}

// Template is a parsed SQL template. It can reference
// {{.DateGranularity}}, {{.Measure}}, {{.Dimension}}, {{.ZoneType}},
// {{.MeasureExpr}} and {{.Where}}.
type Template struct {
	Name       string
	DateColumn string
	tmpl       *template.Template
}

func NewTemplate(name, sql, dateColumn string) (*Template, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(sql)
	if err != nil {
		return nil, fmt.Errorf("parse sql template [%s]: %w", name, err)
	}
	if dateColumn == "" {
		dateColumn = "start_date"
	}
	return &Template{
		Name:       name,
		DateColumn: dateColumn,
		tmpl:       tmpl,
	}, nil
}

type templateData struct {
	DateGranularity string
	Measure         string
	Dimension       string
	ZoneType        string
	MeasureExpr     string
	Where           string
}

type Builder struct {
	dialect Dialect
}

func NewBuilder(dialect Dialect) *Builder {
	return &Builder{
		dialect: dialect,
	}
}

func (b *Builder) Dialect() Dialect {
	return b.dialect
}

// Build renders the template for the selected filter values. The same values
// always give the same query text.
func (b *Builder) Build(tmpl *Template, values filters.Values, percent bool) (string, error) {
	data := templateData{
		DateGranularity: values.String(KeyDateGranularity),
		Measure:         values.String(KeyMeasure),
		Dimension:       values.String(KeyDimension),
		ZoneType:        values.String(KeyZoneType),
		Where:           b.Where(tmpl.DateColumn, values),
	}
	data.MeasureExpr = measureExpr(data.Measure, data.DateGranularity, percent)

	var buf bytes.Buffer
	if err := tmpl.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute sql template [%s]: %w", tmpl.Name, err)
	}
	return buf.String(), nil
}

// Where builds the filter clauses, each starting with AND, sorted by filter name.
func (b *Builder) Where(dateColumn string, values filters.Values) string {
	names := make([]string, 0, len(values))
	for name := range values {
		if !passThroughKeys[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	clauses := make([]string, 0, len(names))
	for _, name := range names {
		if clause := b.clause(name, dateColumn, values[name]); clause != "" {
			clauses = append(clauses, clause)
		}
	}
	return strings.Join(clauses, "\n")
}

func (b *Builder) clause(name, dateColumn string, value filters.Value) string {
	switch v := value.(type) {
	case filters.Multi:
		return b.inClause(name, v.Values, v.IncludeNull)
	case filters.Single:
		if v.Value == filters.NullOption {
			return b.inClause(name, nil, true)
		}
		return b.inClause(name, []string{v.Value}, false)
	case filters.DateRange:
		column := name
		if name == KeyDateRange {
			column = dateColumn
		}
		return fmt.Sprintf("AND %s BETWEEN %s AND %s",
			column,
			b.dialect.literal(v.From.Format(time.DateOnly)),
			b.dialect.literal(v.To.Format(time.DateOnly)),
		)
	case filters.NumberRange:
		return fmt.Sprintf("AND %s BETWEEN %s AND %s",
			name,
			strconv.FormatFloat(v.Min, 'f', -1, 64),
			strconv.FormatFloat(v.Max, 'f', -1, 64),
		)
	default:
		return ""
	}
}

func (b *Builder) inClause(column string, values []string, includeNull bool) string {
	literals := make([]string, 0, len(values))
	for _, v := range values {
		if v == filters.NullOption {
			includeNull = true
			continue
		}
		literals = append(literals, b.dialect.literal(v))
	}

	switch {
	case len(literals) == 0 && includeNull:
		return fmt.Sprintf("AND %s IS NULL", column)
	case len(literals) == 0:
		return ""
	case includeNull:
		return fmt.Sprintf("AND ( %s in (%s) OR %s IS NULL )", column, strings.Join(literals, ", "), column)
	default:
		return fmt.Sprintf("AND %s in (%s)", column, strings.Join(literals, ", "))
	}
}

func measureExpr(measure, granularity string, percent bool) string {
	if measure == "" {
		return ""
	}
	if !percent || granularity == "" {
		return fmt.Sprintf("SUM(%s)", measure)
	}
	return fmt.Sprintf("100.0 * SUM(%s) / SUM(SUM(%s)) OVER (PARTITION BY %s)", measure, measure, granularity)
}
