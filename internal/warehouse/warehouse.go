package warehouse

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5/pgtype"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=warehouse_test

// Client runs a SQL string against a data warehouse.
type Client interface {
	Query(ctx context.Context, sql string) (*Table, error)
	Name() string
	Close() error
}

// Table is the tabular result of a query, with named columns.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns all values of the named column.
func (t *Table) Column(name string) ([]any, error) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, fmt.Errorf("column [%s] not found", name)
	}
	values := make([]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx >= len(row) {
			values = append(values, nil)
			continue
		}
		values = append(values, row[idx])
	}
	return values, nil
}

func (t *Table) Empty() bool {
	return t == nil || len(t.Rows) == 0
}

// normalizeValue maps driver specific types to the few types the rest of the
// service knows: nil, bool, int64, float64, string and time.Time (UTC).
func normalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case civil.Date:
		return val.In(time.UTC)
	case civil.DateTime:
		return val.In(time.UTC)
	case time.Time:
		return val.UTC()
	case *big.Rat:
		if val == nil {
			return nil
		}
		f, _ := val.Float64()
		return f
	case pgtype.Numeric:
		f, err := val.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case pgtype.Date:
		if !val.Valid {
			return nil
		}
		return val.Time.UTC()
	case int:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case []byte:
		return string(val)
	default:
		return val
	}
}
