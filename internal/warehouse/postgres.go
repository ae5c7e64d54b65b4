package warehouse

import (
	"context"
	"fmt"

	"github.com/2beens/fitdash/internal/telemetry/tracing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres runs dashboard queries against a postgres database holding
// the same weekly metric tables as the cloud warehouse.
type Postgres struct {
	db   pgxQuerier
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		db:   pool,
		pool: pool,
	}
}

func (p *Postgres) Name() string {
	return "postgres"
}

func (p *Postgres) Query(ctx context.Context, sql string) (_ *Table, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "warehouse.postgres.query")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("sql", sql))

	rows, err := p.db.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("postgres query: %w", err)
	}
	defer rows.Close()

	table := &Table{}
	for _, fd := range rows.FieldDescriptions() {
		table.Columns = append(table.Columns, fd.Name)
	}

	for rows.Next() {
		row, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres row values: %w", err)
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = normalizeValue(v)
		}
		table.Rows = append(table.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres rows: %w", err)
	}
	span.SetAttributes(attribute.Int("rows", len(table.Rows)))

	return table, nil
}

func (p *Postgres) Close() error {
	if p.pool != nil {
		p.pool.Close()
	}
	return nil
}
