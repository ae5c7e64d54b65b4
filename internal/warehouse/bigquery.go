package warehouse

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/fitdash/internal/telemetry/tracing"

	"cloud.google.com/go/bigquery"
	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type BigQuery struct {
	client *bigquery.Client
}

func NewBigQuery(ctx context.Context, projectID, credentialsFile string) (*BigQuery, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("new bigquery client: %w", err)
	}

	return &BigQuery{client: client}, nil
}

func (b *BigQuery) Name() string {
	return "bigquery"
}

func (b *BigQuery) Query(ctx context.Context, sql string) (_ *Table, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "warehouse.bigquery.query")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("sql", sql))

	query := b.client.Query(sql)
	query.JobIDConfig = bigquery.JobIDConfig{
		JobID:          "fitdash",
		AddJobIDSuffix: true,
	}

	it, err := query.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("bigquery read: %w", err)
	}

	table := &Table{}
	for {
		var row []bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bigquery next row: %w", err)
		}

		values := make([]any, len(row))
		for i, v := range row {
			values[i] = normalizeValue(v)
		}
		table.Rows = append(table.Rows, values)
	}

	// the schema is known only after the first Next call
	for _, field := range it.Schema {
		table.Columns = append(table.Columns, field.Name)
	}
	span.SetAttributes(attribute.Int("rows", len(table.Rows)))

	return table, nil
}

func (b *BigQuery) Close() error {
	return b.client.Close()
}
