package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2beens/fitdash/internal/cache"
	"github.com/2beens/fitdash/internal/telemetry/metrics"
	"github.com/2beens/fitdash/internal/telemetry/tracing"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const DefaultCacheTTL = 10 * time.Minute

// Executor runs queries through the warehouse client, caching results by
// query text. Concurrent identical queries share one warehouse call.
type Executor struct {
	client         Client
	cache          cache.Cache
	cacheTTL       time.Duration
	queryTimeout   time.Duration
	group          singleflight.Group
	metricsManager *metrics.Manager
}

type NewExecutorParams struct {
	Client         Client
	Cache          cache.Cache
	CacheTTL       time.Duration
	QueryTimeout   time.Duration
	MetricsManager *metrics.Manager
}

func NewExecutor(params NewExecutorParams) *Executor {
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Executor{
		client:         params.Client,
		cache:          params.Cache,
		cacheTTL:       ttl,
		queryTimeout:   params.QueryTimeout,
		metricsManager: params.MetricsManager,
	}
}

func (e *Executor) Query(ctx context.Context, sql string) (_ *Table, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "warehouse.executor.query")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	key := cache.QueryKey(sql)
	if table, ok := e.fromCache(ctx, key); ok {
		span.SetAttributes(attribute.Bool("query.from-cache", true))
		return table, nil
	}
	span.SetAttributes(attribute.Bool("query.from-cache", false))

	// the shared call outlives any single caller; only the query timeout bounds it
	detached := context.WithoutCancel(ctx)
	res, err, shared := e.group.Do(key, func() (any, error) {
		return e.run(detached, key, sql)
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Bool("query.shared", shared))

	return res.(*Table), nil
}

func (e *Executor) fromCache(ctx context.Context, key string) (*Table, bool) {
	if e.cache == nil {
		return nil, false
	}

	cached, err := e.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			log.Errorf("query cache get [%s]: %s", key, err)
		}
		e.observeCache(false)
		return nil, false
	}

	table := &Table{}
	if err := json.Unmarshal(cached, table); err != nil {
		log.Errorf("unmarshal cached table [%s]: %s", key, err)
		e.observeCache(false)
		return nil, false
	}

	log.Tracef("query result found in cache [%s]", key)
	e.observeCache(true)
	return table, true
}

func (e *Executor) run(ctx context.Context, key, sql string) (*Table, error) {
	if e.queryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	table, err := e.client.Query(ctx, sql)
	e.observeQuery(time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", e.client.Name(), err)
	}

	if e.cache != nil {
		tableBytes, err := json.Marshal(table)
		if err != nil {
			log.Errorf("marshal table for cache [%s]: %s", key, err)
			return table, nil
		}
		if err := e.cache.Set(ctx, key, tableBytes, e.cacheTTL); err != nil {
			log.Errorf("query cache set [%s]: %s", key, err)
		}
	}

	return table, nil
}

func (e *Executor) observeCache(hit bool) {
	if e.metricsManager == nil {
		return
	}
	if hit {
		e.metricsManager.CounterQueryCacheHits.Inc()
	} else {
		e.metricsManager.CounterQueryCacheMisses.Inc()
	}
}

func (e *Executor) observeQuery(duration time.Duration, err error) {
	if e.metricsManager == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.metricsManager.CounterWarehouseQueries.With(prometheus.Labels{
		"warehouse": e.client.Name(),
		"status":    status,
	}).Inc()
	e.metricsManager.HistogramQueryDuration.WithLabelValues(e.client.Name()).Observe(duration.Seconds())
}
