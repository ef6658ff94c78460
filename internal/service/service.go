// Package service orchestrates the CH preprocessor and query engine for
// the CLI host: it owns hierarchy construction, cache-checked route
// queries, and graceful shutdown. Grounded on
// services/solver-svc/internal/service/solver.go's SolverService, with
// the gRPC request/response types and algorithm pool stripped out and
// the flow-solve call replaced by a CH build/query pair.
package service

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"chrouter/internal/ch"
	"chrouter/internal/routecache"
	"chrouter/pkg/apperror"
	"chrouter/pkg/levelgraph"
	"chrouter/pkg/metrics"
)

// Config holds the tunables for Router, mirroring ServiceConfig's shape.
type Config struct {
	// MaxConcurrentQueries limits in-flight Route calls; beyond this
	// callers block inside the semaphore until a slot frees up.
	MaxConcurrentQueries int
	// DefaultTimeout bounds a Route call when the caller's context has no
	// deadline of its own: it limits the wait for a query slot and the
	// cache lookups (the CH search itself does not observe the context).
	DefaultTimeout time.Duration
	// ShutdownTimeout bounds how long Shutdown waits for in-flight
	// queries before giving up and returning the context's error.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults, mirroring
// DefaultServiceConfig's proportions (NumCPU-scaled concurrency, 30s
// timeouts).
func DefaultConfig() *Config {
	return &Config{
		MaxConcurrentQueries: runtime.NumCPU() * 4,
		DefaultTimeout:       30 * time.Second,
		ShutdownTimeout:      30 * time.Second,
	}
}

// stats holds atomic counters, mirroring serviceStats.
type stats struct {
	queriesTotal      atomic.Int64
	queriesActive     atomic.Int64
	queriesSuccess    atomic.Int64
	queriesFailed     atomic.Int64
	cacheHits         atomic.Int64
	cacheMisses       atomic.Int64
	hierarchiesBuilt  atomic.Int64
}

// Stats is a snapshot of Router's counters, mirroring service.Stats.
type Stats struct {
	QueriesTotal     int64
	QueriesActive    int64
	QueriesSuccess   int64
	QueriesFailed    int64
	CacheHits        int64
	CacheMisses      int64
	HierarchiesBuilt int64
}

// Router orchestrates BuildHierarchy and Route over a single weighting.
// Safe for concurrent use: BuildHierarchy swaps the active graph/query
// pair under a write lock, Route calls take a read lock for the duration
// of the lookup (not the search itself, which only touches the
// already-built, read-only hierarchy).
type Router struct {
	version       string
	weightingName string
	weight        ch.WeightCalc
	metrics       *metrics.Metrics
	cache         *routecache.Store
	config        *Config
	log           *slog.Logger

	mu    sync.RWMutex
	graph *levelgraph.Graph
	query *ch.CHQuery

	sem chan struct{}

	stats stats

	shutdownCh   chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// New returns a Router for the given weighting. cache may be nil (no
// caching); log may be nil (logging suppressed).
func New(version, weightingName string, weight ch.WeightCalc, cache *routecache.Store, cfg *Config, log *slog.Logger) *Router {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &Router{
		version:       version,
		weightingName: weightingName,
		weight:        weight,
		metrics:       metrics.Get(),
		cache:         cache,
		config:        cfg,
		log:           log,
		sem:           make(chan struct{}, cfg.MaxConcurrentQueries),
		shutdownCh:    make(chan struct{}),
	}
}

// BuildHierarchy runs the Contractor over graph and, on success, installs
// it as the active graph/query pair, replacing any hierarchy built
// before it. Grounded on executeSolve's run-then-record flow.
func (r *Router) BuildHierarchy(graph *levelgraph.Graph) (*ch.Stats, error) {
	start := time.Now()

	contractor := ch.NewContractor(graph, r.weight, r.log)
	chStats, err := contractor.Run()
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	query := ch.NewCHQuery(graph, r.weight)

	r.mu.Lock()
	r.graph = graph
	r.query = query
	r.mu.Unlock()

	r.stats.hierarchiesBuilt.Add(1)
	r.metrics.RecordContraction(r.weightingName, elapsed, chStats.Nodes, chStats.ShortcutsAdded)
	r.metrics.RecordGraphSize(r.weightingName, graph.NodeCount(), graph.EdgeCount())
	r.log.Info("hierarchy built",
		"weighting", r.weightingName,
		"nodes", chStats.Nodes,
		"shortcuts_added", chStats.ShortcutsAdded,
		"shortcuts_merged", chStats.ShortcutsMerged,
		"iterations", chStats.Iterations,
		"elapsed", elapsed,
	)

	return chStats, nil
}

// Route answers a shortest-path query between source and target,
// consulting the route cache before falling back to CHQuery.Route.
// Thread-safe; can be called concurrently from multiple goroutines, and
// rejects new calls once Shutdown has been invoked.
func (r *Router) Route(ctx context.Context, source, target int64) (*ch.RouteResult, error) {
	if err := r.trackQuery(); err != nil {
		return nil, err
	}
	defer r.untrackQuery()

	if _, ok := ctx.Deadline(); !ok && r.config.DefaultTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.DefaultTimeout)
		defer cancel()
	}

	r.mu.RLock()
	graph, query := r.graph, r.query
	r.mu.RUnlock()

	if query == nil {
		r.stats.queriesFailed.Add(1)
		return nil, apperror.ErrHierarchyNotBuilt
	}

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-ctx.Done():
		r.stats.queriesFailed.Add(1)
		return nil, apperror.Wrap(ctx.Err(), apperror.CodeTimeout, "waiting for a query slot")
	}

	if cached, found, err := r.cache.Get(ctx, graph, r.weightingName, source, target); err == nil && found {
		r.stats.cacheHits.Add(1)
		r.stats.queriesSuccess.Add(1)
		r.metrics.RecordQuery(r.weightingName, true, 0)
		return cached, nil
	}
	r.stats.cacheMisses.Add(1)

	start := time.Now()
	result, err := query.Route(source, target)
	elapsed := time.Since(start)

	if err != nil {
		r.stats.queriesFailed.Add(1)
		r.metrics.RecordQuery(r.weightingName, false, elapsed)
		return nil, err
	}

	r.stats.queriesSuccess.Add(1)
	r.metrics.RecordQuery(r.weightingName, true, elapsed)

	if err := r.cache.Set(ctx, graph, r.weightingName, source, target, result); err != nil {
		r.log.Warn("failed to cache route result", "error", err)
	}

	return result, nil
}

func (r *Router) trackQuery() error {
	select {
	case <-r.shutdownCh:
		return apperror.New(apperror.CodeUnimplemented, "router is shutting down")
	default:
	}

	r.wg.Add(1)
	r.stats.queriesTotal.Add(1)
	r.stats.queriesActive.Add(1)
	return nil
}

func (r *Router) untrackQuery() {
	r.stats.queriesActive.Add(-1)
	r.wg.Done()
}

// GetStats returns a snapshot of the router's counters.
func (r *Router) GetStats() Stats {
	return Stats{
		QueriesTotal:     r.stats.queriesTotal.Load(),
		QueriesActive:    r.stats.queriesActive.Load(),
		QueriesSuccess:   r.stats.queriesSuccess.Load(),
		QueriesFailed:    r.stats.queriesFailed.Load(),
		CacheHits:        r.stats.cacheHits.Load(),
		CacheMisses:      r.stats.cacheMisses.Load(),
		HierarchiesBuilt: r.stats.hierarchiesBuilt.Load(),
	}
}

// IsHealthy reports whether the router is still accepting queries.
func (r *Router) IsHealthy() bool {
	select {
	case <-r.shutdownCh:
		return false
	default:
		return true
	}
}

// IsReady reports whether a hierarchy has been built and the router has
// spare query capacity.
func (r *Router) IsReady() bool {
	if !r.IsHealthy() {
		return false
	}
	r.mu.RLock()
	built := r.query != nil
	r.mu.RUnlock()
	if !built {
		return false
	}
	active := r.stats.queriesActive.Load()
	return active < int64(r.config.MaxConcurrentQueries)*9/10
}

// Shutdown stops the router from accepting new queries and waits for
// in-flight ones to finish, mirroring SolverService.Shutdown.
func (r *Router) Shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && r.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.ShutdownTimeout)
		defer cancel()
	}

	var err error

	r.shutdownOnce.Do(func() {
		close(r.shutdownCh)

		done := make(chan struct{})
		go func() {
			r.wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			r.log.Info("all route queries completed gracefully")
		case <-ctx.Done():
			err = ctx.Err()
			r.log.Warn("shutdown timed out, some queries may be interrupted",
				"active_queries", r.stats.queriesActive.Load())
		}
	})

	return err
}
