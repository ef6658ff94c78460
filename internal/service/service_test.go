package service

import (
	"context"
	"testing"
	"time"

	"chrouter/internal/ch"
	"chrouter/internal/routecache"
	"chrouter/pkg/cache"
	"chrouter/pkg/levelgraph"
)

func buildGraph() *levelgraph.Graph {
	g := levelgraph.New()
	g.AddNode(1)
	g.AddNode(2)
	g.AddNode(3)
	g.AddEdge(1, 2, 10, levelgraph.RoadTypePrimary)
	g.AddEdge(2, 3, 20, levelgraph.RoadTypeLocal)
	return g
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()
	c := cache.MustNew(&cache.Options{Backend: cache.BackendMemory})
	t.Cleanup(func() { c.Close() })

	store := routecache.New(c, time.Minute)
	return New("test", "shortest", ch.ShortestWeight{}, store, DefaultConfig(), nil)
}

func TestNew_DefaultConfig(t *testing.T) {
	r := New("test", "shortest", ch.ShortestWeight{}, nil, nil, nil)
	if r.config.MaxConcurrentQueries <= 0 {
		t.Error("expected a positive default concurrency limit")
	}
}

func TestRouter_Route_BeforeBuild(t *testing.T) {
	r := newTestRouter(t)
	_, err := r.Route(context.Background(), 1, 3)
	if err == nil {
		t.Fatal("expected error before BuildHierarchy")
	}
}

func TestRouter_BuildAndRoute(t *testing.T) {
	r := newTestRouter(t)
	graph := buildGraph()

	stats, err := r.BuildHierarchy(graph)
	if err != nil {
		t.Fatalf("BuildHierarchy() error = %v", err)
	}
	if stats.Nodes != 3 {
		t.Errorf("stats.Nodes = %d, want 3", stats.Nodes)
	}

	result, err := r.Route(context.Background(), 1, 3)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}
	if result.Distance != 30 {
		t.Errorf("Distance = %v, want 30", result.Distance)
	}

	got := r.GetStats()
	if got.HierarchiesBuilt != 1 {
		t.Errorf("HierarchiesBuilt = %d, want 1", got.HierarchiesBuilt)
	}
	if got.QueriesSuccess != 1 {
		t.Errorf("QueriesSuccess = %d, want 1", got.QueriesSuccess)
	}
	if got.CacheMisses != 1 {
		t.Errorf("CacheMisses = %d, want 1", got.CacheMisses)
	}
}

func TestRouter_Route_CacheHit(t *testing.T) {
	r := newTestRouter(t)
	graph := buildGraph()

	if _, err := r.BuildHierarchy(graph); err != nil {
		t.Fatalf("BuildHierarchy() error = %v", err)
	}

	if _, err := r.Route(context.Background(), 1, 3); err != nil {
		t.Fatalf("first Route() error = %v", err)
	}
	if _, err := r.Route(context.Background(), 1, 3); err != nil {
		t.Fatalf("second Route() error = %v", err)
	}

	got := r.GetStats()
	if got.CacheHits != 1 {
		t.Errorf("CacheHits = %d, want 1", got.CacheHits)
	}
	if got.CacheMisses != 1 {
		t.Errorf("CacheMisses = %d, want 1", got.CacheMisses)
	}
}

func TestRouter_IsHealthyAndReady(t *testing.T) {
	r := newTestRouter(t)
	if !r.IsHealthy() {
		t.Fatal("expected healthy router before shutdown")
	}
	if r.IsReady() {
		t.Fatal("expected not-ready router before hierarchy is built")
	}

	if _, err := r.BuildHierarchy(buildGraph()); err != nil {
		t.Fatalf("BuildHierarchy() error = %v", err)
	}
	if !r.IsReady() {
		t.Fatal("expected ready router after hierarchy is built")
	}
}

func TestRouter_Shutdown(t *testing.T) {
	r := newTestRouter(t)
	if _, err := r.BuildHierarchy(buildGraph()); err != nil {
		t.Fatalf("BuildHierarchy() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if r.IsHealthy() {
		t.Error("expected unhealthy router after shutdown")
	}

	if _, err := r.Route(context.Background(), 1, 3); err == nil {
		t.Error("expected Route() to reject calls after shutdown")
	}
}

func TestRouter_Shutdown_Idempotent(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown() error = %v", err)
	}
	if err := r.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}
