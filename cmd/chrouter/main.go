// Package main is the entry point for the chrouter CLI host.
//
// chrouter loads a road network, contracts it into a hierarchy, and
// answers shortest/fastest-path queries either as a one-shot lookup or
// as a long-running process serving Prometheus metrics. It owns no
// core CH semantics (see internal/ch) and no wire protocol (per
// SPEC_FULL.md §6) - it only wires configuration, the graph loader, the
// preprocessor, the query engine, the cache, metrics, and the PDF
// report together, mirroring the wiring order of
// services/solver-svc/cmd/main.go: config -> logger -> cache ->
// data source -> business logic -> (optional) long-running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"chrouter/internal/ch"
	"chrouter/internal/loader"
	"chrouter/internal/report"
	"chrouter/internal/routecache"
	"chrouter/internal/service"
	dbmigrations "chrouter/migrations"
	"chrouter/pkg/apperror"
	"chrouter/pkg/cache"
	"chrouter/pkg/config"
	"chrouter/pkg/database"
	"chrouter/pkg/levelgraph"
	"chrouter/pkg/logger"
	"chrouter/pkg/metrics"
)

func main() {
	var (
		source    = flag.Int64("source", -1, "source node id for a one-shot route query")
		target    = flag.Int64("target", -1, "target node id for a one-shot route query")
		reportOut = flag.String("report", "", "write a PDF itinerary for the queried route to this path")
		serve     = flag.Bool("serve", false, "after building the hierarchy, keep running and serve /metrics until signalled")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runID := uuid.New().String()
	log := logger.Log.With("run_id", runID)

	metrics.InitMetrics(cfg.Metrics.Namespace, cfg.Metrics.Subsystem)
	metrics.Get().SetServiceInfo(cfg.App.Version, cfg.App.Environment)

	if cfg.Metrics.Enabled {
		go func() {
			log.Info("starting metrics server", "port", cfg.Metrics.Port)
			if err := metrics.StartMetricsServer(cfg.Metrics.Port); err != nil {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	routeCache := buildRouteCache(cfg, log)

	weight, err := weightFromConfig(cfg.Preprocess.Weighting)
	if err != nil {
		log.Error("invalid weighting", "error", err)
		os.Exit(1)
	}

	graph, geo, err := loadGraph(ctx, cfg, log)
	if err != nil {
		log.Error("failed to load road network", "error", err)
		os.Exit(1)
	}

	router := service.New(cfg.App.Version, cfg.Preprocess.Weighting, weight, routeCache, service.DefaultConfig(), log)

	log.Info("building contraction hierarchy", "nodes", graph.NodeCount(), "edges", graph.EdgeCount())
	stats, err := router.BuildHierarchy(graph)
	if err != nil {
		log.Error("failed to build hierarchy", "error", err)
		os.Exit(1)
	}
	log.Info("hierarchy built",
		"shortcuts_added", stats.ShortcutsAdded,
		"shortcuts_merged", stats.ShortcutsMerged,
		"iterations", stats.Iterations,
	)

	if *source >= 0 && *target >= 0 {
		if err := runQuery(ctx, router, cfg, geo, *source, *target, *reportOut, log); err != nil {
			log.Error("route query failed", "error", err)
			os.Exit(1)
		}
	}

	if *serve {
		log.Info("serving, waiting for shutdown signal")
		<-ctx.Done()
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := router.Shutdown(shutdownCtx); err != nil {
		log.Warn("shutdown did not complete cleanly", "error", err)
	}
}

// weightFromConfig resolves the configured weighting name to a
// ch.WeightCalc, defaulting to ShortestWeight when unset.
func weightFromConfig(weighting string) (ch.WeightCalc, error) {
	switch weighting {
	case "", "shortest":
		return ch.ShortestWeight{}, nil
	case "fastest":
		return ch.NewFastestWeight(), nil
	default:
		return nil, apperror.New(apperror.CodeInvalidArgument, "unknown weighting: "+weighting)
	}
}

// buildRouteCache wires a routecache.Store from configuration, degrading
// to nil (no caching) rather than failing the whole run when the cache
// backend can't be reached, mirroring the teacher's "service continues
// to function if cache initialization fails" behavior.
func buildRouteCache(cfg *config.Config, log *slog.Logger) *routecache.Store {
	if !cfg.Cache.Enabled {
		return nil
	}

	baseCache, err := cache.New(cache.FromConfig(&cfg.Cache))
	if err != nil {
		log.Warn("failed to create cache, continuing without route caching", "error", err)
		return nil
	}

	log.Info("route cache initialized", "driver", cfg.Cache.Driver, "ttl", cfg.Cache.DefaultTTL)
	return routecache.New(baseCache, cfg.Cache.DefaultTTL)
}

// loadGraph dispatches to the Postgres or fixture loader per
// cfg.Preprocess.GraphSource, running migrations first when the
// Postgres source has AutoMigrate enabled.
func loadGraph(ctx context.Context, cfg *config.Config, log *slog.Logger) (*levelgraph.Graph, loader.GeoIndex, error) {
	switch cfg.Preprocess.GraphSource {
	case "fixture":
		return loader.Fixture(cfg.Preprocess.FixturePath, log)
	case "postgres", "":
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			return nil, nil, apperror.Wrap(err, apperror.CodeInternal, "connecting to postgres")
		}
		defer db.Close()

		if cfg.Database.AutoMigrate {
			if err := database.RunMigrations(ctx, db.Pool(), &cfg.Database, dbmigrations.PostgresMigrations, "postgres"); err != nil {
				return nil, nil, apperror.Wrap(err, apperror.CodeInternal, "running migrations")
			}
		}

		return loader.Postgres(ctx, db, log)
	default:
		return nil, nil, apperror.New(apperror.CodeInvalidArgument, "unknown graph_source: "+cfg.Preprocess.GraphSource)
	}
}

// runQuery answers a single route query, logs the result, and optionally
// renders it as a PDF itinerary.
func runQuery(ctx context.Context, router *service.Router, cfg *config.Config, geo loader.GeoIndex, source, target int64, reportOut string, log *slog.Logger) error {
	result, err := router.Route(ctx, source, target)
	if err != nil {
		return err
	}

	log.Info("route found",
		"source", source,
		"target", target,
		"distance_m", result.Distance,
		"hops", len(result.Nodes)-1,
	)

	if reportOut == "" {
		return nil
	}

	gen := report.New(cfg.Report.PDF)
	pdf, err := gen.Generate(result, report.Options{
		Source:      source,
		Target:      target,
		Weighting:   cfg.Preprocess.Weighting,
		CompanyName: cfg.Report.DefaultCompanyName,
		Geo:         geo,
	})
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "generating itinerary report")
	}

	if err := os.WriteFile(reportOut, pdf, 0o644); err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "writing itinerary report")
	}
	log.Info("itinerary written", "path", reportOut)
	return nil
}
