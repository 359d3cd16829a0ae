// navscan scans heightmap CSV files into navigation meshes, reports the
// resulting surfaces, runs a demo path across each mesh and optionally
// stores snapshots in PostgreSQL.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/opennav/groundmesh/internal/config"
	"github.com/opennav/groundmesh/internal/meshstore"
	"github.com/opennav/groundmesh/internal/navmesh"
	"github.com/opennav/groundmesh/internal/pathfind"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		configPath = flag.String("config", "config/navscan.yaml", "configuration file")
		scanSize   = flag.Int("scan-size", 0, "scan window in cells (0 = cover the heightmap)")
		store      = flag.Bool("store", false, "store snapshots in the configured database")
		workers    = flag.Int("workers", 4, "heightmaps scanned in parallel")
	)
	flag.Parse()
	if flag.NArg() == 0 {
		return fmt.Errorf("usage: navscan [flags] heightmap.csv ...")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))

	agent, err := cfg.Agent.Agent()
	if err != nil {
		return fmt.Errorf("loading agent config: %w", err)
	}

	var snapshots *meshstore.Store
	if *store {
		if !cfg.Database.Enabled() {
			return fmt.Errorf("-store requires a database host in the config")
		}
		if err := meshstore.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
			return fmt.Errorf("migrating snapshot store: %w", err)
		}
		snapshots, err = meshstore.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("connecting snapshot store: %w", err)
		}
		defer snapshots.Close()
		slog.Info("snapshot store connected", "host", cfg.Database.Host)
	}

	// Each heightmap gets its own model, so files can be scanned in
	// parallel without violating the model's single-thread contract.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(*workers)
	for _, path := range flag.Args() {
		g.Go(func() error {
			return scanFile(gctx, path, cfg, agent, *scanSize, snapshots)
		})
	}
	return g.Wait()
}

func scanFile(ctx context.Context, path string, cfg config.File, agent pathfind.Agent, scanSize int, snapshots *meshstore.Store) error {
	settings := cfg.Mesh.Settings()

	hm, err := loadHeightmap(path, settings.TileSize)
	if err != nil {
		return err
	}

	model, err := navmesh.NewModel(settings, hm.sampler())
	if err != nil {
		return fmt.Errorf("building model for %s: %w", path, err)
	}

	cells := scanSize
	if cells <= 0 {
		cells = max(hm.width(), hm.depth())
	}
	if err := model.Scan(hm.center(), cells); err != nil {
		return fmt.Errorf("scanning %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	total := 0
	for _, s := range model.Surfaces() {
		total += s.Len()
		slog.Info("surface",
			"map", name, "id", s.ID(), "nodes", s.Len(), "elevation", s.Elevation())
	}
	slog.Info("scan finished", "map", name, "surfaces", len(model.Surfaces()), "nodes", total)

	demoPath(model, agent, name)

	if snapshots != nil {
		snap, err := snapshots.Save(ctx, name, model)
		if err != nil {
			return fmt.Errorf("storing snapshot %s: %w", name, err)
		}
		slog.Info("snapshot stored", "map", name, "hash", snap.Hash)
	}
	return nil
}

// demoPath routes between two random mesh positions to show strategy
// behavior on the scanned data.
func demoPath(model *navmesh.Model, agent pathfind.Agent, name string) {
	rng := rand.New(rand.NewSource(1))
	from, ok := model.RandomPosition(rng)
	if !ok {
		return
	}
	to, ok := model.RandomPosition(rng)
	if !ok {
		return
	}

	finder := pathfind.NewFinder(model)
	p := finder.Find(from, to, agent)
	slog.Info("demo path",
		"map", name,
		"behaviour", agent.Behaviour.String(),
		"status", p.Status.String(),
		"waypoints", len(p.Waypoints))
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
