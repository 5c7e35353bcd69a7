package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	app "wheelroom/internal/app"
	"wheelroom/internal/broadcast"
	"wheelroom/internal/cleanup"
	httpx "wheelroom/internal/http"
	"wheelroom/internal/store"
	"wheelroom/internal/ws"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg := app.LoadConfig()
	logger := app.NewLogger(cfg.Env)

	// Cancel on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// External TTL store (authoritative room snapshots)
	rooms, err := store.NewRooms(ctx, cfg, logger)
	if err != nil {
		logger.Error("redis connect", "err", err)
		log.Fatal(err)
	}
	defer rooms.Close()

	// Optional selection archive
	var archive *store.Archive
	if cfg.PGURL != "" {
		archive, err = store.NewArchive(ctx, cfg, logger)
		if err != nil {
			logger.Error("postgres connect", "err", err)
			log.Fatal(err)
		}
		defer archive.Close()
		if err := store.RunMigrations(ctx, archive, logger); err != nil {
			logger.Error("migrations", "err", err)
			log.Fatal(err)
		}
	}

	// Cross-instance event bus
	bus, err := ws.NewBus(ctx, cfg, logger)
	if err != nil {
		logger.Error("redis bus connect", "err", err)
		log.Fatal(err)
	}
	defer bus.Close()

	// Transport: group registry + join boundary
	registry := ws.NewRegistry(logger)
	hub := ws.NewHub(logger, registry, bus)
	go hub.Run(ctx)

	// Broadcaster with advisory budgets
	bc := broadcast.New(logger, broadcast.Budgets{
		Diff:    cfg.DiffWarn,
		Emit:    cfg.EmitWarn,
		Total:   cfg.TotalWarn,
		Clients: cfg.ClientsWarn,
	})
	bc.SetTransport(hub)

	// Eviction scheduler reconciling local state against the store
	var archiver cleanup.Archiver
	if archive != nil {
		archiver = archive
	}
	sched := cleanup.New(logger, cleanup.Config{
		Interval:        cfg.CleanupInterval,
		ExpiryThreshold: cfg.ExpiryThreshold,
		MaxScanCount:    cfg.MaxScanCount,
		ScanPageSize:    cfg.ScanPageSize,
	}, rooms, bc, registry, archiver)
	sched.Start(ctx)
	defer sched.Stop()

	// HTTP + WS router
	router := httpx.NewRouter(ctx, cfg, logger, hub, sched, bc)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server
	go func() {
		logger.Info("server.listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server.crash", "err", err)
			cancel()
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("server.shutdown.start")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	_ = srv.Shutdown(shutdownCtx)

	logger.Info("server.shutdown.complete")
	_ = os.Stdout.Sync()
}
