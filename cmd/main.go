package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"medhub/api"
	"medhub/internal"
	"medhub/observability"
	"medhub/runtime"
	"medhub/runtime/workers"
	"medhub/search"
	"medhub/store"
	"medhub/transport/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// Returning an error instead of exiting keeps defers (database close,
// index close) running and the wiring testable.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database & search index
	db, err := store.Connect(config.DatabaseDSN)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing database...")
		_ = db.Close()
	}()
	if err := store.Migrate(db); err != nil {
		return err
	}
	pharmacyStore := store.New(db, log)

	index, err := search.NewIndex()
	if err != nil {
		return err
	}
	defer func() { _ = index.Close() }()

	catalogue, err := pharmacyStore.ListMedicines(context.Background())
	if err != nil {
		return err
	}
	if err := index.Rebuild(catalogue); err != nil {
		return err
	}

	// 3. Hub state: registry, locks, stats. All in-memory, empty on
	// every start; presence and locks are deliberately not persisted.
	stats := observability.NewStatsManager()
	registry := runtime.NewRegistry(log)
	locks := runtime.NewLockManager(log, config.LockTTL)
	hub := runtime.NewHub(log, registry, locks, stats, config.BufferSize)

	// 4. Supervision
	sup := workers.NewSupervisor(log)
	sup.Add(
		workers.NewEventFanout(log, hub.Events(), registry, stats, config.SinkTimeout),
		workers.NewLockJanitor(log, hub, stats, config.LockSweepInterval),
		workers.NewStatsWorker(log, stats, config.StatsInterval),
	)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)
	defer sup.Stop()

	// 6. Debug endpoint
	internal.StartDebugServer(log, config.DebugPort, func() internal.HubSnapshot {
		return internal.HubSnapshot{
			Stats:    stats.GetLatest(),
			Sessions: registry.Snapshot(),
			Locks:    locks.Snapshot(),
		}
	})

	// 7. HTTP server: REST collaborator + websocket hub endpoint
	router := api.New(log, pharmacyStore, index, hub).Router()
	router.Handle("/ws", ws.NewHandler(log, hub, config.ConnectionBufferSize))

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{Addr: address, Handler: router}

	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}
