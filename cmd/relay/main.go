package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/fastchat/relay/internal/api"
	"github.com/fastchat/relay/internal/chat"
	"github.com/fastchat/relay/internal/config"
	"github.com/fastchat/relay/internal/database"
	"github.com/fastchat/relay/internal/liveness"
	"github.com/fastchat/relay/internal/metrics"
	"github.com/fastchat/relay/internal/presence"
	"github.com/fastchat/relay/internal/ratelimit"
	"github.com/fastchat/relay/internal/registry"
	"github.com/fastchat/relay/internal/router"
	"github.com/fastchat/relay/internal/server"
	"github.com/fastchat/relay/internal/store"
	"github.com/fastchat/relay/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (empty: built-in defaults)")
	flag.Parse()

	// Local development convenience; a missing .env is not an error.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "error", err)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	var cfg *config.RelayConfig
	var err error
	if *configPath == "" {
		cfg = config.Defaults()
	} else {
		cfg, err = config.LoadAndValidate(*configPath)
		if err != nil {
			logger.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Presence store is optional; without it the relay is memory-only
	// and the presence REST resources answer 503.
	var presenceStore *store.Store
	if cfg.Database.Enabled() {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)

		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		presenceStore = store.New(store.Config{
			OnlineThreshold: cfg.Presence.OnlineThreshold,
			ReapInterval:    cfg.Presence.ReapInterval,
		}, pool, logger)

		if err := presenceStore.EnsureSchema(ctx); err != nil {
			logger.Error("failed to prepare schema", "error", err)
			os.Exit(1)
		}
		logger.Info("database connected")
	} else {
		logger.Info("no database configured, running memory-only")
	}

	// Core components
	reg := registry.New(logger)
	collector := metrics.NewCollector()
	broadcaster := presence.New(reg, logger)

	coordinator := chat.NewCoordinator(chat.Config{
		GracePeriod: cfg.Chat.GracePeriod,
	}, reg, logger)

	limiter := ratelimit.New(ratelimit.Config{
		Window:        cfg.RateLimit.Window,
		MessageLimit:  cfg.RateLimit.MessageLimit,
		TypingLimit:   cfg.RateLimit.TypingLimit,
		PingLimit:     cfg.RateLimit.PingLimit,
		SweepInterval: cfg.RateLimit.SweepInterval,
	}, logger)

	monitor := liveness.New(liveness.Config{
		Interval:        cfg.Liveness.Interval,
		MissedThreshold: cfg.Liveness.MissedThreshold,
	}, reg, logger)

	frameRouter := router.New(reg, coordinator, limiter, collector, logger)

	wsHandler := server.NewHandler(server.Config{
		HelloTimeout: cfg.Server.HelloTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		ReadLimit:    cfg.Server.ReadLimit,
	}, reg, coordinator, broadcaster, limiter, collector, frameRouter, logger)

	// Background services
	if err := limiter.Start(ctx); err != nil {
		logger.Error("failed to start rate limiter", "error", err)
		os.Exit(1)
	}
	if err := monitor.Start(ctx); err != nil {
		logger.Error("failed to start liveness monitor", "error", err)
		os.Exit(1)
	}
	if presenceStore != nil {
		if err := presenceStore.Start(ctx); err != nil {
			logger.Error("failed to start presence store", "error", err)
			os.Exit(1)
		}
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(api.New(wsHandler, presenceStore, collector, logger)),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("relay listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		// Closing live connections first lets clients see a clean
		// close frame before the listener goes away.
		for _, p := range reg.Peers() {
			reg.CloseConn(p.UserID, registry.ReasonShutdown)
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("relay failed", "error", err)
		cancel()
		os.Exit(1)
	}

	// Stop background services in dependency order.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := monitor.Stop(shutdownCtx); err != nil {
		logger.Warn("liveness monitor stop timed out", "error", err)
	}
	if err := limiter.Stop(shutdownCtx); err != nil {
		logger.Warn("rate limiter stop timed out", "error", err)
	}
	if err := coordinator.Stop(shutdownCtx); err != nil {
		logger.Warn("chat coordinator stop failed", "error", err)
	}
	if presenceStore != nil {
		if err := presenceStore.Stop(shutdownCtx); err != nil {
			logger.Warn("presence store stop timed out", "error", err)
		}
	}

	logger.Info("relay stopped")
}
