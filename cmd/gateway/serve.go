package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"

	"soulvan-gateway/internal/api"
	"soulvan-gateway/internal/chain"
	"soulvan-gateway/internal/config"
	"soulvan-gateway/internal/configstore"
	dbpkg "soulvan-gateway/internal/db"
	"soulvan-gateway/internal/gate"
	"soulvan-gateway/internal/governance"
	"soulvan-gateway/internal/logger"
	"soulvan-gateway/internal/metrics"
	"soulvan-gateway/internal/rpcclient"
	"soulvan-gateway/internal/stats"
	"soulvan-gateway/internal/tui"
	"soulvan-gateway/internal/version"
)

const shutdownTimeout = 5 * time.Second

func serve(parent context.Context, cfg config.Config, log *logger.Logger) error {
	log.Info("gateway starting", "version", version.Version, "config", cfg.DebugString())

	gormDB, err := dbpkg.Open(cfg, log)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if gormDB != nil {
		log.Printf("DB connected")
		if err := dbpkg.AutoMigrate(gormDB); err != nil {
			return fmt.Errorf("run migrations: %w", err)
		}
		log.Printf("Migrations applied")
	} else {
		log.Printf("DATABASE_URL not provided, stats history disabled")
	}
	history := dbpkg.NewHistory(gormDB)

	m := metrics.New()
	clk := clock.New()

	rpc := rpcclient.New(rpcclient.Options{
		URL:      cfg.RPCURL,
		User:     cfg.RPCUser,
		Password: cfg.RPCPass,
		Timeout:  cfg.RPCTimeout,
		Metrics:  m,
	})

	cache := stats.NewCache()
	poller := stats.NewPoller(rpc, cache, stats.PollerConfig{
		Interval: cfg.PollInterval,
		Clock:    clk,
		Logger:   log,
		Metrics:  m,
		Recorder: history,
	})
	publisher := stats.NewPublisher(cache, poller.Interval(), clk, m)

	registry := governance.NewRegistry(clk, m)
	g := gate.New(rpc, registry, gate.Config{
		APIKey:        cfg.APIKey,
		AllowMutating: cfg.AllowMutating,
		RateLimit:     cfg.RPCRateLimit,
		Version:       version.Version,
		Logger:        log,
		Metrics:       m,
	})

	chainSvc, err := chain.NewService(rpc, cfg.BlockCacheSize)
	if err != nil {
		return fmt.Errorf("block cache: %w", err)
	}
	store := configstore.New(cfg.ConfigPath, configstore.Addresses{
		TonAddress: cfg.DefaultTonAddress,
		FeeAddress: cfg.DefaultFeeAddress,
	})

	server := api.New(api.Deps{
		Gate:      g,
		Cache:     cache,
		Publisher: publisher,
		History:   history,
		Config:    store,
		Chain:     chainSvc,
		Metrics:   m,
		Logger:    log,
		Version:   version.Version,
	})

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	eg, ctx := errgroup.WithContext(ctx)

	srv := server.NewHTTPServer(cfg.ListenAddr())
	// request contexts end with the process so open streams let go
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	eg.Go(func() error {
		return poller.Run(ctx)
	})
	eg.Go(func() error {
		log.Info("listening", "addr", srv.Addr, "auth", g.AuthRequired(), "mutating", cfg.AllowMutating)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		log.Printf("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	if cfg.TUI {
		eg.Go(func() error {
			defer stop() // leaving the dashboard stops the gateway
			err := tui.Run(ctx, publisher.Subscribe(ctx), func() []governance.Proposal {
				return registry.List("", governance.FilterActive)
			})
			if err != nil {
				return fmt.Errorf("tui: %w", err)
			}
			return nil
		})
	}

	return eg.Wait()
}
