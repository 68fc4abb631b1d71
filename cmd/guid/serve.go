package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sxyafiq/guid"
	"github.com/sxyafiq/guid/internal/config"
	"github.com/sxyafiq/guid/internal/metrics"
	"github.com/sxyafiq/guid/internal/server"
	"github.com/sxyafiq/guid/redislease"
	"github.com/sxyafiq/guid/store"
)

func newServeCmd(a *app) *cobra.Command {
	var addr, dbPath, redisAddr string

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server", "run"},
		Short:   "Run the HTTP service",
		Long: `Serve minting and inspection over HTTP.

With --db, POST /v1/guids/{id} records identifiers in SQLite. With --redis,
the platform id is leased from a shared pool so every instance in a fleet
mints with a distinct platform.`,
		Example: `  guid serve --addr :8080
  guid serve --db /var/lib/guid/guids.db --redis localhost:6379`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("db") {
				cfg.Store.Path = dbPath
			}
			if cmd.Flags().Changed("redis") {
				cfg.Redis.Addr = redisAddr
			}
			return a.serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite registry path (overrides store.path)")
	cmd.Flags().StringVar(&redisAddr, "redis", "", "Redis address for platform leasing (overrides redis.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context, cfg config.Config) error {
	logger := a.logger
	m := metrics.New()
	m.LeasedPlatform.Set(-1)

	var identity guid.Identity = a.host
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		lease, err := redislease.Acquire(ctx, redislease.Config{
			Client:    rdb,
			KeyPrefix: cfg.Redis.KeyPrefix,
			PoolSize:  cfg.Redis.PoolSize,
			TTL:       cfg.Redis.LeaseTTL,
			Logger:    logger,
		})
		if err != nil {
			return fmt.Errorf("lease platform id: %w", err)
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				logger.Warn("Lease release failed", zap.Error(err))
			}
		}()

		identity = lease.Identity(a.host)
		guid.SetIdentity(identity)
		m.LeasedPlatform.Set(float64(lease.ID()))

		// Minting must stop once another process may hold the same id.
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-lease.Lost():
				logger.Error("Platform lease lost, shutting down", zap.Int64("platform", lease.ID()))
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	f, err := a.factory("", identity)
	if err != nil {
		return err
	}

	var st *store.Store
	if cfg.Store.Path != "" {
		st, err = store.Open(ctx, store.Options{DSN: store.PathDSN(cfg.Store.Path), Logger: logger})
		if err != nil {
			return err
		}
		defer st.Close()
	}

	srv := server.New(server.Options{
		Config: server.Config{
			Addr:            cfg.Server.Addr,
			ReadTimeout:     cfg.Server.ReadTimeout,
			WriteTimeout:    cfg.Server.WriteTimeout,
			ShutdownTimeout: cfg.Server.ShutdownTimeout,
			MaxBatch:        cfg.Server.MaxBatch,
			MintRate:        cfg.Server.MintRate,
			MintBurst:       cfg.Server.MintBurst,
		},
		Factory: f,
		Store:   st,
		Metrics: m,
		Logger:  logger,
	})

	logger.Info("guid service starting",
		zap.String("addr", cfg.Server.Addr),
		zap.Int64("platform", identity.PlatformID()),
		zap.Stringer("layout", f.Layout()),
		zap.Bool("registry", st != nil))
	return srv.Run(ctx)
}
