// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Emberveil Contributors

package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/emberveil/emberveil/internal/auth"
	authpg "github.com/emberveil/emberveil/internal/auth/postgres"
	"github.com/emberveil/emberveil/internal/config"
	"github.com/emberveil/emberveil/internal/game"
	gamepg "github.com/emberveil/emberveil/internal/game/postgres"
	"github.com/emberveil/emberveil/internal/logging"
	"github.com/emberveil/emberveil/internal/observability"
	"github.com/emberveil/emberveil/internal/server"
	"github.com/emberveil/emberveil/internal/store"
	"github.com/emberveil/emberveil/internal/xdg"
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the world server",
		Long: `Start the authoritative world server: applies pending database
migrations, binds the UDP socket, and serves until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configFile == "" {
				configFile = xdg.DefaultConfigFile()
			}
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "config file path")
	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	logging.SetDefault("emberveil", version, cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting world server",
		"addr", cfg.Server.Addr,
		"log_format", cfg.Log.Format,
	)

	pool, err := store.Connect(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("connected to database")

	// Schema must be current before the first datagram is answered.
	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close() //nolint:errcheck // migration error takes precedence
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}
	slog.Info("database migrations applied")

	characterRepo := gamepg.NewCharacterRepository(pool)
	characterSvc := game.NewCharacterService(characterRepo)

	authSvc := auth.NewService(
		authpg.NewAccountRepository(pool),
		characterSvc,
		auth.NewArgon2idHasher(),
		auth.NewTokenIssuer([]byte(cfg.Auth.TokenSecret)),
		auth.NewSessionManager(),
		cfg.Auth.TokenTTL,
	)

	registry := server.NewRegistry()

	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.Observability.Enabled {
		obsServer = observability.NewServer(cfg.Observability.Addr, func() bool {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx) == nil
		})
		metrics = obsServer.Metrics()

		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := obsServer.Stop(shutdownCtx); err != nil {
				slog.Warn("error stopping observability server", "error", err)
			}
		}()

		go func() {
			if err, ok := <-obsErrCh; ok && err != nil {
				slog.Error("observability server failed, shutting down", "error", err)
				stop()
			}
		}()
	}

	dispatcher := server.NewDispatcher(authSvc, characterSvc, registry, metrics, slog.Default())
	srv := server.New(server.Config{
		Addr:          cfg.Server.Addr,
		ReadTimeout:   cfg.Server.ReadTimeout,
		SweepInterval: cfg.Server.SweepInterval,
		FlushInterval: cfg.Server.FlushInterval,
		SaveThreshold: cfg.Server.SaveThreshold,
	}, dispatcher, registry, authSvc, characterSvc, metrics, slog.Default())

	// Blocks until a signal arrives; dirty state is flushed on the way out.
	if err := srv.Run(ctx); err != nil {
		return err
	}

	slog.Info("shutdown complete")
	return nil
}
