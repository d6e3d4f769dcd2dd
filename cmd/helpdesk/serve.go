// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Helpdesk Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helpdesk/helpdesk/internal/auth"
	"github.com/helpdesk/helpdesk/internal/config"
	"github.com/helpdesk/helpdesk/internal/logging"
	"github.com/helpdesk/helpdesk/internal/observability"
	"github.com/helpdesk/helpdesk/internal/web"
)

const (
	shutdownTimeout  = 5 * time.Second
	readinessTimeout = 2 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the helpdesk HTTP API with /login, /logout and /create_account,
plus the metrics and health endpoints.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps starts the service with injectable dependencies.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	if deps == nil {
		deps = &ServeDeps{}
	}
	if deps.AccountStoreFactory == nil {
		deps.AccountStoreFactory = openAccountStore
	}
	if deps.SessionStoreFactory == nil {
		deps.SessionStoreFactory = openSessionStore
	}
	if deps.WebServerFactory == nil {
		deps.WebServerFactory = func(addr string, keyring web.Keyring, guard *web.Guard, cookies *web.CookieCodec, logger *slog.Logger) (WebServer, error) {
			return web.NewServer(addr, keyring, guard, cookies, logger)
		}
	}
	if deps.ObservabilityServerFactory == nil {
		deps.ObservabilityServerFactory = func(addr string, ready observability.ReadinessChecker, regs ...observability.Registration) ObservabilityServer {
			return observability.NewServer(addr, ready, regs...)
		}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := logging.SetDefault("helpdesk", version, cfg.LogFormat)
	observability.SetBuildInfo(version)

	logger.Info("starting helpdesk",
		"http_addr", cfg.HTTP.Addr,
		"session_store", cfg.Session.Store,
		"accounts_store", cfg.Accounts.Store,
	)

	accounts, err := deps.AccountStoreFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open account store: %w", err)
	}
	defer accounts.Close()

	sessions, err := deps.SessionStoreFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer func() {
		if closeErr := sessions.Close(); closeErr != nil {
			logger.Warn("error closing session store", "error", closeErr)
		}
	}()

	hasher, err := auth.NewArgon2idHasher()
	if err != nil {
		return fmt.Errorf("failed to create password hasher: %w", err)
	}
	keyring, err := auth.NewKeyring(accounts, hasher, sessions,
		auth.WithLogger(logger),
		auth.WithMaxConcurrentHashes(cfg.Auth.MaxConcurrentHashes),
	)
	if err != nil {
		return fmt.Errorf("failed to create keyring: %w", err)
	}
	resolver, err := auth.NewResolver(keyring, logger)
	if err != nil {
		return fmt.Errorf("failed to create resolver: %w", err)
	}

	hashKey, blockKey, err := cfg.CookieKeys()
	if err != nil {
		return fmt.Errorf("invalid cookie keys: %w", err)
	}
	if hashKey == nil {
		logger.Warn("no cookie.hash_key configured, generated a random key; sessions will not survive a restart")
	}
	cookies, err := web.NewCookieCodec(cfg.Cookie.Name, hashKey, blockKey, cfg.Cookie.Secure)
	if err != nil {
		return fmt.Errorf("failed to create cookie codec: %w", err)
	}
	guard, err := web.NewGuard(resolver, cookies, cfg.Auth.ProtectedPaths, logger)
	if err != nil {
		return fmt.Errorf("failed to create guard: %w", err)
	}

	webServer, err := deps.WebServerFactory(cfg.HTTP.Addr, keyring, guard, cookies, logger)
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	webErrChan, err := webServer.Start()
	if err != nil {
		return fmt.Errorf("failed to start web server: %w", err)
	}
	go monitorServerErrors(ctx, cancel, webErrChan, "web")

	var obsServer ObservabilityServer
	if cfg.HTTP.MetricsAddr != "" {
		ready := observability.PingCheck(readinessTimeout, map[string]observability.Pinger{
			"accounts": accounts,
			"sessions": sessions,
		})
		obsServer = deps.ObservabilityServerFactory(cfg.HTTP.MetricsAddr, ready, auth.RegisterMetrics, web.RegisterMetrics)
		obsErrChan, err := obsServer.Start()
		if err != nil {
			stopServer(webServer, "web", logger)
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		go monitorServerErrors(ctx, cancel, obsErrChan, "observability")
		logger.Info("observability server started", "addr", obsServer.Addr())
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	cmd.Println("Helpdesk started")
	logger.Info("helpdesk ready", "http_addr", webServer.Addr())

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	logger.Info("shutting down...")
	stopServer(webServer, "web", logger)
	if obsServer != nil {
		stopServer(obsServer, "observability", logger)
	}
	logger.Info("shutdown complete")
	return nil
}

type stopper interface {
	Stop(ctx context.Context) error
}

func stopServer(s stopper, name string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		logger.Warn("error stopping server", "server", name, "error", err)
	}
}

// monitorServerErrors cancels the serve context when a server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			slog.Error("server failed", "server", name, "error", err)
			cancel()
		}
	case <-ctx.Done():
	}
}
