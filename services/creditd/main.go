package main

import (
	"context"
	"crypto/tls"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"creditchain/app"
	nodeconfig "creditchain/config"
	"creditchain/gateway/middleware"
	"creditchain/observability/logging"
	telemetry "creditchain/observability/otel"
	"creditchain/services/creditd/config"
	"creditchain/services/creditd/server"
	"creditchain/services/indexer"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "services/creditd/config.yaml", "path to creditd config")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		slog.Error("creditd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	node, err := nodeconfig.Load(cfg.NodeConfig)
	if err != nil {
		return fmt.Errorf("load node config: %w", err)
	}

	env := strings.TrimSpace(os.Getenv("CREDIT_ENV"))
	if env == "" {
		env = node.Env
	}
	opts := []logging.Option{logging.WithLevel(node.Logging.Level)}
	if node.Logging.File != "" {
		opts = append(opts, logging.WithRotation(node.Logging.File, node.Logging.MaxSizeMB, node.Logging.MaxBackups))
	}
	logger := logging.Setup("creditd", env, opts...)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.Config{
		ServiceName: "creditd",
		Environment: env,
		ChainID:     node.ChainID,
		Endpoint:    node.Telemetry.OTLPEndpoint,
		Insecure:    node.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     true,
		Traces:      true,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, node, logger)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)

	var journal server.Journal
	if cfg.Indexer.Enabled() {
		j, err := indexer.Open(cfg.Indexer.Driver, cfg.Indexer.DSN, logger)
		if err != nil {
			return err
		}
		defer j.Close()
		a.Subscribe(j.Listener())
		group.Go(func() error { return j.Run(ctx) })
		journal = j
		logger.Info("indexer enabled", "driver", cfg.Indexer.Driver, "dsn", logging.RedactDSN(cfg.Indexer.DSN))
	}

	srv, err := server.New(a, server.Config{
		Auth: middleware.AuthConfig{
			Enabled:        true,
			HMACSecret:     cfg.Auth.HMACSecret,
			Issuer:         cfg.Auth.Issuer,
			Audience:       cfg.Auth.Audience,
			AllowAnonymous: cfg.Auth.AllowAnonymousQueries,
			ClockSkew:      cfg.Auth.ClockSkew,
		},
		RateLimits: map[string]middleware.RateLimit{
			server.PolicyExecute: rateLimit(cfg.RateLimits.Execute),
			server.PolicyQuery:   rateLimit(cfg.RateLimits.Query),
			server.PolicyStream:  rateLimit(cfg.RateLimits.Stream),
		},
		CORS:         middleware.CORSConfig{AllowedOrigins: cfg.CORS.AllowedOrigins},
		StreamBuffer: cfg.Stream.Buffer,
		Journal:      journal,
	}, logger)
	if err != nil {
		return err
	}

	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddress, err)
	}
	if !cfg.TLS.Enabled() {
		tcpAddr, _ := listener.Addr().(*net.TCPAddr)
		loopback := tcpAddr != nil && tcpAddr.IP != nil && tcpAddr.IP.IsLoopback()
		if !strings.EqualFold(env, "dev") && !loopback {
			_ = listener.Close()
			return fmt.Errorf("plaintext creditd mode is restricted to loopback listeners or dev environment")
		}
	}

	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if cfg.TLS.Enabled() {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	group.Go(func() error {
		logger.Info("creditd listening", "addr", listener.Addr().String(), "tls", cfg.TLS.Enabled())
		var err error
		if cfg.TLS.Enabled() {
			err = httpServer.ServeTLS(listener, cfg.TLS.CertPath, cfg.TLS.KeyPath)
		} else {
			err = httpServer.Serve(listener)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		return produceBlocks(ctx, a, cfg.BlockTime, logger)
	})
	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return group.Wait()
}

// produceBlocks advances and persists the block clock every interval.
func produceBlocks(ctx context.Context, a *app.App, interval time.Duration, logger *slog.Logger) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			env, err := a.CommitBlock()
			if err != nil {
				return fmt.Errorf("commit block: %w", err)
			}
			logger.Debug("block committed", "height", env.Height, "time", env.Time)
		}
	}
}

func rateLimit(l config.RateLimit) middleware.RateLimit {
	return middleware.RateLimit{RatePerSecond: l.RatePerSecond, Burst: l.Burst, Tokens: l.Tokens}
}
