package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gaspardpetit/wsbridge/internal/bridge"
	"github.com/gaspardpetit/wsbridge/internal/config"
	"github.com/gaspardpetit/wsbridge/internal/logx"
	"github.com/gaspardpetit/wsbridge/internal/metrics"
	"github.com/gaspardpetit/wsbridge/internal/statusserver"
	"github.com/gaspardpetit/wsbridge/internal/tool"
)

var (
	version   = "dev"
	buildSHA  = "unknown"
	buildDate = "unknown"
)

// stopGrace bounds how long an in-flight webhook call may delay shutdown.
var stopGrace = 10 * time.Second

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	var cfg config.BridgeConfig
	cfg.BindFlags()
	flag.Parse()
	if *showVersion {
		fmt.Printf("wsbridge version=%s sha=%s date=%s\n", version, buildSHA, buildDate)
		return
	}
	if cfg.ConfigFile != "" {
		if err := cfg.LoadFile(cfg.ConfigFile); err != nil {
			logx.Log.Fatal().Err(err).Str("path", cfg.ConfigFile).Msg("load config")
		}
	}
	logx.Configure(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logx.Log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := run(ctx, cfg); err != nil {
		logx.Log.Fatal().Err(err).Msg("bridge stopped")
	}
	logx.Log.Info().Msg("bridge stopped")
}

// run blocks until the bridge stops on its own or ctx is done. Cancelling ctx
// asks the bridge to stop and only forces it after stopGrace.
func run(ctx context.Context, cfg config.BridgeConfig) error {
	desc, err := tool.New(cfg.ToolName, cfg.ToolDescription)
	if err != nil {
		return err
	}
	b, err := bridge.New(bridge.Options{
		EndpointURL:    cfg.EndpointURL,
		WebhookURL:     cfg.WebhookURL,
		Tool:           desc,
		ReconnectDelay: cfg.ReconnectDelay.Duration(),
		ReconnectMax:   cfg.ReconnectMax.Duration(),
		WebhookTimeout: cfg.WebhookTimeout.Duration(),
		ServerInfo:     mcp.Implementation{Name: desc.Name() + "-bridge", Version: version},
	})
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	metrics.SetBuildInfo(version, buildSHA, buildDate)

	runCtx, cancelRun := context.WithCancel(context.Background())
	defer cancelRun()

	if cfg.StatusAddr != "" {
		h := statusserver.New(statusserver.Options{
			Gatherer:       reg,
			Status:         func() any { return b.Status() },
			Ready:          b.Connected,
			AllowedOrigins: cfg.Origins(),
			Version:        version,
			BuildSHA:       buildSHA,
			BuildDate:      buildDate,
		})
		addr, err := statusserver.ServeUntilContext(runCtx, cfg.StatusAddr, h)
		if err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		logx.Log.Info().Str("addr", addr).Msg("status server listening")
	}

	done := make(chan error, 1)
	go func() { done <- b.Run(runCtx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}
	logx.Log.Info().Msg("shutdown requested")
	b.Stop()
	select {
	case err := <-done:
		return err
	case <-time.After(stopGrace):
		logx.Log.Warn().Dur("grace", stopGrace).Msg("forcing shutdown")
		cancelRun()
		if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}
