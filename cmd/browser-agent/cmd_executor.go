package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/sheacoding/browser-agent-extension/internal/config"
	"github.com/sheacoding/browser-agent-extension/internal/executor"
	"github.com/sheacoding/browser-agent-extension/internal/host"
	"github.com/sheacoding/browser-agent-extension/internal/tabs"
)

// startExecutor launches or attaches Chrome and starts serving bridge
// actions in the background. The returned Chrome must be closed on
// shutdown.
func startExecutor(ctx context.Context, cfg *config.RuntimeConfig) (*host.Chrome, error) {
	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	chrome := host.NewChrome(cfg)
	if err := chrome.EnsureBrowser(ctx); err != nil {
		return nil, err
	}

	reg := tabs.NewRegistry(chrome)
	go reg.Sweep(ctx, cfg.SweepInterval)

	rt := executor.NewRuntime(cfg, reg)
	client := executor.NewClient(cfg, rt)
	go func() {
		_ = client.Run(ctx)
	}()

	slog.Info("executor serving", "bridge", cfg.BridgeURL(), "headless", cfg.Headless)
	return chrome, nil
}

// runExecutor drives a local Chrome against a bridge hub running in
// another process, reconnecting until stopped.
func runExecutor(cfg *config.RuntimeConfig) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chrome, err := startExecutor(ctx, cfg)
	if err != nil {
		slog.Error("executor start failed", "err", err)
		os.Exit(1)
	}

	shutdownOnce := &sync.Once{}
	doShutdown := func() {
		shutdownOnce.Do(func() {
			slog.Info("shutting down executor")
			cancel()
			chrome.Close()
			slog.Info("chrome closed")
		})
	}
	setupSignalHandler(doShutdown, func() {
		chrome.Close()
	})

	<-ctx.Done()
	doShutdown()
}
