package main

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/sheacoding/browser-agent-extension/internal/config"
	"github.com/sheacoding/browser-agent-extension/internal/overlay"
	"github.com/sheacoding/browser-agent-extension/internal/rpc"
	"github.com/sheacoding/browser-agent-extension/internal/tools"
)

// runServe hosts the bridge hub and speaks MCP on stdio. A browser
// client (extension or executor process) connects over the websocket
// to actually perform actions.
func runServe(cfg *config.RuntimeConfig) {
	b := rpc.NewBridge(cfg.CallTimeout)
	srv := rpc.NewServer(cfg, b, version)
	if err := srv.Start(); err != nil {
		slog.Error("bridge listen failed", "err", err)
		os.Exit(1)
	}
	slog.Info("bridge hub up", "addr", cfg.ListenAddr())

	go runStartupHealthCheck(cfg)

	shutdownOnce := &sync.Once{}
	doShutdown := func() {
		shutdownOnce.Do(func() {
			slog.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				slog.Error("bridge shutdown", "err", err)
			}
		})
	}
	setupSignalHandler(doShutdown, func() {})

	disp := tools.NewDispatcher(b, overlay.NewNotifier(b))
	if err := tools.ServeStdio(disp, version); err != nil {
		slog.Error("mcp server", "err", err)
	}
	doShutdown()
}

// runStandalone is serve plus an embedded executor: it launches Chrome
// and connects it to its own bridge over loopback, so one process gives
// an MCP client a working browser.
func runStandalone(cfg *config.RuntimeConfig) {
	b := rpc.NewBridge(cfg.CallTimeout)
	srv := rpc.NewServer(cfg, b, version)
	if err := srv.Start(); err != nil {
		slog.Error("bridge listen failed", "err", err)
		os.Exit(1)
	}
	slog.Info("bridge hub up", "addr", cfg.ListenAddr())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chrome, err := startExecutor(ctx, cfg)
	if err != nil {
		slog.Error("executor start failed", "err", err)
		os.Exit(1)
	}

	go runStartupHealthCheck(cfg)

	shutdownOnce := &sync.Once{}
	doShutdown := func() {
		shutdownOnce.Do(func() {
			slog.Info("shutting down")
			cancel()
			shutCtx, shutCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer shutCancel()
			if err := srv.Shutdown(shutCtx); err != nil {
				slog.Error("bridge shutdown", "err", err)
			}
			chrome.Close()
			slog.Info("chrome closed")
		})
	}
	setupSignalHandler(doShutdown, func() {
		cancel()
		chrome.Close()
	})

	disp := tools.NewDispatcher(b, overlay.NewNotifier(b))
	if err := tools.ServeStdio(disp, version); err != nil {
		slog.Error("mcp server", "err", err)
	}
	doShutdown()
}
