package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/sheacoding/browser-agent-extension/internal/config"
	"github.com/sheacoding/browser-agent-extension/internal/overlay"
	"github.com/sheacoding/browser-agent-extension/internal/rpc"
	"github.com/sheacoding/browser-agent-extension/internal/script"
	"github.com/sheacoding/browser-agent-extension/internal/tools"
)

const peerWaitTimeout = 15 * time.Second

// runScenario spins up a self-contained bridge plus executor, runs the
// scenario through the tool dispatcher, prints a YAML report to stdout,
// and exits non-zero when a step failed.
func runScenario(cfg *config.RuntimeConfig) {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: browser-agent run <scenario.yaml>")
		os.Exit(2)
	}

	sc, err := script.Load(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "run: %v\n", err)
		os.Exit(1)
	}

	b := rpc.NewBridge(cfg.CallTimeout)
	srv := rpc.NewServer(cfg, b, version)
	if err := srv.Start(); err != nil {
		slog.Error("bridge listen failed", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chrome, err := startExecutor(ctx, cfg)
	if err != nil {
		slog.Error("executor start failed", "err", err)
		os.Exit(1)
	}

	setupSignalHandler(cancel, func() {
		chrome.Close()
	})

	if err := waitForPeer(b, peerWaitTimeout); err != nil {
		slog.Error("bridge", "err", err)
		chrome.Close()
		os.Exit(1)
	}

	rep := script.NewRunner(tools.NewDispatcher(b, overlay.NewNotifier(b))).Run(ctx, sc)

	cancel()
	shutCtx, shutCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Error("bridge shutdown", "err", err)
	}
	chrome.Close()

	if err := rep.WriteYAML(os.Stdout); err != nil {
		slog.Error("write report", "err", err)
	}
	if !rep.OK() {
		os.Exit(1)
	}
}

// waitForPeer polls until the executor's websocket shows up on the
// bridge, so the first step does not race Chrome's startup.
func waitForPeer(b *rpc.Bridge, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if b.Connected() {
			return nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return fmt.Errorf("no browser client connected after %s", timeout)
}
