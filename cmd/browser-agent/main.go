package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sheacoding/browser-agent-extension/internal/config"
)

var version = "dev"

func main() {
	cfg := config.Load()
	setupLogger(cfg.LogLevel)

	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "--version", "-v", "version":
		fmt.Printf("browser-agent %s\n", version)
	case "--help", "-h", "help":
		printHelp()
	case "config":
		config.HandleConfigCommand(cfg)
	case "status":
		handleStatusCommand(cfg)
	case "run":
		runScenario(cfg)
	case "executor":
		runExecutor(cfg)
	case "standalone":
		runStandalone(cfg)
	case "", "serve":
		runServe(cfg)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		printHelp()
		os.Exit(2)
	}
}

func printHelp() {
	fmt.Printf(`browser-agent %s — browser automation for AI agents over MCP

MODES:
  browser-agent                 Serve MCP on stdio with the bridge hub (default)
  browser-agent serve           Same as the default
  browser-agent executor        Drive a local Chrome and serve bridge actions
  browser-agent standalone      Bridge hub, MCP, and executor in one process

COMMANDS:
  browser-agent run <file>      Run a YAML tool scenario and print a report
  browser-agent status          Show a running bridge's status
  browser-agent config init     Create the default config file
  browser-agent config show     Show the effective configuration
  browser-agent version         Print version

ENVIRONMENT:
  BROWSER_AGENT_BIND            Bridge bind address (default 127.0.0.1)
  BROWSER_AGENT_PORT            Bridge port (default 3026)
  CDP_URL                       Attach to a running Chrome instead of launching
  BROWSER_AGENT_HEADLESS        Run Chrome headless (default true)
  BROWSER_AGENT_LOG             Log level: debug, info, warn, error

Examples:
  browser-agent standalone
  browser-agent run scenarios/smoke.yaml
  BROWSER_AGENT_LOG=debug browser-agent executor
`, version)
}

// setupLogger sends everything to stderr; stdout belongs to the MCP
// protocol stream.
func setupLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func setupSignalHandler(shutdownFn func(), forceFn func()) {
	go func() {
		sig := make(chan os.Signal, 2)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		go shutdownFn()
		<-sig
		slog.Warn("force shutdown requested")
		forceFn()
		os.Exit(130)
	}()
}

func runStartupHealthCheck(cfg *config.RuntimeConfig) {
	time.Sleep(500 * time.Millisecond)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://localhost:%s/health", cfg.Port))
	if err != nil {
		slog.Error("startup health check failed", "err", err)
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		slog.Info("startup health check passed")
	} else {
		slog.Warn("startup health check unexpected status", "status", resp.StatusCode)
	}
}
