package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type RuntimeConfig struct {
	Bind             string
	Port             string
	CdpURL           string
	ChromeBinary     string
	ChromeExtraFlags string
	ProfileDir       string
	StateDir         string
	Headless         bool
	LogLevel         string
	CallTimeout      time.Duration
	ActionTimeout    time.Duration
	NavigateTimeout  time.Duration
	ShutdownTimeout  time.Duration
	SweepInterval    time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func homeDir() string {
	h, _ := os.UserHomeDir()
	return h
}

func (c *RuntimeConfig) ListenAddr() string {
	return c.Bind + ":" + c.Port
}

// BridgeURL is the websocket endpoint executor clients dial.
func (c *RuntimeConfig) BridgeURL() string {
	return "ws://" + c.ListenAddr() + "/ws"
}

type FileConfig struct {
	Port        string `json:"port"`
	CdpURL      string `json:"cdpUrl,omitempty"`
	StateDir    string `json:"stateDir"`
	ProfileDir  string `json:"profileDir"`
	Headless    *bool  `json:"headless,omitempty"`
	LogLevel    string `json:"logLevel,omitempty"`
	CallSec     int    `json:"callSec,omitempty"`
	TimeoutSec  int    `json:"timeoutSec,omitempty"`
	NavigateSec int    `json:"navigateSec,omitempty"`
}

func Load() *RuntimeConfig {
	cfg := &RuntimeConfig{
		Bind:             envOr("BROWSER_AGENT_BIND", "127.0.0.1"),
		Port:             envOr("BROWSER_AGENT_PORT", "3026"),
		CdpURL:           os.Getenv("CDP_URL"),
		ChromeBinary:     os.Getenv("CHROME_BINARY"),
		ChromeExtraFlags: os.Getenv("CHROME_FLAGS"),
		ProfileDir:       envOr("BROWSER_AGENT_PROFILE", filepath.Join(homeDir(), ".browser-agent", "chrome-profile")),
		StateDir:         envOr("BROWSER_AGENT_STATE_DIR", filepath.Join(homeDir(), ".browser-agent")),
		Headless:         envBoolOr("BROWSER_AGENT_HEADLESS", true),
		LogLevel:         envOr("BROWSER_AGENT_LOG", "info"),
		CallTimeout:      time.Duration(envIntOr("BROWSER_AGENT_CALL_TIMEOUT", 30)) * time.Second,
		ActionTimeout:    time.Duration(envIntOr("BROWSER_AGENT_TIMEOUT", 15)) * time.Second,
		NavigateTimeout:  time.Duration(envIntOr("BROWSER_AGENT_NAV_TIMEOUT", 30)) * time.Second,
		ShutdownTimeout:  10 * time.Second,
		SweepInterval:    60 * time.Second,
	}

	configPath := envOr("BROWSER_AGENT_CONFIG", filepath.Join(homeDir(), ".browser-agent", "config.json"))

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}

	var fc FileConfig
	if err := json.Unmarshal(data, &fc); err != nil {
		return cfg
	}

	if fc.Port != "" && os.Getenv("BROWSER_AGENT_PORT") == "" {
		cfg.Port = fc.Port
	}
	if fc.CdpURL != "" && os.Getenv("CDP_URL") == "" {
		cfg.CdpURL = fc.CdpURL
	}
	if fc.StateDir != "" && os.Getenv("BROWSER_AGENT_STATE_DIR") == "" {
		cfg.StateDir = fc.StateDir
	}
	if fc.ProfileDir != "" && os.Getenv("BROWSER_AGENT_PROFILE") == "" {
		cfg.ProfileDir = fc.ProfileDir
	}
	if fc.Headless != nil && os.Getenv("BROWSER_AGENT_HEADLESS") == "" {
		cfg.Headless = *fc.Headless
	}
	if fc.LogLevel != "" && os.Getenv("BROWSER_AGENT_LOG") == "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.CallSec > 0 && os.Getenv("BROWSER_AGENT_CALL_TIMEOUT") == "" {
		cfg.CallTimeout = time.Duration(fc.CallSec) * time.Second
	}
	if fc.TimeoutSec > 0 && os.Getenv("BROWSER_AGENT_TIMEOUT") == "" {
		cfg.ActionTimeout = time.Duration(fc.TimeoutSec) * time.Second
	}
	if fc.NavigateSec > 0 && os.Getenv("BROWSER_AGENT_NAV_TIMEOUT") == "" {
		cfg.NavigateTimeout = time.Duration(fc.NavigateSec) * time.Second
	}

	return cfg
}

func DefaultFileConfig() FileConfig {
	h := true
	return FileConfig{
		Port:        "3026",
		StateDir:    filepath.Join(homeDir(), ".browser-agent"),
		ProfileDir:  filepath.Join(homeDir(), ".browser-agent", "chrome-profile"),
		Headless:    &h,
		LogLevel:    "info",
		CallSec:     30,
		TimeoutSec:  15,
		NavigateSec: 30,
	}
}

func HandleConfigCommand(cfg *RuntimeConfig) {
	if len(os.Args) < 3 {
		fmt.Println("Usage: browser-agent config <command>")
		fmt.Println("Commands:")
		fmt.Println("  init    - Create default config file")
		fmt.Println("  show    - Show current configuration")
		return
	}

	switch os.Args[2] {
	case "init":
		configPath := filepath.Join(homeDir(), ".browser-agent", "config.json")

		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Config file already exists at %s\n", configPath)
			fmt.Print("Overwrite? (y/N): ")
			var response string
			_, _ = fmt.Scanln(&response)
			if response != "y" && response != "Y" {
				return
			}
		}

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			fmt.Printf("Error creating directory: %v\n", err)
			os.Exit(1)
		}

		fc := DefaultFileConfig()
		data, _ := json.MarshalIndent(fc, "", "  ")
		if err := os.WriteFile(configPath, data, 0644); err != nil {
			fmt.Printf("Error writing config: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("Config file created at %s\n", configPath)

	case "show":
		fmt.Println("Current configuration:")
		fmt.Printf("  Bind:       %s\n", cfg.Bind)
		fmt.Printf("  Port:       %s\n", cfg.Port)
		fmt.Printf("  CDP URL:    %s\n", cfg.CdpURL)
		fmt.Printf("  State Dir:  %s\n", cfg.StateDir)
		fmt.Printf("  Profile:    %s\n", cfg.ProfileDir)
		fmt.Printf("  Headless:   %v\n", cfg.Headless)
		fmt.Printf("  Log Level:  %s\n", cfg.LogLevel)
		fmt.Printf("  Timeouts:   call=%v action=%v navigate=%v\n", cfg.CallTimeout, cfg.ActionTimeout, cfg.NavigateTimeout)

	default:
		fmt.Printf("Unknown command: %s\n", os.Args[2])
		os.Exit(1)
	}
}
