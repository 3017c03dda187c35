package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/sheacoding/browser-agent-extension/internal/config"
)

// handleStatusCommand queries a running bridge's /status endpoint and
// pretty-prints the response.
func handleStatusCommand(cfg *config.RuntimeConfig) {
	base := "http://" + cfg.ListenAddr()
	if env := os.Getenv("BROWSER_AGENT_URL"); env != "" {
		base = strings.TrimRight(env, "/")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(base + "/status")
	if err != nil {
		fmt.Fprintf(os.Stderr, "status failed: %v\n", err)
		fmt.Fprintln(os.Stderr, "is a browser-agent bridge running?")
		os.Exit(1)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "status read failed: %v\n", err)
		os.Exit(1)
	}
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "status returned %d: %s\n", resp.StatusCode, strings.TrimSpace(string(body)))
		os.Exit(1)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(buf.String())
}
