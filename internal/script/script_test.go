package script

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
)

type scriptedHandler struct {
	calls []mcp.CallToolRequest
	fail  map[string]string
}

func (h *scriptedHandler) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	h.calls = append(h.calls, req)
	if msg, ok := h.fail[req.Params.Name]; ok {
		return mcp.NewToolResultError(msg), nil
	}
	return mcp.NewToolResultText(`{"ok":true}`), nil
}

func writeScenario(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestLoadScenario(t *testing.T) {
	path := writeScenario(t, "smoke.yaml", `
name: search flow
steps:
  - tool: navigate
    args:
      url: https://example.com
    sleepMs: 250
  - tool: get_page_info
`)

	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sc.Name != "search flow" {
		t.Errorf("Name = %q, want %q", sc.Name, "search flow")
	}
	if len(sc.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(sc.Steps))
	}
	if sc.Steps[0].Tool != "navigate" {
		t.Errorf("step 1 tool = %q", sc.Steps[0].Tool)
	}
	if sc.Steps[0].Args["url"] != "https://example.com" {
		t.Errorf("step 1 url = %v", sc.Steps[0].Args["url"])
	}
	if sc.Steps[0].SleepMs != 250 {
		t.Errorf("step 1 sleepMs = %d, want 250", sc.Steps[0].SleepMs)
	}
	if !sc.stopOnError() {
		t.Error("stopOnError should default to true")
	}
}

func TestLoadScenarioNameDefaultsToFile(t *testing.T) {
	path := writeScenario(t, "checkout.yaml", `
steps:
  - tool: reload
`)

	sc, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if sc.Name != "checkout" {
		t.Errorf("Name = %q, want %q", sc.Name, "checkout")
	}
}

func TestLoadScenarioErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"no steps", "name: empty\n", "has no steps"},
		{"step without tool", "steps:\n  - args:\n      url: x\n", "step 1 has no tool"},
		{"bad yaml", "steps: [{{", "parse scenario"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, "bad.yaml", tt.content)
			if _, err := Load(path); err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load of missing file returned nil error")
	}
}

func TestRunnerStopsOnFirstFailure(t *testing.T) {
	h := &scriptedHandler{fail: map[string]string{"click": "element not found: #buy"}}
	r := NewRunner(h)

	sc := &Scenario{
		Name: "checkout",
		Steps: []Step{
			{Tool: "navigate", Args: map[string]any{"url": "https://shop.test"}},
			{Tool: "click", Args: map[string]any{"selector": "#buy"}},
			{Tool: "screenshot"},
		},
	}

	rep := r.Run(context.Background(), sc)
	if rep.Passed != 1 || rep.Failed != 1 || rep.Skipped != 1 {
		t.Errorf("passed/failed/skipped = %d/%d/%d, want 1/1/1", rep.Passed, rep.Failed, rep.Skipped)
	}
	if len(rep.Steps) != 2 {
		t.Fatalf("recorded steps = %d, want 2", len(rep.Steps))
	}
	if rep.Steps[1].Error != "element not found: #buy" {
		t.Errorf("step 2 error = %q", rep.Steps[1].Error)
	}
	if rep.OK() {
		t.Error("report OK despite a failed step")
	}
}

func TestRunnerContinuesWhenConfigured(t *testing.T) {
	h := &scriptedHandler{fail: map[string]string{"click": "boom"}}
	r := NewRunner(h)

	keepGoing := false
	sc := &Scenario{
		Name:        "tolerant",
		StopOnError: &keepGoing,
		Steps: []Step{
			{Tool: "navigate", Args: map[string]any{"url": "https://example.com"}},
			{Tool: "click"},
			{Tool: "screenshot"},
		},
	}

	rep := r.Run(context.Background(), sc)
	if rep.Passed != 2 || rep.Failed != 1 || rep.Skipped != 0 {
		t.Errorf("passed/failed/skipped = %d/%d/%d, want 2/1/0", rep.Passed, rep.Failed, rep.Skipped)
	}
	if len(h.calls) != 3 {
		t.Errorf("handler calls = %d, want 3", len(h.calls))
	}
}

func TestRunnerPassesToolAndArgs(t *testing.T) {
	h := &scriptedHandler{}
	r := NewRunner(h)

	sc := &Scenario{
		Name: "args",
		Steps: []Step{
			{Tool: "type", Args: map[string]any{"text": "hello", "selector": "#q"}},
		},
	}

	rep := r.Run(context.Background(), sc)
	if rep.Failed != 0 {
		t.Fatalf("failed = %d", rep.Failed)
	}
	if len(h.calls) != 1 {
		t.Fatalf("handler calls = %d, want 1", len(h.calls))
	}
	req := h.calls[0]
	if req.Params.Name != "type" {
		t.Errorf("tool = %q, want %q", req.Params.Name, "type")
	}
	args := req.GetArguments()
	if args["text"] != "hello" || args["selector"] != "#q" {
		t.Errorf("args = %v", args)
	}
}

func TestRunnerSleepsAfterStep(t *testing.T) {
	h := &scriptedHandler{}
	r := NewRunner(h)

	sc := &Scenario{
		Name: "paced",
		Steps: []Step{
			{Tool: "navigate", Args: map[string]any{"url": "https://example.com"}, SleepMs: 30},
			{Tool: "get_page_info"},
		},
	}

	start := time.Now()
	rep := r.Run(context.Background(), sc)
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("run took %v, want at least 30ms", elapsed)
	}
	if rep.Passed != 2 {
		t.Errorf("passed = %d, want 2", rep.Passed)
	}
}

func TestRunnerCancelledContextSkipsSteps(t *testing.T) {
	h := &scriptedHandler{}
	r := NewRunner(h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sc := &Scenario{
		Name:  "cancelled",
		Steps: []Step{{Tool: "navigate"}, {Tool: "screenshot"}},
	}

	rep := r.Run(ctx, sc)
	if rep.Skipped != 2 || len(rep.Steps) != 0 {
		t.Errorf("skipped = %d, recorded = %d, want 2 and 0", rep.Skipped, len(rep.Steps))
	}
}

func TestReportWriteYAML(t *testing.T) {
	rep := &Report{
		RunID:    "run_00c0ffee",
		Scenario: "smoke",
		Passed:   2,
		Failed:   0,
		Ms:       120,
		Steps: []StepResult{
			{Tool: "navigate", OK: true, Ms: 100},
			{Tool: "get_page_info", OK: true, Ms: 20},
		},
	}

	var sb strings.Builder
	if err := rep.WriteYAML(&sb); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	out := sb.String()
	for _, want := range []string{"runId: run_00c0ffee", "scenario: smoke", "passed: 2", "tool: navigate"} {
		if !strings.Contains(out, want) {
			t.Errorf("yaml missing %q:\n%s", want, out)
		}
	}
}

func TestTruncateLongOutput(t *testing.T) {
	long := strings.Repeat("x", maxOutputLen+50)
	got := truncate(long)
	if len(got) != maxOutputLen+3 {
		t.Errorf("truncated length = %d, want %d", len(got), maxOutputLen+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated output does not end with ellipsis")
	}
}
