// Package script runs YAML-described tool scenarios through the MCP
// dispatcher, for smoke checks and scripted browser sessions.
package script

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"gopkg.in/yaml.v3"

	"github.com/sheacoding/browser-agent-extension/internal/idutil"
)

// Reports keep step output readable; anything longer gets cut.
const maxOutputLen = 2000

type Step struct {
	Tool    string         `yaml:"tool"`
	Args    map[string]any `yaml:"args,omitempty"`
	SleepMs int            `yaml:"sleepMs,omitempty"`
}

type Scenario struct {
	Name        string `yaml:"name,omitempty"`
	StopOnError *bool  `yaml:"stopOnError,omitempty"`
	Steps       []Step `yaml:"steps"`
}

// Load reads a scenario file. A missing name falls back to the file's
// base name.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %s has no steps", path)
	}
	for i, step := range sc.Steps {
		if step.Tool == "" {
			return nil, fmt.Errorf("scenario %s: step %d has no tool", path, i+1)
		}
	}
	if sc.Name == "" {
		base := filepath.Base(path)
		sc.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return &sc, nil
}

func (s *Scenario) stopOnError() bool {
	if s.StopOnError == nil {
		return true
	}
	return *s.StopOnError
}

// Handler serves tool calls; the MCP dispatcher satisfies it.
type Handler interface {
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

type StepResult struct {
	Tool   string `yaml:"tool"`
	OK     bool   `yaml:"ok"`
	Ms     int64  `yaml:"ms"`
	Output string `yaml:"output,omitempty"`
	Error  string `yaml:"error,omitempty"`
}

type Report struct {
	RunID    string       `yaml:"runId"`
	Scenario string       `yaml:"scenario"`
	Passed   int          `yaml:"passed"`
	Failed   int          `yaml:"failed"`
	Skipped  int          `yaml:"skipped,omitempty"`
	Ms       int64        `yaml:"ms"`
	Steps    []StepResult `yaml:"steps"`
}

func (r *Report) OK() bool {
	return r.Failed == 0
}

// WriteYAML renders the report for the run command's stdout.
func (r *Report) WriteYAML(w io.Writer) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = w.Write(data)
	return err
}

type Runner struct {
	handler Handler
	ids     *idutil.Manager
}

func NewRunner(h Handler) *Runner {
	return &Runner{handler: h, ids: idutil.NewManager()}
}

// Run executes the scenario's steps in order. A failing step stops the
// run unless the scenario sets stopOnError: false; remaining steps are
// counted as skipped either way.
func (r *Runner) Run(ctx context.Context, sc *Scenario) *Report {
	rep := &Report{
		RunID:    r.ids.RunID(sc.Name),
		Scenario: sc.Name,
	}
	start := time.Now()
	slog.Info("scenario started", "runId", rep.RunID, "scenario", sc.Name, "steps", len(sc.Steps))

	for i, step := range sc.Steps {
		if ctx.Err() != nil {
			rep.Skipped = len(sc.Steps) - i
			break
		}

		res := r.runStep(ctx, step)
		rep.Steps = append(rep.Steps, res)
		if res.OK {
			rep.Passed++
		} else {
			rep.Failed++
			if sc.stopOnError() {
				rep.Skipped = len(sc.Steps) - i - 1
				break
			}
		}

		if step.SleepMs > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(time.Duration(step.SleepMs) * time.Millisecond):
			}
		}
	}

	rep.Ms = time.Since(start).Milliseconds()
	slog.Info("scenario finished", "runId", rep.RunID, "passed", rep.Passed, "failed", rep.Failed, "skipped", rep.Skipped)
	return rep
}

func (r *Runner) runStep(ctx context.Context, step Step) StepResult {
	req := mcp.CallToolRequest{}
	req.Params.Name = step.Tool
	if len(step.Args) > 0 {
		req.Params.Arguments = step.Args
	}

	start := time.Now()
	res, err := r.handler.Handle(ctx, req)
	out := StepResult{Tool: step.Tool, Ms: time.Since(start).Milliseconds()}

	switch {
	case err != nil:
		out.Error = err.Error()
	case res == nil:
		out.Error = "no result"
	case res.IsError:
		out.Error = firstText(res)
	default:
		out.OK = true
		out.Output = truncate(firstText(res))
	}

	if out.Error != "" {
		slog.Warn("step failed", "tool", step.Tool, "err", out.Error)
	}
	return out
}

func firstText(res *mcp.CallToolResult) string {
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

func truncate(s string) string {
	if len(s) <= maxOutputLen {
		return s
	}
	return s[:maxOutputLen] + "..."
}
