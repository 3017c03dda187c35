package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
)

// Caller issues bridge actions on behalf of tools.
type Caller interface {
	Call(action string, params any) (json.RawMessage, error)
}

// Status is the overlay surface the dispatcher drives around slow
// actions. A nil Status disables overlay updates.
type Status interface {
	Show(status string)
	Hide()
}

// Dispatcher routes MCP tool calls to bridge actions and converts the
// results into MCP content.
type Dispatcher struct {
	caller Caller
	status Status
	defs   []Definition
	byName map[string]Definition
}

func NewDispatcher(caller Caller, status Status) *Dispatcher {
	defs := Catalog()
	byName := make(map[string]Definition, len(defs))
	for _, def := range defs {
		byName[def.Tool.Name] = def
	}
	return &Dispatcher{caller: caller, status: status, defs: defs, byName: byName}
}

// Definitions returns the catalogue in registration order.
func (d *Dispatcher) Definitions() []Definition {
	return d.defs
}

// Handle serves every tool in the catalogue. Failures come back as MCP
// error results, never as Go errors, so the client always sees a
// structured response.
func (d *Dispatcher) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def, ok := d.byName[req.Params.Name]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown tool: %s", req.Params.Name)), nil
	}

	if def.Slow != "" && d.status != nil {
		d.status.Show(def.Slow)
		defer d.status.Hide()
	}

	var params any
	if args := req.GetArguments(); len(args) > 0 {
		params = args
	}

	raw, err := d.caller.Call(def.Action, params)
	if err != nil {
		slog.Warn("tool failed", "tool", req.Params.Name, "err", err)
		return mcp.NewToolResultError(err.Error()), nil
	}

	if def.Action == "screenshot" {
		return screenshotResult(raw), nil
	}
	return textResult(raw), nil
}

func textResult(raw json.RawMessage) *mcp.CallToolResult {
	if len(raw) == 0 {
		return mcp.NewToolResultText("{}")
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return mcp.NewToolResultText(string(raw))
	}
	return mcp.NewToolResultText(buf.String())
}

// screenshotResult renders the capture as an image part with a caption,
// falling back to plain text when the payload has no image data.
func screenshotResult(raw json.RawMessage) *mcp.CallToolResult {
	var shot struct {
		Data   string `json:"data"`
		Format string `json:"format"`
		Width  int64  `json:"width"`
		Height int64  `json:"height"`
	}
	if err := json.Unmarshal(raw, &shot); err != nil || shot.Data == "" {
		return textResult(raw)
	}
	caption := fmt.Sprintf("Screenshot %dx%d (%s)", shot.Width, shot.Height, shot.Format)
	return mcp.NewToolResultImage(caption, shot.Data, "image/"+shot.Format)
}
