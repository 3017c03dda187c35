package page

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sheacoding/browser-agent-extension/internal/host"
)

const consoleBinding = "__browserAgentConsole"

const maxConsoleEntries = 1000

type ConsoleEntry struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	URL       string `json:"url,omitempty"`
	Line      int    `json:"line,omitempty"`
}

// EnableConsoleCapture installs the page-side console interceptor and
// starts collecting entries. Enabling twice is a no-op; the interceptor
// itself is marker-guarded so repeat injections never double-report.
func (p *Page) EnableConsoleCapture(ctx context.Context) error {
	p.consoleMu.Lock()
	defer p.consoleMu.Unlock()

	if p.consoleOn {
		return nil
	}

	if err := p.hookConsole(ctx); err != nil {
		return err
	}

	p.consoleToken = p.sess.On(func(ev host.Event) {
		if ev.Method != host.EventBindingCalled {
			return
		}
		p.recordConsole(ev.Params)
	})
	p.consoleOn = true
	return nil
}

// hookConsole registers the reporting binding and injects the
// interceptor into current and future documents. Run again after a
// reattach, because bindings are per debugger session.
func (p *Page) hookConsole(ctx context.Context) error {
	if _, err := p.sess.Send(ctx, "Runtime.addBinding", map[string]any{"name": consoleBinding}); err != nil {
		return err
	}
	script := consoleInterceptorScript(consoleBinding)
	if _, err := p.sess.Send(ctx, "Page.addScriptToEvaluateOnNewDocument", map[string]any{"source": script}); err != nil {
		return err
	}
	// Hook the document that is already loaded as well.
	if _, err := p.Evaluate(ctx, script); err != nil {
		slog.Debug("console hook on current document", "target", p.TargetID(), "err", err)
	}
	return nil
}

func (p *Page) consoleCaptureOn() bool {
	p.consoleMu.Lock()
	defer p.consoleMu.Unlock()
	return p.consoleOn
}

func (p *Page) recordConsole(params json.RawMessage) {
	var bc struct {
		Name    string `json:"name"`
		Payload string `json:"payload"`
	}
	if err := json.Unmarshal(params, &bc); err != nil || bc.Name != consoleBinding {
		return
	}

	var msg struct {
		Type string `json:"type"`
		Text string `json:"text"`
		URL  string `json:"url"`
		Line int    `json:"line"`
	}
	if err := json.Unmarshal([]byte(bc.Payload), &msg); err != nil {
		return
	}

	entry := ConsoleEntry{
		Type:      msg.Type,
		Text:      msg.Text,
		Timestamp: time.Now().UnixMilli(),
		URL:       msg.URL,
		Line:      msg.Line,
	}

	p.consoleMu.Lock()
	p.console = append(p.console, entry)
	if len(p.console) > maxConsoleEntries {
		p.console = p.console[len(p.console)-maxConsoleEntries:]
	}
	p.consoleMu.Unlock()
}

// DrainConsole returns the collected entries and clears the buffer in
// one step.
func (p *Page) DrainConsole() []ConsoleEntry {
	p.consoleMu.Lock()
	out := p.console
	p.console = nil
	p.consoleMu.Unlock()
	if out == nil {
		out = []ConsoleEntry{}
	}
	return out
}
