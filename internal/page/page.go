// Package page exposes the per-tab operation suite: navigation, input,
// scripting, capture, and console collection over one debugger session.
package page

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sheacoding/browser-agent-extension/internal/errdefs"
	"github.com/sheacoding/browser-agent-extension/internal/host"
	"github.com/sheacoding/browser-agent-extension/internal/session"
)

const defaultNavTimeout = 30 * time.Second

type Page struct {
	sess *session.Session

	mu      sync.Mutex
	ready   bool
	navWait bool

	consoleMu    sync.Mutex
	consoleOn    bool
	consoleToken string
	console      []ConsoleEntry
}

func New(h host.Host, targetID string) *Page {
	return &Page{sess: session.New(h, targetID)}
}

func (p *Page) Session() *session.Session {
	return p.sess
}

func (p *Page) TargetID() string {
	return p.sess.TargetID()
}

// Init attaches the debugger and enables the Page and Runtime domains.
// Domain enables are per debugger session, so a reattach after a forced
// detach runs them again; an already-attached Init is a no-op.
func (p *Page) Init(ctx context.Context) error {
	attachedBefore := p.sess.State() == session.StateAttached
	if err := p.sess.Attach(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ready && attachedBefore {
		return nil
	}
	if _, err := p.sess.Send(ctx, "Page.enable", nil); err != nil {
		return err
	}
	if _, err := p.sess.Send(ctx, "Runtime.enable", nil); err != nil {
		return err
	}
	p.ready = true

	if p.consoleCaptureOn() {
		if err := p.hookConsole(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the debugger session and the event subscriptions held
// for this page. Best effort; used when the tab is gone.
func (p *Page) Close(ctx context.Context) {
	p.consoleMu.Lock()
	if p.consoleToken != "" {
		p.sess.Off(p.consoleToken)
		p.consoleToken = ""
	}
	p.consoleOn = false
	p.consoleMu.Unlock()

	p.sess.Close(ctx)
}

// Navigate issues Page.navigate and returns once the browser acknowledges
// the command. It does not wait for the load; pair with
// WaitForNavigation.
func (p *Page) Navigate(ctx context.Context, url string) error {
	res, err := p.sess.Send(ctx, "Page.navigate", map[string]any{"url": url})
	if err != nil {
		return err
	}
	var nav struct {
		ErrorText string `json:"errorText"`
	}
	if err := json.Unmarshal(res, &nav); err == nil && nav.ErrorText != "" {
		return &errdefs.ProtocolError{Method: "Page.navigate", Message: nav.ErrorText}
	}
	return nil
}

// WaitForNavigation blocks until the next load event or the timeout.
// Only one wait may be outstanding per page; the event subscription is
// released on every exit path.
func (p *Page) WaitForNavigation(ctx context.Context, timeout time.Duration) error {
	p.mu.Lock()
	if p.navWait {
		p.mu.Unlock()
		return fmt.Errorf("navigation wait already in progress")
	}
	p.navWait = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.navWait = false
		p.mu.Unlock()
	}()

	if timeout <= 0 {
		timeout = defaultNavTimeout
	}

	done := make(chan struct{}, 1)
	token := p.sess.On(func(ev host.Event) {
		if ev.Method != host.EventLoadFired {
			return
		}
		select {
		case done <- struct{}{}:
		default:
		}
	})
	defer p.sess.Off(token)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		return &errdefs.TimeoutError{Message: "Navigation timeout"}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Evaluate runs an expression in the page and returns its JSON value.
// Thrown exceptions come back as EvaluationError.
func (p *Page) Evaluate(ctx context.Context, expression string) (json.RawMessage, error) {
	res, err := p.sess.Send(ctx, "Runtime.evaluate", map[string]any{
		"expression":    expression,
		"returnByValue": true,
		"awaitPromise":  true,
	})
	if err != nil {
		return nil, err
	}

	var out struct {
		Result struct {
			Type  string          `json:"type"`
			Value json.RawMessage `json:"value"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text      string `json:"text"`
			Exception *struct {
				Description string `json:"description"`
			} `json:"exception"`
		} `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(res, &out); err != nil {
		return nil, fmt.Errorf("parse evaluate result: %w", err)
	}
	if out.ExceptionDetails != nil {
		text := out.ExceptionDetails.Text
		if out.ExceptionDetails.Exception != nil && out.ExceptionDetails.Exception.Description != "" {
			text = out.ExceptionDetails.Exception.Description
		}
		return nil, &errdefs.EvaluationError{Text: text}
	}
	return out.Result.Value, nil
}

type PageInfo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

func (p *Page) Info(ctx context.Context) (*PageInfo, error) {
	raw, err := p.Evaluate(ctx, pageInfoScript)
	if err != nil {
		return nil, err
	}
	var info PageInfo
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("parse page info: %w", err)
	}
	return &info, nil
}

type ExtractedNode struct {
	Tag   string            `json:"tag"`
	Text  string            `json:"text"`
	Attrs map[string]string `json:"attrs,omitempty"`
}

// Extract returns tag, text, and attributes for up to 100 matches of the
// selector. No matches yields an empty list, not an error.
func (p *Page) Extract(ctx context.Context, selector string) ([]ExtractedNode, error) {
	raw, err := p.Evaluate(ctx, extractScript(selector))
	if err != nil {
		return nil, err
	}
	var nodes []ExtractedNode
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("parse extracted nodes: %w", err)
	}
	return nodes, nil
}

// Back re-enters the previous history entry and returns once the
// navigation is issued.
func (p *Page) Back(ctx context.Context) error {
	return p.historyStep(ctx, -1)
}

// Forward re-enters the next history entry.
func (p *Page) Forward(ctx context.Context) error {
	return p.historyStep(ctx, 1)
}

func (p *Page) historyStep(ctx context.Context, delta int) error {
	res, err := p.sess.Send(ctx, "Page.getNavigationHistory", nil)
	if err != nil {
		return err
	}
	var history struct {
		CurrentIndex int `json:"currentIndex"`
		Entries      []struct {
			ID  int64  `json:"id"`
			URL string `json:"url"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(res, &history); err != nil {
		return fmt.Errorf("parse navigation history: %w", err)
	}

	idx := history.CurrentIndex + delta
	if idx < 0 || idx >= len(history.Entries) {
		if delta < 0 {
			return fmt.Errorf("no history entry to go back to")
		}
		return fmt.Errorf("no history entry to go forward to")
	}

	_, err = p.sess.Send(ctx, "Page.navigateToHistoryEntry", map[string]any{
		"entryId": history.Entries[idx].ID,
	})
	return err
}

func (p *Page) Reload(ctx context.Context) error {
	_, err := p.sess.Send(ctx, "Page.reload", nil)
	return err
}

type Screenshot struct {
	Data   string `json:"data"`
	Format string `json:"format"`
	Width  int64  `json:"width"`
	Height int64  `json:"height"`
}

// CaptureScreenshot grabs the viewport, or the whole document when
// fullPage is set, and reports the captured dimensions alongside the
// base64 image data.
func (p *Page) CaptureScreenshot(ctx context.Context, format string, quality int, fullPage bool) (*Screenshot, error) {
	if format != "jpeg" {
		format = "png"
	}

	m, err := p.layoutMetrics(ctx)
	if err != nil {
		return nil, err
	}

	params := map[string]any{"format": format}
	if format == "jpeg" {
		if quality <= 0 || quality > 100 {
			quality = 80
		}
		params["quality"] = quality
	}

	width, height := m.viewportWidth, m.viewportHeight
	if fullPage {
		params["captureBeyondViewport"] = true
		params["clip"] = map[string]any{
			"x": 0, "y": 0,
			"width":  m.contentWidth,
			"height": m.contentHeight,
			"scale":  1,
		}
		width, height = m.contentWidth, m.contentHeight
	}

	res, err := p.sess.Send(ctx, "Page.captureScreenshot", params)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(res, &out); err != nil {
		return nil, fmt.Errorf("parse screenshot result: %w", err)
	}
	return &Screenshot{Data: out.Data, Format: format, Width: int64(width), Height: int64(height)}, nil
}

type metrics struct {
	viewportWidth  float64
	viewportHeight float64
	contentWidth   float64
	contentHeight  float64
}

func (p *Page) layoutMetrics(ctx context.Context) (*metrics, error) {
	res, err := p.sess.Send(ctx, "Page.getLayoutMetrics", nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		CSSLayoutViewport struct {
			ClientWidth  float64 `json:"clientWidth"`
			ClientHeight float64 `json:"clientHeight"`
		} `json:"cssLayoutViewport"`
		CSSContentSize struct {
			Width  float64 `json:"width"`
			Height float64 `json:"height"`
		} `json:"cssContentSize"`
	}
	if err := json.Unmarshal(res, &out); err != nil {
		return nil, fmt.Errorf("parse layout metrics: %w", err)
	}
	return &metrics{
		viewportWidth:  out.CSSLayoutViewport.ClientWidth,
		viewportHeight: out.CSSLayoutViewport.ClientHeight,
		contentWidth:   out.CSSContentSize.Width,
		contentHeight:  out.CSSContentSize.Height,
	}, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
