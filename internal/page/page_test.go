package page

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sheacoding/browser-agent-extension/internal/errdefs"
	"github.com/sheacoding/browser-agent-extension/internal/host"
	"github.com/sheacoding/browser-agent-extension/internal/host/hosttest"
)

func newReadyPage(t *testing.T, f *hosttest.Fake) *Page {
	t.Helper()
	p := New(f, "tab1")
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return p
}

func TestInitAttachesOnceAndEnablesDomains(t *testing.T) {
	f := hosttest.NewFake()
	p := New(f, "tab1")

	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := p.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	if got := f.AttachCount("tab1"); got != 1 {
		t.Errorf("attach count = %d, want 1", got)
	}
	if got := len(f.CallsFor("Page.enable")); got != 1 {
		t.Errorf("Page.enable calls = %d, want 1", got)
	}
	if got := len(f.CallsFor("Runtime.enable")); got != 1 {
		t.Errorf("Runtime.enable calls = %d, want 1", got)
	}
}

func TestInitReenablesDomainsAfterForcedDetach(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)

	f.ForceDetach("tab1")
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("reinit: %v", err)
	}

	if got := len(f.CallsFor("Page.enable")); got != 2 {
		t.Errorf("Page.enable calls after reattach = %d, want 2", got)
	}
}

func TestNavigateSendsURL(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)

	if err := p.Navigate(context.Background(), "https://example.com"); err != nil {
		t.Fatal(err)
	}

	calls := f.CallsFor("Page.navigate")
	if len(calls) != 1 {
		t.Fatalf("navigate calls = %d, want 1", len(calls))
	}
	if calls[0].Params["url"] != "https://example.com" {
		t.Errorf("url param = %v", calls[0].Params["url"])
	}
}

func TestNavigateErrorText(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Stub("Page.navigate", map[string]any{"frameId": "f1", "errorText": "net::ERR_NAME_NOT_RESOLVED"})

	err := p.Navigate(context.Background(), "https://bad.invalid")
	var pe *errdefs.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ProtocolError, got %v", err)
	}
	if !strings.Contains(pe.Message, "ERR_NAME_NOT_RESOLVED") {
		t.Errorf("message = %q", pe.Message)
	}
}

func TestWaitForNavigationResolvesOnLoad(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	base := f.SubscriberCount("tab1")

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.WaitForNavigation(context.Background(), time.Second)
	}()

	waitForSubscribers(t, f, base+1)
	f.EmitEvent("tab1", host.EventLoadFired, nil)

	if err := <-errCh; err != nil {
		t.Fatalf("wait: %v", err)
	}
	if got := f.SubscriberCount("tab1"); got != base {
		t.Errorf("subscriber count after wait = %d, want %d", got, base)
	}
}

func TestWaitForNavigationTimeout(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	base := f.SubscriberCount("tab1")

	err := p.WaitForNavigation(context.Background(), 20*time.Millisecond)
	var te *errdefs.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("expected TimeoutError, got %v", err)
	}
	if te.Message != "Navigation timeout" {
		t.Errorf("message = %q, want %q", te.Message, "Navigation timeout")
	}
	if got := f.SubscriberCount("tab1"); got != base {
		t.Errorf("subscriber count after timeout = %d, want %d", got, base)
	}
}

func TestWaitForNavigationSingleOutstanding(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	base := f.SubscriberCount("tab1")

	errCh := make(chan error, 1)
	go func() {
		errCh <- p.WaitForNavigation(context.Background(), time.Second)
	}()
	waitForSubscribers(t, f, base+1)

	if err := p.WaitForNavigation(context.Background(), time.Second); err == nil {
		t.Error("second concurrent wait should fail")
	}

	f.EmitEvent("tab1", host.EventLoadFired, nil)
	if err := <-errCh; err != nil {
		t.Fatalf("first wait: %v", err)
	}
}

func waitForSubscribers(t *testing.T, f *hosttest.Fake, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for f.SubscriberCount("tab1") < want {
		if time.Now().After(deadline) {
			t.Fatal("subscriber never appeared")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestEvaluateValue(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Stub("Runtime.evaluate", hosttest.EvalResult(map[string]any{"answer": 42}))

	raw, err := p.Evaluate(context.Background(), "({answer: 42})")
	if err != nil {
		t.Fatal(err)
	}
	var out struct {
		Answer int `json:"answer"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatal(err)
	}
	if out.Answer != 42 {
		t.Errorf("answer = %d", out.Answer)
	}
}

func TestEvaluateException(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Stub("Runtime.evaluate", hosttest.EvalException("ReferenceError: nope is not defined"))

	_, err := p.Evaluate(context.Background(), "nope()")
	var ee *errdefs.EvaluationError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EvaluationError, got %v", err)
	}
	if !strings.Contains(ee.Text, "ReferenceError") {
		t.Errorf("text = %q", ee.Text)
	}
}

func TestInfo(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Stub("Runtime.evaluate", hosttest.EvalResult(map[string]any{
		"url":   "https://example.com/",
		"title": "Example Domain",
	}))

	info, err := p.Info(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if info.URL != "https://example.com/" || info.Title != "Example Domain" {
		t.Errorf("info = %+v", info)
	}
}

func TestExtract(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Stub("Runtime.evaluate", hosttest.EvalResult([]map[string]any{
		{"tag": "a", "text": "Home", "attrs": map[string]string{"href": "/"}},
		{"tag": "a", "text": "Docs", "attrs": map[string]string{"href": "/docs"}},
	}))

	nodes, err := p.Extract(context.Background(), "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 || nodes[0].Tag != "a" || nodes[1].Attrs["href"] != "/docs" {
		t.Errorf("nodes = %+v", nodes)
	}
}

func TestHistorySteps(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Stub("Page.getNavigationHistory", map[string]any{
		"currentIndex": 1,
		"entries": []map[string]any{
			{"id": 10, "url": "https://a.example"},
			{"id": 11, "url": "https://b.example"},
		},
	})

	if err := p.Back(context.Background()); err != nil {
		t.Fatalf("back: %v", err)
	}
	calls := f.CallsFor("Page.navigateToHistoryEntry")
	if len(calls) != 1 {
		t.Fatalf("navigateToHistoryEntry calls = %d", len(calls))
	}
	if got := calls[0].Params["entryId"].(float64); got != 10 {
		t.Errorf("entryId = %v, want 10", got)
	}

	if err := p.Forward(context.Background()); err == nil {
		t.Error("forward at end of history should fail")
	}
}

func TestScreenshotDimensions(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Stub("Page.getLayoutMetrics", map[string]any{
		"cssLayoutViewport": map[string]any{"clientWidth": 1280, "clientHeight": 800},
		"cssContentSize":    map[string]any{"width": 1280, "height": 2400},
	})
	f.Stub("Page.captureScreenshot", map[string]any{"data": "aGVsbG8="})

	shot, err := p.CaptureScreenshot(context.Background(), "png", 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if shot.Width != 1280 || shot.Height != 800 {
		t.Errorf("viewport shot dims = %dx%d", shot.Width, shot.Height)
	}
	if shot.Format != "png" || shot.Data != "aGVsbG8=" {
		t.Errorf("shot = %+v", shot)
	}

	full, err := p.CaptureScreenshot(context.Background(), "jpeg", 70, true)
	if err != nil {
		t.Fatal(err)
	}
	if full.Width != 1280 || full.Height != 2400 {
		t.Errorf("full page dims = %dx%d", full.Width, full.Height)
	}
	calls := f.CallsFor("Page.captureScreenshot")
	if len(calls) != 2 {
		t.Fatalf("captureScreenshot calls = %d", len(calls))
	}
	if calls[1].Params["quality"].(float64) != 70 {
		t.Errorf("jpeg quality = %v", calls[1].Params["quality"])
	}
	if calls[1].Params["captureBeyondViewport"] != true {
		t.Error("fullPage should capture beyond viewport")
	}
}
