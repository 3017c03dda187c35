package page

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/sheacoding/browser-agent-extension/internal/errdefs"
	"github.com/sheacoding/browser-agent-extension/internal/host/hosttest"
)

func TestClickAtSequence(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)

	if err := p.ClickAt(context.Background(), 50, 60, "", 0); err != nil {
		t.Fatal(err)
	}

	calls := f.CallsFor("Input.dispatchMouseEvent")
	if len(calls) != 3 {
		t.Fatalf("mouse events = %d, want 3", len(calls))
	}
	wantTypes := []string{"mouseMoved", "mousePressed", "mouseReleased"}
	for i, c := range calls {
		if c.Params["type"] != wantTypes[i] {
			t.Errorf("event %d type = %v, want %s", i, c.Params["type"], wantTypes[i])
		}
		if c.Params["x"].(float64) != 50 || c.Params["y"].(float64) != 60 {
			t.Errorf("event %d at (%v, %v), want (50, 60)", i, c.Params["x"], c.Params["y"])
		}
	}
	// Defaults fill in on press and release.
	if calls[1].Params["button"] != "left" || calls[1].Params["clickCount"].(float64) != 1 {
		t.Errorf("press params = %v", calls[1].Params)
	}
}

func TestClickElementCenter(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Stub("Runtime.evaluate", hosttest.EvalResult(map[string]any{
		"x": 100, "y": 200, "width": 40, "height": 20,
	}))

	cx, cy, err := p.ClickElement(context.Background(), "#search")
	if err != nil {
		t.Fatal(err)
	}
	if cx != 120 || cy != 210 {
		t.Errorf("click center = (%v, %v), want (120, 210)", cx, cy)
	}

	calls := f.CallsFor("Input.dispatchMouseEvent")
	if len(calls) != 3 {
		t.Fatalf("mouse events = %d, want 3", len(calls))
	}
	for i, c := range calls {
		if c.Params["x"].(float64) != 120 || c.Params["y"].(float64) != 210 {
			t.Errorf("event %d at (%v, %v), want (120, 210)", i, c.Params["x"], c.Params["y"])
		}
	}
}

func TestClickElementNotFound(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Stub("Runtime.evaluate", hosttest.EvalResult(nil))

	_, _, err := p.ClickElement(context.Background(), "#missing")
	var nf *errdefs.ElementNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ElementNotFoundError, got %v", err)
	}
	if nf.Selector != "#missing" {
		t.Errorf("selector = %q", nf.Selector)
	}
	if got := len(f.CallsFor("Input.dispatchMouseEvent")); got != 0 {
		t.Errorf("mouse events after miss = %d, want 0", got)
	}
}

func TestTypeBulk(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)

	if err := p.Type(context.Background(), "hi", 0); err != nil {
		t.Fatal(err)
	}

	calls := f.CallsFor("Input.insertText")
	if len(calls) != 1 {
		t.Fatalf("insertText calls = %d, want 1", len(calls))
	}
	if calls[0].Params["text"] != "hi" {
		t.Errorf("text = %v", calls[0].Params["text"])
	}
}

func TestTypePerCharacterWithDelay(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)

	start := time.Now()
	if err := p.Type(context.Background(), "hi", 50*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	elapsed := time.Since(start)

	calls := f.CallsFor("Input.insertText")
	if len(calls) != 2 {
		t.Fatalf("insertText calls = %d, want 2", len(calls))
	}
	if calls[0].Params["text"] != "h" || calls[1].Params["text"] != "i" {
		t.Errorf("inserts = %v, %v", calls[0].Params["text"], calls[1].Params["text"])
	}
	if elapsed < 50*time.Millisecond {
		t.Errorf("elapsed = %s, want at least 50ms", elapsed)
	}
}

func TestTypeInElementClearsFirst(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Handle("Runtime.evaluate", func(c hosttest.Call) (any, error) {
		expr, _ := c.Params["expression"].(string)
		if strings.Contains(expr, "getBoundingClientRect") {
			return hosttest.EvalResult(map[string]any{"x": 0, "y": 0, "width": 10, "height": 10}), nil
		}
		return hosttest.EvalResult(true), nil
	})

	if err := p.TypeInElement(context.Background(), "#name", "new", true, 0); err != nil {
		t.Fatal(err)
	}

	// Click to focus, select-all, then one bulk insert over the selection.
	if got := len(f.CallsFor("Input.dispatchMouseEvent")); got != 3 {
		t.Errorf("mouse events = %d, want 3", got)
	}
	inserts := f.CallsFor("Input.insertText")
	if len(inserts) != 1 || inserts[0].Params["text"] != "new" {
		t.Errorf("inserts = %+v", inserts)
	}
}

func TestTypeInElementClearToEmpty(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Handle("Runtime.evaluate", func(c hosttest.Call) (any, error) {
		expr, _ := c.Params["expression"].(string)
		if strings.Contains(expr, "getBoundingClientRect") {
			return hosttest.EvalResult(map[string]any{"x": 0, "y": 0, "width": 10, "height": 10}), nil
		}
		return hosttest.EvalResult(true), nil
	})

	if err := p.TypeInElement(context.Background(), "#name", "", true, 0); err != nil {
		t.Fatal(err)
	}

	inserts := f.CallsFor("Input.insertText")
	if len(inserts) != 1 || inserts[0].Params["text"] != "" {
		t.Errorf("inserts = %+v", inserts)
	}
}

func TestPressKeyEnter(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)

	if err := p.PressKey(context.Background(), "Enter"); err != nil {
		t.Fatal(err)
	}

	calls := f.CallsFor("Input.dispatchKeyEvent")
	if len(calls) != 2 {
		t.Fatalf("key events = %d, want 2", len(calls))
	}
	down := calls[0].Params
	if down["type"] != "keyDown" || down["key"] != "Enter" || down["text"] != "\r" {
		t.Errorf("down = %v", down)
	}
	if down["windowsVirtualKeyCode"].(float64) != 13 {
		t.Errorf("virtual key code = %v", down["windowsVirtualKeyCode"])
	}
	up := calls[1].Params
	if up["type"] != "keyUp" || up["key"] != "Enter" {
		t.Errorf("up = %v", up)
	}
	if _, has := up["text"]; has {
		t.Error("keyUp should not carry text")
	}
}

func TestPressKeyNamedWithoutText(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)

	if err := p.PressKey(context.Background(), "ArrowDown"); err != nil {
		t.Fatal(err)
	}

	down := f.CallsFor("Input.dispatchKeyEvent")[0].Params
	if down["type"] != "rawKeyDown" || down["key"] != "ArrowDown" {
		t.Errorf("down = %v", down)
	}
}

func TestPressKeyPrintable(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)

	if err := p.PressKey(context.Background(), "a"); err != nil {
		t.Fatal(err)
	}

	down := f.CallsFor("Input.dispatchKeyEvent")[0].Params
	if down["type"] != "keyDown" || down["text"] != "a" {
		t.Errorf("down = %v", down)
	}
}

func TestPressKeyUnknown(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)

	err := p.PressKey(context.Background(), "Bogus")
	if err == nil || err.Error() != "unknown key: Bogus" {
		t.Errorf("err = %v", err)
	}
}

func TestScrollDirections(t *testing.T) {
	tests := []struct {
		direction string
		dx, dy    float64
	}{
		{"down", 0, 500},
		{"up", 0, -500},
		{"right", 500, 0},
		{"left", -500, 0},
	}
	for _, tt := range tests {
		t.Run(tt.direction, func(t *testing.T) {
			f := hosttest.NewFake()
			p := newReadyPage(t, f)
			f.Stub("Page.getLayoutMetrics", map[string]any{
				"cssLayoutViewport": map[string]any{"clientWidth": 1280, "clientHeight": 800},
			})
			f.Stub("Runtime.evaluate", hosttest.EvalResult(map[string]any{"x": 0, "y": 0}))

			if _, _, err := p.Scroll(context.Background(), tt.direction, 0); err != nil {
				t.Fatal(err)
			}

			wheel := f.CallsFor("Input.dispatchMouseEvent")[0].Params
			if wheel["type"] != "mouseWheel" {
				t.Errorf("type = %v", wheel["type"])
			}
			if wheel["deltaX"].(float64) != tt.dx || wheel["deltaY"].(float64) != tt.dy {
				t.Errorf("delta = (%v, %v), want (%v, %v)", wheel["deltaX"], wheel["deltaY"], tt.dx, tt.dy)
			}
			if wheel["x"].(float64) != 640 || wheel["y"].(float64) != 400 {
				t.Errorf("wheel at (%v, %v), want viewport center (640, 400)", wheel["x"], wheel["y"])
			}
		})
	}
}

func TestScrollReadsBackPosition(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Stub("Runtime.evaluate", hosttest.EvalResult(map[string]any{"x": 0, "y": 500}))

	_, y, err := p.Scroll(context.Background(), "down", 500)
	if err != nil {
		t.Fatal(err)
	}
	if y != 500 {
		t.Errorf("y = %v, want 500", y)
	}
}

func TestScrollUnknownDirection(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)

	_, _, err := p.Scroll(context.Background(), "sideways", 0)
	if err == nil || !strings.Contains(err.Error(), "unknown scroll direction") {
		t.Errorf("err = %v", err)
	}
}

func TestScrollToElementMissing(t *testing.T) {
	f := hosttest.NewFake()
	p := newReadyPage(t, f)
	f.Stub("Runtime.evaluate", hosttest.EvalResult(nil))

	_, _, err := p.ScrollToElement(context.Background(), "#gone")
	var nf *errdefs.ElementNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected ElementNotFoundError, got %v", err)
	}
}
