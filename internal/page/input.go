package page

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sheacoding/browser-agent-extension/internal/errdefs"
)

// ClickAt dispatches a full pointer sequence at the given viewport
// coordinates: move, press, release, all at the same point.
func (p *Page) ClickAt(ctx context.Context, x, y float64, button string, clickCount int) error {
	if button == "" {
		button = "left"
	}
	if clickCount <= 0 {
		clickCount = 1
	}

	if _, err := p.sess.Send(ctx, "Input.dispatchMouseEvent", map[string]any{
		"type": "mouseMoved",
		"x":    x, "y": y,
	}); err != nil {
		return err
	}
	if _, err := p.sess.Send(ctx, "Input.dispatchMouseEvent", map[string]any{
		"type":       "mousePressed",
		"button":     button,
		"clickCount": clickCount,
		"x":          x, "y": y,
	}); err != nil {
		return err
	}
	_, err := p.sess.Send(ctx, "Input.dispatchMouseEvent", map[string]any{
		"type":       "mouseReleased",
		"button":     button,
		"clickCount": clickCount,
		"x":          x, "y": y,
	})
	return err
}

// ClickElement resolves the selector's bounding box in the page and
// clicks its center. Returns the coordinates that were clicked.
func (p *Page) ClickElement(ctx context.Context, selector string) (float64, float64, error) {
	raw, err := p.Evaluate(ctx, elementRectScript(selector))
	if err != nil {
		return 0, 0, err
	}
	if isNull(raw) {
		return 0, 0, &errdefs.ElementNotFoundError{Selector: selector}
	}

	var rect struct {
		X      float64 `json:"x"`
		Y      float64 `json:"y"`
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := json.Unmarshal(raw, &rect); err != nil {
		return 0, 0, fmt.Errorf("parse element rect: %w", err)
	}

	cx := rect.X + rect.Width/2
	cy := rect.Y + rect.Height/2
	if err := p.ClickAt(ctx, cx, cy, "left", 1); err != nil {
		return 0, 0, err
	}
	return cx, cy, nil
}

// Type inserts text into the focused element. With no delay the whole
// text goes in as one insert; with a delay each character is inserted
// separately, sleeping between characters.
func (p *Page) Type(ctx context.Context, text string, delay time.Duration) error {
	if delay <= 0 {
		_, err := p.sess.Send(ctx, "Input.insertText", map[string]any{"text": text})
		return err
	}

	for i, r := range []rune(text) {
		if i > 0 {
			time.Sleep(delay)
		}
		if _, err := p.sess.Send(ctx, "Input.insertText", map[string]any{"text": string(r)}); err != nil {
			return err
		}
	}
	return nil
}

// TypeInElement clicks the element to focus it, optionally selects the
// existing content so the typed text replaces it, then types.
func (p *Page) TypeInElement(ctx context.Context, selector, text string, clearFirst bool, delay time.Duration) error {
	if _, _, err := p.ClickElement(ctx, selector); err != nil {
		return err
	}

	if clearFirst {
		raw, err := p.Evaluate(ctx, selectAllScript(selector))
		if err != nil {
			return err
		}
		if isNull(raw) {
			return &errdefs.ElementNotFoundError{Selector: selector}
		}
		if text == "" {
			// Nothing will be typed over the selection, delete it directly.
			_, err := p.sess.Send(ctx, "Input.insertText", map[string]any{"text": ""})
			return err
		}
	}

	return p.Type(ctx, text, delay)
}

// PressKey dispatches a key down/up pair for a named key (Enter, Tab,
// ArrowDown, ...) or a single printable character.
func (p *Page) PressKey(ctx context.Context, key string) error {
	def, err := resolveKey(key)
	if err != nil {
		return err
	}

	down := map[string]any{
		"type": "rawKeyDown",
		"key":  def.Key,
		"code": def.Code,
	}
	if def.Text != "" {
		down["type"] = "keyDown"
		down["text"] = def.Text
		down["unmodifiedText"] = def.Text
	}
	if def.KeyCode != 0 {
		down["windowsVirtualKeyCode"] = def.KeyCode
		down["nativeVirtualKeyCode"] = def.KeyCode
	}
	if _, err := p.sess.Send(ctx, "Input.dispatchKeyEvent", down); err != nil {
		return err
	}

	up := map[string]any{
		"type": "keyUp",
		"key":  def.Key,
		"code": def.Code,
	}
	if def.KeyCode != 0 {
		up["windowsVirtualKeyCode"] = def.KeyCode
		up["nativeVirtualKeyCode"] = def.KeyCode
	}
	_, err = p.sess.Send(ctx, "Input.dispatchKeyEvent", up)
	return err
}

// Scroll dispatches a wheel event at the viewport center and reads back
// the resulting scroll position.
func (p *Page) Scroll(ctx context.Context, direction string, distance float64) (float64, float64, error) {
	if distance <= 0 {
		distance = 500
	}

	var dx, dy float64
	switch direction {
	case "down":
		dy = distance
	case "up":
		dy = -distance
	case "right":
		dx = distance
	case "left":
		dx = -distance
	default:
		return 0, 0, fmt.Errorf("unknown scroll direction: %s", direction)
	}

	cx, cy := 400.0, 300.0
	if m, err := p.layoutMetrics(ctx); err == nil && m.viewportWidth > 0 && m.viewportHeight > 0 {
		cx, cy = m.viewportWidth/2, m.viewportHeight/2
	}

	if _, err := p.sess.Send(ctx, "Input.dispatchMouseEvent", map[string]any{
		"type":   "mouseWheel",
		"x":      cx, "y": cy,
		"deltaX": dx,
		"deltaY": dy,
	}); err != nil {
		return 0, 0, err
	}

	return p.scrollPosition(ctx)
}

// ScrollToElement centers the first match in the viewport.
func (p *Page) ScrollToElement(ctx context.Context, selector string) (float64, float64, error) {
	raw, err := p.Evaluate(ctx, scrollToElementScript(selector))
	if err != nil {
		return 0, 0, err
	}
	if isNull(raw) {
		return 0, 0, &errdefs.ElementNotFoundError{Selector: selector}
	}
	return parsePosition(raw)
}

// ScrollTo jumps to absolute document coordinates.
func (p *Page) ScrollTo(ctx context.Context, x, y float64) (float64, float64, error) {
	raw, err := p.Evaluate(ctx, scrollToScript(x, y))
	if err != nil {
		return 0, 0, err
	}
	return parsePosition(raw)
}

func (p *Page) scrollPosition(ctx context.Context) (float64, float64, error) {
	raw, err := p.Evaluate(ctx, scrollPositionScript)
	if err != nil {
		return 0, 0, err
	}
	return parsePosition(raw)
}

func parsePosition(raw json.RawMessage) (float64, float64, error) {
	var pos struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(raw, &pos); err != nil {
		return 0, 0, fmt.Errorf("parse scroll position: %w", err)
	}
	return pos.X, pos.Y, nil
}
