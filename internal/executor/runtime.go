package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/sheacoding/browser-agent-extension/internal/config"
	"github.com/sheacoding/browser-agent-extension/internal/page"
	"github.com/sheacoding/browser-agent-extension/internal/tabs"
)

// Runtime applies decoded actions to the browser through the tab
// registry.
type Runtime struct {
	cfg  *config.RuntimeConfig
	tabs *tabs.Registry
}

func NewRuntime(cfg *config.RuntimeConfig, reg *tabs.Registry) *Runtime {
	return &Runtime{cfg: cfg, tabs: reg}
}

// Apply runs one action. Navigation actions own their deadline through
// the load wait; everything else runs under the action timeout.
func (rt *Runtime) Apply(ctx context.Context, act Action) (any, error) {
	switch act.(type) {
	case *NavigateAction, *BackAction, *ForwardAction, *ReloadAction:
	default:
		d := rt.cfg.ActionTimeout
		if d <= 0 {
			d = 15 * time.Second
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	switch a := act.(type) {
	case *NavigateAction:
		return rt.navigate(ctx, a)
	case *ClickAction:
		return rt.click(ctx, a)
	case *TypeAction:
		return rt.typeText(ctx, a)
	case *ScrollAction:
		return rt.scroll(ctx, a)
	case *ScreenshotAction:
		return rt.screenshot(ctx, a)
	case *ExtractAction:
		return rt.extract(ctx, a)
	case *EvaluateAction:
		return rt.evaluate(ctx, a)
	case *PageInfoAction:
		return rt.pageInfo(ctx)
	case *TabsAction:
		return rt.tabList(ctx)
	case *SwitchTabAction:
		return rt.switchTab(ctx, a)
	case *PressKeyAction:
		return rt.pressKey(ctx, a)
	case *SelectOptionAction:
		return rt.selectOption(ctx, a)
	case *BackAction:
		return rt.history(ctx, -1)
	case *ForwardAction:
		return rt.history(ctx, +1)
	case *ReloadAction:
		return rt.reload(ctx)
	case *ConsoleLogsAction:
		return rt.consoleLogs(ctx)
	case *ShowOverlayAction:
		return rt.overlay(ctx, "show", map[string]any{"status": a.Status})
	case *UpdateOverlayAction:
		return rt.overlay(ctx, "update", map[string]any{"status": a.Status, "shimmer": a.Shimmer})
	case *HideOverlayAction:
		return rt.overlay(ctx, "hide", nil)
	case *OverlayStateAction:
		return rt.overlayState(ctx)
	default:
		return nil, fmt.Errorf("unhandled action %T", act)
	}
}

// activePage resolves the target page. Console capture is switched on
// with the first action so later getConsoleLogs calls have history.
func (rt *Runtime) activePage(ctx context.Context) (*page.Page, error) {
	p, err := rt.tabs.ActivePage(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.EnableConsoleCapture(ctx); err != nil {
		slog.Debug("console capture", "target", p.TargetID(), "err", err)
	}
	return p, nil
}

func (rt *Runtime) navTimeout() time.Duration {
	if rt.cfg.NavigateTimeout > 0 {
		return rt.cfg.NavigateTimeout
	}
	return 30 * time.Second
}

func (rt *Runtime) navigate(ctx context.Context, a *NavigateAction) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Navigate(ctx, a.URL); err != nil {
		return nil, err
	}
	if err := p.WaitForNavigation(ctx, rt.navTimeout()); err != nil {
		return nil, err
	}
	return p.Info(ctx)
}

func (rt *Runtime) click(ctx context.Context, a *ClickAction) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	if a.Selector != "" {
		x, y, err := p.ClickElement(ctx, a.Selector)
		if err != nil {
			return nil, err
		}
		return map[string]any{"clicked": true, "selector": a.Selector, "x": x, "y": y}, nil
	}
	if err := p.ClickAt(ctx, *a.X, *a.Y, a.Button, a.ClickCount); err != nil {
		return nil, err
	}
	return map[string]any{"clicked": true, "x": *a.X, "y": *a.Y}, nil
}

func (rt *Runtime) typeText(ctx context.Context, a *TypeAction) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	delay := time.Duration(a.DelayMs) * time.Millisecond
	if a.Selector != "" {
		err = p.TypeInElement(ctx, a.Selector, a.Text, a.ClearFirst, delay)
	} else {
		err = p.Type(ctx, a.Text, delay)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"typed": utf8.RuneCountInString(a.Text)}, nil
}

func (rt *Runtime) scroll(ctx context.Context, a *ScrollAction) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	var x, y float64
	switch {
	case a.Selector != "":
		x, y, err = p.ScrollToElement(ctx, a.Selector)
	case a.X != nil && a.Y != nil:
		x, y, err = p.ScrollTo(ctx, *a.X, *a.Y)
	default:
		x, y, err = p.Scroll(ctx, a.Direction, a.Distance)
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"x": x, "y": y}, nil
}

func (rt *Runtime) screenshot(ctx context.Context, a *ScreenshotAction) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	return p.CaptureScreenshot(ctx, a.Format, a.Quality, a.FullPage)
}

func (rt *Runtime) extract(ctx context.Context, a *ExtractAction) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := p.Extract(ctx, a.Selector)
	if err != nil {
		return nil, err
	}
	return map[string]any{"nodes": nodes, "count": len(nodes)}, nil
}

func (rt *Runtime) evaluate(ctx context.Context, a *EvaluateAction) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := p.Evaluate(ctx, a.Script)
	if err != nil {
		return nil, err
	}
	return map[string]any{"result": raw}, nil
}

func (rt *Runtime) pageInfo(ctx context.Context) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	return p.Info(ctx)
}

func (rt *Runtime) tabList(ctx context.Context) (any, error) {
	list, err := rt.tabs.AllTabsInfo(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{"tabs": list, "count": len(list)}, nil
}

func (rt *Runtime) switchTab(ctx context.Context, a *SwitchTabAction) (any, error) {
	info, err := rt.tabs.SwitchToTab(ctx, a.TabID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"tabId":  info.TargetID,
		"url":    info.URL,
		"title":  info.Title,
		"active": true,
	}, nil
}

func (rt *Runtime) pressKey(ctx context.Context, a *PressKeyAction) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.PressKey(ctx, a.Key); err != nil {
		return nil, err
	}
	return map[string]any{"pressed": a.Key}, nil
}

func (rt *Runtime) selectOption(ctx context.Context, a *SelectOptionAction) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	return p.SelectOption(ctx, a.Selector, page.SelectPick{
		Value: a.Value,
		Text:  a.Text,
		Index: a.Index,
	})
}

func (rt *Runtime) history(ctx context.Context, delta int) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	if delta < 0 {
		err = p.Back(ctx)
	} else {
		err = p.Forward(ctx)
	}
	if err != nil {
		return nil, err
	}
	if err := p.WaitForNavigation(ctx, rt.navTimeout()); err != nil {
		return nil, err
	}
	return p.Info(ctx)
}

func (rt *Runtime) reload(ctx context.Context) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	if err := p.Reload(ctx); err != nil {
		return nil, err
	}
	if err := p.WaitForNavigation(ctx, rt.navTimeout()); err != nil {
		return nil, err
	}
	return p.Info(ctx)
}

func (rt *Runtime) consoleLogs(ctx context.Context) (any, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	logs := p.DrainConsole()
	return map[string]any{"logs": logs, "count": len(logs)}, nil
}

// overlay forwards a notification to the page-side overlay hook. A page
// without the hook is not an error; the action reports it unavailable.
func (rt *Runtime) overlay(ctx context.Context, method string, arg any) (any, error) {
	raw, err := rt.overlayEval(ctx, method, arg)
	if err != nil {
		return nil, err
	}
	available := len(raw) > 0 && string(raw) != "null"
	return map[string]any{"ok": true, "available": available}, nil
}

func (rt *Runtime) overlayState(ctx context.Context) (any, error) {
	raw, err := rt.overlayEval(ctx, "state", nil)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{"available": false}, nil
	}
	return map[string]any{"available": true, "state": raw}, nil
}

func (rt *Runtime) overlayEval(ctx context.Context, method string, arg any) ([]byte, error) {
	p, err := rt.activePage(ctx)
	if err != nil {
		return nil, err
	}
	return p.Evaluate(ctx, overlayHookScript(method, arg))
}
