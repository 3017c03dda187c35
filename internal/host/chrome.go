package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	cdp "github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/sheacoding/browser-agent-extension/internal/config"
	"github.com/sheacoding/browser-agent-extension/internal/errdefs"
	"github.com/sheacoding/browser-agent-extension/internal/idutil"
)

const TargetTypePage = "page"

const (
	chromeStartTimeout = 15 * time.Second
	createTabTimeout   = 10 * time.Second
	closeTabTimeout    = 5 * time.Second
	eventQueueSize     = 256
)

type tabEntry struct {
	ctx    context.Context
	cancel context.CancelFunc
}

type subscription struct {
	targetID string
	fn       EventFunc
}

// Chrome drives a local or remote Chrome over the devtools protocol. The
// browser is launched lazily on first use.
type Chrome struct {
	cfg *config.RuntimeConfig
	ids *idutil.Manager

	initMu        sync.Mutex
	initialized   bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.RWMutex
	tabs   map[string]*tabEntry
	active string

	subMu sync.RWMutex
	subs  map[string]*subscription

	events chan Event
	once   sync.Once
}

func NewChrome(cfg *config.RuntimeConfig) *Chrome {
	return &Chrome{
		cfg:    cfg,
		ids:    idutil.NewManager(),
		tabs:   make(map[string]*tabEntry),
		subs:   make(map[string]*subscription),
		events: make(chan Event, eventQueueSize),
	}
}

// EnsureBrowser launches or connects to Chrome if that has not happened
// yet. Safe to call from multiple goroutines.
func (c *Chrome) EnsureBrowser(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized && c.browserCtx != nil {
		return nil
	}

	allocCtx, allocCancel, err := c.setupAllocator()
	if err != nil {
		return err
	}

	browserCtx, browserCancel, err := c.startBrowser(allocCtx)
	if err != nil {
		allocCancel()
		return fmt.Errorf("start chrome: %w", err)
	}

	c.allocCancel = allocCancel
	c.browserCtx = browserCtx
	c.browserCancel = browserCancel
	c.initialized = true

	c.once.Do(func() { go c.deliverEvents() })

	slog.Info("chrome ready", "remote", c.cfg.CdpURL != "")
	return nil
}

func (c *Chrome) setupAllocator() (context.Context, context.CancelFunc, error) {
	if c.cfg.CdpURL != "" {
		slog.Info("connecting to Chrome", "url", c.cfg.CdpURL)
		ctx, cancel := chromedp.NewRemoteAllocator(context.Background(), c.cfg.CdpURL)
		return ctx, cancel, nil
	}

	if err := os.MkdirAll(c.cfg.ProfileDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create profile dir: %w", err)
	}

	for _, lockName := range []string{"SingletonLock", "SingletonSocket", "SingletonCookie"} {
		lockPath := fmt.Sprintf("%s/%s", c.cfg.ProfileDir, lockName)
		if err := os.Remove(lockPath); err == nil {
			slog.Warn("removed stale lock", "file", lockName)
		}
	}

	slog.Info("launching Chrome", "profile", c.cfg.ProfileDir, "headless", c.cfg.Headless)
	ctx, cancel := chromedp.NewExecAllocator(context.Background(), c.buildChromeOpts()...)
	return ctx, cancel, nil
}

func (c *Chrome) buildChromeOpts() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.UserDataDir(c.cfg.ProfileDir),
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,

		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-renderer-backgrounding", true),
		chromedp.Flag("disable-background-timer-throttling", true),
		chromedp.Flag("disable-backgrounding-occluded-windows", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-session-crashed-bubble", true),
		chromedp.Flag("hide-crash-restore-bubble", true),
		chromedp.Flag("disable-device-discovery-notifications", true),

		chromedp.WindowSize(1280, 800),
	}

	if c.cfg.ChromeBinary != "" {
		opts = append(opts, chromedp.ExecPath(c.cfg.ChromeBinary))
	}
	if c.cfg.ChromeExtraFlags != "" {
		for _, f := range strings.Fields(c.cfg.ChromeExtraFlags) {
			if k, v, ok := strings.Cut(f, "="); ok {
				opts = append(opts, chromedp.Flag(strings.TrimLeft(k, "-"), v))
			} else {
				opts = append(opts, chromedp.Flag(strings.TrimLeft(f, "-"), true))
			}
		}
	}

	if c.cfg.Headless {
		opts = append(opts, chromedp.Headless)
	} else {
		opts = append(opts, chromedp.Flag("headless", false))
	}

	return opts
}

func (c *Chrome) startBrowser(allocCtx context.Context) (context.Context, context.CancelFunc, error) {
	bCtx, bCancel := chromedp.NewContext(allocCtx)

	startCtx, startDone := context.WithTimeout(context.Background(), chromeStartTimeout)
	defer startDone()

	errCh := make(chan error, 1)
	go func() {
		errCh <- chromedp.Run(bCtx)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			bCancel()
			return nil, nil, err
		}
		return bCtx, bCancel, nil
	case <-startCtx.Done():
		bCancel()
		return nil, nil, fmt.Errorf("timed out after %s", chromeStartTimeout)
	}
}

// Close tears down the browser connection and, for locally launched
// Chrome, the process.
func (c *Chrome) Close() {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}
	c.initialized = false
	c.browserCtx = nil
}

func (c *Chrome) Attach(ctx context.Context, targetID string) error {
	_, err := c.tabContext(ctx, targetID)
	return err
}

func (c *Chrome) tabContext(ctx context.Context, targetID string) (context.Context, error) {
	if err := c.EnsureBrowser(ctx); err != nil {
		return nil, err
	}

	c.mu.RLock()
	if entry, ok := c.tabs[targetID]; ok && entry.ctx != nil {
		c.mu.RUnlock()
		return entry.ctx, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.tabs[targetID]; ok && entry.ctx != nil {
		return entry.ctx, nil
	}

	tabCtx, cancel := chromedp.NewContext(c.browserCtx,
		chromedp.WithTargetID(target.ID(targetID)),
	)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, fmt.Errorf("tab %s not found: %w", targetID, err)
	}

	c.listen(targetID, tabCtx)
	c.tabs[targetID] = &tabEntry{ctx: tabCtx, cancel: cancel}
	return tabCtx, nil
}

// listen forwards the devtools events the engine consumes onto the
// delivery queue. Listener callbacks must not block, so fan-out happens
// on a dedicated goroutine.
func (c *Chrome) listen(targetID string, tabCtx context.Context) {
	chromedp.ListenTarget(tabCtx, func(ev any) {
		switch e := ev.(type) {
		case *page.EventLoadEventFired:
			c.enqueue(Event{TargetID: targetID, Method: EventLoadFired})
		case *runtime.EventBindingCalled:
			params, err := json.Marshal(e)
			if err != nil {
				return
			}
			c.enqueue(Event{TargetID: targetID, Method: EventBindingCalled, Params: params})
		case *inspector.EventDetached:
			c.enqueue(Event{TargetID: targetID, Method: EventDetached, Params: detachParams(string(e.Reason))})
		}
	})

	go func() {
		<-tabCtx.Done()
		c.mu.Lock()
		delete(c.tabs, targetID)
		c.mu.Unlock()
		c.enqueue(Event{TargetID: targetID, Method: EventDetached, Params: detachParams("target_closed")})
	}()
}

func detachParams(reason string) json.RawMessage {
	out, _ := json.Marshal(map[string]string{"reason": reason})
	return out
}

func (c *Chrome) enqueue(ev Event) {
	select {
	case c.events <- ev:
	default:
		slog.Debug("event queue full, dropping", "target", ev.TargetID, "method", ev.Method)
	}
}

func (c *Chrome) deliverEvents() {
	for ev := range c.events {
		c.subMu.RLock()
		fns := make([]EventFunc, 0, 4)
		for _, s := range c.subs {
			if s.targetID == ev.TargetID {
				fns = append(fns, s.fn)
			}
		}
		c.subMu.RUnlock()
		for _, fn := range fns {
			fn(ev)
		}
	}
}

func (c *Chrome) Subscribe(targetID string, fn EventFunc) string {
	token := c.ids.SubscriptionToken(targetID)
	c.subMu.Lock()
	c.subs[token] = &subscription{targetID: targetID, fn: fn}
	c.subMu.Unlock()
	return token
}

func (c *Chrome) Unsubscribe(token string) {
	c.subMu.Lock()
	delete(c.subs, token)
	c.subMu.Unlock()
}

func (c *Chrome) Detach(ctx context.Context, targetID string) error {
	c.mu.Lock()
	entry, ok := c.tabs[targetID]
	delete(c.tabs, targetID)
	c.mu.Unlock()

	if ok && entry.cancel != nil {
		entry.cancel()
	}
	return nil
}

func (c *Chrome) Send(ctx context.Context, targetID, method string, params any) (json.RawMessage, error) {
	tabCtx, err := c.tabContext(ctx, targetID)
	if err != nil {
		return nil, err
	}

	runCtx := tabCtx
	if d, ok := ctx.Deadline(); ok {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithDeadline(tabCtx, d)
		defer cancel()
	}

	var result json.RawMessage
	err = chromedp.Run(runCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return chromedp.FromContext(ctx).Target.Execute(ctx, method, params, &result)
	}))
	if err != nil {
		var cdpErr *cdproto.Error
		if errors.As(err, &cdpErr) {
			return nil, &errdefs.ProtocolError{Method: method, Code: cdpErr.Code, Message: cdpErr.Message}
		}
		return nil, &errdefs.ProtocolError{Method: method, Message: err.Error()}
	}
	return result, nil
}

func (c *Chrome) ListTabs(ctx context.Context) ([]TabInfo, error) {
	if err := c.EnsureBrowser(ctx); err != nil {
		return nil, err
	}

	var targets []*target.Info
	if err := chromedp.Run(c.browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			targets, err = target.GetTargets().Do(ctx)
			return err
		}),
	); err != nil {
		return nil, fmt.Errorf("get targets: %w", err)
	}

	tabs := make([]TabInfo, 0, len(targets))
	for _, t := range targets {
		if t.Type != TargetTypePage {
			continue
		}
		tabs = append(tabs, TabInfo{TargetID: string(t.TargetID), URL: t.URL, Title: t.Title})
	}
	return tabs, nil
}

func (c *Chrome) CreateTab(ctx context.Context, url string) (string, error) {
	if err := c.EnsureBrowser(ctx); err != nil {
		return "", err
	}

	navURL := "about:blank"
	if url != "" {
		navURL = url
	}

	var targetID target.ID
	createCtx, createCancel := context.WithTimeout(c.browserCtx, createTabTimeout)
	defer createCancel()
	if err := chromedp.Run(createCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			targetID, err = target.CreateTarget(navURL).Do(ctx)
			return err
		}),
	); err != nil {
		return "", fmt.Errorf("create target: %w", err)
	}
	return string(targetID), nil
}

func (c *Chrome) CloseTab(ctx context.Context, targetID string) error {
	c.mu.Lock()
	entry, tracked := c.tabs[targetID]
	delete(c.tabs, targetID)
	c.mu.Unlock()

	if tracked && entry.cancel != nil {
		entry.cancel()
	}

	if err := c.EnsureBrowser(ctx); err != nil {
		return err
	}

	closeCtx, closeCancel := context.WithTimeout(c.browserCtx, closeTabTimeout)
	defer closeCancel()

	if err := target.CloseTarget(target.ID(targetID)).Do(cdp.WithExecutor(closeCtx, chromedp.FromContext(closeCtx).Browser)); err != nil {
		if !tracked {
			return fmt.Errorf("tab %s not found", targetID)
		}
		slog.Debug("close target CDP", "tabId", targetID, "err", err)
	}
	return nil
}

func (c *Chrome) ActiveTab(ctx context.Context) (string, error) {
	tabs, err := c.ListTabs(ctx)
	if err != nil {
		return "", err
	}

	c.mu.RLock()
	active := c.active
	c.mu.RUnlock()

	for _, t := range tabs {
		if t.TargetID == active {
			return active, nil
		}
	}
	if len(tabs) == 0 {
		return "", nil
	}
	return tabs[0].TargetID, nil
}

func (c *Chrome) SetActiveTab(ctx context.Context, targetID string) error {
	if err := c.EnsureBrowser(ctx); err != nil {
		return err
	}

	if err := chromedp.Run(c.browserCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			return target.ActivateTarget(target.ID(targetID)).Do(ctx)
		}),
	); err != nil {
		return fmt.Errorf("activate target: %w", err)
	}

	c.mu.Lock()
	c.active = targetID
	c.mu.Unlock()
	return nil
}
