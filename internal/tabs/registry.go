// Package tabs tracks which browser tab actions target and keeps the
// per-tab page controllers alive across tab switches and closures.
package tabs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sheacoding/browser-agent-extension/internal/host"
	"github.com/sheacoding/browser-agent-extension/internal/page"
	"github.com/sheacoding/browser-agent-extension/internal/session"
)

// closedReason is the detach reason the host reports when the tab
// itself went away, as opposed to a user revoking the debugger.
const closedReason = "target_closed"

type entry struct {
	page  *page.Page
	watch string
}

// Registry resolves the active tab to an initialized page controller
// and evicts entries for tabs that no longer exist.
type Registry struct {
	host host.Host

	mu     sync.RWMutex
	pages  map[string]*entry
	active string
}

func NewRegistry(h host.Host) *Registry {
	return &Registry{host: h, pages: make(map[string]*entry)}
}

// ActivePage returns the page controller for the active tab, creating
// and initializing it on first use. With no active pointer it asks the
// host, and with no open tab at all it creates one.
func (r *Registry) ActivePage(ctx context.Context) (*page.Page, error) {
	r.mu.RLock()
	if e, ok := r.pages[r.active]; ok && e.page.Session().State() == session.StateAttached {
		r.mu.RUnlock()
		return e.page, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.pages[r.active]; ok && e.page.Session().State() == session.StateAttached {
		return e.page, nil
	}

	id := r.active
	if id == "" {
		hostActive, err := r.host.ActiveTab(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve active tab: %w", err)
		}
		id = hostActive
	}
	if id == "" {
		created, err := r.host.CreateTab(ctx, "about:blank")
		if err != nil {
			return nil, fmt.Errorf("create tab: %w", err)
		}
		slog.Info("created tab", "target", created)
		id = created
	}

	e, ok := r.pages[id]
	if !ok {
		e = &entry{page: page.New(r.host, id)}
	}
	if err := e.page.Init(ctx); err != nil {
		return nil, err
	}
	if e.watch == "" {
		e.watch = r.watchForClose(e.page)
	}
	r.pages[id] = e
	r.active = id
	return e.page, nil
}

// watchForClose evicts the entry when the host reports the tab itself
// closed. A plain debugger detach keeps the entry so the next
// ActivePage can reattach.
func (r *Registry) watchForClose(p *page.Page) string {
	id := p.TargetID()
	return p.Session().On(func(ev host.Event) {
		if ev.Method != host.EventDetached {
			return
		}
		var detail struct {
			Reason string `json:"reason"`
		}
		_ = json.Unmarshal(ev.Params, &detail)
		if detail.Reason == closedReason {
			r.RemoveClosedTab(context.Background(), id)
		}
	})
}

// SwitchToTab makes the given tab the action target. The tab must exist
// host-side; switching activates it in the browser but does not attach
// a debugger until the next action needs one.
func (r *Registry) SwitchToTab(ctx context.Context, id string) (*host.TabInfo, error) {
	list, err := r.host.ListTabs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	var found *host.TabInfo
	for i := range list {
		if list[i].TargetID == id {
			found = &list[i]
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("tab %s not found", id)
	}

	if err := r.host.SetActiveTab(ctx, id); err != nil {
		return nil, fmt.Errorf("activate tab %s: %w", id, err)
	}

	r.mu.Lock()
	r.active = id
	r.mu.Unlock()
	return found, nil
}

// RemoveClosedTab drops the registry entry for a tab and releases its
// debugger session. Safe to call for untracked ids.
func (r *Registry) RemoveClosedTab(ctx context.Context, id string) {
	r.mu.Lock()
	e := r.pages[id]
	delete(r.pages, id)
	if r.active == id {
		r.active = ""
	}
	r.mu.Unlock()

	if e == nil {
		return
	}
	if e.watch != "" {
		e.page.Session().Off(e.watch)
	}
	e.page.Close(ctx)
	slog.Info("removed closed tab", "target", id)
}

// TabSummary is one row of the tab list shown to the client.
type TabSummary struct {
	ID     string `json:"tabId"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// AllTabsInfo snapshots the host tab list, marking the registry's
// active tab. Before any action has run, the host's own active tab is
// marked instead.
func (r *Registry) AllTabsInfo(ctx context.Context) ([]TabSummary, error) {
	list, err := r.host.ListTabs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}

	r.mu.RLock()
	active := r.active
	r.mu.RUnlock()
	if active == "" {
		active, _ = r.host.ActiveTab(ctx)
	}

	out := make([]TabSummary, 0, len(list))
	for _, t := range list {
		out = append(out, TabSummary{
			ID:     t.TargetID,
			URL:    t.URL,
			Title:  t.Title,
			Active: t.TargetID == active,
		})
	}
	return out, nil
}

// Sweep periodically evicts entries for tabs the host no longer
// reports, so closed tabs are released even when no close notification
// made it through. Runs until the context ends.
func (r *Registry) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepOnce(ctx)
		}
	}
}

func (r *Registry) sweepOnce(ctx context.Context) {
	list, err := r.host.ListTabs(ctx)
	if err != nil {
		slog.Debug("tab sweep skipped", "err", err)
		return
	}
	alive := make(map[string]bool, len(list))
	for _, t := range list {
		alive[t.TargetID] = true
	}

	r.mu.RLock()
	var stale []string
	for id := range r.pages {
		if !alive[id] {
			stale = append(stale, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range stale {
		slog.Info("cleaned stale tab", "target", id)
		r.RemoveClosedTab(ctx, id)
	}
}
