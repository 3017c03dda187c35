// Package host defines the debugger capability the browser engine runs
// against, plus the chromedp-backed implementation of it.
package host

import (
	"context"
	"encoding/json"
)

// Event method names delivered to subscribers.
const (
	EventLoadFired     = "Page.loadEventFired"
	EventBindingCalled = "Runtime.bindingCalled"
	EventDetached      = "Inspector.detached"
)

// TabInfo describes one open page target.
type TabInfo struct {
	TargetID string `json:"targetId"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

// Event is a debugger event scoped to one target.
type Event struct {
	TargetID string
	Method   string
	Params   json.RawMessage
}

type EventFunc func(Event)

// Host is the surface the engine needs from a browser debugger. The
// chromedp adapter implements it against a live Chrome; hosttest.Fake
// implements it deterministically for tests.
type Host interface {
	// Attach makes the target addressable by Send. Attaching to an
	// already-attached target is a no-op.
	Attach(ctx context.Context, targetID string) error
	// Detach releases the debugger session. Detaching an unknown or
	// already-detached target is a no-op.
	Detach(ctx context.Context, targetID string) error
	// Send executes one devtools method against an attached target and
	// returns the raw result.
	Send(ctx context.Context, targetID, method string, params any) (json.RawMessage, error)
	// Subscribe registers fn for events of one target and returns an
	// opaque token for Unsubscribe. Subscriptions survive detach and
	// re-attach.
	Subscribe(targetID string, fn EventFunc) string
	Unsubscribe(token string)

	ListTabs(ctx context.Context) ([]TabInfo, error)
	CreateTab(ctx context.Context, url string) (string, error)
	CloseTab(ctx context.Context, targetID string) error
	// ActiveTab returns the focused page target, or "" when no page is
	// open.
	ActiveTab(ctx context.Context) (string, error)
	SetActiveTab(ctx context.Context, targetID string) error
}
