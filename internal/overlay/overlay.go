// Package overlay pushes status notifications to the in-page overlay
// through the bridge. Notifications are best effort: failures become
// NotifyError, get logged, and never reach the action's outcome.
package overlay

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

const notifyTimeout = 5 * time.Second

// Caller is the slice of the bridge the notifier needs.
type Caller interface {
	CallWithTimeout(action string, params any, timeout time.Duration) (json.RawMessage, error)
}

// NotifyError wraps a failed overlay notification with the operation
// that caused it.
type NotifyError struct {
	Op  string
	Err error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("overlay %s: %v", e.Op, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }

// Notifier drives the page-side overlay. Its notification methods never
// return errors; there is nothing useful a caller could do with one.
type Notifier struct {
	caller Caller
}

func NewNotifier(c Caller) *Notifier {
	return &Notifier{caller: c}
}

func (n *Notifier) Show(status string) {
	n.notify("showOverlay", map[string]any{"status": status})
}

func (n *Notifier) Update(status string, shimmer bool) {
	n.notify("updateOverlayStatus", map[string]any{"status": status, "shimmer": shimmer})
}

func (n *Notifier) Hide() {
	n.notify("hideOverlay", nil)
}

// State reads the overlay's current state. Callers that ask for state
// want the answer, so this one returns its error, wrapped.
func (n *Notifier) State() (json.RawMessage, error) {
	raw, err := n.caller.CallWithTimeout("getOverlayState", nil, notifyTimeout)
	if err != nil {
		return nil, &NotifyError{Op: "state", Err: err}
	}
	return raw, nil
}

func (n *Notifier) notify(action string, params any) {
	if _, err := n.caller.CallWithTimeout(action, params, notifyTimeout); err != nil {
		slog.Debug("overlay notify", "err", &NotifyError{Op: action, Err: err})
	}
}
