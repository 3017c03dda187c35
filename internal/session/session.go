// Package session tracks debugger attachment for a single page target
// and fans its events out to token-keyed subscribers.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/sheacoding/browser-agent-extension/internal/errdefs"
	"github.com/sheacoding/browser-agent-extension/internal/host"
)

type State int

const (
	StateDetached State = iota
	StateAttaching
	StateAttached
)

func (s State) String() string {
	switch s {
	case StateAttaching:
		return "attaching"
	case StateAttached:
		return "attached"
	default:
		return "detached"
	}
}

type Session struct {
	host     host.Host
	targetID string

	mu    sync.Mutex
	state State
	watch string
}

func New(h host.Host, targetID string) *Session {
	return &Session{host: h, targetID: targetID}
}

func (s *Session) TargetID() string {
	return s.targetID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attach connects the debugger to the target. Attaching an attached
// session is a no-op; concurrent callers serialize on the first attach.
func (s *Session) Attach(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateAttached {
		return nil
	}
	s.state = StateAttaching

	if err := s.host.Attach(ctx, s.targetID); err != nil {
		s.state = StateDetached
		return &errdefs.AttachmentError{TargetID: s.targetID, Reason: err.Error()}
	}

	if s.watch == "" {
		s.watch = s.host.Subscribe(s.targetID, s.handleHostEvent)
	}
	s.state = StateAttached
	return nil
}

// Detach releases the debugger. It never fails: host-side errors are
// logged and the session still ends up detached.
func (s *Session) Detach(ctx context.Context) {
	s.mu.Lock()
	if s.state == StateDetached {
		s.mu.Unlock()
		return
	}
	s.state = StateDetached
	s.mu.Unlock()

	if err := s.host.Detach(ctx, s.targetID); err != nil {
		slog.Debug("host detach", "target", s.targetID, "err", err)
	}
}

// Close detaches and drops the internal event watcher. The session can
// not be reattached afterwards without leaking events, so Close is for
// teardown only.
func (s *Session) Close(ctx context.Context) {
	s.Detach(ctx)
	s.mu.Lock()
	if s.watch != "" {
		s.host.Unsubscribe(s.watch)
		s.watch = ""
	}
	s.mu.Unlock()
}

// Send executes one devtools method. The session must be attached.
func (s *Session) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	s.mu.Lock()
	st := s.state
	s.mu.Unlock()

	if st != StateAttached {
		return nil, &errdefs.AttachmentError{TargetID: s.targetID, State: st.String()}
	}
	return s.host.Send(ctx, s.targetID, method, params)
}

// On subscribes fn to this target's events and returns the token that
// releases the subscription via Off.
func (s *Session) On(fn func(host.Event)) string {
	id := s.targetID
	return s.host.Subscribe(id, func(ev host.Event) {
		if ev.TargetID != id {
			return
		}
		fn(ev)
	})
}

func (s *Session) Off(token string) {
	s.host.Unsubscribe(token)
}

// handleHostEvent flips the session to detached when the browser revokes
// the debugger, regardless of who initiated it.
func (s *Session) handleHostEvent(ev host.Event) {
	if ev.Method != host.EventDetached {
		return
	}
	s.mu.Lock()
	was := s.state
	s.state = StateDetached
	s.mu.Unlock()

	if was != StateDetached {
		slog.Info("debugger detached", "target", s.targetID, "detail", string(ev.Params))
	}
}
