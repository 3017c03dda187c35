package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sheacoding/browser-agent-extension/internal/errdefs"
)

const defaultCallTimeout = 30 * time.Second

type pendingCall struct {
	action  string
	resolve chan json.RawMessage
	reject  chan error
	timer   *time.Timer
}

// Bridge holds the single peer connection and the calls waiting on it.
// A pending entry is removed exactly once: whoever deletes it from the
// map, response handler or timer, owns its completion.
type Bridge struct {
	timeout time.Duration

	mu      sync.Mutex
	peer    *websocket.Conn
	peerID  string
	pending map[string]*pendingCall
	nextID  uint64

	// writeMu serializes frames onto the peer connection.
	writeMu sync.Mutex

	sent     atomic.Int64
	resolved atomic.Int64
	rejected atomic.Int64
	timedOut atomic.Int64
}

func NewBridge(timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Bridge{
		timeout: timeout,
		pending: make(map[string]*pendingCall),
	}
}

// Call sends one action to the peer and blocks until its response or
// the default timeout.
func (b *Bridge) Call(action string, params any) (json.RawMessage, error) {
	return b.CallWithTimeout(action, params, b.timeout)
}

// CallWithTimeout is Call with a caller-chosen deadline. With no peer
// connected it fails immediately and registers nothing. Cancellation is
// timeout-driven only; there is no way to revoke an in-flight call.
func (b *Bridge) CallWithTimeout(action string, params any, timeout time.Duration) (json.RawMessage, error) {
	b.mu.Lock()
	conn := b.peer
	b.mu.Unlock()
	if conn == nil {
		return nil, &errdefs.ConnectionError{Message: "no browser client connected"}
	}

	var raw json.RawMessage
	if params != nil {
		var err error
		raw, err = json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params for %s: %w", action, err)
		}
	}

	call := &pendingCall{
		action:  action,
		resolve: make(chan json.RawMessage, 1),
		reject:  make(chan error, 1),
	}

	b.mu.Lock()
	b.nextID++
	id := fmt.Sprintf("req_%d", b.nextID)
	call.timer = time.AfterFunc(timeout, func() { b.expire(id, action, timeout) })
	b.pending[id] = call
	b.mu.Unlock()

	env := &Envelope{Type: TypeRequest, ID: id, Action: action, Params: raw}
	b.writeMu.Lock()
	err := conn.WriteJSON(env)
	b.writeMu.Unlock()
	if err != nil {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
		call.timer.Stop()
		return nil, &errdefs.ConnectionError{Message: fmt.Sprintf("write to browser client: %v", err)}
	}
	b.sent.Add(1)

	select {
	case data := <-call.resolve:
		return data, nil
	case err := <-call.reject:
		return nil, err
	}
}

// expire rejects a call whose deadline passed. The liveness check under
// the lock keeps a response that won the race from being rejected too.
func (b *Bridge) expire(id, action string, timeout time.Duration) {
	b.mu.Lock()
	call, live := b.pending[id]
	delete(b.pending, id)
	b.mu.Unlock()
	if !live {
		return
	}

	b.timedOut.Add(1)
	call.reject <- &errdefs.TimeoutError{
		Message: fmt.Sprintf("action %q timed out after %s", action, timeout),
	}
}

// HandleResponse completes the pending call matching the envelope id.
// Replies for unknown ids, typically calls that already timed out, are
// logged and dropped.
func (b *Bridge) HandleResponse(env *Envelope) {
	b.mu.Lock()
	call, ok := b.pending[env.ID]
	delete(b.pending, env.ID)
	b.mu.Unlock()

	if !ok {
		slog.Warn("reply for unknown call", "id", env.ID)
		return
	}
	call.timer.Stop()

	if env.Payload == nil {
		b.rejected.Add(1)
		call.reject <- &errdefs.ConnectionError{
			Message: fmt.Sprintf("malformed response for %s: missing payload", env.ID),
		}
		return
	}
	if !env.Payload.Success {
		msg := env.Payload.Error
		if msg == "" {
			msg = "action failed"
		}
		b.rejected.Add(1)
		call.reject <- errors.New(msg)
		return
	}

	b.resolved.Add(1)
	call.resolve <- env.Payload.Data
}

// RegisterPeer installs a new peer connection, closing the one it
// replaces. Calls pending on the old connection stay registered and
// run out their timers.
func (b *Bridge) RegisterPeer(conn *websocket.Conn, id string) {
	b.mu.Lock()
	old := b.peer
	oldID := b.peerID
	b.peer = conn
	b.peerID = id
	inflight := len(b.pending)
	b.mu.Unlock()

	if old != nil && old != conn {
		old.Close()
		slog.Info("browser client replaced", "old", oldID, "new", id, "inflight", inflight)
		return
	}
	slog.Info("browser client connected", "client", id)
}

// Disconnect clears the peer slot if conn still occupies it. Pending
// calls are left to their timers, matching the replacement path.
func (b *Bridge) Disconnect(conn *websocket.Conn) {
	b.mu.Lock()
	if b.peer != conn {
		b.mu.Unlock()
		return
	}
	id := b.peerID
	b.peer = nil
	b.peerID = ""
	inflight := len(b.pending)
	b.mu.Unlock()

	slog.Info("browser client disconnected", "client", id, "inflight", inflight)
}

func (b *Bridge) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peer != nil
}

func (b *Bridge) PeerID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.peerID
}

func (b *Bridge) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Stats are cumulative request counters since startup.
type Stats struct {
	Sent     int64 `json:"sent"`
	Resolved int64 `json:"resolved"`
	Rejected int64 `json:"rejected"`
	TimedOut int64 `json:"timedOut"`
}

func (b *Bridge) Stats() Stats {
	return Stats{
		Sent:     b.sent.Load(),
		Resolved: b.resolved.Load(),
		Rejected: b.rejected.Load(),
		TimedOut: b.timedOut.Load(),
	}
}
