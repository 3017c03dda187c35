package executor

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sheacoding/browser-agent-extension/internal/config"
	"github.com/sheacoding/browser-agent-extension/internal/rpc"
)

const (
	reconnectMin = time.Second
	reconnectMax = 15 * time.Second
)

// Client dials the bridge and serves request envelopes until its
// context ends, reconnecting with capped backoff in between.
type Client struct {
	cfg *config.RuntimeConfig
	rt  *Runtime

	writeMu sync.Mutex
}

func NewClient(cfg *config.RuntimeConfig, rt *Runtime) *Client {
	return &Client{cfg: cfg, rt: rt}
}

// Run connects, serves, and reconnects until ctx is done. It only
// returns the context's error; connection failures are retried.
func (c *Client) Run(ctx context.Context) error {
	backoff := reconnectMin
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.BridgeURL(), nil)
		if err != nil {
			slog.Warn("bridge dial", "url", c.cfg.BridgeURL(), "retryIn", backoff, "err", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, reconnectMax)
			continue
		}

		backoff = reconnectMin
		slog.Info("connected to bridge", "url", c.cfg.BridgeURL())
		c.serve(ctx, conn)
		conn.Close()
	}
}

// serve reads request envelopes until the connection drops. Actions run
// concurrently; responses correlate by id, so ordering is free.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var env rpc.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			if ctx.Err() == nil {
				slog.Warn("bridge connection lost", "err", err)
			}
			return
		}
		if env.Type != rpc.TypeRequest {
			slog.Debug("ignoring frame", "type", env.Type)
			continue
		}
		go c.handle(ctx, conn, &env)
	}
}

// handle applies one request and always answers it: every failure,
// parse or apply, becomes a success=false payload.
func (c *Client) handle(ctx context.Context, conn *websocket.Conn, env *rpc.Envelope) {
	payload := &rpc.Payload{}

	data, err := c.apply(ctx, env)
	if err != nil {
		slog.Warn("action failed", "id", env.ID, "action", env.Action, "err", err)
		payload.Error = err.Error()
	} else {
		payload.Success = true
		payload.Data = data
	}

	reply := &rpc.Envelope{Type: rpc.TypeResponse, ID: env.ID, Payload: payload}
	c.writeMu.Lock()
	werr := conn.WriteJSON(reply)
	c.writeMu.Unlock()
	if werr != nil {
		slog.Warn("write response", "id", env.ID, "err", werr)
	}
}

func (c *Client) apply(ctx context.Context, env *rpc.Envelope) (json.RawMessage, error) {
	act, err := ParseAction(env.Action, env.Params)
	if err != nil {
		return nil, err
	}
	out, err := c.rt.Apply(ctx, act)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{"ok": true}
	}
	return json.Marshal(out)
}
