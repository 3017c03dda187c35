// Package hosttest provides a deterministic in-memory host.Host for tests.
package hosttest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sheacoding/browser-agent-extension/internal/host"
)

// Call records one Send invocation.
type Call struct {
	TargetID string
	Method   string
	Params   map[string]any
}

type sub struct {
	targetID string
	fn       host.EventFunc
}

// Fake implements host.Host with scripted responses and recorded calls.
// Events emitted through it are delivered synchronously.
type Fake struct {
	mu           sync.Mutex
	attached     map[string]bool
	attachCalls  map[string]int
	detachCalls  map[string]int
	denyAttach   map[string]error
	calls        []Call
	results      map[string]json.RawMessage
	failures     map[string]error
	handlers     map[string]func(Call) (any, error)
	subs         map[string]*sub
	seq          int
	tabs         []host.TabInfo
	active       string
	createdTabs  []string
	closedTabs   []string
	nextCreateID int
}

func NewFake() *Fake {
	return &Fake{
		attached:    make(map[string]bool),
		attachCalls: make(map[string]int),
		detachCalls: make(map[string]int),
		denyAttach:  make(map[string]error),
		results:     make(map[string]json.RawMessage),
		failures:    make(map[string]error),
		handlers:    make(map[string]func(Call) (any, error)),
		subs:        make(map[string]*sub),
	}
}

// Stub sets a fixed result for a method. The value is marshaled once.
func (f *Fake) Stub(method string, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		panic(fmt.Sprintf("hosttest: bad stub for %s: %v", method, err))
	}
	f.mu.Lock()
	f.results[method] = raw
	delete(f.failures, method)
	f.mu.Unlock()
}

// StubError makes a method fail.
func (f *Fake) StubError(method string, err error) {
	f.mu.Lock()
	f.failures[method] = err
	f.mu.Unlock()
}

// Handle installs a per-call function for a method, taking precedence
// over Stub.
func (f *Fake) Handle(method string, fn func(Call) (any, error)) {
	f.mu.Lock()
	f.handlers[method] = fn
	f.mu.Unlock()
}

// EvalResult wraps a script return value in the envelope Runtime.evaluate
// produces.
func EvalResult(value any) map[string]any {
	return map[string]any{
		"result": map[string]any{"type": "object", "value": value},
	}
}

// EvalException builds a Runtime.evaluate result describing a thrown
// exception.
func EvalException(description string) map[string]any {
	return map[string]any{
		"result": map[string]any{"type": "object"},
		"exceptionDetails": map[string]any{
			"text":      "Uncaught",
			"exception": map[string]any{"description": description},
		},
	}
}

func (f *Fake) DenyAttach(targetID string, err error) {
	f.mu.Lock()
	f.denyAttach[targetID] = err
	f.mu.Unlock()
}

func (f *Fake) Attach(ctx context.Context, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachCalls[targetID]++
	if err := f.denyAttach[targetID]; err != nil {
		return err
	}
	f.attached[targetID] = true
	return nil
}

func (f *Fake) Detach(ctx context.Context, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.detachCalls[targetID]++
	delete(f.attached, targetID)
	return nil
}

func (f *Fake) Send(ctx context.Context, targetID, method string, params any) (json.RawMessage, error) {
	call := Call{TargetID: targetID, Method: method, Params: normalize(params)}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	handler := f.handlers[method]
	failure := f.failures[method]
	result, hasResult := f.results[method]
	f.mu.Unlock()

	if handler != nil {
		out, err := handler(call)
		if err != nil {
			return nil, err
		}
		return json.Marshal(out)
	}
	if failure != nil {
		return nil, failure
	}
	if hasResult {
		return result, nil
	}
	return json.RawMessage(`{}`), nil
}

func normalize(params any) map[string]any {
	if params == nil {
		return nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func (f *Fake) Subscribe(targetID string, fn host.EventFunc) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	token := fmt.Sprintf("sub_%08d", f.seq)
	f.subs[token] = &sub{targetID: targetID, fn: fn}
	return token
}

func (f *Fake) Unsubscribe(token string) {
	f.mu.Lock()
	delete(f.subs, token)
	f.mu.Unlock()
}

// EmitEvent delivers an event to all subscribers of the target,
// synchronously on the caller's goroutine.
func (f *Fake) EmitEvent(targetID, method string, params json.RawMessage) {
	f.mu.Lock()
	fns := make([]host.EventFunc, 0, len(f.subs))
	for _, s := range f.subs {
		if s.targetID == targetID {
			fns = append(fns, s.fn)
		}
	}
	f.mu.Unlock()

	ev := host.Event{TargetID: targetID, Method: method, Params: params}
	for _, fn := range fns {
		fn(ev)
	}
}

// ForceDetach simulates the browser revoking the debugger session.
func (f *Fake) ForceDetach(targetID string) {
	f.mu.Lock()
	delete(f.attached, targetID)
	f.mu.Unlock()
	f.EmitEvent(targetID, host.EventDetached, json.RawMessage(`{"reason":"canceled_by_user"}`))
}

func (f *Fake) SetTabs(tabs []host.TabInfo) {
	f.mu.Lock()
	f.tabs = tabs
	f.mu.Unlock()
}

func (f *Fake) SetActive(targetID string) {
	f.mu.Lock()
	f.active = targetID
	f.mu.Unlock()
}

func (f *Fake) ListTabs(ctx context.Context) ([]host.TabInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]host.TabInfo, len(f.tabs))
	copy(out, f.tabs)
	return out, nil
}

func (f *Fake) CreateTab(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCreateID++
	id := fmt.Sprintf("tab_created_%d", f.nextCreateID)
	f.tabs = append(f.tabs, host.TabInfo{TargetID: id, URL: url})
	f.createdTabs = append(f.createdTabs, id)
	return id, nil
}

func (f *Fake) CloseTab(ctx context.Context, targetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closedTabs = append(f.closedTabs, targetID)
	kept := f.tabs[:0]
	for _, t := range f.tabs {
		if t.TargetID != targetID {
			kept = append(kept, t)
		}
	}
	f.tabs = kept
	return nil
}

func (f *Fake) ActiveTab(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tabs {
		if t.TargetID == f.active {
			return f.active, nil
		}
	}
	if len(f.tabs) == 0 {
		return "", nil
	}
	return f.tabs[0].TargetID, nil
}

func (f *Fake) SetActiveTab(ctx context.Context, targetID string) error {
	f.mu.Lock()
	f.active = targetID
	f.mu.Unlock()
	return nil
}

// Calls returns every recorded Send.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallsFor returns the recorded Sends of one method, in order.
func (f *Fake) CallsFor(method string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *Fake) AttachCount(targetID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attachCalls[targetID]
}

func (f *Fake) DetachCount(targetID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.detachCalls[targetID]
}

func (f *Fake) Attached(targetID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attached[targetID]
}

func (f *Fake) SubscriberCount(targetID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.subs {
		if s.targetID == targetID {
			n++
		}
	}
	return n
}

func (f *Fake) ClosedTabs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.closedTabs))
	copy(out, f.closedTabs)
	return out
}

func (f *Fake) CreatedTabs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.createdTabs))
	copy(out, f.createdTabs)
	return out
}
