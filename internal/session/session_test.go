package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/sheacoding/browser-agent-extension/internal/errdefs"
	"github.com/sheacoding/browser-agent-extension/internal/host"
	"github.com/sheacoding/browser-agent-extension/internal/host/hosttest"
)

func TestAttachIdempotent(t *testing.T) {
	f := hosttest.NewFake()
	s := New(f, "tab1")

	if err := s.Attach(context.Background()); err != nil {
		t.Fatalf("first attach: %v", err)
	}
	if err := s.Attach(context.Background()); err != nil {
		t.Fatalf("second attach: %v", err)
	}
	if got := f.AttachCount("tab1"); got != 1 {
		t.Errorf("host attach count = %d, want 1", got)
	}
	if s.State() != StateAttached {
		t.Errorf("state = %v, want attached", s.State())
	}
}

func TestAttachDenied(t *testing.T) {
	f := hosttest.NewFake()
	f.DenyAttach("tab1", fmt.Errorf("no such target"))
	s := New(f, "tab1")

	err := s.Attach(context.Background())
	var ae *errdefs.AttachmentError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AttachmentError, got %v", err)
	}
	if ae.TargetID != "tab1" {
		t.Errorf("TargetID = %q", ae.TargetID)
	}
	if s.State() != StateDetached {
		t.Errorf("state after denied attach = %v, want detached", s.State())
	}
}

func TestSendRequiresAttachment(t *testing.T) {
	f := hosttest.NewFake()
	s := New(f, "tab1")

	_, err := s.Send(context.Background(), "Page.enable", nil)
	var ae *errdefs.AttachmentError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AttachmentError, got %v", err)
	}
	if len(f.Calls()) != 0 {
		t.Errorf("host saw %d sends, want 0", len(f.Calls()))
	}

	if err := s.Attach(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Send(context.Background(), "Page.enable", nil); err != nil {
		t.Fatalf("send while attached: %v", err)
	}
}

func TestDetachIdempotent(t *testing.T) {
	f := hosttest.NewFake()
	s := New(f, "tab1")
	if err := s.Attach(context.Background()); err != nil {
		t.Fatal(err)
	}

	s.Detach(context.Background())
	s.Detach(context.Background())

	if got := f.DetachCount("tab1"); got != 1 {
		t.Errorf("host detach count = %d, want 1", got)
	}
	if s.State() != StateDetached {
		t.Errorf("state = %v, want detached", s.State())
	}
}

func TestForcedDetachFlipsState(t *testing.T) {
	f := hosttest.NewFake()
	s := New(f, "tab1")
	if err := s.Attach(context.Background()); err != nil {
		t.Fatal(err)
	}

	f.ForceDetach("tab1")

	if s.State() != StateDetached {
		t.Fatalf("state after forced detach = %v, want detached", s.State())
	}
	if _, err := s.Send(context.Background(), "Page.enable", nil); err == nil {
		t.Error("send after forced detach should fail")
	}
}

func TestReattachAfterForcedDetach(t *testing.T) {
	f := hosttest.NewFake()
	s := New(f, "tab1")
	if err := s.Attach(context.Background()); err != nil {
		t.Fatal(err)
	}
	f.ForceDetach("tab1")

	if err := s.Attach(context.Background()); err != nil {
		t.Fatalf("reattach: %v", err)
	}
	if s.State() != StateAttached {
		t.Errorf("state = %v, want attached", s.State())
	}
	if got := f.AttachCount("tab1"); got != 2 {
		t.Errorf("host attach count = %d, want 2", got)
	}
	// The internal watcher must not be duplicated across reattach.
	if got := f.SubscriberCount("tab1"); got != 1 {
		t.Errorf("subscriber count = %d, want 1", got)
	}
}

func TestOnOffSubscriptions(t *testing.T) {
	f := hosttest.NewFake()
	s := New(f, "tab1")

	var got []string
	token := s.On(func(ev host.Event) {
		got = append(got, ev.Method)
	})

	f.EmitEvent("tab1", host.EventLoadFired, nil)
	f.EmitEvent("tab2", host.EventLoadFired, nil) // different target, must not arrive
	f.EmitEvent("tab1", host.EventBindingCalled, json.RawMessage(`{"name":"x","payload":"{}"}`))

	if len(got) != 2 || got[0] != host.EventLoadFired || got[1] != host.EventBindingCalled {
		t.Fatalf("received %v", got)
	}

	s.Off(token)
	f.EmitEvent("tab1", host.EventLoadFired, nil)
	if len(got) != 2 {
		t.Errorf("event delivered after Off, received %v", got)
	}
}

func TestCloseDropsWatcher(t *testing.T) {
	f := hosttest.NewFake()
	s := New(f, "tab1")
	if err := s.Attach(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := f.SubscriberCount("tab1"); got != 1 {
		t.Fatalf("subscriber count = %d, want 1", got)
	}

	s.Close(context.Background())
	if got := f.SubscriberCount("tab1"); got != 0 {
		t.Errorf("subscriber count after close = %d, want 0", got)
	}
	if s.State() != StateDetached {
		t.Errorf("state = %v, want detached", s.State())
	}
}
