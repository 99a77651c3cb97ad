package eventbus

import (
	"testing"
	"time"

	"orbyte.systems/orbyte/schema"
)

func TestSubscribeAndPublish(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe()
	defer cancel()

	event := schema.ExecEvent{Type: schema.ExecOutput, Filename: "run.js", Content: "hi"}
	bus.OnExecEvent(event)

	select {
	case got := <-ch:
		if got.Type != EventExec {
			t.Fatalf("expected exec event, got %v", got.Type)
		}
		if got.Exec.Filename != event.Filename || got.Exec.Content != event.Content {
			t.Fatalf("unexpected payload: %+v", got.Exec)
		}
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("timed out waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	bus := New(nil)
	ch, cancel := bus.Subscribe()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel to be closed")
	}
}

func TestPublishDoesNotBlockWhenFull(t *testing.T) {
	bus := New(nil)
	bus.depth = 1
	_, cancel := bus.Subscribe()
	defer cancel()

	var sendCh chan Event
	bus.mu.Lock()
	for ch := range bus.subs {
		sendCh = ch
		break
	}
	bus.mu.Unlock()
	if sendCh == nil {
		t.Fatalf("expected subscriber channel")
	}
	sendCh <- Event{Type: EventScript}
	done := make(chan struct{})
	go func() {
		bus.OnScriptEvent(schema.ScriptEvent{Type: schema.ScriptEventListed})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatalf("publish blocked on full channel")
	}
}
