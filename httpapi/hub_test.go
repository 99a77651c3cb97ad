package httpapi

import (
	"testing"
	"time"

	"orbyte.systems/orbyte/schema"
)

func TestHubPublishAndReplay(t *testing.T) {
	hub := NewHub(10)
	ch, unsub, seq, history := hub.Subscribe()
	defer unsub()
	if seq != 0 || len(history) != 0 {
		t.Fatalf("expected empty hub, got seq %d history %d", seq, len(history))
	}

	hub.OnScriptEvent(schema.ScriptEvent{
		Type:   schema.ScriptEventSaved,
		Script: schema.ScriptSnapshot{ID: "s1", Name: "alpha.js"},
	})
	hub.OnExecEvent(schema.ExecEvent{
		Type:     schema.ExecOutput,
		Filename: "alpha.js",
		Content:  "hello",
	})

	var events []StreamEvent
	for len(events) < 2 {
		select {
		case event := <-ch:
			events = append(events, event)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, got %d", len(events))
		}
	}
	if events[0].Type != "script" || events[0].ScriptEvent != string(schema.ScriptEventSaved) {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	if events[1].Type != "exec" || events[1].Content != "hello" {
		t.Fatalf("unexpected second event: %+v", events[1])
	}
	if events[0].Seq != 1 || events[1].Seq != 2 {
		t.Fatalf("unexpected seqs: %d %d", events[0].Seq, events[1].Seq)
	}

	replay := hub.Replay(1)
	if len(replay) != 1 || replay[0].Seq != 2 {
		t.Fatalf("unexpected replay: %+v", replay)
	}
}

func TestHubTrimsHistory(t *testing.T) {
	hub := NewHub(3)
	for i := 0; i < 5; i++ {
		hub.OnExecEvent(schema.ExecEvent{Type: schema.ExecOutput, Filename: "a.js"})
	}
	replay := hub.Replay(0)
	if len(replay) != 3 {
		t.Fatalf("expected trimmed history of 3, got %d", len(replay))
	}
	if replay[0].Seq != 3 {
		t.Fatalf("expected oldest retained seq 3, got %d", replay[0].Seq)
	}
}
