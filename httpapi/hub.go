package httpapi

import (
	"context"
	"sync"
	"time"

	"orbyte.systems/orbyte/internal/logx"
	"orbyte.systems/orbyte/schema"
)

// StreamEvent is sent to SSE clients.
type StreamEvent struct {
	Seq         uint64                 `json:"seq"`
	Type        string                 `json:"type"`
	ScriptEvent string                 `json:"script_event,omitempty"`
	Script      *schema.ScriptSnapshot `json:"script,omitempty"`
	ActiveTab   schema.ScriptID        `json:"active_tab,omitempty"`
	ExecEvent   string                 `json:"exec_event,omitempty"`
	Filename    schema.ScriptName      `json:"filename,omitempty"`
	Content     string                 `json:"content,omitempty"`
	Error       string                 `json:"error,omitempty"`
	Snapshot    *SnapshotPayload       `json:"snapshot,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// SnapshotPayload seeds client state on connect.
type SnapshotPayload struct {
	Scripts   []schema.ScriptSnapshot                    `json:"scripts"`
	Tabs      []schema.TabSnapshot                       `json:"tabs"`
	ActiveTab schema.ScriptID                            `json:"active_tab"`
	Consoles  map[schema.ScriptID]schema.ConsoleSnapshot `json:"consoles"`
}

// Hub broadcasts workspace events to SSE subscribers.
type Hub struct {
	mu          sync.Mutex
	seq         uint64
	history     []StreamEvent
	subs        map[chan StreamEvent]struct{}
	historySize int
}

// NewHub constructs a hub with the given history size.
func NewHub(historySize int) *Hub {
	if historySize <= 0 {
		historySize = 1000
	}
	return &Hub{
		subs:        make(map[chan StreamEvent]struct{}),
		historySize: historySize,
	}
}

// OnScriptEvent implements core.EventSink.
func (h *Hub) OnScriptEvent(event schema.ScriptEvent) {
	log := logx.WithScript(context.Background(), event.Script.ID)
	log.Trace("hub script event", "type", event.Type, "name", event.Script.Name)
	script := event.Script
	h.publish(StreamEvent{
		Type:        "script",
		ScriptEvent: string(event.Type),
		Script:      &script,
		ActiveTab:   event.ActiveTab,
		Timestamp:   time.Now(),
	})
}

// OnExecEvent implements core.EventSink.
func (h *Hub) OnExecEvent(event schema.ExecEvent) {
	log := logx.Ctx(context.Background()).With("script_name", event.Filename)
	log.Trace("hub exec event", "type", event.Type)
	h.publish(StreamEvent{
		Type:      "exec",
		ExecEvent: string(event.Type),
		Filename:  event.Filename,
		Content:   event.Content,
		Error:     event.Error,
		Timestamp: time.Now(),
	})
}

// Subscribe registers a subscriber.
func (h *Hub) Subscribe() (<-chan StreamEvent, func(), uint64, []StreamEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan StreamEvent, 256)
	h.subs[ch] = struct{}{}
	history := append([]StreamEvent(nil), h.history...)
	seq := h.seq
	log := logx.Ctx(context.Background())
	log.Info("hub subscribe", "subs", len(h.subs), "history", len(history))
	unsub := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		close(ch)
		remaining := len(h.subs)
		h.mu.Unlock()
		log.Info("hub unsubscribe", "subs", remaining)
	}
	return ch, unsub, seq, history
}

// Replay returns events after the provided seq.
func (h *Hub) Replay(after uint64) []StreamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	events := make([]StreamEvent, 0, len(h.history))
	for _, event := range h.history {
		if event.Seq > after {
			events = append(events, event)
		}
	}
	logx.Ctx(context.Background()).Debug("hub replay", "after", after, "count", len(events))
	return events
}

func (h *Hub) publish(event StreamEvent) {
	h.mu.Lock()
	h.seq++
	event.Seq = h.seq
	h.history = append(h.history, event)
	if len(h.history) > h.historySize {
		h.history = h.history[len(h.history)-h.historySize:]
	}
	subs := make([]chan StreamEvent, 0, len(h.subs))
	for sub := range h.subs {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		logx.Ctx(context.Background()).Warn("hub event dropped", "type", event.Type, "dropped", dropped)
	}
}
