package eventbus

import (
	"context"
	"sync"

	"orbyte.systems/orbyte/schema"
	"pkt.systems/pslog"
)

// EventType identifies the event payload.
type EventType string

const (
	// EventScript carries script or tab lifecycle updates.
	EventScript EventType = "script"
	// EventExec carries execution engine notifications.
	EventExec EventType = "exec"
)

// Event represents a panel-facing event emitted by the core service.
type Event struct {
	Type   EventType
	Script schema.ScriptEvent
	Exec   schema.ExecEvent
}

// Bus fanouts events to subscribers.
type Bus struct {
	mu    sync.Mutex
	subs  map[chan Event]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[chan Event]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber and returns a channel + cancel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan Event, b.depth)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	count := len(b.subs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.Debug("eventbus subscribe", "subs", count)
	}
	return ch, func() {
		b.mu.Lock()
		delete(b.subs, ch)
		b.mu.Unlock()
		close(ch)
		if b.log != nil {
			b.log.Debug("eventbus unsubscribe")
		}
	}
}

// OnScriptEvent publishes a script lifecycle event.
func (b *Bus) OnScriptEvent(event schema.ScriptEvent) {
	b.publish(Event{Type: EventScript, Script: event})
}

// OnExecEvent publishes an execution notification.
func (b *Bus) OnExecEvent(event schema.ExecEvent) {
	b.publish(Event{Type: EventExec, Exec: event})
}

func (b *Bus) publish(event Event) {
	if b == nil {
		return
	}
	b.mu.Lock()
	subs := make([]chan Event, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()
	if len(subs) == 0 {
		return
	}
	dropped := 0
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 && b.log != nil {
		b.log.Trace("eventbus dropped", "count", dropped)
	}
}
