package orbyte

import (
	"orbyte.systems/orbyte/core"
	"orbyte.systems/orbyte/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnScriptEvent(event schema.ScriptEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnScriptEvent(event)
	}
}

func (f eventFanout) OnExecEvent(event schema.ExecEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnExecEvent(event)
	}
}
