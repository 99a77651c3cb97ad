package core

import "orbyte.systems/orbyte/schema"

// EventSink receives script and execution events from the core service.
type EventSink interface {
	OnScriptEvent(event schema.ScriptEvent)
	OnExecEvent(event schema.ExecEvent)
}
