package schema

// ScriptEventType describes script or tab lifecycle changes.
type ScriptEventType string

const (
	// ScriptEventCreated indicates a script was created.
	ScriptEventCreated ScriptEventType = "created"
	// ScriptEventOpened indicates a script was opened as a tab.
	ScriptEventOpened ScriptEventType = "opened"
	// ScriptEventClosed indicates a tab was closed.
	ScriptEventClosed ScriptEventType = "closed"
	// ScriptEventActivated indicates a tab became active.
	ScriptEventActivated ScriptEventType = "activated"
	// ScriptEventSaved indicates a script was saved.
	ScriptEventSaved ScriptEventType = "saved"
	// ScriptEventRenamed indicates a script was renamed.
	ScriptEventRenamed ScriptEventType = "renamed"
	// ScriptEventDeleted indicates a script was deleted.
	ScriptEventDeleted ScriptEventType = "deleted"
	// ScriptEventDirty indicates a script's dirty flag changed.
	ScriptEventDirty ScriptEventType = "dirty"
	// ScriptEventStatus indicates a script's running status changed.
	ScriptEventStatus ScriptEventType = "status"
	// ScriptEventListed indicates the inventory was reloaded.
	ScriptEventListed ScriptEventType = "listed"
)

// ScriptEvent represents a change to a script or the open-tab sequence.
type ScriptEvent struct {
	Type      ScriptEventType
	Script    ScriptSnapshot
	ActiveTab ScriptID
}

// ExecEventType identifies asynchronous execution notifications.
type ExecEventType string

const (
	// ExecStarted marks the beginning of a script run.
	ExecStarted ExecEventType = "script_start"
	// ExecOutput carries captured script output.
	ExecOutput ExecEventType = "script_output"
	// ExecError carries a script runtime error.
	ExecError ExecEventType = "script_error"
	// ExecEnded marks the end of a script run.
	ExecEnded ExecEventType = "script_end"
)

// ExecEvent is an asynchronous notification from the execution engine.
// Filename addresses the script by name; events for names with no matching
// script record are ignored by the service.
type ExecEvent struct {
	Type     ExecEventType
	Filename ScriptName
	Content  string
	Error    string
}

// RunResult reports whether an execution request was accepted.
type RunResult struct {
	Success bool
	Error   string
}
