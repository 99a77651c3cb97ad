package core

import "pkt.systems/pslog"

// ServiceDeps captures dependencies for the core service. Bridge and
// Executor are checked per operation; Editor defaults to an in-memory
// surface when nil.
type ServiceDeps struct {
	Bridge    Bridge
	Executor  Executor
	Editor    EditorSurface
	EventSink EventSink
	Confirmer Confirmer
	Logger    pslog.Logger
}
