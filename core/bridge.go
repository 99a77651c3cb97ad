package core

import (
	"context"

	"orbyte.systems/orbyte/schema"
)

// Bridge is the storage backend for script files. Implementations must
// treat script names as opaque file names under a single root.
type Bridge interface {
	List(ctx context.Context) ([]schema.ScriptRef, error)
	Load(ctx context.Context, name schema.ScriptName) (string, error)
	Save(ctx context.Context, name schema.ScriptName, content string) error
	Rename(ctx context.Context, oldName, newName schema.ScriptName) (schema.ScriptRef, error)
	Delete(ctx context.Context, name schema.ScriptName) error
	Reveal(ctx context.Context, name schema.ScriptName) error
}

// Executor runs script content asynchronously. Progress is reported
// through exec events delivered to the service via HandleExecEvent.
type Executor interface {
	Run(ctx context.Context, name schema.ScriptName, content string) schema.RunResult
	Stop(ctx context.Context, name schema.ScriptName)
	Running(name schema.ScriptName) bool
}

// Confirmer resolves destructive-action prompts. A nil Confirmer declines
// every prompt, so headless callers must set Force on their requests.
type Confirmer interface {
	ConfirmDiscard(ctx context.Context, name schema.ScriptName) bool
	ConfirmDelete(ctx context.Context, name schema.ScriptName) bool
}
