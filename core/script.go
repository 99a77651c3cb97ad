package core

import "orbyte.systems/orbyte/schema"

// script tracks the state of a single inventory entry. Content is loaded
// lazily; lastSaved mirrors what the bridge last confirmed on disk.
type script struct {
	ID        schema.ScriptID
	Name      schema.ScriptName
	Path      string
	content   string
	lastSaved string
	loaded    bool
	running   bool
	console   *console
}

func (s *script) dirty() bool {
	return s.loaded && s.content != s.lastSaved
}

// Snapshot returns a transport-friendly view of the script.
func (s *script) Snapshot(open, active bool) schema.ScriptSnapshot {
	return schema.ScriptSnapshot{
		ID:      s.ID,
		Name:    s.Name,
		Path:    s.Path,
		Dirty:   s.dirty(),
		Loaded:  s.loaded,
		Running: s.running,
		Open:    open,
		Active:  active,
	}
}
