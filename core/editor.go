package core

import "sync"

// EditorSurface is the single text editing surface shared by every tab.
// The service pushes the active script's content into it on activation
// and reads nothing back; content updates arrive through SetContent.
type EditorSurface interface {
	SetValue(content string)
	Value() string
	Focus()
}

// memoryEditor is an in-process editor surface. It backs headless
// deployments where no UI toolkit owns the text widget.
type memoryEditor struct {
	mu    sync.Mutex
	value string
}

// NewMemoryEditor returns an in-memory editor surface.
func NewMemoryEditor() EditorSurface {
	return &memoryEditor{}
}

func (e *memoryEditor) SetValue(content string) {
	e.mu.Lock()
	e.value = content
	e.mu.Unlock()
}

func (e *memoryEditor) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (e *memoryEditor) Focus() {}
