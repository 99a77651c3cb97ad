package schema

// ScriptSnapshot is a read-only view of a script record for transports.
type ScriptSnapshot struct {
	ID      ScriptID
	Name    ScriptName
	Path    string
	Dirty   bool
	Loaded  bool
	Running bool
	Open    bool
	Active  bool
}

// TabSnapshot is a read-only view of an open tab.
type TabSnapshot struct {
	Index  int
	Script ScriptSnapshot
}

// ConsoleSnapshot represents the current console scrollback view for a script.
type ConsoleSnapshot struct {
	ScriptID     ScriptID
	Lines        []string
	TotalLines   int
	ScrollOffset int
	AtBottom     bool
}
