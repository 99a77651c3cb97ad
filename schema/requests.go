package schema

// Inventory operations.

// RefreshScriptsRequest asks the service to reload the script inventory
// from the backend bridge.
type RefreshScriptsRequest struct{}

// RefreshScriptsResponse reports the refreshed inventory.
type RefreshScriptsResponse struct {
	Scripts []ScriptSnapshot
}

// ListScriptsRequest describes a request for the current inventory.
type ListScriptsRequest struct{}

// ListScriptsResponse reports the inventory without touching the bridge.
type ListScriptsResponse struct {
	Scripts []ScriptSnapshot
}

// GetScriptRequest describes a request for a single script and its content.
type GetScriptRequest struct {
	ScriptID ScriptID
}

// GetScriptResponse reports the script snapshot and current content.
type GetScriptResponse struct {
	Script  ScriptSnapshot
	Content string
}

// Tab lifecycle.

// OpenScriptRequest describes a request to open a script as a tab.
type OpenScriptRequest struct {
	ScriptID ScriptID
}

// OpenScriptResponse reports the resolved tab.
type OpenScriptResponse struct {
	Tab TabSnapshot
}

// CreateScriptRequest describes a request for a fresh untitled script.
type CreateScriptRequest struct{}

// CreateScriptResponse reports the created, opened tab.
type CreateScriptResponse struct {
	Tab TabSnapshot
}

// ActivateTabRequest describes a request to activate a tab by index.
type ActivateTabRequest struct {
	Index int
}

// ActivateTabResponse reports whether the index addressed a tab.
type ActivateTabResponse struct {
	Activated bool
	Tab       TabSnapshot
}

// CloseTabRequest describes a request to close a tab by index.
// Force suppresses the dirty-confirmation prompt.
type CloseTabRequest struct {
	Index int
	Force bool
}

// CloseTabResponse reports whether the tab was closed and the new active tab.
type CloseTabResponse struct {
	Closed    bool
	ActiveTab ScriptID
}

// ListTabsRequest describes a request for the open-tab sequence.
type ListTabsRequest struct{}

// ListTabsResponse reports open tabs in open order and the active tab.
type ListTabsResponse struct {
	Tabs      []TabSnapshot
	ActiveTab ScriptID
}

// Content and persistence.

// SetContentRequest carries an editor content-changed notification.
type SetContentRequest struct {
	ScriptID ScriptID
	Content  string
}

// SetContentResponse reports the recomputed dirty flag.
type SetContentResponse struct {
	Dirty bool
}

// SaveActiveRequest describes a request to persist the active script.
type SaveActiveRequest struct{}

// SaveActiveResponse reports whether a save happened and the updated script.
type SaveActiveResponse struct {
	Saved  bool
	Script ScriptSnapshot
}

// RenameScriptRequest describes a request to rename a script.
// NewName must already be validated and normalized.
type RenameScriptRequest struct {
	ScriptID ScriptID
	NewName  ScriptName
}

// RenameScriptResponse reports the renamed script.
type RenameScriptResponse struct {
	Script ScriptSnapshot
}

// DeleteScriptRequest describes a request to delete a script.
// Force suppresses the confirmation prompt.
type DeleteScriptRequest struct {
	ScriptID ScriptID
	Force    bool
}

// DeleteScriptResponse reports whether the script was deleted.
type DeleteScriptResponse struct {
	Deleted   bool
	ActiveTab ScriptID
}

// RevealScriptRequest asks the bridge to show the script in the file manager.
type RevealScriptRequest struct {
	ScriptID ScriptID
}

// RevealScriptResponse acknowledges the reveal request.
type RevealScriptResponse struct{}

// Execution control.

// RunActiveRequest describes a request to execute the active script.
type RunActiveRequest struct{}

// RunActiveResponse reports execution acceptance and the updated script.
type RunActiveResponse struct {
	Accepted bool
	Script   ScriptSnapshot
}

// StopActiveRequest describes a request to stop the active script's run.
type StopActiveRequest struct{}

// StopActiveResponse acknowledges the stop request.
type StopActiveResponse struct{}

// Console buffers.

// GetConsoleRequest describes a request for a script's console view.
type GetConsoleRequest struct {
	ScriptID ScriptID
	Limit    int
}

// GetConsoleResponse reports the console snapshot.
type GetConsoleResponse struct {
	Console ConsoleSnapshot
}

// ScrollConsoleRequest adjusts a script's console scroll offset.
type ScrollConsoleRequest struct {
	ScriptID ScriptID
	Delta    int
	Limit    int
}

// ScrollConsoleResponse reports the console snapshot after scrolling.
type ScrollConsoleResponse struct {
	Console ConsoleSnapshot
}
