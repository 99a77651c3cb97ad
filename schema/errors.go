package schema

import "errors"

var (
	// ErrInvalidRequest indicates a malformed request payload.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrScriptNotFound indicates a requested script could not be found.
	ErrScriptNotFound = errors.New("script not found")
	// ErrTabNotFound indicates the tab index does not address an open tab.
	ErrTabNotFound = errors.New("tab not found")
	// ErrNoActiveTab indicates no tab is currently active.
	ErrNoActiveTab = errors.New("no active tab")
	// ErrInvalidName indicates a script name failed validation.
	ErrInvalidName = errors.New("invalid script name")
	// ErrBridgeUnavailable indicates no backend bridge is configured.
	ErrBridgeUnavailable = errors.New("bridge not configured")
	// ErrExecUnavailable indicates no execution engine is configured.
	ErrExecUnavailable = errors.New("execution engine not configured")
	// ErrScriptBusy indicates the script is already running.
	ErrScriptBusy = errors.New("script is busy")
)
