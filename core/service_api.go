package core

import (
	"context"

	"orbyte.systems/orbyte/schema"
)

// Service is the transport-agnostic API for managing the script
// inventory, the open-tab sequence, and script execution.
type Service interface {
	RefreshScripts(ctx context.Context, req schema.RefreshScriptsRequest) (schema.RefreshScriptsResponse, error)
	ListScripts(ctx context.Context, req schema.ListScriptsRequest) (schema.ListScriptsResponse, error)
	GetScript(ctx context.Context, req schema.GetScriptRequest) (schema.GetScriptResponse, error)
	OpenScript(ctx context.Context, req schema.OpenScriptRequest) (schema.OpenScriptResponse, error)
	CreateScript(ctx context.Context, req schema.CreateScriptRequest) (schema.CreateScriptResponse, error)
	ActivateTab(ctx context.Context, req schema.ActivateTabRequest) (schema.ActivateTabResponse, error)
	CloseTab(ctx context.Context, req schema.CloseTabRequest) (schema.CloseTabResponse, error)
	ListTabs(ctx context.Context, req schema.ListTabsRequest) (schema.ListTabsResponse, error)
	SetContent(ctx context.Context, req schema.SetContentRequest) (schema.SetContentResponse, error)
	SaveActive(ctx context.Context, req schema.SaveActiveRequest) (schema.SaveActiveResponse, error)
	RenameScript(ctx context.Context, req schema.RenameScriptRequest) (schema.RenameScriptResponse, error)
	DeleteScript(ctx context.Context, req schema.DeleteScriptRequest) (schema.DeleteScriptResponse, error)
	RevealScript(ctx context.Context, req schema.RevealScriptRequest) (schema.RevealScriptResponse, error)
	RunActive(ctx context.Context, req schema.RunActiveRequest) (schema.RunActiveResponse, error)
	StopActive(ctx context.Context, req schema.StopActiveRequest) (schema.StopActiveResponse, error)
	GetConsole(ctx context.Context, req schema.GetConsoleRequest) (schema.GetConsoleResponse, error)
	ScrollConsole(ctx context.Context, req schema.ScrollConsoleRequest) (schema.ScrollConsoleResponse, error)

	// HandleExecEvent folds an asynchronous execution event into script
	// state. Events for unknown script names are dropped.
	HandleExecEvent(ctx context.Context, event schema.ExecEvent)
}
