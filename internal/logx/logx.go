package logx

import (
	"context"

	"orbyte.systems/orbyte/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	scriptKey contextKey = iota
	tabKey
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithScript annotates the logger with the script id if present.
func WithScript(ctx context.Context, scriptID schema.ScriptID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if scriptID != "" {
		if current, ok := ctx.Value(scriptKey).(schema.ScriptID); ok && current == scriptID {
			return log
		}
		log = log.With("script", scriptID)
	}
	return log
}

// WithScriptName annotates the logger with a script name when available.
func WithScriptName(log pslog.Logger, name schema.ScriptName) pslog.Logger {
	if name != "" {
		log = log.With("name", name)
	}
	return log
}

// WithTab annotates the logger with a tab index.
func WithTab(log pslog.Logger, index int) pslog.Logger {
	if index >= 0 {
		log = log.With("tab", index)
	}
	return log
}

// ContextWithScript stores the script marker on the context for log de-duplication.
func ContextWithScript(ctx context.Context, scriptID schema.ScriptID) context.Context {
	if ctx == nil || scriptID == "" {
		return ctx
	}
	return context.WithValue(ctx, scriptKey, scriptID)
}

// ContextWithScriptLogger attaches the logger and script marker to the context.
func ContextWithScriptLogger(ctx context.Context, log pslog.Logger, scriptID schema.ScriptID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log)
	return ContextWithScript(ctx, scriptID)
}
