package schema

// ScriptID identifies a script record in the workspace inventory.
type ScriptID string

// ScriptName is the user-facing script file name, always carrying the
// configured script extension.
type ScriptName string

// ScriptRef identifies a stored script as reported by the backend bridge.
type ScriptRef struct {
	Name ScriptName
	Path string
}
