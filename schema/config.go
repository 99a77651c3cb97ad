package schema

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ServiceConfig defines defaults and limits for the core service.
type ServiceConfig struct {
	ScriptsRoot     string
	StateDir        string
	ScriptExt       string
	DefaultBody     string
	NameMax         int
	ConsoleMaxLines int
}

// DefaultConsoleMaxLines is the default per-script console buffer limit.
const DefaultConsoleMaxLines = 5000

// DefaultScriptExt is the extension every script name carries.
const DefaultScriptExt = ".js"

// DefaultNameMax is the maximum accepted length of a normalized script name.
const DefaultNameMax = 250

// DefaultScriptBody seeds newly created scripts.
const DefaultScriptBody = "// untitled script\nconsole.log(\"ready\");\n"

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.ScriptsRoot == "" {
		cfg.ScriptsRoot = "scripts"
	}
	if cfg.StateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ServiceConfig{}, err
		}
		cfg.StateDir = filepath.Join(home, ".orbyte", "state")
	}
	if cfg.ScriptExt == "" {
		cfg.ScriptExt = DefaultScriptExt
	}
	if !strings.HasPrefix(cfg.ScriptExt, ".") {
		return ServiceConfig{}, errors.New("script extension must start with a dot")
	}
	if cfg.DefaultBody == "" {
		cfg.DefaultBody = DefaultScriptBody
	}
	if cfg.NameMax <= 0 {
		cfg.NameMax = DefaultNameMax
	}
	if cfg.NameMax <= len(cfg.ScriptExt) {
		return ServiceConfig{}, errors.New("name max must exceed extension length")
	}
	if cfg.ConsoleMaxLines <= 0 {
		cfg.ConsoleMaxLines = DefaultConsoleMaxLines
	}
	return cfg, nil
}
