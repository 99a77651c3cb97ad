package appconfig

import (
	"os"
	"path/filepath"

	"orbyte.systems/orbyte/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int           `mapstructure:"config_version" yaml:"config_version"`
	ScriptsRoot   string        `mapstructure:"scripts_root" yaml:"scripts_root"`
	StateDir      string        `mapstructure:"state_dir" yaml:"state_dir"`
	Scripts       ScriptsConfig `mapstructure:"scripts" yaml:"scripts"`
	Exec          ExecConfig    `mapstructure:"exec" yaml:"exec"`
	HTTP          HTTPConfig    `mapstructure:"http" yaml:"http"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// ScriptsConfig controls the script inventory and editor defaults.
type ScriptsConfig struct {
	Ext             string `mapstructure:"ext" yaml:"ext"`
	NameMax         int    `mapstructure:"name_max" yaml:"name_max"`
	ConsoleMaxLines int    `mapstructure:"console_max_lines" yaml:"console_max_lines"`
}

// ExecConfig controls script execution limits.
type ExecConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// HTTPConfig configures the HTTP panel server.
type HTTPConfig struct {
	Addr                string `mapstructure:"addr" yaml:"addr"`
	PanelToken          string `mapstructure:"panel_token" yaml:"panel_token"`
	BasePath            string `mapstructure:"base_path" yaml:"base_path"`
	InitialConsoleLines int    `mapstructure:"initial_console_lines" yaml:"initial_console_lines"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, err
	}
	return Config{
		ConfigVersion: CurrentConfigVersion,
		ScriptsRoot:   filepath.Join(home, ".orbyte", "scripts"),
		StateDir:      filepath.Join(home, ".orbyte", "state"),
		Scripts: ScriptsConfig{
			Ext:             schema.DefaultScriptExt,
			NameMax:         schema.DefaultNameMax,
			ConsoleMaxLines: schema.DefaultConsoleMaxLines,
		},
		Exec: ExecConfig{
			TimeoutSeconds: 0,
		},
		HTTP: HTTPConfig{
			Addr:                ":27590",
			PanelToken:          "",
			BasePath:            "",
			InitialConsoleLines: 500,
		},
	}, nil
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".orbyte", "config.yaml"), nil
}
