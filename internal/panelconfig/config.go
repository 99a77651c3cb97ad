package panelconfig

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"pkt.systems/pslog"
)

// defaultDocument is the full panel configuration tree. Loading merges the
// stored file over these defaults so new keys appear without migrations.
const defaultDocument = `{
  "account": {
    "command_prefix": ",",
    "controller_ephemeral": true,
    "controller_forwarding": false,
    "platform": "desktop"
  },
  "ui": {
    "background_file": ""
  },
  "sniper": {
    "enabled": false
  },
  "rpc": {
    "enabled": false,
    "name": "",
    "details": "",
    "state": "",
    "large_image": "",
    "large_text": "",
    "small_image": "",
    "small_text": "",
    "timestamp_mode": false,
    "timestamp_offset": 0,
    "button1_label": "",
    "button1_url": "",
    "button2_label": "",
    "button2_url": ""
  },
  "webhooks": {
    "events": {
      "pings": {"enabled": false, "webhook_url": ""},
      "ghostpings": {"enabled": false, "webhook_url": ""},
      "sniper_hits": {"enabled": false, "webhook_url": ""},
      "new_roles": {"enabled": false, "webhook_url": ""},
      "unfriended": {"enabled": false, "webhook_url": ""}
    }
  }
}`

// Manager owns the panel configuration document on disk.
type Manager struct {
	path string
	mu   sync.RWMutex
	doc  []byte
	log  pslog.Logger
}

// NewManager loads the config at path, creating it from defaults when absent.
func NewManager(path string, logger pslog.Logger) (*Manager, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	if logger != nil {
		logger = logger.With("config", path)
	}
	m := &Manager{path: path, log: logger}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			if m.log != nil {
				m.log.Warn("config load failed", "err", err)
			}
			return err
		}
		m.doc = []byte(defaultDocument)
		if err := m.saveLocked(); err != nil {
			return err
		}
		if m.log != nil {
			m.log.Info("config created from defaults")
		}
		return nil
	}
	if !gjson.ValidBytes(data) {
		if m.log != nil {
			m.log.Warn("config invalid, falling back to defaults")
		}
		m.doc = []byte(defaultDocument)
		return nil
	}
	merged, err := mergeDefaults([]byte(defaultDocument), data)
	if err != nil {
		if m.log != nil {
			m.log.Warn("config merge failed", "err", err)
		}
		return err
	}
	m.doc = merged
	if m.log != nil {
		m.log.Debug("config load ok")
	}
	return nil
}

// Document returns a copy of the full configuration document.
func (m *Manager) Document() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.doc...)
}

// Get resolves a dot-path value (e.g. "rpc.name").
func (m *Manager) Get(keyPath string) gjson.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return gjson.GetBytes(m.doc, keyPath)
}

// Set updates a dot-path value and saves the document.
func (m *Manager) Set(keyPath string, value any) error {
	if keyPath == "" {
		return errors.New("config key path is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	updated, err := sjson.SetBytes(m.doc, keyPath, value)
	if err != nil {
		if m.log != nil {
			m.log.Warn("config set failed", "key", keyPath, "err", err)
		}
		return err
	}
	m.doc = updated
	return m.saveLocked()
}

// Apply updates a batch of dot-path values, reporting overall success.
// Keys that fail are logged and skipped; the remainder still apply.
func (m *Manager) Apply(changes map[string]any) bool {
	ok := true
	for key, value := range changes {
		if err := m.Set(key, value); err != nil {
			ok = false
		}
	}
	return ok
}

// ResetToDefaults restores the default document and saves it.
func (m *Manager) ResetToDefaults() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = []byte(defaultDocument)
	return m.saveLocked()
}

// Export writes the current document to an external file.
func (m *Manager) Export(path string) error {
	m.mu.RLock()
	data := append([]byte(nil), m.doc...)
	m.mu.RUnlock()
	return os.WriteFile(path, pretty(data), 0o600)
}

// Import merges an external file over the defaults and saves the result.
func (m *Manager) Import(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	merged, err := mergeDefaults([]byte(defaultDocument), data)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = merged
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		if m.log != nil {
			m.log.Warn("config save failed", "err", err)
		}
		return err
	}
	tmp, err := os.CreateTemp(dir, "config-*.json")
	if err != nil {
		if m.log != nil {
			m.log.Warn("config save failed", "err", err)
		}
		return err
	}
	if _, err := tmp.Write(pretty(m.doc)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		if m.log != nil {
			m.log.Warn("config save failed", "err", err)
		}
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		if m.log != nil {
			m.log.Warn("config save failed", "err", err)
		}
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		if m.log != nil {
			m.log.Warn("config save failed", "err", err)
		}
		return err
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		if m.log != nil {
			m.log.Warn("config save failed", "err", err)
		}
		return err
	}
	if m.log != nil {
		m.log.Trace("config save ok")
	}
	return nil
}

// mergeDefaults recursively merges user values over the default tree.
// Unknown user keys are preserved; nested objects merge key by key.
func mergeDefaults(defaults, user []byte) ([]byte, error) {
	var base map[string]any
	if err := json.Unmarshal(defaults, &base); err != nil {
		return nil, err
	}
	var overlay map[string]any
	if err := json.Unmarshal(user, &overlay); err != nil {
		return nil, err
	}
	merged := mergeMaps(base, overlay)
	return json.Marshal(merged)
}

func mergeMaps(base, overlay map[string]any) map[string]any {
	result := make(map[string]any, len(base))
	for k, v := range base {
		result[k] = v
	}
	for k, v := range overlay {
		if existing, ok := result[k].(map[string]any); ok {
			if incoming, ok := v.(map[string]any); ok {
				result[k] = mergeMaps(existing, incoming)
				continue
			}
		}
		result[k] = v
	}
	return result
}

func pretty(doc []byte) []byte {
	var buf any
	if err := json.Unmarshal(doc, &buf); err != nil {
		return doc
	}
	out, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return doc
	}
	return append(out, '\n')
}
