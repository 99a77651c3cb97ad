package persist

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"orbyte.systems/orbyte/schema"
	"pkt.systems/pslog"
)

// TabSnapshot captures an open tab for persistence. Content is only
// recorded while the buffer is dirty so unsaved work survives restarts.
type TabSnapshot struct {
	ID      schema.ScriptID   `json:"id"`
	Name    schema.ScriptName `json:"name"`
	Path    string            `json:"path,omitempty"`
	Dirty   bool              `json:"dirty,omitempty"`
	Content string            `json:"content,omitempty"`
}

// WorkspaceSnapshot captures the workspace tab state for persistence.
type WorkspaceSnapshot struct {
	Tabs      []TabSnapshot   `json:"tabs"`
	ActiveTab schema.ScriptID `json:"active_tab,omitempty"`
}

const stateFile = "workspace.json"

// Store persists workspace snapshots to disk.
type Store struct {
	dir string
	log pslog.Logger
}

// NewStore constructs a persistent store at the given directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a persistent store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{dir: dir, log: logger}, nil
}

// Load reads the workspace snapshot from disk.
func (s *Store) Load() (WorkspaceSnapshot, bool, error) {
	path := filepath.Join(s.dir, stateFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("state load miss")
			}
			return WorkspaceSnapshot{}, false, nil
		}
		if s.log != nil {
			s.log.Warn("state load failed", "err", err)
		}
		return WorkspaceSnapshot{}, false, err
	}
	var snapshot WorkspaceSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		if s.log != nil {
			s.log.Warn("state load failed", "err", err)
		}
		return WorkspaceSnapshot{}, false, err
	}
	if s.log != nil {
		s.log.Debug("state load ok", "tabs", len(snapshot.Tabs))
	}
	return snapshot, true, nil
}

// Save writes the workspace snapshot to disk.
func (s *Store) Save(snapshot WorkspaceSnapshot) error {
	path := filepath.Join(s.dir, stateFile)
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "err", err)
		}
		return err
	}
	tmp, err := os.CreateTemp(s.dir, "state-*.json")
	if err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "err", err)
		}
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("state save failed", "err", err)
		}
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("state save failed", "err", err)
		}
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("state save failed", "err", err)
		}
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		if s.log != nil {
			s.log.Warn("state save failed", "err", err)
		}
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		if s.log != nil {
			s.log.Warn("state save failed", "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Trace("state save ok", "tabs", len(snapshot.Tabs))
	}
	return nil
}
