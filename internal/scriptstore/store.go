// Package scriptstore keeps script files on disk under a single root
// directory. Writes are atomic: content lands in a temp file that is
// renamed into place.
package scriptstore

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"orbyte.systems/orbyte/schema"
	"pkt.systems/pslog"
)

// Store is a filesystem-backed script inventory.
type Store struct {
	root string
	ext  string
	log  pslog.Logger
}

// New prepares the root directory and returns a store. ext must include
// the leading dot.
func New(root, ext string, logger pslog.Logger) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("scriptstore: root directory is required")
	}
	if !strings.HasPrefix(ext, ".") {
		return nil, fmt.Errorf("scriptstore: extension %q must start with a dot", ext)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("scriptstore: create root: %w", err)
	}
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Store{root: root, ext: ext, log: logger}, nil
}

// Root returns the directory scripts live in.
func (s *Store) Root() string { return s.root }

// Path returns the absolute path a script name maps to.
func (s *Store) Path(name schema.ScriptName) string {
	return filepath.Join(s.root, string(name))
}

// List returns every script in the root, sorted by name. Files with a
// different extension and subdirectories are ignored.
func (s *Store) List(ctx context.Context) ([]schema.ScriptRef, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("scriptstore: read root: %w", err)
	}
	refs := make([]schema.ScriptRef, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(entry.Name()), s.ext) {
			continue
		}
		name := schema.ScriptName(entry.Name())
		refs = append(refs, schema.ScriptRef{Name: name, Path: s.Path(name)})
	}
	sort.Slice(refs, func(i, j int) bool {
		return strings.ToLower(string(refs[i].Name)) < strings.ToLower(string(refs[j].Name))
	})
	pslog.Ctx(ctx).Trace("scripts listed", "count", len(refs))
	return refs, nil
}

// Load reads a script's content.
func (s *Store) Load(ctx context.Context, name schema.ScriptName) (string, error) {
	data, err := os.ReadFile(s.Path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", schema.ErrScriptNotFound
		}
		return "", fmt.Errorf("scriptstore: load %s: %w", name, err)
	}
	pslog.Ctx(ctx).Trace("script loaded", "name", name, "bytes", len(data))
	return string(data), nil
}

// Save writes content for a script, creating the file when absent.
func (s *Store) Save(ctx context.Context, name schema.ScriptName, content string) error {
	if err := s.writeAtomic(s.Path(name), []byte(content)); err != nil {
		return fmt.Errorf("scriptstore: save %s: %w", name, err)
	}
	pslog.Ctx(ctx).Debug("script saved", "name", name, "bytes", len(content))
	return nil
}

// Exists reports whether a script file is present.
func (s *Store) Exists(name schema.ScriptName) bool {
	info, err := os.Stat(s.Path(name))
	return err == nil && !info.IsDir()
}

// Rename moves a script to a new name. The target must not exist.
func (s *Store) Rename(ctx context.Context, oldName, newName schema.ScriptName) (schema.ScriptRef, error) {
	if !s.Exists(oldName) {
		return schema.ScriptRef{}, schema.ErrScriptNotFound
	}
	target := s.Path(newName)
	if _, err := os.Stat(target); err == nil {
		return schema.ScriptRef{}, fmt.Errorf("scriptstore: %s already exists: %w", newName, schema.ErrInvalidName)
	}
	if err := os.Rename(s.Path(oldName), target); err != nil {
		return schema.ScriptRef{}, fmt.Errorf("scriptstore: rename %s: %w", oldName, err)
	}
	pslog.Ctx(ctx).Info("script renamed", "from", oldName, "to", newName)
	return schema.ScriptRef{Name: newName, Path: target}, nil
}

// Delete removes a script file. Deleting an absent script is an error.
func (s *Store) Delete(ctx context.Context, name schema.ScriptName) error {
	if err := os.Remove(s.Path(name)); err != nil {
		if os.IsNotExist(err) {
			return schema.ErrScriptNotFound
		}
		return fmt.Errorf("scriptstore: delete %s: %w", name, err)
	}
	pslog.Ctx(ctx).Info("script deleted", "name", name)
	return nil
}

// Reveal opens the platform file manager with the script selected, or
// the scripts directory when the file manager cannot select files.
func (s *Store) Reveal(ctx context.Context, name schema.ScriptName) error {
	if !s.Exists(name) {
		return schema.ErrScriptNotFound
	}
	path := s.Path(name)
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.CommandContext(ctx, "explorer", "/select,", path)
	case "darwin":
		cmd = exec.CommandContext(ctx, "open", "-R", path)
	default:
		cmd = exec.CommandContext(ctx, "xdg-open", s.root)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("scriptstore: reveal %s: %w", name, err)
	}
	go func() { _ = cmd.Wait() }()
	pslog.Ctx(ctx).Debug("script revealed", "name", name)
	return nil
}

func (s *Store) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".script-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
