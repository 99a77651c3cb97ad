package tokenstore

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"pkt.systems/kryptograf"
	"pkt.systems/kryptograf/keymgmt"
	"pkt.systems/pslog"
)

const (
	keyStoreFile   = "keys.store"
	tokenFile      = "token.enc"
	descriptorName = "account-token"
)

// Store keeps the account token encrypted at rest. Key material lives in a
// keymgmt store next to the token file.
type Store struct {
	storePath string
	tokenPath string
	log       pslog.Logger
}

// NewStore constructs a token store rooted at dir.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a token store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("token store directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("token_dir", dir)
	}
	return &Store{
		storePath: filepath.Join(dir, keyStoreFile),
		tokenPath: filepath.Join(dir, tokenFile),
		log:       logger,
	}, nil
}

// ValidateToken checks the account token shape without contacting anything.
func ValidateToken(token string) bool {
	token = strings.TrimSpace(token)
	if len(token) < 50 {
		return false
	}
	return strings.Count(token, ".") >= 2
}

// Save validates and encrypts the token to disk.
func (s *Store) Save(token string) error {
	if !ValidateToken(token) {
		return errors.New("token is malformed")
	}
	material, root, err := s.material()
	if err != nil {
		return err
	}
	kg := kryptograf.New(root)
	tmp, err := os.CreateTemp(filepath.Dir(s.tokenPath), "token-*.enc")
	if err != nil {
		if s.log != nil {
			s.log.Warn("token save failed", "err", err)
		}
		return err
	}
	tmpPath := tmp.Name()
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		if s.log != nil {
			s.log.Warn("token save failed", "err", err)
		}
		return err
	}
	writer, err := kg.EncryptWriter(tmp, material)
	if err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		if s.log != nil {
			s.log.Warn("token save failed", "err", err)
		}
		return err
	}
	if _, err := io.Copy(writer, bytes.NewReader([]byte(strings.TrimSpace(token)))); err != nil {
		_ = writer.Close()
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		if s.log != nil {
			s.log.Warn("token save failed", "err", err)
		}
		return err
	}
	if err := writer.Close(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		if s.log != nil {
			s.log.Warn("token save failed", "err", err)
		}
		return err
	}
	_ = tmp.Close()
	if err := os.Rename(tmpPath, s.tokenPath); err != nil {
		_ = os.Remove(tmpPath)
		if s.log != nil {
			s.log.Warn("token save failed", "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Info("token save ok")
	}
	return nil
}

// Load decrypts and returns the stored token. Returns os.ErrNotExist when
// no token is stored.
func (s *Store) Load() (string, error) {
	if _, err := os.Stat(s.tokenPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", os.ErrNotExist
		}
		if s.log != nil {
			s.log.Warn("token load failed", "err", err)
		}
		return "", err
	}
	material, root, err := s.material()
	if err != nil {
		return "", err
	}
	kg := kryptograf.New(root)
	file, err := os.Open(s.tokenPath)
	if err != nil {
		if s.log != nil {
			s.log.Warn("token load failed", "err", err)
		}
		return "", err
	}
	defer func() { _ = file.Close() }()
	reader, err := kg.DecryptReader(file, material)
	if err != nil {
		if s.log != nil {
			s.log.Warn("token load failed", "err", err)
		}
		return "", err
	}
	defer func() { _ = reader.Close() }()
	plain, err := io.ReadAll(reader)
	if err != nil {
		if s.log != nil {
			s.log.Warn("token load failed", "err", err)
		}
		return "", err
	}
	if s.log != nil {
		s.log.Debug("token load ok")
	}
	return string(plain), nil
}

// Clear removes the stored token.
func (s *Store) Clear() error {
	err := os.Remove(s.tokenPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		if s.log != nil {
			s.log.Warn("token clear failed", "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Info("token cleared")
	}
	return nil
}

func (s *Store) material() (keymgmt.Material, keymgmt.RootKey, error) {
	store, err := keymgmt.LoadProto(s.storePath)
	if err != nil {
		if s.log != nil {
			s.log.Warn("token key material load failed", "err", err)
		}
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	root, err := store.EnsureRootKey()
	if err != nil {
		if s.log != nil {
			s.log.Warn("token key material load failed", "err", err)
		}
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	material, err := store.EnsureDescriptor(descriptorName, root, []byte(descriptorName))
	if err != nil {
		if s.log != nil {
			s.log.Warn("token key material ensure failed", "err", err)
		}
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	if err := store.Commit(); err != nil {
		if s.log != nil {
			s.log.Warn("token key material commit failed", "err", err)
		}
		return keymgmt.Material{}, keymgmt.RootKey{}, err
	}
	return material, root, nil
}
