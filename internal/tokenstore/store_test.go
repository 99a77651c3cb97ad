package tokenstore

import (
	"errors"
	"os"
	"strings"
	"testing"
)

const testToken = "mfa.0123456789abcdefghijklmnop.qrstuvwxyz0123456789.ABCDEF"

func TestValidateToken(t *testing.T) {
	if ValidateToken("") {
		t.Fatalf("expected empty token rejected")
	}
	if ValidateToken("short.token.value") {
		t.Fatalf("expected short token rejected")
	}
	if ValidateToken(strings.Repeat("a", 60)) {
		t.Fatalf("expected dotless token rejected")
	}
	if !ValidateToken(testToken) {
		t.Fatalf("expected well-formed token accepted")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(testToken); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != testToken {
		t.Fatalf("token mismatch: got %q", got)
	}
}

func TestTokenIsNotStoredPlaintext(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(testToken); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(store.tokenPath)
	if err != nil {
		t.Fatalf("read token file: %v", err)
	}
	if strings.Contains(string(data), testToken) {
		t.Fatalf("token stored in plaintext")
	}
}

func TestLoadMissingToken(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
}

func TestClear(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if err := store.Save(testToken); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected token cleared, got %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
}
