package secrets

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestKeyringStoreSetGetDelete(t *testing.T) {
	keyring.MockInit()
	k := NewKeyringStore("promo-games-test", filepath.Join(t.TempDir(), "secrets.json"))

	if _, err := k.UpstreamAPIKey(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound before set, got %v", err)
	}
	if err := k.SetUpstreamAPIKey("api-key-123"); err != nil {
		t.Fatalf("SetUpstreamAPIKey: %v", err)
	}
	apiKey, err := k.UpstreamAPIKey()
	if err != nil {
		t.Fatalf("UpstreamAPIKey: %v", err)
	}
	if apiKey != "api-key-123" {
		t.Fatalf("unexpected api key: %q", apiKey)
	}

	if err := k.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if _, err := k.UpstreamAPIKey(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestSigningKeyIsStable(t *testing.T) {
	keyring.MockInit()
	k := NewKeyringStore("promo-games-test", "")

	first, err := k.SigningKey()
	if err != nil {
		t.Fatalf("SigningKey: %v", err)
	}
	if len(first) != 32 {
		t.Fatalf("expected 32-byte key, got %d", len(first))
	}
	second, err := k.SigningKey()
	if err != nil {
		t.Fatalf("SigningKey: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("signing key changed between calls")
	}
}

func TestFallbackWhenKeyringUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: session bus is not available"))
	t.Cleanup(keyring.MockInit)

	path := filepath.Join(t.TempDir(), "nested", "secrets.json")
	k := NewKeyringStore("promo-games-test", path)

	if err := k.SetUpstreamAPIKey("from-file"); err != nil {
		t.Fatalf("SetUpstreamAPIKey: %v", err)
	}
	got, err := k.UpstreamAPIKey()
	if err != nil {
		t.Fatalf("UpstreamAPIKey: %v", err)
	}
	if got != "from-file" {
		t.Fatalf("unexpected api key: %q", got)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("fallback file missing: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("fallback file mode = %v, want 0600", info.Mode().Perm())
	}

	if err := k.DeleteAll(); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("fallback file not removed: %v", err)
	}
}

func TestNoFallbackConfigured(t *testing.T) {
	keyring.MockInitWithError(errors.New("dbus: session bus is not available"))
	t.Cleanup(keyring.MockInit)

	k := NewKeyringStore("", "")
	if err := k.SetUpstreamAPIKey("x"); err == nil {
		t.Fatal("expected error without keyring or fallback")
	}
}
