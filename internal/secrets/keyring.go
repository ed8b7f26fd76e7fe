// Package secrets keeps the upstream API key and the spin-receipt signing
// key in the OS keyring, falling back to a 0600 JSON file on hosts without
// a keyring service.
package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyUpstreamAPIKey = "upstream/apikey"
	keySigningKey     = "receipts/signing-key"
)

// ErrNotFound is returned when a secret has never been stored.
var ErrNotFound = keyring.ErrNotFound

// KeyringStore wraps OS keychain with an optional file fallback.
// Fallback is intended for environments where no system keyring is available.
type KeyringStore struct {
	service      string
	fallbackPath string
	mu           sync.Mutex
}

// NewKeyringStore creates a keyring wrapper.
func NewKeyringStore(serviceName, fallbackPath string) *KeyringStore {
	if strings.TrimSpace(serviceName) == "" {
		serviceName = "promo-games"
	}
	return &KeyringStore{
		service:      serviceName,
		fallbackPath: fallbackPath,
	}
}

func (k *KeyringStore) SetUpstreamAPIKey(value string) error {
	return k.setSecret(keyUpstreamAPIKey, value)
}

func (k *KeyringStore) UpstreamAPIKey() (string, error) {
	return k.getSecret(keyUpstreamAPIKey)
}

// SigningKey returns the receipt signing key, generating and storing a
// random 256-bit key on first use.
func (k *KeyringStore) SigningKey() ([]byte, error) {
	val, err := k.getSecret(keySigningKey)
	if err == nil {
		key, derr := hex.DecodeString(val)
		if derr != nil {
			return nil, fmt.Errorf("secrets: decode signing key: %w", derr)
		}
		return key, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("secrets: generate signing key: %w", err)
	}
	if err := k.setSecret(keySigningKey, hex.EncodeToString(key)); err != nil {
		return nil, err
	}
	return key, nil
}

// DeleteAll removes every secret this store manages.
func (k *KeyringStore) DeleteAll() error {
	var errs []error
	for _, name := range []string{keyUpstreamAPIKey, keySigningKey} {
		if err := keyring.Delete(k.service, name); err != nil && !errors.Is(err, keyring.ErrNotFound) && !isKeyringUnavailable(err) {
			errs = append(errs, err)
		}
	}

	ferr := k.deleteFallback()
	if len(errs) > 0 {
		return fmt.Errorf("secrets: keyring delete failed: %v", errs[0])
	}
	return ferr
}

func (k *KeyringStore) setSecret(name, value string) error {
	if err := keyring.Set(k.service, name, value); err == nil {
		return nil
	} else if !isKeyringUnavailable(err) {
		return fmt.Errorf("secrets: keyring set %s: %w", name, err)
	}

	return k.setFallback(name, value)
}

func (k *KeyringStore) getSecret(name string) (string, error) {
	val, err := keyring.Get(k.service, name)
	if err == nil {
		return val, nil
	}
	if !isKeyringUnavailable(err) && !errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("secrets: keyring get %s: %w", name, err)
	}

	fallback, ferr := k.getFallback(name)
	if ferr == nil {
		return fallback, nil
	}

	if errors.Is(err, keyring.ErrNotFound) || errors.Is(ferr, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return "", ferr
}

func isKeyringUnavailable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "secret service") ||
		strings.Contains(msg, "dbus") ||
		strings.Contains(msg, "no keychain") ||
		strings.Contains(msg, "keyring backend not available")
}

type fallbackSecrets map[string]string

func (k *KeyringStore) setFallback(name, value string) error {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return fmt.Errorf("secrets: keyring unavailable and no fallback path configured")
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.readFallbackUnlocked()
	if err != nil {
		return err
	}
	data[name] = value
	return k.writeFallbackUnlocked(data)
}

func (k *KeyringStore) getFallback(name string) (string, error) {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return "", fmt.Errorf("secrets: fallback path not configured")
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	data, err := k.readFallbackUnlocked()
	if err != nil {
		return "", err
	}
	val, ok := data[name]
	if !ok {
		return "", keyring.ErrNotFound
	}
	return val, nil
}

func (k *KeyringStore) deleteFallback() error {
	if strings.TrimSpace(k.fallbackPath) == "" {
		return nil
	}
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := os.Remove(k.fallbackPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("secrets: remove fallback secrets: %w", err)
	}
	return nil
}

func (k *KeyringStore) readFallbackUnlocked() (fallbackSecrets, error) {
	out := fallbackSecrets{}
	raw, err := os.ReadFile(k.fallbackPath)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, fmt.Errorf("secrets: read fallback secrets: %w", err)
	}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("secrets: decode fallback secrets: %w", err)
	}
	return out, nil
}

func (k *KeyringStore) writeFallbackUnlocked(data fallbackSecrets) error {
	dir := filepath.Dir(k.fallbackPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("secrets: mkdir fallback dir: %w", err)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("secrets: encode fallback secrets: %w", err)
	}
	if err := os.WriteFile(k.fallbackPath, raw, 0o600); err != nil {
		return fmt.Errorf("secrets: write fallback secrets: %w", err)
	}
	return nil
}
