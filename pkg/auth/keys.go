package auth

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/xhd193694/ninja/pkg/telemetry/logging"
)

// KeyEntry is one named pre-shared key. Only the bcrypt hash is stored;
// the plaintext key exists nowhere but in the operator's hands.
type KeyEntry struct {
	ID   string `yaml:"id"`
	Hash string `yaml:"hash"`
}

type keyFile struct {
	Keys []KeyEntry `yaml:"keys"`
}

// Keyring gates the login endpoint behind pre-shared keys loaded from a
// YAML file. An empty keyring (no file configured, or a file with no
// keys) leaves the gate open, matching deployments that front the
// gateway some other way.
type Keyring struct {
	path   string
	logger *logging.Logger

	mu   sync.RWMutex
	keys []KeyEntry
}

// LoadKeyring reads the key file at path. An empty path yields an open
// keyring.
func LoadKeyring(path string, logger *logging.Logger) (*Keyring, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	keyring := &Keyring{path: path, logger: logger.Component("auth.keyring")}
	if path == "" {
		return keyring, nil
	}
	if err := keyring.Reload(); err != nil {
		return nil, err
	}
	return keyring, nil
}

// Reload re-reads the backing file, replacing the key set wholesale.
// The previous set stays live if the new file fails validation.
func (k *Keyring) Reload() error {
	raw, err := os.ReadFile(k.path)
	if err != nil {
		return fmt.Errorf("failed to read key file: %w", err)
	}

	var parsed keyFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("failed to parse key file: %w", err)
	}
	for i, entry := range parsed.Keys {
		if strings.TrimSpace(entry.ID) == "" {
			return fmt.Errorf("key entry %d: id is required", i)
		}
		if _, err := bcrypt.Cost([]byte(entry.Hash)); err != nil {
			return fmt.Errorf("key entry %q: not a bcrypt hash: %w", entry.ID, err)
		}
	}

	k.mu.Lock()
	k.keys = parsed.Keys
	k.mu.Unlock()
	return nil
}

// Enabled reports whether the login gate is active.
func (k *Keyring) Enabled() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys) > 0
}

// Size returns the number of loaded keys.
func (k *Keyring) Size() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

// Verify checks a presented key against every entry and returns the
// matching entry's id.
func (k *Keyring) Verify(secret string) (string, bool) {
	k.mu.RLock()
	keys := k.keys
	k.mu.RUnlock()

	for _, entry := range keys {
		if bcrypt.CompareHashAndPassword([]byte(entry.Hash), []byte(secret)) == nil {
			return entry.ID, true
		}
	}
	return "", false
}

// HashKey produces the bcrypt hash stored in the key file for a new
// pre-shared key.
func HashKey(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("key cannot be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash key: %w", err)
	}
	return string(hash), nil
}
