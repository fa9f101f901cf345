// Package security provides secure credential handling for svn2git.
package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/acolita/svn2git/internal/ports"
)

const (
	// KeyringService is the service name used for keyring entries.
	KeyringService = "svn2git"

	keySVNPasswordFmt = "svn:%s@%s"
)

// ErrKeyringUnavailable is returned when the OS keyring cannot be used.
var ErrKeyringUnavailable = errors.New("keyring not available")

// KeyringStore stores SVN passwords in the OS keyring
// (macOS Keychain, Linux Secret Service, Windows Credential Manager).
type KeyringStore struct {
	enabled bool
	mu      sync.RWMutex
}

// NewKeyringStore creates a new keyring store.
// If the system keyring is not available, the store will be disabled.
func NewKeyringStore() *KeyringStore {
	ks := &KeyringStore{
		enabled: true,
	}

	testKey := "__svn2git_probe__"
	if err := keyring.Set(KeyringService, testKey, "probe"); err != nil {
		slog.Debug("keyring not available",
			slog.String("error", err.Error()),
		)
		ks.enabled = false
		return ks
	}
	_ = keyring.Delete(KeyringService, testKey)

	return ks
}

// IsEnabled returns true if the keyring is available and enabled.
func (ks *KeyringStore) IsEnabled() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.enabled
}

// SetEnabled allows enabling/disabling keyring usage.
func (ks *KeyringStore) SetEnabled(enabled bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.enabled = enabled
}

// svnKey builds the keyring entry name. Trailing slashes are ignored so that
// "https://host/repo" and "https://host/repo/" share an entry.
func svnKey(repository, user string) string {
	return fmt.Sprintf(keySVNPasswordFmt, user, strings.TrimRight(repository, "/"))
}

// StoreSVNPassword stores an SVN password in the keyring.
func (ks *KeyringStore) StoreSVNPassword(repository, user string, password []byte) error {
	if !ks.IsEnabled() {
		return ErrKeyringUnavailable
	}

	encoded := base64.StdEncoding.EncodeToString(password)
	if err := keyring.Set(KeyringService, svnKey(repository, user), encoded); err != nil {
		return fmt.Errorf("store svn password: %w", err)
	}

	slog.Debug("stored svn password in keyring",
		slog.String("repository", repository),
		slog.String("user", user),
	)
	return nil
}

// GetSVNPassword retrieves an SVN password from the keyring.
// A missing entry returns nil, nil.
func (ks *KeyringStore) GetSVNPassword(repository, user string) ([]byte, error) {
	if !ks.IsEnabled() {
		return nil, ErrKeyringUnavailable
	}

	encoded, err := keyring.Get(KeyringService, svnKey(repository, user))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get svn password: %w", err)
	}

	password, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode svn password: %w", err)
	}
	return password, nil
}

// DeleteSVNPassword removes an SVN password from the keyring.
func (ks *KeyringStore) DeleteSVNPassword(repository, user string) error {
	if !ks.IsEnabled() {
		return ErrKeyringUnavailable
	}

	if err := keyring.Delete(KeyringService, svnKey(repository, user)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("delete svn password: %w", err)
	}
	return nil
}

var _ ports.SecretStore = (*KeyringStore)(nil)
