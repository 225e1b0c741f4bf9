package auth

import (
	"errors"
	"fmt"
	"os"

	"github.com/zalando/go-keyring"
)

const serviceName = "zinv"

// Secret names stored in the system keyring.
const (
	SecretRefreshToken = "refresh_token"
	SecretClientID     = "client_id"
	SecretClientSecret = "client_secret"
)

// SecretNames lists every secret the keyring may hold.
var SecretNames = []string{SecretRefreshToken, SecretClientID, SecretClientSecret}

// SecretStore keeps long-lived credentials in the system keychain so they
// need not sit in the environment or a .env file.
type SecretStore struct {
	disabled bool
}

// NewSecretStore creates a keyring-backed store. Setting ZINV_NO_KEYRING
// disables it, making lookups report absent and writes fail.
func NewSecretStore() *SecretStore {
	return &SecretStore{disabled: os.Getenv("ZINV_NO_KEYRING") != ""}
}

func key(name string) string {
	return fmt.Sprintf("zinv::%s", name)
}

// Lookup returns the named secret. ok is false when it is not stored or
// the keyring is unavailable.
func (s *SecretStore) Lookup(name string) (string, bool) {
	if s.disabled {
		return "", false
	}
	v, err := keyring.Get(serviceName, key(name))
	if err != nil {
		return "", false
	}
	return v, true
}

// Set stores the named secret.
func (s *SecretStore) Set(name, value string) error {
	if s.disabled {
		return errors.New("keyring disabled by ZINV_NO_KEYRING")
	}
	if err := keyring.Set(serviceName, key(name), value); err != nil {
		return fmt.Errorf("storing %s in keyring: %w", name, err)
	}
	return nil
}

// Delete removes the named secret. A missing secret is not an error.
func (s *SecretStore) Delete(name string) error {
	if s.disabled {
		return nil
	}
	err := keyring.Delete(serviceName, key(name))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Enabled reports whether the store talks to the system keyring.
func (s *SecretStore) Enabled() bool {
	return !s.disabled
}
