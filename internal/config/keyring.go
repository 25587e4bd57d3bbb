package config

import (
	"fmt"

	"github.com/zalando/go-keyring"
)

// keyringService and keyringUser identify the OS keyring entry ttyhub
// uses to store a generated credential, grounded on the teacher's
// internal/device keyring usage (it stores a device token the same way).
const (
	keyringService = "ttyhub"
	keyringUser    = "credential"
)

// SaveCredentialToKeyring persists credential to the OS keyring, so a
// generated credential need not be printed to the terminal. It writes only
// to the keyring; the config file (and the bcrypt hash in it) is left to
// Config.Save.
func SaveCredentialToKeyring(credential string) error {
	if err := keyring.Set(keyringService, keyringUser, credential); err != nil {
		return fmt.Errorf("could not save credential to keyring: %w", err)
	}
	return nil
}

// LoadCredentialFromKeyring retrieves a previously saved credential.
// Returns an empty string and no error if nothing is stored yet.
func LoadCredentialFromKeyring() (string, error) {
	cred, err := keyring.Get(keyringService, keyringUser)
	if err == keyring.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("could not load credential from keyring: %w", err)
	}
	return cred, nil
}
