// Package config provides configuration loading and persistence for
// ttyhub.
//
// Configuration is loaded from:
// 1. ~/.ttyhub/config.json (file)
// 2. Environment variables (override file values)
//
// Environment variables:
//   - TTYHUB_CREDENTIAL: pre-encoded base64 "user:pass" Basic credential
//   - TTYHUB_ADDRESS: listen address (host:port, or "unix:/path")
//   - TTYHUB_MAX_CLIENTS: maximum concurrent clients
//   - TTYHUB_CONFIG_DIR: override config directory (for testing)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/crypto/bcrypt"
)

// Config holds persisted configuration for the ttyhub server.
type Config struct {
	// Address is the listen address (host:port, or "unix:/path").
	Address string `json:"address"`

	// Credential is the plaintext base64 Basic credential used at runtime.
	// Never marshaled to disk - CredentialHash is persisted instead. Load
	// populates Credential from the TTYHUB_CREDENTIAL environment variable;
	// a keyring lookup, if any, is left to the caller.
	Credential string `json:"-"`

	// CredentialHash is a bcrypt hash of Credential, persisted so a stolen
	// config file does not leak the plaintext Basic credential. It is
	// informational only: the server's runtime auth comparisons always
	// use the plaintext Credential field, per spec semantics.
	CredentialHash string `json:"credential_hash,omitempty"`

	// MaxClients caps concurrent connections; 0 means unlimited.
	MaxClients int `json:"max_clients"`

	// ReconnectSeconds is advertised to clients as the reconnect interval.
	ReconnectSeconds int `json:"reconnect_seconds"`

	// Readonly rejects client input without closing the connection.
	Readonly bool `json:"readonly"`

	// CheckOrigin enables the Origin-header admission check.
	CheckOrigin bool `json:"check_origin"`

	// TranscriptDir enables the supplemental transcript recorder when set.
	TranscriptDir string `json:"transcript_dir,omitempty"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:          ":7681",
		MaxClients:       0,
		ReconnectSeconds: 10,
		Readonly:         false,
		CheckOrigin:      false,
	}
}

// ConfigDir returns the configuration directory path, creating it if
// necessary. Respects TTYHUB_CONFIG_DIR for testing.
func ConfigDir() (string, error) {
	if testDir := os.Getenv("TTYHUB_CONFIG_DIR"); testDir != "" {
		if err := os.MkdirAll(testDir, 0o700); err != nil {
			return "", fmt.Errorf("could not create config directory: %w", err)
		}
		return testDir, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}

	dir := filepath.Join(homeDir, ".ttyhub")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("could not create config directory: %w", err)
	}
	return dir, nil
}

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads configuration from file and applies environment variable
// overrides. Priority: environment variables > config file > defaults.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(); err != nil {
		// Missing or invalid file: fall back to defaults, matching the
		// teacher's Load() (a first run has no config file yet).
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) loadFromFile() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, c)
}

func (c *Config) applyEnvOverrides() {
	if cred := os.Getenv("TTYHUB_CREDENTIAL"); cred != "" {
		c.Credential = cred
	}
	if addr := os.Getenv("TTYHUB_ADDRESS"); addr != "" {
		c.Address = addr
	}
	if maxClients := os.Getenv("TTYHUB_MAX_CLIENTS"); maxClients != "" {
		if val, err := strconv.Atoi(maxClients); err == nil {
			c.MaxClients = val
		}
	}
}

// Save writes configuration to the config file. The plaintext Credential
// is never written; SetCredential must be called first to populate
// CredentialHash for at-rest verification.
func (c *Config) Save() error {
	configPath, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("could not create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("could not write config file: %w", err)
	}
	return nil
}

// SetCredential sets the runtime credential and its bcrypt hash together,
// so Save() always persists a hash consistent with what is in use.
func (c *Config) SetCredential(credential string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("could not hash credential: %w", err)
	}
	c.Credential = credential
	c.CredentialHash = string(hash)
	return nil
}

// VerifyCredentialHash reports whether credential matches the persisted
// hash, for sanity-checking a config file against an out-of-band
// credential (e.g. one supplied via flag or keyring) before serving.
func (c *Config) VerifyCredentialHash(credential string) bool {
	if c.CredentialHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(c.CredentialHash), []byte(credential)) == nil
}
