package config

import (
	"encoding/json"
	"os"
	"strings"
	"testing"
)

// setupTestEnv creates a temporary config directory and clears env vars.
// Returns a cleanup function to restore state.
func setupTestEnv(t *testing.T) func() {
	t.Helper()

	origConfigDir := os.Getenv("TTYHUB_CONFIG_DIR")
	origCredential := os.Getenv("TTYHUB_CREDENTIAL")
	origAddress := os.Getenv("TTYHUB_ADDRESS")
	origMaxClients := os.Getenv("TTYHUB_MAX_CLIENTS")

	tmpDir := t.TempDir()
	os.Setenv("TTYHUB_CONFIG_DIR", tmpDir)
	os.Unsetenv("TTYHUB_CREDENTIAL")
	os.Unsetenv("TTYHUB_ADDRESS")
	os.Unsetenv("TTYHUB_MAX_CLIENTS")

	return func() {
		os.Setenv("TTYHUB_CONFIG_DIR", origConfigDir)
		if origCredential != "" {
			os.Setenv("TTYHUB_CREDENTIAL", origCredential)
		}
		if origAddress != "" {
			os.Setenv("TTYHUB_ADDRESS", origAddress)
		}
		if origMaxClients != "" {
			os.Setenv("TTYHUB_MAX_CLIENTS", origMaxClients)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Address != ":7681" {
		t.Errorf("Address = %q, want %q", cfg.Address, ":7681")
	}
	if cfg.ReconnectSeconds != 10 {
		t.Errorf("ReconnectSeconds = %d, want 10", cfg.ReconnectSeconds)
	}
	if cfg.MaxClients != 0 {
		t.Errorf("MaxClients = %d, want 0", cfg.MaxClients)
	}
	if cfg.Readonly {
		t.Error("Readonly = true, want false")
	}
}

func TestConfigSerializationOmitsPlaintextCredential(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Credential = "dXNlcjpwYXNz"
	cfg.MaxClients = 5

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if strings.Contains(string(data), "dXNlcjpwYXNz") {
		t.Error("marshaled config leaks plaintext Credential")
	}

	var loaded Config
	if err := json.Unmarshal(data, &loaded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if loaded.MaxClients != cfg.MaxClients {
		t.Errorf("MaxClients = %d, want %d", loaded.MaxClients, cfg.MaxClients)
	}
	if loaded.Credential != "" {
		t.Errorf("loaded.Credential = %q, want empty (json:\"-\")", loaded.Credential)
	}
}

func TestSetCredentialHashesAndVerifies(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.SetCredential("dXNlcjpwYXNz"); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}
	if cfg.CredentialHash == "" {
		t.Error("CredentialHash was not set")
	}
	if !cfg.VerifyCredentialHash("dXNlcjpwYXNz") {
		t.Error("VerifyCredentialHash() = false for the credential just set")
	}
	if cfg.VerifyCredentialHash("wrong") {
		t.Error("VerifyCredentialHash() = true for a mismatched credential")
	}
}

func TestVerifyCredentialHashPassesWhenUnset(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.VerifyCredentialHash("anything") {
		t.Error("VerifyCredentialHash() = false with no hash configured, want true")
	}
}

func TestLoadFromFile(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	configPath, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() failed: %v", err)
	}

	fileConfig := &Config{
		Address:          "0.0.0.0:9000",
		MaxClients:       5,
		ReconnectSeconds: 20,
	}
	data, err := json.MarshalIndent(fileConfig, "", "  ")
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Address != "0.0.0.0:9000" {
		t.Errorf("Address = %q, want %q", cfg.Address, "0.0.0.0:9000")
	}
	if cfg.MaxClients != 5 {
		t.Errorf("MaxClients = %d, want 5", cfg.MaxClients)
	}
	if cfg.ReconnectSeconds != 20 {
		t.Errorf("ReconnectSeconds = %d, want 20", cfg.ReconnectSeconds)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	configPath, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() failed: %v", err)
	}
	fileConfig := &Config{Address: "file.example:1234"}
	data, _ := json.MarshalIndent(fileConfig, "", "  ")
	os.WriteFile(configPath, data, 0o600)

	os.Setenv("TTYHUB_ADDRESS", "env.example:4321")
	os.Setenv("TTYHUB_CREDENTIAL", "dXNlcjpwYXNz")
	os.Setenv("TTYHUB_MAX_CLIENTS", "9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Address != "env.example:4321" {
		t.Errorf("Address = %q, want env override", cfg.Address)
	}
	if cfg.Credential != "dXNlcjpwYXNz" {
		t.Errorf("Credential = %q, want env override", cfg.Credential)
	}
	if cfg.MaxClients != 9 {
		t.Errorf("MaxClients = %d, want env override 9", cfg.MaxClients)
	}
}

func TestInvalidMaxClientsEnvIgnored(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	os.Setenv("TTYHUB_MAX_CLIENTS", "not_a_number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.MaxClients != 0 {
		t.Errorf("MaxClients = %d, want default 0 (invalid env ignored)", cfg.MaxClients)
	}
}

func TestSaveAndLoad(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	cfg := DefaultConfig()
	cfg.MaxClients = 3
	if err := cfg.SetCredential("dXNlcjpwYXNz"); err != nil {
		t.Fatalf("SetCredential failed: %v", err)
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if loaded.MaxClients != 3 {
		t.Errorf("MaxClients = %d, want 3", loaded.MaxClients)
	}
	if loaded.CredentialHash == "" {
		t.Error("CredentialHash was not persisted")
	}
	if !loaded.VerifyCredentialHash("dXNlcjpwYXNz") {
		t.Error("persisted hash does not verify against the original credential")
	}
}

func TestConfigDirOverride(t *testing.T) {
	tmpDir := t.TempDir()

	os.Setenv("TTYHUB_CONFIG_DIR", tmpDir)
	defer os.Unsetenv("TTYHUB_CONFIG_DIR")

	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() failed: %v", err)
	}
	if dir != tmpDir {
		t.Errorf("ConfigDir() = %q, want %q", dir, tmpDir)
	}
}

func TestLoadWithNoFile(t *testing.T) {
	cleanup := setupTestEnv(t)
	defer cleanup()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Address != ":7681" {
		t.Errorf("Address = %q, want default", cfg.Address)
	}
}
