package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// =============================================================================
// Default Config Tests
// =============================================================================

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Google.PageSize != 10 {
		t.Errorf("Google.PageSize = %d, want 10", cfg.Google.PageSize)
	}
	if cfg.Google.MaxRetry != 2 {
		t.Errorf("Google.MaxRetry = %d, want 2", cfg.Google.MaxRetry)
	}
	if cfg.Email.Port != 587 {
		t.Errorf("Email.Port = %d, want 587", cfg.Email.Port)
	}
	if cfg.EmailSupported() || cfg.TextSupported() {
		t.Error("no protocol should be supported by default")
	}
}

// =============================================================================
// Load Tests
// =============================================================================

func env(vals map[string]string) lookupFunc {
	return func(key string) (string, bool) {
		v, ok := vals[key]
		return v, ok
	}
}

func TestLoad_MissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want default", cfg.Server.Port)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
data_dir = "/tmp/bot"

[email]
host = "smtp.example.com"
port = 2525

[text]
sender = "+12025550000"
account_sid = "AC123"
auth_token = "secret"

[carriers]
disabled = ["Verizon"]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.DataDir != "/tmp/bot" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
	if cfg.Email.Host != "smtp.example.com" || cfg.Email.Port != 2525 {
		t.Errorf("Email = %+v", cfg.Email)
	}
	if !cfg.EmailSupported() || !cfg.TextSupported() {
		t.Error("both protocols should be supported")
	}
	if len(cfg.Carriers.Disabled) != 1 || cfg.Carriers.Disabled[0] != "Verizon" {
		t.Errorf("Carriers.Disabled = %v", cfg.Carriers.Disabled)
	}
	// Untouched sections keep defaults
	if cfg.Google.PageSize != 10 {
		t.Errorf("Google.PageSize = %d, want 10", cfg.Google.PageSize)
	}
	if cfg.DBPath() != filepath.Join("/tmp/bot", "contactbot.db") {
		t.Errorf("DBPath() = %q", cfg.DBPath())
	}
}

func TestLoad_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[email\nhost="), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() should fail on invalid TOML")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"CONTACTBOT_EMAIL__HOST":        "smtp.example.com",
		"CONTACTBOT_EMAIL__PORT":        "465",
		"CONTACTBOT_CARRIERS__DISABLED": "ATT, TMobile,",
		"TWILIO_ACCOUNT_SID":            "AC999",
		"TWILIO_AUTH_TOKEN":             "tok",
		"CONTACTBOT_TEXT__SENDER":       "+12025550000",
		"CONTACTBOT_GOOGLE__MAX_RETRY":  "5",
	}))
	if err != nil {
		t.Fatalf("applyEnv() error = %v", err)
	}
	if cfg.Email.Host != "smtp.example.com" || cfg.Email.Port != 465 {
		t.Errorf("Email = %+v", cfg.Email)
	}
	if cfg.Text.AccountSID != "AC999" || cfg.Text.AuthToken != "tok" {
		t.Errorf("Text = %+v", cfg.Text)
	}
	if cfg.Google.MaxRetry != 5 {
		t.Errorf("Google.MaxRetry = %d", cfg.Google.MaxRetry)
	}
	if strings.Join(cfg.Carriers.Disabled, "|") != "ATT|TMobile" {
		t.Errorf("Carriers.Disabled = %v", cfg.Carriers.Disabled)
	}
}

func TestApplyEnv_BadInt(t *testing.T) {
	cfg := Default()
	if err := cfg.applyEnv(env(map[string]string{"CONTACTBOT_EMAIL__PORT": "abc"})); err == nil {
		t.Error("applyEnv() should fail on non numeric port")
	}
}

// =============================================================================
// Save Tests
// =============================================================================

func TestSave_StripsSecrets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Email.Host = "smtp.example.com"
	cfg.Email.Password = "hunter2"
	cfg.Text.AuthToken = "tok"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hunter2") || strings.Contains(string(data), `"tok"`) {
		t.Error("Save() should not persist secrets")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Email.Host != "smtp.example.com" {
		t.Errorf("Email.Host = %q", loaded.Email.Host)
	}
}

func TestEmailTimeout(t *testing.T) {
	cfg := Default()
	if cfg.EmailTimeout() != 30*time.Second {
		t.Errorf("EmailTimeout() = %v", cfg.EmailTimeout())
	}
	cfg.Email.Timeout = "5s"
	if cfg.EmailTimeout() != 5*time.Second {
		t.Errorf("EmailTimeout() = %v", cfg.EmailTimeout())
	}
	cfg.Email.Timeout = "bogus"
	if cfg.EmailTimeout() != 30*time.Second {
		t.Errorf("EmailTimeout() = %v", cfg.EmailTimeout())
	}
}

func TestSplitGroups(t *testing.T) {
	got := SplitGroups("Family,,Friends ")
	if len(got) != 2 || got[0] != "Family" || got[1] != "Friends" {
		t.Errorf("SplitGroups() = %v", got)
	}
	if SplitGroups("") != nil {
		t.Error("SplitGroups(\"\") should be nil")
	}
}
