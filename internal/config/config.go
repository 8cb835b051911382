// Package config handles contact bot configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// EnvPrefix prefixes every environment override; nested keys use "__".
const EnvPrefix = "CONTACTBOT_"

// Config holds all configuration
type Config struct {
	// Paths
	DataDir string `toml:"data_dir"`

	Log      LogConfig      `toml:"log"`
	Server   ServerConfig   `toml:"server"`
	Google   GoogleConfig   `toml:"google"`
	Email    EmailConfig    `toml:"email"`
	Text     TextConfig     `toml:"text"`
	Carriers CarriersConfig `toml:"carriers"`
}

// LogConfig selects level and renderer (auto, console, json)
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ServerConfig for the HTTP entry points
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// GoogleConfig for the People API
type GoogleConfig struct {
	CredentialsFile string `toml:"credentials_file"`
	// TokenPassphrase seals the stored OAuth token when set
	TokenPassphrase string `toml:"token_passphrase"`
	RedirectPort    int    `toml:"redirect_port"`
	PageSize        int64  `toml:"page_size"`
	MaxRetry        int    `toml:"max_retry"`
}

// EmailConfig for SMTP delivery. Email is supported when Host is set.
type EmailConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Username      string `toml:"username"`
	Password      string `toml:"password"`
	TLSPolicy     string `toml:"tls_policy"` // mandatory, opportunistic, none
	RatePerMinute int    `toml:"rate_per_minute"`
	Timeout       string `toml:"timeout"`
}

// TextConfig for Twilio delivery
type TextConfig struct {
	Sender     string `toml:"sender"`
	AccountSID string `toml:"account_sid"`
	AuthToken  string `toml:"auth_token"`
	MaxRetry   int    `toml:"max_retry"`
}

// CarriersConfig disables carrier gateways by name
type CarriersConfig struct {
	Disabled []string `toml:"disabled"`
}

// Default returns default configuration
func Default() *Config {
	home, _ := os.UserHomeDir()

	return &Config{
		DataDir: filepath.Join(home, ".contactbot"),
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Google: GoogleConfig{
			CredentialsFile: "credentials.json",
			RedirectPort:    8765,
			PageSize:        10,
			MaxRetry:        2,
		},
		Email: EmailConfig{
			Port:          587,
			TLSPolicy:     "opportunistic",
			RatePerMinute: 30,
			Timeout:       "30s",
		},
		Text: TextConfig{
			MaxRetry: 2,
		},
	}
}

// Load loads config from file, falling back to defaults, then applies the environment
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(cfg.DataDir, "config.toml")
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// Use defaults
	case err != nil:
		return nil, err
	default:
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save saves config to file without secrets
func (c *Config) Save(path string) error {
	if path == "" {
		path = filepath.Join(c.DataDir, "config.toml")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	safeCfg := *c
	safeCfg.Email.Password = ""
	safeCfg.Text.AuthToken = ""
	safeCfg.Google.TokenPassphrase = ""

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(safeCfg); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0600)
}

// EmailSupported reports whether SMTP delivery is configured
func (c *Config) EmailSupported() bool {
	return c.Email.Host != ""
}

// TextSupported reports whether Twilio delivery is configured
func (c *Config) TextSupported() bool {
	return c.Text.Sender != "" && c.Text.AccountSID != "" && c.Text.AuthToken != ""
}

// EmailTimeout parses Email.Timeout, defaulting to 30s
func (c *Config) EmailTimeout() time.Duration {
	d, err := time.ParseDuration(c.Email.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// DBPath is the sqlite database inside DataDir
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "contactbot.db")
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	strs := map[string]*string{
		"DATA_DIR":                 &c.DataDir,
		"LOG__LEVEL":               &c.Log.Level,
		"LOG__FORMAT":              &c.Log.Format,
		"SERVER__HOST":             &c.Server.Host,
		"GOOGLE__CREDENTIALS_FILE": &c.Google.CredentialsFile,
		"GOOGLE__TOKEN_PASSPHRASE": &c.Google.TokenPassphrase,
		"EMAIL__HOST":              &c.Email.Host,
		"EMAIL__USERNAME":          &c.Email.Username,
		"EMAIL__PASSWORD":          &c.Email.Password,
		"EMAIL__TLS_POLICY":        &c.Email.TLSPolicy,
		"EMAIL__TIMEOUT":           &c.Email.Timeout,
		"TEXT__SENDER":             &c.Text.Sender,
		"TEXT__ACCOUNT_SID":        &c.Text.AccountSID,
		"TEXT__AUTH_TOKEN":         &c.Text.AuthToken,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"SERVER__PORT":           &c.Server.Port,
		"GOOGLE__REDIRECT_PORT":  &c.Google.RedirectPort,
		"GOOGLE__MAX_RETRY":      &c.Google.MaxRetry,
		"EMAIL__PORT":            &c.Email.Port,
		"EMAIL__RATE_PER_MINUTE": &c.Email.RatePerMinute,
		"TEXT__MAX_RETRY":        &c.Text.MaxRetry,
	}
	for key, dst := range ints {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
	}

	if v, ok := lookup(EnvPrefix + "CARRIERS__DISABLED"); ok {
		c.Carriers.Disabled = splitList(v)
	}

	// Twilio's own variable names
	if v, ok := lookup("TWILIO_ACCOUNT_SID"); ok && c.Text.AccountSID == "" {
		c.Text.AccountSID = v
	}
	if v, ok := lookup("TWILIO_AUTH_TOKEN"); ok && c.Text.AuthToken == "" {
		c.Text.AuthToken = v
	}
	if v, ok := lookup("SMS_SENDER_NUMBER"); ok && c.Text.Sender == "" {
		c.Text.Sender = v
	}

	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SplitGroups parses a comma separated group list
func SplitGroups(s string) []string {
	return splitList(s)
}
