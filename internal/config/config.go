package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// FileName is the name of the configuration file inside DefaultDir.
const FileName = "config.yaml"

// Config holds tool-wide settings. Every field has a working default,
// so a missing config file is not an error.
type Config struct {
	DataDir                string `yaml:"data_dir"`
	ClipboardClearSeconds  int    `yaml:"clipboard_clear_seconds"`
	KeychainPrefix         string `yaml:"keychain_prefix"`
	KeychainTimeoutSeconds int    `yaml:"keychain_timeout_seconds"`
}

const (
	defaultClipboardClearSeconds  = 20
	defaultKeychainPrefix         = "projectnav"
	defaultKeychainTimeoutSeconds = 5
)

// ErrInvalidConfig is returned when the config file parses but holds
// values outside their valid range.
var ErrInvalidConfig = errors.New("config: invalid value")

// DefaultDir returns the per-user data directory (~/.projectnav).
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".projectnav"), nil
}

// Default returns a config with all defaults applied.
func Default() (*Config, error) {
	dir, err := DefaultDir()
	if err != nil {
		return nil, err
	}
	return &Config{
		DataDir:                dir,
		ClipboardClearSeconds:  defaultClipboardClearSeconds,
		KeychainPrefix:         defaultKeychainPrefix,
		KeychainTimeoutSeconds: defaultKeychainTimeoutSeconds,
	}, nil
}

// Load reads the config file at path. A missing file yields the
// defaults; a present but unreadable or malformed file is an error so
// a typo never silently reverts settings. Unset fields fall back to
// their defaults.
func Load(path string) (*Config, error) {
	cfg, err := Default()
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	warnIfWorldReadable(path)

	if err := yaml.Unmarshal(content, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ClipboardClearSeconds == 0 {
		c.ClipboardClearSeconds = defaultClipboardClearSeconds
	}
	if c.KeychainPrefix == "" {
		c.KeychainPrefix = defaultKeychainPrefix
	}
	if c.KeychainTimeoutSeconds == 0 {
		c.KeychainTimeoutSeconds = defaultKeychainTimeoutSeconds
	}
}

func (c *Config) validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	}
	if c.ClipboardClearSeconds < 0 {
		return fmt.Errorf("%w: clipboard_clear_seconds must not be negative", ErrInvalidConfig)
	}
	if c.KeychainTimeoutSeconds < 1 {
		return fmt.Errorf("%w: keychain_timeout_seconds must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// DatabasePath returns the location of the metadata database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "projectnav.db")
}

// AuditDir returns the directory holding audit log files.
func (c *Config) AuditDir() string {
	return filepath.Join(c.DataDir, "audit")
}

// ClipboardTTL returns how long a copied secret stays on the clipboard.
func (c *Config) ClipboardTTL() time.Duration {
	return time.Duration(c.ClipboardClearSeconds) * time.Second
}

// KeychainTimeout returns the deadline for a single OS keychain call.
func (c *Config) KeychainTimeout() time.Duration {
	return time.Duration(c.KeychainTimeoutSeconds) * time.Second
}

// warnIfWorldReadable prints a warning when the config file is readable
// by group or others. The file holds no secrets, but loose permissions
// on the data directory usually mean the database next to it is loose
// too, so it is worth flagging.
func warnIfWorldReadable(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0077 != 0 {
		fmt.Fprintf(os.Stderr, "Warning: %s has permissions %o; consider chmod 600\n", path, perm)
	}
}
