// Package config resolves authvault settings from defaults, a YAML file,
// .env files and AUTHVAULT_* environment variables, in increasing order of
// precedence. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "AUTHVAULT_"

// AuditOff disables the audit log.
const AuditOff = "off"

// MaxVerifyWindow bounds the number of steps checked on either side of now.
const MaxVerifyWindow = 10

// ErrConfig is returned for unreadable or invalid configuration.
var ErrConfig = errors.New("config error")

// Config holds every authvault setting.
type Config struct {
	DataDir        string `yaml:"data_dir" env:"DATA_DIR"`
	VaultFile      string `yaml:"vault_file" env:"VAULT_FILE"`
	KeyFile        string `yaml:"key_file" env:"KEY_FILE"`
	LegacyDataFile string `yaml:"legacy_data_file" env:"LEGACY_DATA_FILE"`
	LegacyKeyFile  string `yaml:"legacy_key_file" env:"LEGACY_KEY_FILE"`

	// StrictLoad makes an unreadable vault a hard error instead of an empty vault.
	StrictLoad      bool          `yaml:"strict_load" env:"STRICT_LOAD"`
	VerifyWindow    int           `yaml:"verify_window" env:"VERIFY_WINDOW"`
	RefreshInterval time.Duration `yaml:"refresh_interval" env:"REFRESH_INTERVAL"`

	AuditLog    string `yaml:"audit_log" env:"AUDIT_LOG"`
	MetricsAddr string `yaml:"metrics_addr" env:"METRICS_ADDR"`
	LogLevel    string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat   string `yaml:"log_format" env:"LOG_FORMAT"`
}

// Default returns the built-in settings. File locations are derived from
// DataDir by Load.
func Default() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		StrictLoad:      true,
		VerifyWindow:    1,
		RefreshInterval: time.Second,
		AuditLog:        "audit.log",
		LogLevel:        "info",
		LogFormat:       "console",
	}
}

// DefaultDataDir is %LOCALAPPDATA%\AuthVault on Windows and ~/.authvault elsewhere.
func DefaultDataDir() string {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, "AuthVault")
		}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".authvault"
	}
	return filepath.Join(home, ".authvault")
}

// DefaultConfigFile is the config file read when none is named.
func DefaultConfigFile() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// Load builds the configuration. configFile may be empty, in which case
// $AUTHVAULT_CONFIG or DefaultConfigFile is used and a missing file is not an
// error. envFiles are loaded with godotenv before the environment is read;
// with none given, a .env file in the working directory is used if present.
func Load(configFile string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if err := loadDotenv(envFiles); err != nil {
		return nil, err
	}

	explicit := configFile != ""
	if !explicit {
		configFile = os.Getenv(EnvPrefix + "CONFIG")
		explicit = configFile != ""
	}
	if !explicit {
		configFile = DefaultConfigFile()
	}
	if err := loadYAML(&cfg, configFile, explicit); err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("%w: environment: %v", ErrConfig, err)
	}

	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.VerifyWindow < 0 || c.VerifyWindow > MaxVerifyWindow {
		return fmt.Errorf("%w: verify_window must be between 0 and %d, got %d", ErrConfig, MaxVerifyWindow, c.VerifyWindow)
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("%w: refresh_interval must be positive, got %s", ErrConfig, c.RefreshInterval)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: log_level: %v", ErrConfig, err)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("%w: log_format must be console or json, got %q", ErrConfig, c.LogFormat)
	}
	return nil
}

// Level returns the parsed log level, defaulting to info.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// resolvePaths fills in file locations and anchors relative ones at DataDir.
func (c *Config) resolvePaths() {
	c.VaultFile = underDir(c.DataDir, c.VaultFile, "data.vault")
	c.KeyFile = underDir(c.DataDir, c.KeyFile, "secret.key")
	switch c.AuditLog {
	case "", AuditOff:
		c.AuditLog = ""
	default:
		c.AuditLog = underDir(c.DataDir, c.AuditLog, "")
	}

	// Older releases kept their files next to the executable.
	if c.LegacyDataFile == "" || c.LegacyKeyFile == "" {
		exe, err := os.Executable()
		if err != nil {
			return
		}
		dir := filepath.Dir(exe)
		if c.LegacyDataFile == "" {
			c.LegacyDataFile = filepath.Join(dir, "accounts.dat")
		}
		if c.LegacyKeyFile == "" {
			c.LegacyKeyFile = filepath.Join(dir, ".key")
		}
	}
}

func underDir(dir, path, def string) string {
	if path == "" {
		path = def
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

func loadYAML(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("%w: reading %s: %v", ErrConfig, path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%w: parsing %s: %v", ErrConfig, path, err)
	}
	return nil
}

func loadDotenv(files []string) error {
	if len(files) == 0 {
		if _, err := os.Stat(".env"); err != nil {
			return nil
		}
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("%w: loading env files: %v", ErrConfig, err)
	}
	return nil
}
