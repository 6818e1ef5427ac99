// Package config loads tdo's settings once at startup.
// Priority: command-line flags > TDO_* env > config.json > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "TDO"
	configName     = "config"
	configType     = "json"
	sessionFile    = "session.json"
	defaultSchema  = "public"
	defaultDataDir = ".tdo"
)

// LogConfig controls the slog handler.
type LogConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	File       string // empty logs to stderr
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// SyncConfig controls when uploads run.
type SyncConfig struct {
	Auto       bool          // upload after each mutating command
	Timeout    time.Duration // bound for an auto upload
	Debounce   time.Duration
	Interval   time.Duration
	BackoffMin time.Duration
	BackoffMax time.Duration
}

// Config is built once by Load and passed by pointer to constructors.
type Config struct {
	SupabaseURL     string
	SupabaseAnonKey string
	PowerSyncURL    string

	// DatabaseURL, when set, replays uploads directly against Postgres
	// instead of the REST API.
	DatabaseURL    string
	DatabaseSchema string

	DataDir    string
	ConfigFile string // file that was read, empty if none

	Log  LogConfig
	Sync SyncConfig
}

// SessionPath is where the signed-in session is persisted.
func (c *Config) SessionPath() string {
	return filepath.Join(c.DataDir, sessionFile)
}

// RequireAuth reports missing settings needed to talk to the identity provider.
func (c *Config) RequireAuth() error {
	var missing []string
	if c.SupabaseURL == "" {
		missing = append(missing, "supabase_url")
	}
	if c.SupabaseAnonKey == "" {
		missing = append(missing, "supabase_anon_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing config: %s (set in %s or via %s_* env)",
			strings.Join(missing, ", "), configName+"."+configType, envPrefix)
	}
	return nil
}

// Dir returns ~/.config/tdo, creating it if necessary.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	dir := filepath.Join(home, ".config", "tdo")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// DefaultPath is the config file used when none is given.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configName+"."+configType), nil
}

func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("supabase_url", "")
	v.SetDefault("supabase_anon_key", "")
	v.SetDefault("powersync_url", "")
	v.SetDefault("database_url", "")
	v.SetDefault("database_schema", defaultSchema)
	v.SetDefault("data_dir", filepath.Join(home, defaultDataDir))

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("sync.auto", true)
	v.SetDefault("sync.timeout", 5*time.Second)
	v.SetDefault("sync.debounce", 3*time.Second)
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.backoff_min", time.Second)
	v.SetDefault("sync.backoff_max", time.Minute)
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"data-dir":  "data_dir",
	"log-level": "log.level",
	"log-file":  "log.file",
}

func newViper(path string, flags *pflag.FlagSet) (*viper.Viper, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("get home dir: %w", err)
	}

	v := viper.New()
	setDefaults(v, home)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(filepath.Join(home, ".config", "tdo"))
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for flag, key := range flagKeys {
			if f := flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", flag, err)
				}
			}
		}
	}
	return v, nil
}

// Load reads configuration. path may be empty to use the default location;
// a missing default file is not an error, a missing explicit one is.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v, err := newViper(path, flags)
	if err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		SupabaseURL:     strings.TrimRight(v.GetString("supabase_url"), "/"),
		SupabaseAnonKey: v.GetString("supabase_anon_key"),
		PowerSyncURL:    v.GetString("powersync_url"),
		DatabaseURL:     v.GetString("database_url"),
		DatabaseSchema:  v.GetString("database_schema"),
		DataDir:         expandHome(v.GetString("data_dir")),
		ConfigFile:      v.ConfigFileUsed(),
		Log: LogConfig{
			Level:      v.GetString("log.level"),
			Format:     v.GetString("log.format"),
			File:       expandHome(v.GetString("log.file")),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
		Sync: SyncConfig{
			Auto:       v.GetBool("sync.auto"),
			Timeout:    v.GetDuration("sync.timeout"),
			Debounce:   v.GetDuration("sync.debounce"),
			Interval:   v.GetDuration("sync.interval"),
			BackoffMin: v.GetDuration("sync.backoff_min"),
			BackoffMax: v.GetDuration("sync.backoff_max"),
		},
	}
	return cfg, nil
}

// Set writes key=value into the config file at path, keeping other keys.
func Set(path, key, value string) error {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !os.IsNotExist(err) {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	v.Set(key, value)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return v.WriteConfigAs(path)
}

// Get returns the effective value of key, or "" if unset.
func Get(path, key string) (string, error) {
	v, err := newViper(path, nil)
	if err != nil {
		return "", err
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return "", fmt.Errorf("read config: %w", err)
		}
	}
	return v.GetString(key), nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
