package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	// SettingsFile is looked up in the config directory
	SettingsFile = "settings.yaml"

	// EnvPrefix marks environment variables that override settings
	EnvPrefix = "DBSIGHT_"
)

// Settings are the runtime knobs of the tool. Connection profiles live in
// DBConfig, not here.
type Settings struct {
	ConfigDir      string        `koanf:"config_dir"`
	LogLevel       string        `koanf:"log_level"`
	LogFile        string        `koanf:"log_file"`
	LogMaxSize     int           `koanf:"log_max_size"`
	LogMaxBackups  int           `koanf:"log_max_backups"`
	LogMaxAge      int           `koanf:"log_max_age"`
	PoolMaxConns   int           `koanf:"pool_max_conns"`
	AcquireTimeout time.Duration `koanf:"acquire_timeout"`
	PageSize       uint64        `koanf:"page_size"`
	NoKeyring      bool          `koanf:"no_keyring"`

	// SettingsFileUsed is the yaml file that was loaded, if any
	SettingsFileUsed string `koanf:"-"`
}

// Defaults returns the built-in settings
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"config_dir":      DefaultConfigDir(),
		"log_level":       "info",
		"log_file":        "",
		"log_max_size":    10,
		"log_max_backups": 3,
		"log_max_age":     28,
		"pool_max_conns":  5,
		"acquire_timeout": 10 * time.Second,
		"page_size":       100,
		"no_keyring":      false,
	}
}

// ConnectionsPath is where the connection document is persisted
func (s *Settings) ConnectionsPath() string {
	return DefaultConfigPath(s.ConfigDir)
}

// LoadSettings layers defaults < settings.yaml < DBSIGHT_* env vars < flags
// that were explicitly set. flags may be nil.
func LoadSettings(flags *pflag.FlagSet) (*Settings, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Settings file from the config directory
	settingsFile := filepath.Join(resolveConfigDir(flags), SettingsFile)
	if _, err := os.Stat(settingsFile); err == nil {
		if err := k.Load(file.Provider(settingsFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading settings file %s: %w", settingsFile, err)
		}
	} else {
		settingsFile = ""
	}

	// 3. Environment: DBSIGHT_LOG_LEVEL -> log_level
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var s Settings
	if err := k.Unmarshal("", &s); err != nil {
		return nil, fmt.Errorf("unable to decode settings: %w", err)
	}
	s.SettingsFileUsed = settingsFile
	if s.PageSize == 0 {
		s.PageSize = 100
	}
	return &s, nil
}

// resolveConfigDir finds the directory to read settings.yaml from before the
// full layering runs: an explicit flag, then the environment, then the default
func resolveConfigDir(flags *pflag.FlagSet) string {
	if flags != nil && flags.Changed("config-dir") {
		if dir, err := flags.GetString("config-dir"); err == nil && dir != "" {
			return dir
		}
	}
	if dir := os.Getenv(EnvPrefix + "CONFIG_DIR"); dir != "" {
		return dir
	}
	return DefaultConfigDir()
}
