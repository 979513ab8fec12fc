// Package config loads and validates scanner configuration.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// Dir is the per-repository configuration directory.
	Dir = ".polyglot"
	// FileName is the configuration file name inside Dir.
	FileName = "config.toml"
	// EnvPrefix prefixes environment overrides, e.g. POLYGLOT_COUPLING_MINRATIO.
	EnvPrefix = "POLYGLOT"
)

// Config represents the complete scanner configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version" toml:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot" toml:"repoRoot"`

	History  HistoryConfig  `json:"history" mapstructure:"history" toml:"history"`
	Coupling CouplingConfig `json:"coupling" mapstructure:"coupling" toml:"coupling"`
	Output   OutputConfig   `json:"output" mapstructure:"output" toml:"output"`
	Privacy  PrivacyConfig  `json:"privacy" mapstructure:"privacy" toml:"privacy"`
	Logging  LoggingConfig  `json:"logging" mapstructure:"logging" toml:"logging"`
}

// HistoryConfig controls the history walk
type HistoryConfig struct {
	Enabled        bool   `json:"enabled" mapstructure:"enabled" toml:"enabled"`
	Years          int    `json:"years" mapstructure:"years" toml:"years"`
	Backend        string `json:"backend" mapstructure:"backend" toml:"backend"`
	Detailed       bool   `json:"detailed" mapstructure:"detailed" toml:"detailed"`
	FollowSymlinks bool   `json:"followSymlinks" mapstructure:"followSymlinks" toml:"followSymlinks"`
}

// CouplingConfig controls temporal coupling
type CouplingConfig struct {
	Enabled               bool    `json:"enabled" mapstructure:"enabled" toml:"enabled"`
	BucketDays            int     `json:"bucketDays" mapstructure:"bucketDays" toml:"bucketDays"`
	MinBursts             int     `json:"minBursts" mapstructure:"minBursts" toml:"minBursts"`
	MinActivityGapMinutes int     `json:"minActivityGapMinutes" mapstructure:"minActivityGapMinutes" toml:"minActivityGapMinutes"`
	TimeOverlapMinutes    int     `json:"timeOverlapMinutes" mapstructure:"timeOverlapMinutes" toml:"timeOverlapMinutes"`
	MinRatio              float64 `json:"minRatio" mapstructure:"minRatio" toml:"minRatio"`
	MinDistance           int     `json:"minDistance" mapstructure:"minDistance" toml:"minDistance"`
	MaxCommonRoots        int     `json:"maxCommonRoots" mapstructure:"maxCommonRoots" toml:"maxCommonRoots"` // 0 = unlimited
}

// OutputConfig controls the output document
type OutputConfig struct {
	Format     string `json:"format" mapstructure:"format" toml:"format"`
	Indent     bool   `json:"indent" mapstructure:"indent" toml:"indent"`
	SQLitePath string `json:"sqlitePath" mapstructure:"sqlitePath" toml:"sqlitePath"`
}

// PrivacyConfig contains privacy settings
type PrivacyConfig struct {
	Mode string `json:"mode" mapstructure:"mode" toml:"mode"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `json:"level" mapstructure:"level" toml:"level"`
	File       string `json:"file" mapstructure:"file" toml:"file"`
	MaxSize    string `json:"maxSize" mapstructure:"maxSize" toml:"maxSize"`
	MaxBackups int    `json:"maxBackups" mapstructure:"maxBackups" toml:"maxBackups"`
}

// Privacy modes
const (
	PrivacyNormal   = "normal"
	PrivacyRedacted = "redacted"
)

// History backends
const (
	BackendNative = "native"
	BackendCLI    = "cli"
)

// Output formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// CurrentVersion is the config schema version
const CurrentVersion = 1

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  CurrentVersion,
		RepoRoot: ".",
		History: HistoryConfig{
			Enabled:  true,
			Years:    3,
			Backend:  BackendNative,
			Detailed: true,
		},
		Coupling: CouplingConfig{
			Enabled:               false,
			BucketDays:            91,
			MinBursts:             10,
			MinActivityGapMinutes: 60,
			TimeOverlapMinutes:    60,
			MinRatio:              0.8,
			MinDistance:           3,
			MaxCommonRoots:        0,
		},
		Output: OutputConfig{
			Format: FormatJSON,
			Indent: false,
		},
		Privacy: PrivacyConfig{
			Mode: PrivacyNormal,
		},
		Logging: LoggingConfig{
			Level:      "warn",
			MaxSize:    "10MB",
			MaxBackups: 3,
		},
	}
}

// Path returns the default config file location for a repository root.
func Path(repoRoot string) string {
	return filepath.Join(repoRoot, Dir, FileName)
}

// LoadConfig loads configuration for repoRoot. An explicit path wins over the
// repository default; a missing default file yields DefaultConfig. Environment
// variables prefixed with POLYGLOT_ override file values.
func LoadConfig(repoRoot, explicitPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Join(repoRoot, Dir))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicitPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.RepoRoot == "" || cfg.RepoRoot == "." {
		cfg.RepoRoot = repoRoot
	}
	return &cfg, nil
}

// setDefaults registers every leaf key so AutomaticEnv can see it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("version", d.Version)
	v.SetDefault("repoRoot", d.RepoRoot)

	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.years", d.History.Years)
	v.SetDefault("history.backend", d.History.Backend)
	v.SetDefault("history.detailed", d.History.Detailed)
	v.SetDefault("history.followSymlinks", d.History.FollowSymlinks)

	v.SetDefault("coupling.enabled", d.Coupling.Enabled)
	v.SetDefault("coupling.bucketDays", d.Coupling.BucketDays)
	v.SetDefault("coupling.minBursts", d.Coupling.MinBursts)
	v.SetDefault("coupling.minActivityGapMinutes", d.Coupling.MinActivityGapMinutes)
	v.SetDefault("coupling.timeOverlapMinutes", d.Coupling.TimeOverlapMinutes)
	v.SetDefault("coupling.minRatio", d.Coupling.MinRatio)
	v.SetDefault("coupling.minDistance", d.Coupling.MinDistance)
	v.SetDefault("coupling.maxCommonRoots", d.Coupling.MaxCommonRoots)

	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.indent", d.Output.Indent)
	v.SetDefault("output.sqlitePath", d.Output.SQLitePath)

	v.SetDefault("privacy.mode", d.Privacy.Mode)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
	v.SetDefault("logging.maxSize", d.Logging.MaxSize)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: fmt.Sprintf("unsupported config version %d", c.Version)}
	}

	if c.History.Years < 1 {
		return &ConfigError{Field: "history.years", Message: "must be at least 1"}
	}
	switch c.History.Backend {
	case BackendNative, BackendCLI:
	default:
		return &ConfigError{Field: "history.backend", Message: fmt.Sprintf("unknown backend %q", c.History.Backend)}
	}

	if c.Coupling.Enabled && !c.History.Enabled {
		return &ConfigError{Field: "coupling.enabled", Message: "coupling requires git history"}
	}
	if c.Coupling.BucketDays < 1 {
		return &ConfigError{Field: "coupling.bucketDays", Message: "must be at least 1"}
	}
	if c.Coupling.MinBursts < 1 {
		return &ConfigError{Field: "coupling.minBursts", Message: "must be at least 1"}
	}
	if c.Coupling.MinActivityGapMinutes < 0 {
		return &ConfigError{Field: "coupling.minActivityGapMinutes", Message: "must not be negative"}
	}
	if c.Coupling.TimeOverlapMinutes < 0 {
		return &ConfigError{Field: "coupling.timeOverlapMinutes", Message: "must not be negative"}
	}
	if c.Coupling.MinRatio <= 0 || c.Coupling.MinRatio > 1 {
		return &ConfigError{Field: "coupling.minRatio", Message: "must be in (0, 1]"}
	}
	if c.Coupling.MinDistance < 0 {
		return &ConfigError{Field: "coupling.minDistance", Message: "must not be negative"}
	}
	if c.Coupling.MaxCommonRoots < 0 {
		return &ConfigError{Field: "coupling.maxCommonRoots", Message: "must not be negative"}
	}

	switch c.Output.Format {
	case FormatJSON, FormatYAML:
	default:
		return &ConfigError{Field: "output.format", Message: fmt.Sprintf("unknown format %q", c.Output.Format)}
	}

	switch c.Privacy.Mode {
	case PrivacyNormal, PrivacyRedacted:
	default:
		return &ConfigError{Field: "privacy.mode", Message: fmt.Sprintf("unknown mode %q", c.Privacy.Mode)}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
