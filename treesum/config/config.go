package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	internal "github.com/ZanzyTHEbar/treesum/treesum"
	"github.com/ZanzyTHEbar/treesum/treesum/filesystem/common"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	CacheDir          string `mapstructure:"cache_dir"`
	Algorithm         string `mapstructure:"algorithm"`
	Workers           int    `mapstructure:"workers"`
	LogLevel          string `mapstructure:"log_level"`
	IgnoreFile        string `mapstructure:"ignore_file"`
	UseDefaultIgnores bool   `mapstructure:"use_default_ignores"`
}

// IgnoreRules is the ignore document co-located with a scanned root
type IgnoreRules struct {
	IgnoreDirs     []string `mapstructure:"ignore_dirs"`
	IgnorePaths    []string `mapstructure:"ignore_paths"`
	IgnorePatterns []string `mapstructure:"ignore_patterns"`
}

// Empty reports whether the document contributes no rules
func (r IgnoreRules) Empty() bool {
	return len(r.IgnoreDirs) == 0 && len(r.IgnorePaths) == 0 && len(r.IgnorePatterns) == 0
}

// NewViper returns a viper instance with defaults and env binding applied.
// Callers may bind flags onto it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetDefault("cache_dir", internal.DefaultCacheDir)
	v.SetDefault("algorithm", internal.DefaultAlgorithm)
	v.SetDefault("workers", 0)
	v.SetDefault("log_level", internal.DefaultLogLevel)
	v.SetDefault("ignore_file", internal.DefaultIgnoreFile)
	v.SetDefault("use_default_ignores", true)

	v.SetEnvPrefix(strings.ToUpper(internal.DefaultAppName))
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads configuration from file or environment variables.
// An explicit configPath must exist; otherwise the search paths are optional.
func LoadConfig(configPath string) (*Config, error) {
	return Load(NewViper(), configPath)
}

// Load reads the config file into v and decodes the result
func Load(v *viper.Viper, configPath string) (*Config, error) {
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName(internal.DefaultConfigName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, common.ConfigError("read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, common.ConfigError("decode config", err)
	}
	if cfg.Workers < 0 {
		return nil, common.ConfigError("workers", fmt.Errorf("must not be negative, got %d", cfg.Workers))
	}

	return &cfg, nil
}

// LoadIgnoreRules reads the JSON ignore document at root/name.
// A missing, unreadable or malformed document yields empty rules.
func LoadIgnoreRules(root, name string, logger zerolog.Logger) IgnoreRules {
	if name == "" {
		return IgnoreRules{}
	}
	path := filepath.Join(root, name)

	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			logger.Debug().Err(err).Str("path", path).Msg("ignore file not readable")
		}
		return IgnoreRules{}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("ignoring malformed ignore file")
		return IgnoreRules{}
	}

	var rules IgnoreRules
	if err := v.Unmarshal(&rules); err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("ignoring malformed ignore file")
		return IgnoreRules{}
	}

	logger.Debug().
		Str("path", path).
		Int("dirs", len(rules.IgnoreDirs)).
		Int("paths", len(rules.IgnorePaths)).
		Int("patterns", len(rules.IgnorePatterns)).
		Msg("loaded ignore rules")

	return rules
}
