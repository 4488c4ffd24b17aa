package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/IvanShishkin/tamperhound/internal/hasher"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides
const EnvPrefix = "TAMPERHOUND"

// Config represents the verifier configuration
type Config struct {
	// Target settings
	Roots           []string `mapstructure:"roots"`            // files or directories to verify
	FollowSymlinks  bool     `mapstructure:"follow_symlinks"`  // follow symbolic links while resolving
	WalkDirectories bool     `mapstructure:"walk_directories"` // expand directory roots into their files
	Exclude         []string `mapstructure:"exclude"`          // directory names to skip

	// Scan settings
	Workers       int           `mapstructure:"workers"`        // concurrency limit
	Timeout       time.Duration `mapstructure:"timeout"`        // 0 means no timeout
	HashAlgorithm string        `mapstructure:"hash_algorithm"` // optional algorithm override

	// Baseline settings
	Baseline BaselineConfig `mapstructure:"baseline"`

	// Report settings
	ReportFormat string `mapstructure:"report_format"` // json, yaml, text, md; empty prints to console
	OutputFile   string `mapstructure:"output_file"`   // output file path
	NoColor      bool   `mapstructure:"no_color"`      // disable ANSI colors on console

	LogLevel string `mapstructure:"log_level"`
}

// BaselineConfig holds baseline store configuration
type BaselineConfig struct {
	Path         string   `mapstructure:"path"`          // baseline document path
	IdentityFile string   `mapstructure:"identity_file"` // age identity for .age baselines
	Recipients   []string `mapstructure:"recipients"`    // age recipients used when writing .age baselines
}

// ReportFormats lists accepted report formats
var ReportFormats = []string{"json", "yaml", "yml", "txt", "text", "md", "markdown"}

// LoadConfig loads configuration from an optional file, environment
// variables and defaults
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configFile, err)
		}
	}

	// Read environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("roots", []string{})
	v.SetDefault("follow_symlinks", false)
	v.SetDefault("walk_directories", true)
	v.SetDefault("exclude", []string{".git", ".svn", ".hg"})
	v.SetDefault("workers", DefaultWorkers())
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("hash_algorithm", "")
	v.SetDefault("baseline.path", "baseline.yaml")
	v.SetDefault("baseline.identity_file", "")
	v.SetDefault("baseline.recipients", []string{})
	v.SetDefault("report_format", "")
	v.SetDefault("output_file", "")
	v.SetDefault("no_color", false)
	v.SetDefault("log_level", "error")
}

// DefaultWorkers returns the default concurrency limit
func DefaultWorkers() int {
	return runtime.NumCPU() * 2
}

// Validate checks the configuration for values the engine cannot use
func (c *Config) Validate() error {
	var errs []error

	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if c.HashAlgorithm != "" {
		if _, ok := hasher.Size(c.HashAlgorithm); !ok {
			errs = append(errs, fmt.Errorf("unsupported hash algorithm %q (supported: %s)",
				c.HashAlgorithm, strings.Join(hasher.Supported(), ", ")))
		}
	}
	if c.Baseline.Path == "" {
		errs = append(errs, errors.New("baseline path is required"))
	}
	if c.ReportFormat != "" && !isReportFormat(c.ReportFormat) {
		errs = append(errs, fmt.Errorf("unknown report format %q", c.ReportFormat))
	}

	return errors.Join(errs...)
}

func isReportFormat(format string) bool {
	for _, f := range ReportFormats {
		if f == format {
			return true
		}
	}
	return false
}
