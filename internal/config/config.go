package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment override, e.g.
// CYBERSHIELD_LISTEN_ADDR or CYBERSHIELD_TOOLS_NMAP_TIMEOUT.
const EnvPrefix = "CYBERSHIELD"

// Config represents the application configuration
type Config struct {
	ListenAddr        string           `mapstructure:"listen_addr" yaml:"listen_addr"`
	ScanDir           string           `mapstructure:"scan_dir" yaml:"scan_dir"`
	DBPath            string           `mapstructure:"db_path" yaml:"db_path"`
	Store             string           `mapstructure:"store" yaml:"store"`
	DefaultPreset     string           `mapstructure:"default_preset" yaml:"default_preset"`
	SyntheticFallback bool             `mapstructure:"synthetic_fallback" yaml:"synthetic_fallback"`
	Tools             ToolsConfig      `mapstructure:"tools" yaml:"tools"`
	Artifact          ArtifactConfig   `mapstructure:"artifact" yaml:"artifact"`
	Enrichment        EnrichmentConfig `mapstructure:"enrichment" yaml:"enrichment"`
	Scope             ScopeConfig      `mapstructure:"scope" yaml:"scope"`
	Notify            NotifyConfig     `mapstructure:"notify" yaml:"notify"`
}

// ToolConfig represents configuration for a single tool
type ToolConfig struct {
	Path    string   `mapstructure:"path" yaml:"path"`
	Args    []string `mapstructure:"args" yaml:"args"`
	Timeout string   `mapstructure:"timeout" yaml:"timeout"`
	Enabled bool     `mapstructure:"enabled" yaml:"enabled"`
}

// TimeoutDuration parses Timeout. An empty value yields zero, meaning the
// runner default.
func (t ToolConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration(t.Timeout)
}

// ToolsConfig contains configuration for all external tools
type ToolsConfig struct {
	Zap    ToolConfig `mapstructure:"zap" yaml:"zap"`
	Nmap   ToolConfig `mapstructure:"nmap" yaml:"nmap"`
	Nuclei ToolConfig `mapstructure:"nuclei" yaml:"nuclei"`
}

// ByName returns the tool configs keyed by runner name
func (t ToolsConfig) ByName() map[string]ToolConfig {
	return map[string]ToolConfig{
		"zap":    t.Zap,
		"nmap":   t.Nmap,
		"nuclei": t.Nuclei,
	}
}

// ArtifactConfig controls how long runners wait for report files
type ArtifactConfig struct {
	Attempts int    `mapstructure:"attempts" yaml:"attempts"`
	Interval string `mapstructure:"interval" yaml:"interval"`
}

func (a ArtifactConfig) IntervalDuration() (time.Duration, error) {
	return parseDuration(a.Interval)
}

// EnrichmentConfig configures the Gemini summarizer. An empty APIKey
// disables enrichment.
type EnrichmentConfig struct {
	APIKey      string `mapstructure:"api_key" yaml:"api_key"`
	Model       string `mapstructure:"model" yaml:"model"`
	Timeout     string `mapstructure:"timeout" yaml:"timeout"`
	MaxFindings int    `mapstructure:"max_findings" yaml:"max_findings"`
}

func (e EnrichmentConfig) TimeoutDuration() (time.Duration, error) {
	return parseDuration(e.Timeout)
}

// ScopeConfig restricts which hosts may be scanned
type ScopeConfig struct {
	AllowedDomains []string `mapstructure:"allowed_domains" yaml:"allowed_domains"`
}

// NotifyConfig holds the completion webhook
type NotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url"`
}

// Load reads configuration from a YAML file layered over DefaultConfig,
// then applies CYBERSHIELD_* environment overrides.
// If path is empty, searches for cybershield.yaml in the current directory,
// ./configs and ~/.config/cybershield/; a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Seed with the defaults so every key is known to viper and can be
	// overridden from the environment.
	defaults, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal defaults: %w", err)
	}
	if err := v.ReadConfig(bytes.NewReader(defaults)); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("cybershield")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")

		homeDir, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(homeDir, ".config", "cybershield"))
		}
	}

	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// GEMINI_API_KEY is accepted for compatibility with existing deployments.
	if err := v.BindEnv("enrichment.api_key", EnvPrefix+"_ENRICHMENT_API_KEY", "GEMINI_API_KEY"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errs []error

	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr cannot be empty"))
	}

	if c.ScanDir == "" {
		errs = append(errs, errors.New("scan_dir cannot be empty"))
	}

	switch c.Store {
	case StoreMemory:
	case StoreBolt:
		if c.DBPath == "" {
			errs = append(errs, errors.New("db_path is required when store is bolt"))
		}
	default:
		errs = append(errs, fmt.Errorf("store must be %q or %q, got %q", StoreMemory, StoreBolt, c.Store))
	}

	if c.DefaultPreset == "" {
		errs = append(errs, errors.New("default_preset cannot be empty"))
	}

	for name, tool := range c.Tools.ByName() {
		if tool.Enabled && tool.Path == "" {
			errs = append(errs, fmt.Errorf("tools.%s.path cannot be empty when enabled", name))
		}
		if _, err := tool.TimeoutDuration(); err != nil {
			errs = append(errs, fmt.Errorf("tools.%s.timeout: %w", name, err))
		}
	}

	if c.Artifact.Attempts <= 0 {
		errs = append(errs, errors.New("artifact.attempts must be positive"))
	}
	if _, err := c.Artifact.IntervalDuration(); err != nil {
		errs = append(errs, fmt.Errorf("artifact.interval: %w", err))
	}

	if c.Enrichment.MaxFindings <= 0 {
		errs = append(errs, errors.New("enrichment.max_findings must be positive"))
	}
	if _, err := c.Enrichment.TimeoutDuration(); err != nil {
		errs = append(errs, fmt.Errorf("enrichment.timeout: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
