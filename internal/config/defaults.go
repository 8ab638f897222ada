package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreBolt   = "bolt"
)

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:        ":5000",
		ScanDir:           "scans",
		DBPath:            "cybershield.db",
		Store:             StoreMemory,
		DefaultPreset:     "full",
		SyntheticFallback: true,
		Tools: ToolsConfig{
			Zap: ToolConfig{
				Path:    "zap.sh",
				Args:    []string{},
				Timeout: "5m",
				Enabled: true,
			},
			Nmap: ToolConfig{
				Path:    "nmap",
				Args:    []string{"-sV", "-Pn", "-F"},
				Timeout: "5m",
				Enabled: true,
			},
			Nuclei: ToolConfig{
				Path:    "nuclei",
				Args:    []string{"-silent", "-duc", "-ni"},
				Timeout: "5m",
				Enabled: false,
			},
		},
		Artifact: ArtifactConfig{
			Attempts: 5,
			Interval: "500ms",
		},
		Enrichment: EnrichmentConfig{
			Model:       "gemini-pro",
			Timeout:     "60s",
			MaxFindings: 20,
		},
		Scope: ScopeConfig{
			AllowedDomains: []string{},
		},
	}
}

// WriteDefault writes a default configuration to the specified path
func WriteDefault(path string) error {
	cfg := DefaultConfig()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal default config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
