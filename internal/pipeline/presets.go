package pipeline

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hakim/cybershield/internal/models"
)

// DefaultPreset is used when a submission names no preset.
const DefaultPreset = "full"

// Preset defines a named set of tools run for a job.
type Preset struct {
	Name        string
	Description string
	Tools       []string // runner names, matched against registered runners
}

// builtinPresets is the registry of all known presets.
var builtinPresets = map[string]Preset{
	"full": {
		Name:        "full",
		Description: "Web application and network service scan with template checks",
		Tools:       []string{"zap", "nmap", "nuclei"},
	},
	"web": {
		Name:        "web",
		Description: "Web application checks only, no port scanning",
		Tools:       []string{"zap", "nuclei"},
	},
	"network": {
		Name:        "network",
		Description: "Open port and service fingerprinting only",
		Tools:       []string{"nmap"},
	},
}

// BuiltinPresets returns the available presets.
func BuiltinPresets() map[string]Preset {
	// Return a copy so callers cannot mutate the registry.
	return maps.Clone(builtinPresets)
}

// PresetNames returns the preset names in sorted order.
func PresetNames() []string {
	return slices.Sorted(maps.Keys(builtinPresets))
}

// GetPreset returns a preset by name, or an error wrapping
// models.ErrInvalidPreset if not found.
func GetPreset(name string) (*Preset, error) {
	p, ok := builtinPresets[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown preset %q (available: %s)",
			models.ErrInvalidPreset, name, strings.Join(PresetNames(), ", "))
	}
	cp := p
	cp.Tools = slices.Clone(p.Tools)
	return &cp, nil
}
