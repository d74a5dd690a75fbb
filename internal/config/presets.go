package config

import (
	"fmt"
	"os"

	"mines_client/internal/domain"

	"gopkg.in/yaml.v3"
)

// BuiltinPresets are used when PRESETS_FILE is not set.
func BuiltinPresets() map[string]domain.Configuration {
	return map[string]domain.Configuration{
		"easy":    {Cells: 25, Hazards: 1},
		"classic": {Cells: 25, Hazards: 3},
		"hard":    {Cells: 25, Hazards: 10},
		"extreme": {Cells: 25, Hazards: 20},
	}
}

type presetFile struct {
	Presets map[string]domain.Configuration `yaml:"presets"`
}

// LoadPresets reads named board configurations from a YAML file:
//
//	presets:
//	  classic: {cells: 25, hazards: 3}
func LoadPresets(path string) (map[string]domain.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return ParsePresets(data)
}

// ParsePresets decodes and validates a presets document.
func ParsePresets(data []byte) (map[string]domain.Configuration, error) {
	var f presetFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}
	if len(f.Presets) == 0 {
		return nil, fmt.Errorf("parse presets: no presets defined")
	}
	for name, cfg := range f.Presets {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
	}
	return f.Presets, nil
}
