package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TriggerEntry describes one trigger slot in the YAML trigger file.
type TriggerEntry struct {
	Type      string         `yaml:"type"`
	Enabled   *bool          `yaml:"enabled"`
	FullPage  bool           `yaml:"full_page"`
	TimeoutMS int            `yaml:"timeout_ms"`
	Quality   int            `yaml:"quality"`
	Format    string         `yaml:"format"`
	Metadata  map[string]any `yaml:"metadata"`
}

// On reports the entry's enabled flag, defaulting to true when absent.
func (e TriggerEntry) On() bool {
	return e.Enabled == nil || *e.Enabled
}

// TriggerFile is the top-level YAML trigger configuration.
type TriggerFile struct {
	Triggers []TriggerEntry `yaml:"triggers"`
}

// LoadTriggerFile reads and validates a trigger YAML file. Returns an
// os.ErrNotExist-wrapped error if the file is absent (caller silently
// skips in that case).
func LoadTriggerFile(path string) (*TriggerFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trigger config: %w", err)
	}
	var cfg TriggerFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("trigger config: %w", err)
	}
	if len(cfg.Triggers) < 1 {
		return nil, fmt.Errorf("trigger config: at least one trigger entry is required")
	}
	for i, entry := range cfg.Triggers {
		if entry.Type == "" {
			return nil, fmt.Errorf("trigger config: triggers[%d] missing type", i)
		}
	}
	return &cfg, nil
}
