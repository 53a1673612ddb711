// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Practice PracticeConfig `toml:"practice"`
}

// PracticeConfig maps practice-related settings. Pointer fields keep
// absent keys from clobbering defaults.
type PracticeConfig struct {
	Questions   *int    `toml:"questions"`
	Range       *string `toml:"range"`
	MinNote     *string `toml:"min-note"`
	MaxNote     *string `toml:"max-note"`
	Difficulty  *string `toml:"difficulty"`
	Clef        *string `toml:"clef"`
	Midi        *bool   `toml:"midi"`
	AutoAdvance *bool   `toml:"auto-advance"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
