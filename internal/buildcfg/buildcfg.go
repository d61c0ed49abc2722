// Package buildcfg resolves process-wide generator configuration from
// environment variables, with an optional TOML board profile for
// settings that are awkward to express as a single env var.
package buildcfg

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config is the resolved process configuration.
type Config struct {
	// DriverRepo is the driver repository path cmd/sdfgen-demo passes to
	// Probe. Configured via SDFGEN_DRIVER_REPO (default "drivers").
	DriverRepo string

	// PageSize is parsed from SDFGEN_PAGE_SIZE (0 when unset). Nothing in
	// the module reads it; architecture page sizes are not overridden.
	PageSize uint64

	// OutputDir is the default SerialiseConfig prefix. Configured via
	// SDFGEN_OUTPUT_DIR.
	OutputDir string

	Profile *BoardProfile
}

// BoardProfile holds per-architecture overrides loaded from an optional
// TOML file, for settings too structured for a single env var.
type BoardProfile struct {
	Name             string           `toml:"name"`
	PageSizeOverride map[string]uint64 `toml:"page_size_override"`
	DefaultPriority  map[string]uint8  `toml:"default_priority"`
}

// New resolves configuration from the environment, then merges in
// profilePath's TOML board profile if it is non-empty and the file
// exists.
func New(profilePath string) (*Config, error) {
	cfg := &Config{
		DriverRepo: getEnvDefault("SDFGEN_DRIVER_REPO", "drivers"),
		OutputDir:  getEnvDefault("SDFGEN_OUTPUT_DIR", "build"),
	}

	if raw := os.Getenv("SDFGEN_PAGE_SIZE"); raw != "" {
		var size uint64
		if _, err := fmt.Sscanf(raw, "%d", &size); err != nil {
			return nil, fmt.Errorf("buildcfg: parse SDFGEN_PAGE_SIZE %q: %w", raw, err)
		}
		cfg.PageSize = size
	}

	if profilePath == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(profilePath)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("buildcfg: read board profile %s: %w", profilePath, err)
	}

	var profile BoardProfile
	if err := toml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("buildcfg: parse board profile %s: %w", profilePath, err)
	}
	cfg.Profile = &profile
	return cfg, nil
}

func getEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
