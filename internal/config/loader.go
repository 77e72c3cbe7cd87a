package config

import (
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/assay-dev/assay/internal/reason"
)

// LoadOptions tunes Load beyond the file contents themselves.
type LoadOptions struct {
	// ForceLegacy forces version 0 even when the file declares
	// configVersion: 1, for callers migrating old suites.
	ForceLegacy bool
}

var defaultSettings = Settings{
	Parallel:       1,
	TimeoutSeconds: 30,
}

const defaultMinScore = 0.8

// Load reads, expands, parses, and validates a suite configuration file.
//
// Steps performed:
//  1. Read the YAML file
//  2. Expand environment variables
//  3. Parse YAML into SuiteConfig
//  4. Resolve the config version (missing configVersion means legacy 0)
//  5. Merge default settings
//  6. Validate
func Load(path string, opts LoadOptions) (*SuiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewLoadError(path, ErrConfigNotFound)
		}
		return nil, NewLoadError(path, err)
	}
	cfg, err := Parse(data, opts)
	if err != nil {
		return nil, NewLoadError(path, err)
	}
	slog.Info("assay.config.loaded", "path", path, "suite", cfg.Suite, "version", cfg.Version, "tests", len(cfg.Tests))
	return cfg, nil
}

// Parse is Load without the file read, for callers that already hold the
// YAML bytes.
func Parse(data []byte, opts LoadOptions) (*SuiteConfig, error) {
	data = ExpandEnv(data)

	var cfg SuiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	version, err := resolveVersion(cfg.ConfigVersion, opts)
	if err != nil {
		return nil, err
	}
	cfg.Version = version

	if err := mergo.Merge(&cfg.Settings, defaultSettings); err != nil {
		return nil, fmt.Errorf("merge default settings: %w", err)
	}
	if cfg.Thresholds.MinScore == nil {
		min := defaultMinScore
		cfg.Thresholds.MinScore = &min
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}
	return &cfg, nil
}

func resolveVersion(declared *int, opts LoadOptions) (int, error) {
	if opts.ForceLegacy {
		return VersionLegacy, nil
	}
	if declared == nil {
		return VersionLegacy, nil
	}
	switch *declared {
	case VersionLegacy, VersionCurrent:
		return *declared, nil
	default:
		return 0, reason.New(reason.ConfigVersion,
			fmt.Sprintf("%v %d", ErrUnsupportedVersion, *declared))
	}
}
