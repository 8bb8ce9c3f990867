package toml

import (
	"errors"
	"fmt"
	"slices"
)

const currentSchemaVersion = 1

const (
	HostKindMemory = "memory"
	HostKindLua    = "lua"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Version int          `toml:"version"`
	Log     LogConfig    `toml:"log"`
	Bridge  BridgeConfig `toml:"bridge"`
	Host    HostConfig   `toml:"host"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type BridgeConfig struct {
	StrictRelease          bool     `toml:"strict_release"`
	SpeculativeEvaluation  bool     `toml:"speculative_evaluation"`
	CollectionCapabilities []string `toml:"collection_capabilities"`
	ArrayClassPrefix       string   `toml:"array_class_prefix"`
	ValidateCommands       bool     `toml:"validate_commands"`
}

type HostConfig struct {
	Kind   string `toml:"kind"`
	Script string `toml:"script,omitempty"`
}

func Defaults() Config {
	return Config{
		Version: currentSchemaVersion,
		Log:     LogConfig{Level: "info"},
		Bridge: BridgeConfig{
			StrictRelease:          false,
			SpeculativeEvaluation:  true,
			CollectionCapabilities: []string{"whose", "at"},
			ArrayClassPrefix:       "array::",
			ValidateCommands:       true,
		},
		Host: HostConfig{Kind: HostKindMemory},
	}
}

func (c Config) Validate() error {
	if c.Version > currentSchemaVersion {
		return fmt.Errorf("%w: unsupported config schema version %d (current %d)", ErrInvalidConfig, c.Version, currentSchemaVersion)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.Log.Level) {
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}

	switch c.Host.Kind {
	case HostKindMemory:
	case HostKindLua:
		if c.Host.Script == "" {
			return fmt.Errorf("%w: host.script is required for the lua host", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown host kind %q", ErrInvalidConfig, c.Host.Kind)
	}

	if len(c.Bridge.CollectionCapabilities) == 0 {
		return fmt.Errorf("%w: bridge.collection_capabilities is empty", ErrInvalidConfig)
	}

	return nil
}
