package toml

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	configName = "config"
	configType = "toml"
	configDir  = ".osabridge"
	configFile = "config.toml"
	envPrefix  = "OSAB"

	logLevelKey               = "log.level"
	strictReleaseKey          = "bridge.strict_release"
	speculativeEvaluationKey  = "bridge.speculative_evaluation"
	collectionCapabilitiesKey = "bridge.collection_capabilities"
	arrayClassPrefixKey       = "bridge.array_class_prefix"
	validateCommandsKey       = "bridge.validate_commands"
	hostKindKey               = "host.kind"
	hostScriptKey             = "host.script"
	versionKey                = "version"
)

func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}

	return filepath.Join(homeDir, configDir, configFile), nil
}

// Load reads the config file (path, or ~/.osabridge/config.toml when empty)
// and OSAB_* environment overrides on top of the defaults. A missing file is
// not an error.
func Load(cfg *viper.Viper, path string) (Config, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	defaults := Defaults()
	cfg.SetDefault(versionKey, defaults.Version)
	cfg.SetDefault(logLevelKey, defaults.Log.Level)
	cfg.SetDefault(strictReleaseKey, defaults.Bridge.StrictRelease)
	cfg.SetDefault(speculativeEvaluationKey, defaults.Bridge.SpeculativeEvaluation)
	cfg.SetDefault(collectionCapabilitiesKey, defaults.Bridge.CollectionCapabilities)
	cfg.SetDefault(arrayClassPrefixKey, defaults.Bridge.ArrayClassPrefix)
	cfg.SetDefault(validateCommandsKey, defaults.Bridge.ValidateCommands)
	cfg.SetDefault(hostKindKey, defaults.Host.Kind)
	cfg.SetDefault(hostScriptKey, defaults.Host.Script)

	cfg.SetEnvPrefix(envPrefix)
	cfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	cfg.AutomaticEnv()

	if path != "" {
		cfg.SetConfigFile(path)
	} else {
		defaultPath, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		cfg.SetConfigName(configName)
		cfg.SetConfigType(configType)
		cfg.AddConfigPath(filepath.Dir(defaultPath))
	}

	if err := cfg.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	loaded := Config{
		Version: cfg.GetInt(versionKey),
		Log:     LogConfig{Level: strings.ToLower(cfg.GetString(logLevelKey))},
		Bridge: BridgeConfig{
			StrictRelease:          cfg.GetBool(strictReleaseKey),
			SpeculativeEvaluation:  cfg.GetBool(speculativeEvaluationKey),
			CollectionCapabilities: cfg.GetStringSlice(collectionCapabilitiesKey),
			ArrayClassPrefix:       cfg.GetString(arrayClassPrefixKey),
			ValidateCommands:       cfg.GetBool(validateCommandsKey),
		},
		Host: HostConfig{
			Kind:   cfg.GetString(hostKindKey),
			Script: cfg.GetString(hostScriptKey),
		},
	}

	if err := loaded.Validate(); err != nil {
		return Config{}, err
	}

	return loaded, nil
}
