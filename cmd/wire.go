package cmd

import (
	"errors"
	"fmt"

	configtoml "github.com/bnema/osabridge/internal/adapters/config/toml"
	"github.com/bnema/osabridge/internal/adapters/host/luahost"
	"github.com/bnema/osabridge/internal/adapters/host/memory"
	"github.com/bnema/osabridge/internal/adapters/logging"
	wirerender "github.com/bnema/osabridge/internal/adapters/render/wire"
	"github.com/bnema/osabridge/internal/adapters/schema"
	"github.com/bnema/osabridge/internal/application"
	"github.com/bnema/osabridge/internal/ports"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var errScriptRequired = errors.New("the lua host needs a script (--script or host.script)")

type rootOptions struct {
	configPath string
}

type app struct {
	cfg      configtoml.Config
	logger   *zap.Logger
	renderer func(wirerender.Response, wirerender.RenderOptions) (string, error)
}

type bridge struct {
	dispatcher *application.Dispatcher
	close      func()
}

// wire loads configuration for cmd and builds the shared dependencies. The
// logger writes to the command's stderr.
func (o *rootOptions) wire(cmd *cobra.Command) (*app, error) {
	cfg := viper.New()
	if flag := cmd.Root().PersistentFlags().Lookup(logLevelFlag); flag != nil && flag.Changed {
		cfg.Set("log.level", flag.Value.String())
	}

	loaded, err := configtoml.Load(cfg, o.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(loaded.Log.Level, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("wire logger: %w", err)
	}

	return &app{
		cfg:      loaded,
		logger:   logger,
		renderer: wirerender.Render,
	}, nil
}

// hostConfig applies command-line overrides on top of the configured host.
func (a *app) hostConfig(kind, script string) configtoml.HostConfig {
	host := a.cfg.Host
	if kind != "" {
		host.Kind = kind
	}
	if script != "" {
		host.Script = script
	}
	return host
}

func (a *app) newBridge(hostCfg configtoml.HostConfig) (*bridge, error) {
	host, closeHost, err := newHost(hostCfg)
	if err != nil {
		return nil, err
	}

	pool := application.NewObjectPool(application.WithStrictRelease(a.cfg.Bridge.StrictRelease))
	classifier := application.NewClassifier(application.ClassifierConfig{
		CollectionCapabilities: a.cfg.Bridge.CollectionCapabilities,
		ArrayClassPrefix:       a.cfg.Bridge.ArrayClassPrefix,
		SpeculativeEvaluation:  a.cfg.Bridge.SpeculativeEvaluation,
	})

	opts := []application.DispatcherOption{application.WithLogger(a.logger)}
	if a.cfg.Bridge.ValidateCommands {
		validator, err := schema.NewValidator()
		if err != nil {
			closeHost()
			return nil, fmt.Errorf("wire command validator: %w", err)
		}
		opts = append(opts, application.WithValidator(validator))
	}

	dispatcher := application.NewDispatcher(host, application.NewMarshaller(pool, classifier), opts...)
	a.logger.Info("bridge session started",
		zap.String("session", dispatcher.SessionID()),
		zap.String("host", hostCfg.Kind),
	)

	return &bridge{dispatcher: dispatcher, close: closeHost}, nil
}

func newHost(cfg configtoml.HostConfig) (ports.Host, func(), error) {
	switch cfg.Kind {
	case configtoml.HostKindMemory:
		return memory.Demo(), func() {}, nil
	case configtoml.HostKindLua:
		if cfg.Script == "" {
			return nil, nil, errScriptRequired
		}
		host := luahost.New()
		if err := host.LoadFile(cfg.Script); err != nil {
			host.Close()
			return nil, nil, fmt.Errorf("wire lua host: %w", err)
		}
		return host, host.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown host kind %q", cfg.Kind)
	}
}
