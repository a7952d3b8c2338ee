// Package app composes the engine from explicitly constructed parts. The
// remote store, identity provider and uploader are injected by the host
// process, so tests and tooling can substitute doubles for any of them.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/dmartinez-dev/hilo/internal/bus"
	"github.com/dmartinez-dev/hilo/internal/codec"
	"github.com/dmartinez-dev/hilo/internal/config"
	"github.com/dmartinez-dev/hilo/internal/engine"
	"github.com/dmartinez-dev/hilo/internal/identity"
	"github.com/dmartinez-dev/hilo/internal/logging"
	"github.com/dmartinez-dev/hilo/internal/presence"
	"github.com/dmartinez-dev/hilo/internal/registry"
	"github.com/dmartinez-dev/hilo/internal/remote"
	"github.com/dmartinez-dev/hilo/internal/upload"
)

// Params holds the host-provided collaborators and settings.
type Params struct {
	Store    remote.Store
	Identity identity.Provider
	Uploader upload.Service
	Config   *config.Config
	LogPath  string // empty = development console logger
}

// Module returns the fx module wiring the sync engine and presence tracker.
func Module(p Params) fx.Option {
	return fx.Module("engine",
		fx.Supply(p),
		fx.Provide(
			provideLogger,
			provideConfig,
			provideBus,
			provideCodec,
			provideRegistry,
			provideEngine,
			provideTracker,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideLogger(p Params) (*zap.Logger, error) {
	if p.LogPath == "" {
		return zap.NewDevelopment()
	}
	userID := ""
	if u, ok := p.Identity.Current(); ok {
		userID = u.ID
	}
	return logging.New(p.LogPath, userID)
}

func provideConfig(p Params) *config.Config {
	if p.Config != nil {
		return p.Config
	}
	return config.Default()
}

func provideBus() *bus.Bus {
	return bus.New()
}

func provideCodec(cfg *config.Config) (*codec.Codec, error) {
	return codec.New(cfg.CodecKey)
}

func provideRegistry(p Params, logger *zap.Logger) *registry.Registry {
	return registry.New(p.Store, logger)
}

func provideEngine(p Params, cdc *codec.Codec, reg *registry.Registry, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *engine.Engine {
	return engine.New(p.Store, p.Identity, cdc, reg, p.Uploader, b, cfg, logger)
}

func provideTracker(p Params, reg *registry.Registry, b *bus.Bus, logger *zap.Logger) *presence.Tracker {
	return presence.New(p.Store, reg, p.Identity, b, logger)
}

func registerLifecycle(lc fx.Lifecycle, e *engine.Engine, tracker *presence.Tracker, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := tracker.PublishProfile(ctx); err != nil {
				return err
			}
			if err := tracker.SetOnline(ctx, true); err != nil {
				return err
			}
			logger.Info("engine started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := tracker.SetOnline(ctx, false); err != nil {
				logger.Warn("could not flag offline", zap.Error(err))
			}
			e.Shutdown()
			return nil
		},
	})
}
