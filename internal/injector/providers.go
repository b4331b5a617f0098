package injector

import (
	"context"

	"github.com/google/wire"

	"github.com/zeusync/enginekit/internal/config"
	"github.com/zeusync/enginekit/internal/core/engine"
	"github.com/zeusync/enginekit/internal/core/events/bus"
	"github.com/zeusync/enginekit/internal/core/fs"
	"github.com/zeusync/enginekit/internal/core/observability/log"
	"github.com/zeusync/enginekit/internal/core/systems"
	"github.com/zeusync/enginekit/internal/server"
)

// ProviderSet builds an App from a *config.Config.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideFilesystem,
	ProvideRegistry,
	ProvideSystems,
	ProvideEngine,
	ProvideInspector,
	wire.Struct(new(App), "*"),
)

// App is everything the run command needs.
type App struct {
	Config    *config.Config
	Logger    log.Log
	Engine    *engine.Engine
	Inspector *server.Inspector
}

// Close stops the inspector, if it was started, and shuts the engine down.
func (a *App) Close(ctx context.Context) error {
	if a.Config.Inspector.Enabled {
		_ = a.Inspector.Stop(ctx)
	}
	err := a.Engine.Shutdown()
	if l, ok := a.Logger.(*log.Logger); ok {
		_ = l.Sync()
	}
	return err
}

func ProvideLogger(cfg *config.Config) log.Log {
	return log.New(cfg.Level())
}

func ProvideFilesystem() fs.Service {
	return fs.NewLocal()
}

func ProvideRegistry(logger log.Log) *bus.Registry {
	return bus.NewRegistry(logger)
}

// ProvideSystems lists the built-in systems in update order.
func ProvideSystems(logger log.Log) []systems.System {
	return []systems.System{
		systems.NewStats(logger),
		systems.NewMovement(logger),
	}
}

func ProvideEngine(cfg *config.Config, files fs.Service, registry *bus.Registry, list []systems.System, logger log.Log) (*engine.Engine, error) {
	e := engine.New(cfg.EngineOptions(), files, registry, logger)
	for _, s := range list {
		if err := e.AddSystem(s); err != nil {
			return nil, err
		}
	}
	if err := e.Configure(cfg.Systems); err != nil {
		return nil, err
	}
	return e, nil
}

func ProvideInspector(cfg *config.Config, e *engine.Engine, logger log.Log) *server.Inspector {
	sc := server.DefaultConfig()
	sc.Addr = cfg.Inspector.Addr
	sc.Token = cfg.Inspector.Token
	return server.NewInspector(e, sc, logger)
}
