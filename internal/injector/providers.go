package injector

import (
	"github.com/google/wire"

	"github.com/zeusync/smoke/internal/config"
	"github.com/zeusync/smoke/internal/core/observability/log"
	"github.com/zeusync/smoke/internal/engine"
	"github.com/zeusync/smoke/internal/inspect"
	"github.com/zeusync/smoke/internal/systems"
)

// ProviderSet builds an App from a Config.
var ProviderSet = wire.NewSet(
	ProvideLogger,
	ProvideHub,
	ProvideEngine,
	ProvideInspector,
	systems.Table,
	wire.Struct(new(App), "*"),
)

// App is everything a command needs to run one world.
type App struct {
	Config    config.Config
	Log       log.Log
	Engine    *engine.Engine
	Hub       *inspect.Hub
	Inspector *inspect.Server
}

func ProvideLogger(cfg config.Config) (log.Log, func(), error) {
	l, err := log.New(cfg.Logging)
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Sync() }, nil
}

func ProvideHub(logger log.Log) *inspect.Hub {
	return inspect.NewHub(logger.Named("inspect"))
}

// ProvideEngine wires the hub in as frame reporter and change monitor.
func ProvideEngine(cfg config.Config, table engine.Table, logger log.Log, hub *inspect.Hub) (*engine.Engine, func()) {
	e := engine.New(cfg, table, logger, engine.WithReporter(hub), engine.WithMonitor(hub))
	return e, e.Shutdown
}

// ProvideInspector returns nil when the inspector is disabled.
func ProvideInspector(cfg config.Config, hub *inspect.Hub, logger log.Log) *inspect.Server {
	if !cfg.Inspect.Enabled {
		return nil
	}
	return inspect.NewServer(cfg.Inspect.Addr, hub, logger.Named("inspect"))
}
