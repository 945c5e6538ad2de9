package injector

import (
	"github.com/google/wire"
	"github.com/zeusync/ecscore/internal/config"
	"github.com/zeusync/ecscore/internal/core/observability/log"
	"github.com/zeusync/ecscore/internal/core/world"
	"github.com/zeusync/ecscore/internal/persist"
)

// Set wires a world and its collaborators from a loaded config.
var Set = wire.NewSet(
	ProvideLogger,
	ProvideWorld,
	ProvideSaver,
	wire.Bind(new(log.Log), new(*log.Logger)),
)

func ProvideLogger(cfg *config.Config) *log.Logger {
	logger := log.Provide()
	logger.SetLevel(cfg.LogLevel())
	return logger
}

func ProvideWorld(cfg *config.Config, logger log.Log) *world.World {
	return world.FromConfig(cfg, logger)
}

func ProvideSaver(logger log.Log) *persist.Saver {
	return persist.NewSaver(logger)
}

// Runtime is everything one benchmark world needs.
type Runtime struct {
	Logger log.Log
	World  *world.World
	Saver  *persist.Saver
}
