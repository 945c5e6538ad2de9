package world

import (
	"github.com/zeusync/ecscore/internal/config"
	"github.com/zeusync/ecscore/internal/core/observability/log"
	"github.com/zeusync/ecscore/internal/core/registry"
)

// FromConfig builds a world sized by cfg.
func FromConfig(cfg *config.Config, logger log.Log, opts ...Option) *World {
	regOpts := []registry.Option{
		registry.WithSlabCapacity(cfg.Storage.SlabCapacity),
		registry.WithMaxSlabs(cfg.Storage.MaxSlabs),
	}
	for name, comp := range cfg.Components {
		regOpts = append(regOpts, registry.WithTypeCapacity(name, comp.SlabCapacity))
	}

	base := []Option{
		WithLogger(logger),
		WithEntityCapacity(cfg.Storage.EntityCapacity),
		WithRegistryOptions(regOpts...),
	}
	return New(append(base, opts...)...)
}
