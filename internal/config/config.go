package config

import (
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/zeusync/ecscore/internal/core/memory"
	"github.com/zeusync/ecscore/internal/core/observability/log"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config describes how a world sizes its storage.
type Config struct {
	Log        LogConfig                  `json:"log" yaml:"log"`
	Storage    StorageConfig              `json:"storage" yaml:"storage"`
	Components map[string]ComponentConfig `json:"components,omitempty" yaml:"components,omitempty"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level"`
}

type StorageConfig struct {
	// EntityCapacity pre-sizes the entity table.
	EntityCapacity int `json:"entity_capacity" yaml:"entity_capacity"`
	// SlabCapacity is the default number of instances per slab.
	SlabCapacity uint32 `json:"slab_capacity" yaml:"slab_capacity"`
	// MaxSlabs caps every pool; zero means unlimited.
	MaxSlabs int `json:"max_slabs,omitempty" yaml:"max_slabs,omitempty"`
}

// ComponentConfig overrides storage settings for one component type, keyed
// by its registered name.
type ComponentConfig struct {
	SlabCapacity uint32 `json:"slab_capacity" yaml:"slab_capacity"`
}

func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Storage: StorageConfig{
			EntityCapacity: 1024,
			SlabCapacity:   memory.DefaultSlabCapacity,
		},
	}
}

// Validate checks ranges and the log level.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if c.Storage.EntityCapacity < 0 {
		return errors.Wrap(ErrInvalidConfig, "storage.entity_capacity must not be negative")
	}
	if c.Storage.SlabCapacity == 0 {
		return errors.Wrap(ErrInvalidConfig, "storage.slab_capacity must be positive")
	}
	if c.Storage.MaxSlabs < 0 {
		return errors.Wrap(ErrInvalidConfig, "storage.max_slabs must not be negative")
	}
	for name, comp := range c.Components {
		if name == "" {
			return errors.Wrap(ErrInvalidConfig, "component override without a name")
		}
		if comp.SlabCapacity == 0 {
			return errors.Wrapf(ErrInvalidConfig, "components.%s.slab_capacity must be positive", name)
		}
	}
	return nil
}

func (c *Config) LogLevel() log.Level {
	level, _ := log.ParseLevel(c.Log.Level)
	return level
}

// Load reads YAML over the defaults and validates the result. Unknown keys
// are rejected.
func Load(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open config")
	}
	defer f.Close()
	return Load(f)
}
