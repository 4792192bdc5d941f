package prefabs

import (
	"errors"
	"fmt"

	"github.com/milk9111/tankrl/env"
	"gopkg.in/yaml.v3"
)

const (
	EnvFile   = "env.yaml"
	ArenaFile = "arena.yaml"
)

func LoadSpec[T any](filename string) (T, error) {
	var zero T
	data, err := Load(filename)
	if err != nil {
		return zero, fmt.Errorf("prefabs: load %s: %w", filename, err)
	}

	var spec T
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return zero, fmt.Errorf("prefabs: unmarshal %s: %w", filename, err)
	}

	return spec, nil
}

// LoadEnvConfig reads env.yaml over the default tuning, so keys missing from
// the file keep their defaults.
func LoadEnvConfig() (env.Config, error) {
	cfg := env.DefaultConfig()
	data, err := Load(EnvFile)
	if err != nil {
		return cfg, fmt.Errorf("prefabs: load %s: %w", EnvFile, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("prefabs: unmarshal %s: %w", EnvFile, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("prefabs: %s: %w", EnvFile, err)
	}
	return cfg, nil
}

type RangeSpec struct {
	Min float64 `yaml:"min"`
	Max float64 `yaml:"max"`
}

type TankSpec struct {
	Radius float64   `yaml:"radius"`
	Speed  RangeSpec `yaml:"speed"`
	// SpawnInterval is in seconds.
	SpawnInterval float64 `yaml:"spawn_interval"`
	MaxLive       int     `yaml:"max_live"`
}

type ArenaSpec struct {
	Name        string    `yaml:"name"`
	Seed        int64     `yaml:"seed"`
	SpawnZ      float64   `yaml:"spawn_z"`
	SpawnX      RangeSpec `yaml:"spawn_x"`
	AgentRadius float64   `yaml:"agent_radius"`
	Hostile     TankSpec  `yaml:"hostile"`
	Friendly    TankSpec  `yaml:"friendly"`
}

var ErrInvalidArena = errors.New("prefabs: invalid arena spec")

func (s ArenaSpec) Validate() error {
	if s.SpawnX.Max < s.SpawnX.Min {
		return fmt.Errorf("%w: spawn_x max %v < min %v", ErrInvalidArena, s.SpawnX.Max, s.SpawnX.Min)
	}
	if s.AgentRadius <= 0 {
		return fmt.Errorf("%w: agent_radius must be positive", ErrInvalidArena)
	}
	sides := []struct {
		name string
		tank TankSpec
	}{
		{"hostile", s.Hostile},
		{"friendly", s.Friendly},
	}
	for _, side := range sides {
		name, t := side.name, side.tank
		if t.Radius <= 0 {
			return fmt.Errorf("%w: %s radius must be positive", ErrInvalidArena, name)
		}
		if t.Speed.Max < t.Speed.Min || t.Speed.Min < 0 {
			return fmt.Errorf("%w: %s speed range [%v, %v]", ErrInvalidArena, name, t.Speed.Min, t.Speed.Max)
		}
		if t.SpawnInterval <= 0 {
			return fmt.Errorf("%w: %s spawn_interval must be positive", ErrInvalidArena, name)
		}
	}
	return nil
}

func LoadArenaSpec() (*ArenaSpec, error) {
	spec, err := LoadSpec[ArenaSpec](ArenaFile)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("prefabs: %s: %w", ArenaFile, err)
	}
	return &spec, nil
}
