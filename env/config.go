package env

import (
	"errors"
	"fmt"

	"github.com/milk9111/tankrl/common"
)

// Rewards holds every reward delta the environment can emit.
type Rewards struct {
	OutOfBounds       float64 `yaml:"out_of_bounds"`
	HostileHit        float64 `yaml:"hostile_hit"`
	FriendlyHit       float64 `yaml:"friendly_hit"`
	Step              float64 `yaml:"step"`
	HostileBreach     float64 `yaml:"hostile_breach"`
	FriendlyBreach    float64 `yaml:"friendly_breach"`
	HostileCollision  float64 `yaml:"hostile_collision"`
	FriendlyCollision float64 `yaml:"friendly_collision"`
}

// Scores holds every score delta the environment can apply.
type Scores struct {
	HostileHit        int `yaml:"hostile_hit"`
	FriendlyHit       int `yaml:"friendly_hit"`
	HostileBreach     int `yaml:"hostile_breach"`
	FriendlyBreach    int `yaml:"friendly_breach"`
	FriendlyCollision int `yaml:"friendly_collision"`
}

// Config holds the environment constants.
type Config struct {
	ForceMultiplier float64     `yaml:"force_multiplier"`
	ShootRange      float64     `yaml:"shoot_range"`
	TargetScore     int         `yaml:"target_score"`
	BoundX          float64     `yaml:"bound_x"`
	Spawn           common.Vec3 `yaml:"spawn"`
	Forward         common.Vec3 `yaml:"forward"`

	MaxHostiles      int     `yaml:"max_hostiles"`
	MaxFriendlies    int     `yaml:"max_friendlies"`
	PadObservations  bool    `yaml:"pad_observations"`
	SentinelDistance float64 `yaml:"sentinel_distance"`

	Rewards Rewards `yaml:"rewards"`
	Scores  Scores  `yaml:"scores"`
}

// DefaultConfig returns the reference tuning.
func DefaultConfig() Config {
	return Config{
		ForceMultiplier: 20,
		ShootRange:      30,
		TargetScore:     20,
		BoundX:          30,
		Spawn:           common.Vec3{X: 0, Y: 0, Z: -35},
		Forward:         common.Vec3{X: 0, Y: 0, Z: 1},

		MaxHostiles:      6,
		MaxFriendlies:    6,
		PadObservations:  true,
		SentinelDistance: 100,

		Rewards: Rewards{
			OutOfBounds:       -6.0,
			HostileHit:        2.0,
			FriendlyHit:       -1.0,
			Step:              -0.0005,
			HostileBreach:     -1.0,
			FriendlyBreach:    2.0,
			HostileCollision:  -3.0,
			FriendlyCollision: -1.0,
		},
		Scores: Scores{
			HostileHit:        2,
			FriendlyHit:       -1,
			HostileBreach:     -1,
			FriendlyBreach:    2,
			FriendlyCollision: -1,
		},
	}
}

var ErrInvalidConfig = errors.New("env: invalid config")

// Validate reports the first unusable setting.
func (c Config) Validate() error {
	switch {
	case c.ForceMultiplier <= 0:
		return fmt.Errorf("%w: force_multiplier must be positive, got %v", ErrInvalidConfig, c.ForceMultiplier)
	case c.ShootRange <= 0:
		return fmt.Errorf("%w: shoot_range must be positive, got %v", ErrInvalidConfig, c.ShootRange)
	case c.TargetScore <= 0:
		return fmt.Errorf("%w: target_score must be positive, got %d", ErrInvalidConfig, c.TargetScore)
	case c.BoundX <= 0:
		return fmt.Errorf("%w: bound_x must be positive, got %v", ErrInvalidConfig, c.BoundX)
	case c.MaxHostiles < 0 || c.MaxFriendlies < 0:
		return fmt.Errorf("%w: slot counts must not be negative", ErrInvalidConfig)
	case c.Forward.LenXZ() == 0:
		return fmt.Errorf("%w: forward axis must not be zero", ErrInvalidConfig)
	case c.Spawn.X < -c.BoundX || c.Spawn.X > c.BoundX:
		return fmt.Errorf("%w: spawn x %v outside bound %v", ErrInvalidConfig, c.Spawn.X, c.BoundX)
	}
	return nil
}
