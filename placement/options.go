package placement

import (
	"math"

	"github.com/pkg/errors"

	"go.reforestar.dev/planting/utils"
)

const (
	// defaultClearanceRadius is the minimum planar distance, in meters, kept between two trees.
	defaultClearanceRadius = 0.6
	// defaultSpacingMargin widens the candidate lattice beyond the clearance radius. The extra room
	// is what each candidate may be nudged by.
	defaultSpacingMargin = 0.25
	// defaultSpreadRadius bounds how far from the touch point a tree may be placed.
	defaultSpreadRadius = 3.0
	// defaultMaxAttempts is how many candidate sites a single slot may reject before it is skipped.
	defaultMaxAttempts = 64

	// DefaultRotationThreshold is the scale factor above which even results get a yaw perturbation.
	DefaultRotationThreshold = 0.8
	defaultMinRotationDegs   = 10.
	defaultMaxRotationDegs   = 45.
	defaultScaleJitter       = 0.1
)

// Config holds the tunables of the placement engine.
type Config struct {
	ClearanceRadius   float64
	SpacingMargin     float64
	SpreadRadius      float64
	MaxAttempts       int
	RotationThreshold float64
	// MinRotation and MaxRotation bound the magnitude, in radians, of the cosmetic yaw.
	MinRotation float64
	MaxRotation float64
	// ScaleJitter is the largest relative deviation from the requested scale factor.
	ScaleJitter float64
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		ClearanceRadius:   defaultClearanceRadius,
		SpacingMargin:     defaultSpacingMargin,
		SpreadRadius:      defaultSpreadRadius,
		MaxAttempts:       defaultMaxAttempts,
		RotationThreshold: DefaultRotationThreshold,
		MinRotation:       utils.DegToRad(defaultMinRotationDegs),
		MaxRotation:       utils.DegToRad(defaultMaxRotationDegs),
		ScaleJitter:       defaultScaleJitter,
	}
}

// Validate ensures all parts of the config are usable.
func (cfg Config) Validate() error {
	if cfg.ClearanceRadius <= 0 {
		return errors.Errorf("clearance radius must be positive, got %v", cfg.ClearanceRadius)
	}
	if cfg.SpacingMargin < 0 {
		return errors.Errorf("spacing margin cannot be negative, got %v", cfg.SpacingMargin)
	}
	if cfg.SpreadRadius < 0 {
		return errors.Errorf("spread radius cannot be negative, got %v", cfg.SpreadRadius)
	}
	if cfg.MaxAttempts <= 0 {
		return errors.Errorf("max attempts must be positive, got %d", cfg.MaxAttempts)
	}
	if cfg.MinRotation < 0 || cfg.MaxRotation < cfg.MinRotation || cfg.MaxRotation > math.Pi {
		return errors.Errorf("rotation bounds [%v, %v] must satisfy 0 <= min <= max <= pi", cfg.MinRotation, cfg.MaxRotation)
	}
	if cfg.ScaleJitter < 0 || cfg.ScaleJitter >= 1 {
		return errors.Errorf("scale jitter must be in [0, 1), got %v", cfg.ScaleJitter)
	}
	return nil
}

// spacing is the distance between neighbouring lattice sites.
func (cfg Config) spacing() float64 {
	return cfg.ClearanceRadius * (1 + cfg.SpacingMargin)
}

// nudge is the largest offset applied to a lattice site. Two sites one spacing apart that are each
// nudged by at most this much remain at least one clearance radius apart.
func (cfg Config) nudge() float64 {
	return (cfg.spacing() - cfg.ClearanceRadius) / 2
}
