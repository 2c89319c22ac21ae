// Package config defines the structures to configure a planting session and the ability to read
// them from a JSON file.
package config

import (
	"math"

	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.reforestar.dev/planting/logging"
	"go.reforestar.dev/planting/persistence"
	"go.reforestar.dev/planting/placement"
	"go.reforestar.dev/planting/scene"
	rutils "go.reforestar.dev/planting/utils"
)

// A Config describes the configuration of a planting session.
type Config struct {
	Placement   *PlacementConfig    `json:"placement,omitempty"`
	Session     *SessionConfig      `json:"session,omitempty"`
	Persistence *persistence.Config `json:"persistence,omitempty"`
	LogLevel    string              `json:"log_level,omitempty"`

	// ConfigFilePath is the path the config was read from, if any.
	ConfigFilePath string `json:"-"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	if err := cfg.Ensure(); err != nil {
		// The defaults are valid.
		panic(err)
	}
	return cfg
}

// Ensure fills in defaults for every missing section and validates the result.
func (c *Config) Ensure() error {
	if c.Placement == nil {
		c.Placement = &PlacementConfig{}
	}
	c.Placement.fillDefaults()
	if err := c.Placement.Validate("placement"); err != nil {
		return err
	}

	if c.Session == nil {
		c.Session = &SessionConfig{}
	}
	c.Session.fillDefaults()
	if err := c.Session.Validate("session"); err != nil {
		return err
	}

	if c.Persistence == nil {
		def := persistence.DefaultConfig()
		c.Persistence = &def
	}
	if c.Persistence.Timeout == "" {
		c.Persistence.Timeout = persistence.DefaultTimeout.String()
	}
	if err := c.Persistence.Validate("persistence"); err != nil {
		return err
	}

	if c.LogLevel == "" {
		c.LogLevel = logging.INFO.String()
	}
	if _, err := logging.LevelFromString(c.LogLevel); err != nil {
		return utils.NewConfigValidationError("log_level", err)
	}
	return nil
}

// Level returns the parsed log level.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// PlacementConfig tunes the placement engine. Angles are in degrees. Zero values are replaced by
// the engine defaults, except for ScaleJitter and MinRotationDegs where zero is meaningful and a
// missing value is told apart with a pointer.
type PlacementConfig struct {
	ClearanceRadius   float64  `json:"clearance_radius,omitempty"`
	SpacingMargin     float64  `json:"spacing_margin,omitempty"`
	SpreadRadius      float64  `json:"spread_radius,omitempty"`
	MaxAttempts       int      `json:"max_attempts,omitempty"`
	RotationThreshold float64  `json:"rotation_threshold,omitempty"`
	MinRotationDegs   *float64 `json:"min_rotation_degs,omitempty"`
	MaxRotationDegs   float64  `json:"max_rotation_degs,omitempty"`
	ScaleJitter       *float64 `json:"scale_jitter,omitempty"`
}

func (pc *PlacementConfig) fillDefaults() {
	def := placement.DefaultConfig()
	if pc.ClearanceRadius == 0 {
		pc.ClearanceRadius = def.ClearanceRadius
	}
	if pc.SpacingMargin == 0 {
		pc.SpacingMargin = def.SpacingMargin
	}
	if pc.SpreadRadius == 0 {
		pc.SpreadRadius = def.SpreadRadius
	}
	if pc.MaxAttempts == 0 {
		pc.MaxAttempts = def.MaxAttempts
	}
	if pc.RotationThreshold == 0 {
		pc.RotationThreshold = def.RotationThreshold
	}
	if pc.MinRotationDegs == nil {
		minDegs := rutils.RadToDeg(def.MinRotation)
		pc.MinRotationDegs = &minDegs
	}
	if pc.MaxRotationDegs == 0 {
		pc.MaxRotationDegs = rutils.RadToDeg(def.MaxRotation)
	}
	if pc.ScaleJitter == nil {
		jitter := def.ScaleJitter
		pc.ScaleJitter = &jitter
	}
}

// EngineConfig converts to the engine's configuration. It must be called after defaults are filled.
func (pc *PlacementConfig) EngineConfig() placement.Config {
	var minDegs, jitter float64
	if pc.MinRotationDegs != nil {
		minDegs = *pc.MinRotationDegs
	}
	if pc.ScaleJitter != nil {
		jitter = *pc.ScaleJitter
	}
	return placement.Config{
		ClearanceRadius:   pc.ClearanceRadius,
		SpacingMargin:     pc.SpacingMargin,
		SpreadRadius:      pc.SpreadRadius,
		MaxAttempts:       pc.MaxAttempts,
		RotationThreshold: pc.RotationThreshold,
		MinRotation:       rutils.DegToRad(minDegs),
		MaxRotation:       rutils.DegToRad(pc.MaxRotationDegs),
		ScaleJitter:       jitter,
	}
}

// Validate ensures all parts of the config are valid.
func (pc *PlacementConfig) Validate(path string) error {
	if pc.ClearanceRadius < 0 {
		return utils.NewConfigValidationError(path, errors.New("clearance_radius cannot be negative"))
	}
	if pc.MaxAttempts < 0 {
		return utils.NewConfigValidationError(path, errors.New("max_attempts cannot be negative"))
	}
	if pc.MinRotationDegs != nil && (*pc.MinRotationDegs < 0 || *pc.MinRotationDegs > 180) {
		return utils.NewConfigValidationError(path, errors.New("min_rotation_degs must be within [0, 180]"))
	}
	if err := pc.EngineConfig().Validate(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// SessionConfig holds the starting settings of a session.
type SessionConfig struct {
	DefaultModel             string  `json:"default_model,omitempty"`
	NumberOfTrees            uint    `json:"number_of_trees,omitempty"`
	ScaleCompensation        float64 `json:"scale_compensation,omitempty"`
	ReforestationPlan        bool    `json:"reforestation_plan,omitempty"`
	ProximityThresholdMeters float64 `json:"proximity_threshold_meters,omitempty"`
}

// DefaultProximityThresholdMeters is the proximity gate distance used when none is configured.
const DefaultProximityThresholdMeters = 10.0

func (sc *SessionConfig) fillDefaults() {
	def := scene.DefaultSettings()
	if sc.DefaultModel == "" {
		sc.DefaultModel = def.ModelName
	}
	if sc.NumberOfTrees == 0 {
		sc.NumberOfTrees = def.NumberOfTrees
	}
	if sc.ScaleCompensation == 0 {
		sc.ScaleCompensation = def.ScaleCompensation
	}
	if sc.ProximityThresholdMeters == 0 {
		sc.ProximityThresholdMeters = DefaultProximityThresholdMeters
	}
}

// Settings returns the starting settings of a session.
func (sc *SessionConfig) Settings() scene.Settings {
	return scene.Settings{
		ModelName:         sc.DefaultModel,
		NumberOfTrees:     sc.NumberOfTrees,
		ScaleCompensation: sc.ScaleCompensation,
	}
}

// Validate ensures all parts of the config are valid.
func (sc *SessionConfig) Validate(path string) error {
	if sc.DefaultModel == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "default_model")
	}
	if !(sc.ScaleCompensation > 0) || math.IsInf(sc.ScaleCompensation, 0) {
		return utils.NewConfigValidationError(path, errors.Errorf("scale_compensation must be positive, got %v", sc.ScaleCompensation))
	}
	if sc.ProximityThresholdMeters < 0 {
		return utils.NewConfigValidationError(path, errors.New("proximity_threshold_meters cannot be negative"))
	}
	return nil
}
