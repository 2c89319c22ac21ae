package command

import (
	"time"

	geo "github.com/kellydunn/golang-geo"

	"go.reforestar.dev/planting/persistence"
)

// DefaultProximityThreshold is how close, in meters, the user must be to a loaded project's
// location before its trees can be placed while the reforestation plan is on.
const DefaultProximityThreshold = 10.0

// DistanceFunc returns the distance in meters between two points.
type DistanceFunc func(a, b *geo.Point) float64

// GreatCircleMeters is the default DistanceFunc.
func GreatCircleMeters(a, b *geo.Point) float64 {
	return a.GreatCircleDistance(b) * 1000
}

type options struct {
	proximityThreshold float64
	timeout            time.Duration
	distance           DistanceFunc
	bus                *Bus
}

func defaultOptions() options {
	return options{
		proximityThreshold: DefaultProximityThreshold,
		timeout:            persistence.DefaultTimeout,
		distance:           GreatCircleMeters,
	}
}

// An Option configures a Coordinator.
type Option func(*options)

// WithProximityThreshold sets the maximum distance in meters for gated placements.
func WithProximityThreshold(meters float64) Option {
	return func(o *options) {
		o.proximityThreshold = meters
	}
}

// WithTimeout bounds each save and load.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithDistanceFunc replaces great-circle distance.
func WithDistanceFunc(f DistanceFunc) Option {
	return func(o *options) {
		o.distance = f
	}
}

// WithBus publishes events on bus instead of a bus of the coordinator's own.
func WithBus(bus *Bus) Option {
	return func(o *options) {
		o.bus = bus
	}
}
