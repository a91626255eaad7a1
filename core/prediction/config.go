package prediction

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/bustrack/core/geo"
)

const (
	// DefaultRadiusSq is the squared proximity radius, in squared projector
	// units. It suits the lonlat projector (about 200-350 m at 56°N); metric
	// projectors need a larger value.
	DefaultRadiusSq = 1e-5
	// DefaultTopN is the number of most recent templates combined. Five is an
	// empirical choice.
	DefaultTopN = 5
	// DefaultRecentThreshold drops targets whose last sample is older.
	DefaultRecentThreshold = 60 * time.Second
)

// ErrInvalidConfig is wrapped by Config.Validate errors.
var ErrInvalidConfig = errors.New("invalid prediction config")

// Config parameterizes the engine.
type Config struct {
	Reference       geo.Point
	RadiusSq        float64
	TopN            int
	RecentThreshold time.Duration
}

// DefaultConfig returns the default parameters around ref.
func DefaultConfig(ref geo.Point) Config {
	return Config{
		Reference:       ref,
		RadiusSq:        DefaultRadiusSq,
		TopN:            DefaultTopN,
		RecentThreshold: DefaultRecentThreshold,
	}
}

// Validate checks the parameters.
func (c Config) Validate() error {
	if c.RadiusSq <= 0 {
		return fmt.Errorf("%w: radius_sq must be positive", ErrInvalidConfig)
	}
	if c.TopN <= 0 {
		return fmt.Errorf("%w: top_n must be positive", ErrInvalidConfig)
	}
	if c.RecentThreshold <= 0 {
		return fmt.Errorf("%w: recent threshold must be positive", ErrInvalidConfig)
	}
	return nil
}
