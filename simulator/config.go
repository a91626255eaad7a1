// Package simulator serves a synthetic live vehicle feed in the upstream
// getbuses format, for local runs and end-to-end tests.
package simulator

import (
	"errors"
	"fmt"
	"time"
)

// Stop is a route vertex.
type Stop struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Line is a route driven back and forth between two terminals.
type Line struct {
	Name         string `json:"name"`
	StartStation int64  `json:"start_station"`
	EndStation   int64  `json:"end_station"`
	StartName    string `json:"start_name"`
	EndName      string `json:"end_name"`
	Route        []Stop `json:"route"`
}

// Config holds parameters for the simulated fleet.
type Config struct {
	Lines        []Line        `json:"lines"`
	BusesPerLine int           `json:"buses_per_line"`
	SpeedMS      float64       `json:"speed_ms"`
	Layover      time.Duration `json:"layover"`
	// FixLag is how much older the reported position is than the request.
	FixLag time.Duration `json:"fix_lag"`
}

// DefaultConfig returns one line across Aarhus with four buses.
func DefaultConfig() Config {
	return Config{
		Lines: []Line{{
			Name:         "2A",
			StartStation: 751000100,
			EndStation:   751421800,
			StartName:    "Kolt",
			EndName:      "Skejby",
			Route: []Stop{
				{Lat: 56.1050, Lon: 10.1560},
				{Lat: 56.1300, Lon: 10.1900},
				{Lat: 56.1497, Lon: 10.2134},
				{Lat: 56.1700, Lon: 10.2000},
				{Lat: 56.1950, Lon: 10.1700},
			},
		}},
		BusesPerLine: 4,
		SpeedMS:      8,
		Layover:      5 * time.Minute,
		FixLag:       5 * time.Second,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if len(c.Lines) == 0 {
		return errors.New("at least one line is required")
	}
	if c.BusesPerLine <= 0 {
		return errors.New("buses_per_line must be positive")
	}
	if c.SpeedMS <= 0 {
		return errors.New("speed_ms must be positive")
	}
	if c.Layover < 0 || c.FixLag < 0 {
		return errors.New("layover and fix_lag must not be negative")
	}
	for _, l := range c.Lines {
		if len(l.Route) < 2 {
			return fmt.Errorf("line %s: route needs at least two stops", l.Name)
		}
	}
	return nil
}
