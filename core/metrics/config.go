package metrics

import (
	"fmt"

	"github.com/kilianp07/bustrack/core/factory"
)

// Config lists the sinks poll, prediction and evaluation events go to.
// No sinks means a NopSink.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

// Validate checks that every sink names a type.
func (c Config) Validate() error {
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics.sinks[%d]: type is required", i)
		}
	}
	return nil
}
