// Package factory builds pluggable modules from configuration. A module is
// named by its type and carries a free-form conf map that the registered
// factory decodes into its own settings struct.
//
// Metrics sinks and prediction publishers are created this way:
//
//	publishers:
//	  - type: mqtt
//	    conf: {broker: "tcp://localhost:1883", topic_prefix: bustrack}
//	  - type: nats
//	    conf: {url: "nats://localhost:4222"}
//
// Decode uses the json tags of the target struct and accepts durations
// written as strings such as "5s".
package factory
