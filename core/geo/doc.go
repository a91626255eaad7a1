// Package geo converts geographic coordinates into a local planar system in
// which squared Euclidean distance is a usable proximity metric. Raw samples
// are projected once, when journeys are loaded, so downstream code only ever
// sees projected track points.
package geo
