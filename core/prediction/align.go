package prediction

import (
	"time"

	"github.com/kilianp07/bustrack/core/geo"
	"github.com/kilianp07/bustrack/core/model"
)

// Align returns the upstream time of the template point nearest to target.
// Ties go to the earliest observed point. The bool is false only for an
// empty template.
func Align(template []model.TrackPoint, target model.TrackPoint) (time.Time, bool) {
	if len(template) == 0 {
		return time.Time{}, false
	}
	pos := geo.Point{X: target.X, Y: target.Y}
	best := template[0]
	bestDist := pos.DistSq(geo.Point{X: best.X, Y: best.Y})
	for _, p := range template[1:] {
		d := pos.DistSq(geo.Point{X: p.X, Y: p.Y})
		if d < bestDist || (d == bestDist && p.ObservedAt.Before(best.ObservedAt)) {
			best, bestDist = p, d
		}
	}
	return best.UpdatedAt, true
}

// Extrapolate computes the candidate crossing time of target from one
// template: the time the template needed from the matched point to its own
// crossing, added to the target's last upstream time.
func Extrapolate(template model.Journey, crossing CrossingRecord, target model.TrackPoint) (time.Time, bool) {
	aligned, ok := Align(template.Trajectory, target)
	if !ok {
		return time.Time{}, false
	}
	delta := crossing.UpdatedAt().Sub(aligned)
	return target.UpdatedAt.Add(delta), true
}
