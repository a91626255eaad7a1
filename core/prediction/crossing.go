package prediction

import (
	"time"

	"github.com/kilianp07/bustrack/core/geo"
	"github.com/kilianp07/bustrack/core/model"
)

// CrossingRecord is the first sample of a journey inside the proximity radius.
type CrossingRecord struct {
	JourneyID string           `json:"journey_id"`
	Point     model.TrackPoint `json:"point"`
}

// ObservedAt is the crossing time on the collector clock.
func (c CrossingRecord) ObservedAt() time.Time { return c.Point.ObservedAt }

// UpdatedAt is the upstream fix time of the crossing sample. Predictions are
// expressed on this clock.
func (c CrossingRecord) UpdatedAt() time.Time { return c.Point.UpdatedAt }

// DetectCrossing returns the earliest observed sample whose squared distance
// to ref is below radiusSq. The bool is false when the journey never entered
// the radius.
//
// Samples are taken once per poll, so a vehicle entering the radius between
// two polls is reported at the later one.
func DetectCrossing(j model.Journey, ref geo.Point, radiusSq float64) (CrossingRecord, bool) {
	var (
		best  model.TrackPoint
		found bool
	)
	for _, p := range j.Trajectory {
		if ref.DistSq(geo.Point{X: p.X, Y: p.Y}) >= radiusSq {
			continue
		}
		if !found || p.ObservedAt.Before(best.ObservedAt) {
			best = p
			found = true
		}
	}
	if !found {
		return CrossingRecord{}, false
	}
	return CrossingRecord{JourneyID: j.JourneyID, Point: best}, true
}

// DetectCrossings runs DetectCrossing over every journey and keeps the hits,
// keyed by journey id.
func DetectCrossings(journeys []model.Journey, ref geo.Point, radiusSq float64) map[string]CrossingRecord {
	out := make(map[string]CrossingRecord)
	for _, j := range journeys {
		if rec, ok := DetectCrossing(j, ref, radiusSq); ok {
			out[j.JourneyID] = rec
		}
	}
	return out
}
