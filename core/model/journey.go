package model

import "time"

// Sample is one raw geographic observation of a vehicle as read from the
// trajectory store, before projection.
type Sample struct {
	ObservedAt   time.Time // poll time of the collector, trajectory index
	UpdatedAt    time.Time // upstream timestamp of the position fix
	DelaySeconds int
	Lat          float64
	Lon          float64
}

// TrackPoint is a projected Sample. X and Y are planar coordinates in the
// unit system of the projector that produced them.
type TrackPoint struct {
	ObservedAt   time.Time `json:"observed_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	DelaySeconds int       `json:"delay_seconds"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
}

// JourneyMeta holds the static attributes of a journey as reported upstream.
type JourneyMeta struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	StartStation  int64     `json:"start_station"`
	EndStation    int64     `json:"end_station"`
	StartName     string    `json:"start_name"`
	EndName       string    `json:"end_name"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	DirectionText string    `json:"direction_text"`
}

// Journey is one vehicle run on a line and date. Trajectory is ordered by
// ObservedAt, strictly increasing.
type Journey struct {
	JourneyID  string       `json:"journey_id"`
	Line       string       `json:"line"`
	Meta       JourneyMeta  `json:"meta"`
	Trajectory []TrackPoint `json:"trajectory"`
}

// Last returns the most recent track point.
func (j Journey) Last() (TrackPoint, bool) {
	if len(j.Trajectory) == 0 {
		return TrackPoint{}, false
	}
	return j.Trajectory[len(j.Trajectory)-1], true
}

// Until returns a copy of the journey restricted to points observed at or
// before now. The receiver's trajectory is left untouched.
func (j Journey) Until(now time.Time) Journey {
	n := 0
	for n < len(j.Trajectory) && !j.Trajectory[n].ObservedAt.After(now) {
		n++
	}
	out := j
	out.Trajectory = make([]TrackPoint, n)
	copy(out.Trajectory, j.Trajectory[:n])
	return out
}
