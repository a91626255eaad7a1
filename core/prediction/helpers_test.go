package prediction

import (
	"time"

	"github.com/kilianp07/bustrack/core/geo"
	"github.com/kilianp07/bustrack/core/model"
)

const (
	step      = 15 * time.Second
	fixLag    = 5 * time.Second
	stride    = 100.0
	refX      = 1000.0
	testRadSq = 30.0 * 30.0
)

var ref = geo.Point{X: refX}

func testConfig() Config {
	return Config{Reference: ref, RadiusSq: testRadSq, TopN: DefaultTopN, RecentThreshold: DefaultRecentThreshold}
}

// straightRun builds a journey driving along the x axis from x=from, one
// sample per poll, stride meters apart. Upstream fixes lag polls by fixLag.
func straightRun(id string, start time.Time, from float64, samples int) model.Journey {
	j := model.Journey{JourneyID: id, Line: "2A", Meta: model.JourneyMeta{EndStation: 751421800}}
	for k := 0; k < samples; k++ {
		obs := start.Add(time.Duration(k) * step)
		j.Trajectory = append(j.Trajectory, model.TrackPoint{
			ObservedAt: obs,
			UpdatedAt:  obs.Add(-fixLag),
			X:          from + float64(k)*stride,
		})
	}
	return j
}

// slowRun is straightRun where every leg after the first takes extra time.
func slowRun(id string, start time.Time, samples int, extra time.Duration) model.Journey {
	j := straightRun(id, start, 0, samples)
	for k := range j.Trajectory {
		shift := time.Duration(k) * extra
		j.Trajectory[k].ObservedAt = j.Trajectory[k].ObservedAt.Add(shift)
		j.Trajectory[k].UpdatedAt = j.Trajectory[k].UpdatedAt.Add(shift)
	}
	return j
}

func pointAt(j model.Journey, x float64) model.TrackPoint {
	for _, p := range j.Trajectory {
		if p.X == x {
			return p
		}
	}
	panic("no point")
}
