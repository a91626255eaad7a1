package simulator

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/bustrack/core/model"
)

const (
	metersPerDegLat = 110540.0
	metersPerDegLon = 111320.0
)

// route is a line with precomputed cumulative segment lengths.
type route struct {
	line  Line
	cum   []float64
	total float64
}

func newRoute(l Line) route {
	r := route{line: l, cum: make([]float64, len(l.Route))}
	for i := 1; i < len(l.Route); i++ {
		r.cum[i] = r.cum[i-1] + distance(l.Route[i-1], l.Route[i])
	}
	r.total = r.cum[len(r.cum)-1]
	return r
}

// distance is the equirectangular approximation, in meters.
func distance(a, b Stop) float64 {
	dy := (b.Lat - a.Lat) * metersPerDegLat
	dx := (b.Lon - a.Lon) * metersPerDegLon * math.Cos((a.Lat+b.Lat)/2*math.Pi/180)
	return math.Hypot(dx, dy)
}

// at returns the position d meters along the route.
func (r route) at(d float64) Stop {
	pts := r.line.Route
	if d <= 0 {
		return pts[0]
	}
	if d >= r.total {
		return pts[len(pts)-1]
	}
	i := 1
	for r.cum[i] < d {
		i++
	}
	seg := r.cum[i] - r.cum[i-1]
	f := (d - r.cum[i-1]) / seg
	return Stop{
		Lat: pts[i-1].Lat + f*(pts[i].Lat-pts[i-1].Lat),
		Lon: pts[i-1].Lon + f*(pts[i].Lon-pts[i-1].Lon),
	}
}

// Fleet computes bus positions as a pure function of time. Each bus drives
// its line end to end, rests for the layover, then drives back; buses of a
// line are evenly spread over the cycle.
type Fleet struct {
	cfg    Config
	epoch  time.Time
	routes []route
}

// NewFleet returns a fleet whose first departures happen at epoch.
func NewFleet(cfg Config, epoch time.Time) (*Fleet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Fleet{cfg: cfg, epoch: epoch}
	for _, l := range cfg.Lines {
		f.routes = append(f.routes, newRoute(l))
	}
	return f, nil
}

// TripDuration is the driving time of one trip of line i.
func (f *Fleet) TripDuration(i int) time.Duration {
	return time.Duration(f.routes[i].total / f.cfg.SpeedMS * float64(time.Second))
}

// Reports returns the buses in service at now. Fixes are FixLag old and
// truncated to whole seconds, as upstream reports them.
func (f *Fleet) Reports(now time.Time) []model.VehicleReport {
	fix := now.Add(-f.cfg.FixLag).Truncate(time.Second)
	var out []model.VehicleReport
	for li, rt := range f.routes {
		trip := f.TripDuration(li)
		cycle := trip + f.cfg.Layover
		for b := 0; b < f.cfg.BusesPerLine; b++ {
			offset := time.Duration(int64(cycle) * int64(b) / int64(f.cfg.BusesPerLine))
			elapsed := fix.Sub(f.epoch.Add(offset))
			if elapsed < 0 {
				continue
			}
			n := int64(elapsed / cycle)
			into := elapsed - time.Duration(n)*cycle
			if into > trip {
				continue
			}
			out = append(out, f.report(li, rt, b, n, fix, into, trip))
		}
	}
	return out
}

func (f *Fleet) report(li int, rt route, b int, n int64, fix time.Time, into, trip time.Duration) model.VehicleReport {
	l := rt.line
	start := fix.Add(-into).Truncate(time.Second)
	traveled := into.Seconds() * f.cfg.SpeedMS
	r := model.VehicleReport{
		ID:           int64(1000 + 100*li + b),
		Name:         fmt.Sprintf("Bus %s", l.Name),
		UpdatedAt:    fix,
		Line:         l.Name,
		JourneyID:    uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d/%d", l.Name, b, n))).String(),
		Distance:     int(traveled),
		StartTime:    start,
		EndTime:      start.Add(trip).Truncate(time.Second),
		StartStation: l.StartStation,
		EndStation:   l.EndStation,
		StartName:    l.StartName,
		EndName:      l.EndName,
	}
	pos := rt.at(traveled)
	if n%2 == 1 {
		pos = rt.at(rt.total - traveled)
		r.StartStation, r.EndStation = l.EndStation, l.StartStation
		r.StartName, r.EndName = l.EndName, l.StartName
	}
	r.Lat = math.Round(pos.Lat*1e6) / 1e6
	r.Lon = math.Round(pos.Lon*1e6) / 1e6
	r.DirectionText = r.EndName
	return r
}
