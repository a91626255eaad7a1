package geo

import (
	"fmt"
	"math"
	"strings"

	"github.com/kilianp07/bustrack/core/model"
)

// Point is a position in projected planar coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistSq returns the squared Euclidean distance between p and q.
func (p Point) DistSq(q Point) float64 {
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// Projector maps longitude and latitude in degrees to planar coordinates.
type Projector interface {
	Project(lon, lat float64) Point
	// Name identifies the projector in configuration.
	Name() string
}

// LonLat keeps degrees as planar units (x = lon, y = lat).
type LonLat struct{}

func (LonLat) Project(lon, lat float64) Point { return Point{X: lon, Y: lat} }
func (LonLat) Name() string                   { return "lonlat" }

const (
	wgs84A = 6378137.0
	wgs84F = 1 / 298.257223563
)

// WebMercator is the spherical pseudo-Mercator projection (EPSG:3857) in meters.
type WebMercator struct{}

func (WebMercator) Project(lon, lat float64) Point {
	lam := lon * math.Pi / 180
	phi := lat * math.Pi / 180
	return Point{X: wgs84A * lam, Y: wgs84A * math.Log(math.Tan(math.Pi/4+phi/2))}
}

func (WebMercator) Name() string { return "webmercator" }

// UTM is the transverse Mercator projection on the WGS84 ellipsoid for one
// northern-hemisphere zone, in meters.
type UTM struct {
	Zone int
}

func (u UTM) Name() string { return fmt.Sprintf("utm%d", u.Zone) }

func (u UTM) Project(lon, lat float64) Point {
	const k0 = 0.9996
	e2 := wgs84F * (2 - wgs84F)
	e4 := e2 * e2
	e6 := e4 * e2
	ep2 := e2 / (1 - e2)

	lon0 := float64((u.Zone-1)*6-180+3) * math.Pi / 180
	phi := lat * math.Pi / 180
	lam := lon * math.Pi / 180

	sin, cos := math.Sin(phi), math.Cos(phi)
	n := wgs84A / math.Sqrt(1-e2*sin*sin)
	t := math.Tan(phi) * math.Tan(phi)
	c := ep2 * cos * cos
	a := cos * (lam - lon0)
	m := wgs84A * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))

	x := k0*n*(a+(1-t+c)*math.Pow(a, 3)/6+
		(5-18*t+t*t+72*c-58*ep2)*math.Pow(a, 5)/120) + 500000
	y := k0 * (m + n*math.Tan(phi)*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*ep2)*math.Pow(a, 6)/720))
	return Point{X: x, Y: y}
}

// New returns the projector registered under name. UTM projectors are named
// "utm" and take the zone argument.
func New(name string, zone int) (Projector, error) {
	switch strings.ToLower(name) {
	case "", "lonlat":
		return LonLat{}, nil
	case "webmercator", "epsg:3857":
		return WebMercator{}, nil
	case "utm":
		if zone < 1 || zone > 60 {
			return nil, fmt.Errorf("invalid utm zone %d", zone)
		}
		return UTM{Zone: zone}, nil
	default:
		return nil, fmt.Errorf("unknown projection %s", name)
	}
}

// ProjectSamples turns raw samples into track points, preserving order.
func ProjectSamples(p Projector, samples []model.Sample) []model.TrackPoint {
	out := make([]model.TrackPoint, len(samples))
	for i, s := range samples {
		pt := p.Project(s.Lon, s.Lat)
		out[i] = model.TrackPoint{
			ObservedAt:   s.ObservedAt,
			UpdatedAt:    s.UpdatedAt,
			DelaySeconds: s.DelaySeconds,
			Lat:          s.Lat,
			Lon:          s.Lon,
			X:            pt.X,
			Y:            pt.Y,
		}
	}
	return out
}
