package geo

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bustrack/core/model"
)

func TestUTMKnownPoint(t *testing.T) {
	// Aarhus city centre in UTM zone 32N.
	p := UTM{Zone: 32}.Project(10.2039, 56.1572)
	assert.InDelta(t, 574777, p.X, 5)
	assert.InDelta(t, 6224228, p.Y, 5)
}

func TestUTMCentralMeridian(t *testing.T) {
	p := UTM{Zone: 32}.Project(9, 0)
	assert.InDelta(t, 500000, p.X, 1e-6)
	assert.InDelta(t, 0, p.Y, 1e-6)
}

func TestWebMercatorOrigin(t *testing.T) {
	p := WebMercator{}.Project(0, 0)
	assert.InDelta(t, 0, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)
	q := WebMercator{}.Project(180, 0)
	assert.InDelta(t, math.Pi*wgs84A, q.X, 1e-6)
}

func TestNew(t *testing.T) {
	cases := []struct {
		name string
		zone int
		want string
		err  bool
	}{
		{"", 0, "lonlat", false},
		{"lonlat", 0, "lonlat", false},
		{"webmercator", 0, "webmercator", false},
		{"utm", 32, "utm32", false},
		{"utm", 0, "", true},
		{"robinson", 0, "", true},
	}
	for _, c := range cases {
		p, err := New(c.name, c.zone)
		if c.err {
			assert.Error(t, err, c.name)
			continue
		}
		require.NoError(t, err, c.name)
		assert.Equal(t, c.want, p.Name())
	}
}

func TestProjectSamples(t *testing.T) {
	now := time.Date(2017, 1, 4, 12, 0, 0, 0, time.UTC)
	samples := []model.Sample{
		{ObservedAt: now, UpdatedAt: now.Add(-3 * time.Second), DelaySeconds: 30, Lat: 56.1, Lon: 10.2},
		{ObservedAt: now.Add(15 * time.Second), Lat: 56.2, Lon: 10.3},
	}
	pts := ProjectSamples(LonLat{}, samples)
	require.Len(t, pts, 2)
	assert.Equal(t, 10.2, pts[0].X)
	assert.Equal(t, 56.1, pts[0].Y)
	assert.Equal(t, 30, pts[0].DelaySeconds)
	assert.Equal(t, samples[0].UpdatedAt, pts[0].UpdatedAt)
	assert.Equal(t, samples[1].ObservedAt, pts[1].ObservedAt)
}

func TestDistSq(t *testing.T) {
	assert.Equal(t, 25.0, Point{0, 0}.DistSq(Point{3, 4}))
}
