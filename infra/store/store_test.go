package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bustrack/core/model"
	corestore "github.com/kilianp07/bustrack/core/store"
)

var day = time.Date(2017, 1, 4, 0, 0, 0, 0, time.UTC)

func key(line string, towards int64, journey string) corestore.Key {
	return corestore.Key{Line: line, EndStation: towards, Date: day, VehicleID: "1234", JourneyID: journey}
}

func sampleAt(t time.Time, lon float64) model.Sample {
	return model.Sample{ObservedAt: t, UpdatedAt: t.Add(-5 * time.Second), DelaySeconds: 30, Lat: 56.15, Lon: lon}
}

// exerciseStore runs the behaviour every trajectory store shares.
func exerciseStore(t *testing.T, s corestore.Store) {
	t.Helper()
	ctx := context.Background()
	noon := day.Add(12 * time.Hour)
	a := key("2A", 751421800, "8f2c6a4e_1b2d")
	b := key("2A", 751421800, "0a1b2c3d")
	other := key("5A", 751000300, "ffff")
	meta := model.JourneyMeta{ID: 1234, Name: "Bus 2A", EndStation: 751421800, StartTime: noon.Add(-20 * time.Minute)}

	require.NoError(t, s.Append(ctx, a, sampleAt(noon, 10.20), meta))
	require.NoError(t, s.Append(ctx, a, sampleAt(noon.Add(15*time.Second), 10.21), meta))
	require.NoError(t, s.Append(ctx, b, sampleAt(noon, 10.10), meta))
	require.NoError(t, s.Append(ctx, other, sampleAt(noon, 10.00), model.JourneyMeta{EndStation: 751000300}))

	err := s.Append(ctx, a, sampleAt(noon.Add(15*time.Second), 10.22), meta)
	assert.True(t, errors.Is(err, corestore.ErrOutOfOrder), "duplicate index: %v", err)
	err = s.Append(ctx, a, sampleAt(noon.Add(5*time.Second), 10.22), meta)
	assert.True(t, errors.Is(err, corestore.ErrOutOfOrder), "older index: %v", err)

	keys, err := s.Keys(ctx, corestore.Scope{Line: "2A", EndStation: 751421800, Date: day})
	require.NoError(t, err)
	require.Len(t, keys, 2)
	assert.Equal(t, b.String(), keys[0].String())
	assert.Equal(t, a.String(), keys[1].String())

	all, err := s.Keys(ctx, corestore.Scope{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.Keys(ctx, corestore.Scope{Line: "2A", Date: day.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Empty(t, none)

	meta.Name = "Bus 2A renamed"
	require.NoError(t, s.Append(ctx, a, sampleAt(noon.Add(30*time.Second), 10.23), meta))

	bucket, err := s.Load(ctx, a)
	require.NoError(t, err)
	require.Len(t, bucket.Samples, 3)
	assert.Equal(t, "Bus 2A renamed", bucket.Meta.Name)
	assert.True(t, bucket.Meta.StartTime.Equal(meta.StartTime))
	assert.True(t, bucket.Samples[0].ObservedAt.Equal(noon))
	assert.True(t, bucket.Samples[2].UpdatedAt.Equal(noon.Add(25*time.Second)))
	assert.InDelta(t, 10.21, bucket.Samples[1].Lon, 1e-12)
	assert.Equal(t, 30, bucket.Samples[1].DelaySeconds)

	_, err = s.Load(ctx, key("9", 1, "missing"))
	assert.ErrorIs(t, err, corestore.ErrNotFound)

	if kl, ok := s.(corestore.KeyLister); ok {
		raw, err := kl.RawKeys(ctx)
		require.NoError(t, err)
		assert.Len(t, raw, 3)
		for _, r := range raw {
			_, err := corestore.ParseKey(r)
			assert.NoError(t, err)
		}
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "data", "bustrack.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseStore(t, s)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bustrack.db")
	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	k := key("2A", 751421800, "j")
	require.NoError(t, s.Append(ctx, k, sampleAt(day.Add(time.Hour), 10), model.JourneyMeta{}))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	require.NoError(t, s.Ping(ctx))
	b, err := s.Load(ctx, k)
	require.NoError(t, err)
	assert.Len(t, b.Samples, 1)
	assert.ErrorIs(t, s.Append(ctx, k, sampleAt(day.Add(time.Hour), 10), model.JourneyMeta{}), corestore.ErrOutOfOrder)
}

// exerciseUndecodableKeys checks that keys ParseKey cannot read back are
// refused and leave later listings of the same scope intact.
func exerciseUndecodableKeys(t *testing.T, s corestore.Store) {
	t.Helper()
	ctx := context.Background()
	noon := day.Add(12 * time.Hour)
	good := key("2A", 751421800, "j1")
	require.NoError(t, s.Append(ctx, good, sampleAt(noon, 10.2), model.JourneyMeta{}))

	bad := []corestore.Key{
		key("2A", 751421800, ""),
		key("", 751421800, "j2"),
		key("2A", -1, "j3"),
	}
	for _, k := range bad {
		err := s.Append(ctx, k, sampleAt(noon, 10.2), model.JourneyMeta{})
		var fe *corestore.FormatError
		assert.True(t, errors.As(err, &fe), "key %s: %v", k, err)
	}

	keys, err := s.Keys(ctx, corestore.Scope{Line: "2A", EndStation: 751421800, Date: day})
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, good.String(), keys[0].String())
	all, err := s.Keys(ctx, corestore.Scope{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSQLiteStoreRefusesUndecodableKeys(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "bustrack.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exerciseUndecodableKeys(t, s)
}

func TestMemoryStoreRefusesUndecodableKeys(t *testing.T) {
	exerciseUndecodableKeys(t, corestore.NewMemoryStore())
}

func TestMemoryStoreConformance(t *testing.T) {
	exerciseStore(t, corestore.NewMemoryStore())
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Config{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &corestore.MemoryStore{}, s)

	s, err = Open(ctx, Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.NoError(t, s.Close())

	_, err = Open(ctx, Config{Driver: "oracle"})
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT a FROM b WHERE c = $1 AND d = $2", rebind("SELECT a FROM b WHERE c = ? AND d = ?"))
	assert.Equal(t, "SELECT 1", rebind("SELECT 1"))
}
