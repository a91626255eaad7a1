package predictionlog

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRotatingJSONLStore_Rotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 3, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	rec := Record{Watch: strings.Repeat("w", 4096), Now: time.Now()}
	for i := 0; i < 400; i++ {
		require.NoError(t, store.Append(context.Background(), rec))
	}
	files, err := store.files()
	require.NoError(t, err)
	assert.Greater(t, len(files), 1, "expected rotated files")
}

func TestRotatingJSONLStore_Query(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "predictions.jsonl")
	store, err := NewRotatingJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	t0 := time.Date(2017, 1, 4, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx,
		Record{Watch: "home", Line: "2A", JourneyID: "j2", Now: t0.Add(time.Minute)},
		Record{Watch: "home", Line: "2A", JourneyID: "j1", Now: t0},
	))
	require.NoError(t, store.Append(ctx, Record{Watch: "work", Line: "5A", JourneyID: "j3", Now: t0.Add(2 * time.Minute)}))

	all, err := store.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "j1", all[0].JourneyID)

	home, err := store.Query(ctx, Query{Watch: "home", Start: t0.Add(30 * time.Second)})
	require.NoError(t, err)
	require.Len(t, home, 1)
	assert.Equal(t, "j2", home[0].JourneyID)

	last, err := store.Query(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "j3", last[0].JourneyID)
}

func TestQueryMatch(t *testing.T) {
	t0 := time.Date(2017, 1, 4, 12, 0, 0, 0, time.UTC)
	r := Record{Watch: "home", Line: "2A", JourneyID: "j", Now: t0}
	assert.True(t, Query{}.Match(r))
	assert.True(t, Query{Start: t0, End: t0}.Match(r))
	assert.False(t, Query{End: t0.Add(-time.Second)}.Match(r))
	assert.False(t, Query{Line: "5A"}.Match(r))
	assert.False(t, Query{JourneyID: "k"}.Match(r))
}
