package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bustrack/core/model"
	"github.com/kilianp07/bustrack/core/store"
	infstore "github.com/kilianp07/bustrack/infra/store"
)

var t0 = time.Date(2017, 1, 4, 12, 0, 0, 0, time.UTC)

// seedStore writes two runs along lat 56 into a SQLite file: a from noon and
// b from 12:10, one fix every 15 s, 0.001° apart.
func seedStore(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "bustrack.db")
	st, err := infstore.OpenSQLite(context.Background(), db)
	require.NoError(t, err)
	for _, run := range []struct {
		id    string
		start time.Time
	}{{"a", t0}, {"b", t0.Add(10 * time.Minute)}} {
		key := store.Key{Line: "2A", EndStation: 100, Date: store.Day(run.start), VehicleID: run.id, JourneyID: run.id}
		meta := model.JourneyMeta{Name: "bus " + run.id, StartName: "Hospital", EndName: "Harbour", EndStation: 100}
		for k := 0; k < 11; k++ {
			at := run.start.Add(time.Duration(k) * 15 * time.Second)
			require.NoError(t, st.Append(context.Background(), key, model.Sample{
				ObservedAt: at, UpdatedAt: at.Add(-5 * time.Second), Lat: 56.0, Lon: 10.000 + 0.001*float64(k),
			}, meta))
		}
	}
	require.NoError(t, st.Close())

	cfgFile := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte(fmt.Sprintf(`feed:
  time_zone: UTC
store:
  driver: sqlite
  dsn: %q
watches:
  - name: ref
    line: "2A"
    towards: 100
    lat: 56.0
    lon: 10.01
`, db)), 0o644))
	return cfgFile
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func TestKeysCommand(t *testing.T) {
	cfgFile := seedStore(t)
	out, stderr, err := execute(t, "keys", "-c", cfgFile, "--meta", "--line", "2A")
	require.NoError(t, err)
	assert.Empty(t, stderr)
	assert.Contains(t, out, "bus a")
	assert.Contains(t, out, "Hospital -> Harbour")
	assert.Contains(t, out, "2017-01-04")

	out, _, err = execute(t, "keys", "-c", cfgFile, "--meta=false", "--line", "3A")
	require.NoError(t, err)
	assert.NotContains(t, out, "2A")
}

func TestBacktestCommand(t *testing.T) {
	cfgFile := seedStore(t)
	outFile := filepath.Join(t.TempDir(), "eval.csv")
	_, _, err := execute(t, "backtest", "-c", cfgFile, "--watch", "ref", "--date", "2017-01-04",
		"--from", "12:10", "--to", "2017-01-04T12:10:45Z", "--step", "15s",
		"--format", "csv", "--out", outFile, "--series=false")
	require.NoError(t, err)

	f, err := os.Open(outFile)
	require.NoError(t, err)
	defer f.Close()
	recs, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for _, r := range recs[1:] {
		assert.Equal(t, "b", r[0])
		assert.Equal(t, "0", r[4])
	}
}

func TestPredictCommand(t *testing.T) {
	cfgFile := seedStore(t)
	out, _, err := execute(t, "predict", "-c", cfgFile, "--watch", "ref", "--date", "",
		"--at", "2017-01-04T12:10:30Z", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"journey_id": "b"`)
	assert.Contains(t, out, "2017-01-04T12:11:40Z")
}

func TestBacktestRejectsUnknownWatch(t *testing.T) {
	cfgFile := seedStore(t)
	_, _, err := execute(t, "backtest", "-c", cfgFile, "--watch", "nope", "--format", "json", "--out", "")
	assert.ErrorContains(t, err, "unknown watch")
}

func TestWindowTime(t *testing.T) {
	date := time.Date(2017, 1, 4, 0, 0, 0, 0, time.UTC)
	got, err := windowTime("07:30", date)
	require.NoError(t, err)
	assert.True(t, got.Equal(date.Add(7*time.Hour+30*time.Minute)))
	_, err = windowTime("late", date)
	assert.Error(t, err)
}
