package store

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/bustrack/core/model"
)

func TestKeyEncode(t *testing.T) {
	k := Key{
		Line:       "2A",
		EndStation: 751421800,
		Date:       time.Date(2017, 1, 4, 0, 0, 0, 0, time.UTC),
		VehicleID:  "1234",
		JourneyID:  "a1b2_c3",
	}
	assert.Equal(t, "/line_2A/towards_751421800/date_2017_01_04/id_1234/journey_a1b2_c3", k.String())
}

func TestKeyRoundTrip(t *testing.T) {
	days := []time.Time{
		time.Date(2017, 1, 3, 0, 0, 0, 0, time.UTC),
		time.Date(2017, 12, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
	}
	lines := []string{"2A", "11", "N1", "100_E"}
	journeys := []string{"3f2504e0_4f89_11d3_9a0c_0305e82c3301", "J1", "x"}
	for _, d := range days {
		for _, l := range lines {
			for _, j := range journeys {
				k := Key{Line: l, EndStation: 751421800, Date: d, VehicleID: "4021", JourneyID: j}
				got, err := ParseKey(k.String())
				require.NoError(t, err)
				assert.Equal(t, k, got)
			}
		}
	}
}

func TestKeyForReport(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	r := model.VehicleReport{
		ID:         4021,
		Line:       "2A",
		EndStation: 751421800,
		JourneyID:  "{3F2504E0-4F89-11D3-9A0C-0305E82C3301}",
		StartTime:  time.Date(2017, 1, 4, 23, 30, 0, 0, loc),
	}
	k := KeyFor(r)
	assert.Equal(t, "/line_2A/towards_751421800/date_2017_01_04/id_4021/journey__3F2504E0_4F89_11D3_9A0C_0305E82C3301_", k.String())

	// slugged keys decode to themselves, so the same journey maps to the same
	// bucket throughout the day
	got, err := ParseKey(k.String())
	require.NoError(t, err)
	assert.Equal(t, k, got)
	assert.Equal(t, KeyFor(r), got)
}

func TestParseKeyErrors(t *testing.T) {
	bad := []string{
		"",
		"/buses",
		"/line_2A/towards_751421800/date_2017_01_04/id_1",
		"/line_2A/towards_abc/date_2017_01_04/id_1/journey_j",
		"/line_2A/towards_1/date_2017_13_40/id_1/journey_j",
		"/line_2-A/towards_1/date_2017_01_04/id_1/journey_j",
		"/line_2A/towards_1/date_2017_01_04/id_1/journey_j/extra",
	}
	for _, s := range bad {
		_, err := ParseKey(s)
		var fe *FormatError
		require.True(t, errors.As(err, &fe), "key %q", s)
		assert.Equal(t, s, fe.Key)
		assert.Contains(t, err.Error(), "unrecognized store key")
	}
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "a_b_c", Slugify("a - b//c"))
	assert.Equal(t, "a_b", Slugify(Slugify("a-b")))
}

func TestScopeMatches(t *testing.T) {
	day := time.Date(2017, 1, 4, 0, 0, 0, 0, time.UTC)
	k := Key{Line: "2A", EndStation: 7, Date: day, VehicleID: "1", JourneyID: "j"}
	assert.True(t, Scope{}.Matches(k))
	assert.True(t, Scope{Line: "2A", EndStation: 7, Date: day.Add(13 * time.Hour)}.Matches(k))
	assert.False(t, Scope{Line: "1A"}.Matches(k))
	assert.False(t, Scope{EndStation: 8}.Matches(k))
	assert.False(t, Scope{Date: day.AddDate(0, 0, 1)}.Matches(k))
}

func TestKeyValidate(t *testing.T) {
	day := time.Date(2017, 1, 4, 0, 0, 0, 0, time.UTC)
	ok := Key{Line: "2A", EndStation: 751421800, Date: day, VehicleID: "2", JourneyID: "j"}
	require.NoError(t, ok.Validate())

	cases := map[string]func(k *Key){
		"empty journey id":     func(k *Key) { k.JourneyID = "" },
		"empty line":           func(k *Key) { k.Line = "" },
		"negative end station": func(k *Key) { k.EndStation = -1 },
		"empty vehicle id":     func(k *Key) { k.VehicleID = "" },
	}
	for reason, mutate := range cases {
		t.Run(reason, func(t *testing.T) {
			k := ok
			mutate(&k)
			err := k.Validate()
			var fe *FormatError
			require.True(t, errors.As(err, &fe), "got %v", err)
			assert.Equal(t, reason, fe.Reason)
			assert.Equal(t, k.String(), fe.Key)
			_, perr := ParseKey(k.String())
			assert.Error(t, perr)
		})
	}

	r := model.VehicleReport{ID: 2, Line: "2A", EndStation: 751421800, StartTime: day.Add(12 * time.Hour)}
	assert.Error(t, KeyFor(r).Validate())
}
