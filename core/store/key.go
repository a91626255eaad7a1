package store

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/kilianp07/bustrack/core/model"
)

const dateLayout = "2006_01_02"

var (
	slugRe = regexp.MustCompile(`[^A-Za-z0-9]+`)
	keyRe  = regexp.MustCompile(`^/line_([A-Za-z0-9_]+)/towards_([A-Za-z0-9_]+)/date_([A-Za-z0-9_]+)/id_([A-Za-z0-9_]+)/journey_([A-Za-z0-9_]+)$`)
)

// Key identifies one journey's trajectory bucket.
type Key struct {
	Line       string    `json:"line"`
	EndStation int64     `json:"end_station"`
	Date       time.Time `json:"date"`
	VehicleID  string    `json:"vehicle_id"`
	JourneyID  string    `json:"journey_id"`
}

// FormatError is returned when a string is not a bucket key.
type FormatError struct {
	Key    string
	Reason string
}

func (e *FormatError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("unrecognized store key %q", e.Key)
	}
	return fmt.Sprintf("unrecognized store key %q: %s", e.Key, e.Reason)
}

// Slugify collapses every run of non-alphanumeric characters into "_".
func Slugify(s string) string {
	return slugRe.ReplaceAllString(s, "_")
}

// Day truncates t to its calendar date, expressed at UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// KeyFor builds the bucket key of an upstream vehicle report. The date is the
// calendar date of the journey start.
func KeyFor(r model.VehicleReport) Key {
	return Key{
		Line:       Slugify(r.Line),
		EndStation: r.EndStation,
		Date:       Day(r.StartTime),
		VehicleID:  Slugify(strconv.FormatInt(r.ID, 10)),
		JourneyID:  Slugify(r.JourneyID),
	}
}

// String encodes the key as /line_{L}/towards_{E}/date_{D}/id_{I}/journey_{J}.
func (k Key) String() string {
	return fmt.Sprintf("/line_%s/towards_%d/date_%s/id_%s/journey_%s",
		Slugify(k.Line), k.EndStation, k.Date.Format(dateLayout),
		Slugify(k.VehicleID), Slugify(k.JourneyID))
}

// Validate returns a *FormatError when the encoded key would not decode
// back through ParseKey.
func (k Key) Validate() error {
	enc := k.String()
	switch {
	case Slugify(k.Line) == "":
		return &FormatError{Key: enc, Reason: "empty line"}
	case k.EndStation < 0:
		return &FormatError{Key: enc, Reason: "negative end station"}
	case Slugify(k.VehicleID) == "":
		return &FormatError{Key: enc, Reason: "empty vehicle id"}
	case Slugify(k.JourneyID) == "":
		return &FormatError{Key: enc, Reason: "empty journey id"}
	}
	_, err := ParseKey(enc)
	return err
}

// ParseKey decodes a string produced by Key.String.
func ParseKey(s string) (Key, error) {
	m := keyRe.FindStringSubmatch(s)
	if m == nil {
		return Key{}, &FormatError{Key: s}
	}
	end, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Key{}, &FormatError{Key: s, Reason: "end station is not numeric"}
	}
	date, err := time.Parse(dateLayout, m[3])
	if err != nil {
		return Key{}, &FormatError{Key: s, Reason: "bad date"}
	}
	return Key{
		Line:       m[1],
		EndStation: end,
		Date:       date,
		VehicleID:  m[4],
		JourneyID:  m[5],
	}, nil
}

// Scope selects buckets by line, end station and date. Zero fields match
// any value.
type Scope struct {
	Line       string
	EndStation int64
	Date       time.Time
}

// Matches reports whether k falls inside the scope.
func (s Scope) Matches(k Key) bool {
	if s.Line != "" && Slugify(s.Line) != k.Line {
		return false
	}
	if s.EndStation != 0 && s.EndStation != k.EndStation {
		return false
	}
	if !s.Date.IsZero() && !Day(s.Date).Equal(k.Date) {
		return false
	}
	return true
}
