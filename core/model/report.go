package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// VehicleReport is one typed entry of the upstream live vehicle feed.
type VehicleReport struct {
	ID            int64
	Name          string
	UpdatedAt     time.Time
	DelaySeconds  int
	Lat           float64
	Lon           float64
	JourneyID     string
	Distance      int
	Line          string
	StartStation  int64
	EndStation    int64
	StartName     string
	EndName       string
	StartTime     time.Time
	EndTime       time.Time
	DirectionText string
}

// ReportFields lists the attribute names of an upstream vehicle entry.
var ReportFields = []string{
	"Id", "Name", "Updated", "Delay", "Lat", "Lon", "JourneyId", "Distance", "Line",
	"StartStation", "EndStation", "StartName", "EndName", "StartTime", "EndTime", "DirectionText",
}

// Meta extracts the static journey attributes of the report.
func (r VehicleReport) Meta() JourneyMeta {
	return JourneyMeta{
		ID:            r.ID,
		Name:          r.Name,
		StartStation:  r.StartStation,
		EndStation:    r.EndStation,
		StartName:     r.StartName,
		EndName:       r.EndName,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		DirectionText: r.DirectionText,
	}
}

// Sample returns the position part of the report indexed at observedAt.
func (r VehicleReport) Sample(observedAt time.Time) Sample {
	return Sample{
		ObservedAt:   observedAt,
		UpdatedAt:    r.UpdatedAt,
		DelaySeconds: r.DelaySeconds,
		Lat:          r.Lat,
		Lon:          r.Lon,
	}
}

// SchemaError reports an upstream record whose attribute set differs from
// the expected one.
type SchemaError struct {
	Missing    []string
	Unexpected []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ","))
	}
	if len(e.Unexpected) > 0 {
		parts = append(parts, "unexpected "+strings.Join(e.Unexpected, ","))
	}
	return fmt.Sprintf("schema mismatch: %s", strings.Join(parts, "; "))
}

// CheckFields compares got against the expected attribute names and returns
// a *SchemaError when they differ.
func CheckFields(expected, got []string) error {
	want := make(map[string]bool, len(expected))
	for _, f := range expected {
		want[f] = true
	}
	seen := make(map[string]bool, len(got))
	var unexpected []string
	for _, f := range got {
		seen[f] = true
		if !want[f] {
			unexpected = append(unexpected, f)
		}
	}
	var missing []string
	for _, f := range expected {
		if !seen[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	return &SchemaError{Missing: missing, Unexpected: unexpected}
}
