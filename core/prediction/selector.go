package prediction

import (
	"sort"
	"time"

	"github.com/kilianp07/bustrack/core/model"
)

// SelectTemplates returns the ids of journeys that crossed at or before now,
// most recent crossing first. Ties are ordered by journey id. A topN of zero
// or less returns every template.
func SelectTemplates(records []CrossingRecord, now time.Time, topN int) []string {
	crossed := make([]CrossingRecord, 0, len(records))
	for _, r := range records {
		if !r.ObservedAt().After(now) {
			crossed = append(crossed, r)
		}
	}
	sort.Slice(crossed, func(i, j int) bool {
		ti, tj := crossed[i].ObservedAt(), crossed[j].ObservedAt()
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return crossed[i].JourneyID < crossed[j].JourneyID
	})
	if topN > 0 && len(crossed) > topN {
		crossed = crossed[:topN]
	}
	ids := make([]string, len(crossed))
	for i, r := range crossed {
		ids[i] = r.JourneyID
	}
	return ids
}

// SelectTargets returns the journeys that are not templates, truncated to
// samples observed at or before now. Journeys with no sample yet, or whose
// last sample is older than now minus recent, are dropped.
func SelectTargets(journeys []model.Journey, templates []string, now time.Time, recent time.Duration) []model.Journey {
	skip := make(map[string]bool, len(templates))
	for _, id := range templates {
		skip[id] = true
	}
	threshold := now.Add(-recent)
	var out []model.Journey
	for _, j := range journeys {
		if skip[j.JourneyID] {
			continue
		}
		cut := j.Until(now)
		last, ok := cut.Last()
		if !ok || last.ObservedAt.Before(threshold) {
			continue
		}
		out = append(out, cut)
	}
	return out
}
