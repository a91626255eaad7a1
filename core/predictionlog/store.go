// Package predictionlog keeps a queryable history of published estimates.
package predictionlog

import (
	"context"
	"time"
)

// Record is one estimate as it was published.
type Record struct {
	LoggedAt  time.Time `json:"logged_at"`
	PollID    string    `json:"poll_id"`
	Watch     string    `json:"watch"`
	Line      string    `json:"line"`
	Towards   int64     `json:"towards"`
	JourneyID string    `json:"journey_id"`
	Now       time.Time `json:"now"`
	Predicted time.Time `json:"predicted"`
}

// Query filters records. Zero fields match everything; Start and End bound
// Record.Now inclusively.
type Query struct {
	Start     time.Time
	End       time.Time
	Watch     string
	Line      string
	JourneyID string
	Limit     int
}

// Match reports whether r passes the filters.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Now.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Now.After(q.End) {
		return false
	}
	if q.Watch != "" && r.Watch != q.Watch {
		return false
	}
	if q.Line != "" && r.Line != q.Line {
		return false
	}
	if q.JourneyID != "" && r.JourneyID != q.JourneyID {
		return false
	}
	return true
}

// Store persists records and supports querying.
type Store interface {
	Append(ctx context.Context, recs ...Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
