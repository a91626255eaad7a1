// Package predictions exposes arrival estimates, their history and the stored
// journeys over HTTP.
package predictions

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kilianp07/bustrack/core/model"
	"github.com/kilianp07/bustrack/core/predictionlog"
	"github.com/kilianp07/bustrack/core/publish"
)

// LatestSource returns the most recent update per watch.
type LatestSource interface {
	Latest(name string) (publish.Update, bool)
	All() []publish.Update
}

// JourneyLoader reads the journeys of one line, direction and date.
type JourneyLoader interface {
	LoadJourneys(ctx context.Context, line string, endStation int64, date time.Time) ([]model.Journey, error)
}

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// NewLatestHandler serves GET /api/predictions, the latest update of every
// watch.
func NewLatestHandler(src LatestSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, src.All())
	}
}

// NewWatchHandler serves GET /api/predictions/{watch}.
func NewWatchHandler(src LatestSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "watch")
		u, ok := src.Latest(name)
		if !ok {
			writeError(w, http.StatusNotFound, "no predictions for watch "+name)
			return
		}
		writeJSON(w, http.StatusOK, u)
	}
}

// NewHistoryHandler serves GET /api/predictions/history from the prediction
// log. Requests must carry "Bearer <token>" when token is non-empty.
func NewHistoryHandler(store predictionlog.Store, token string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		qs := r.URL.Query()
		q := predictionlog.Query{
			Watch:     qs.Get("watch"),
			Line:      qs.Get("line"),
			JourneyID: qs.Get("journey_id"),
		}
		var err error
		if q.Start, err = parseTime(qs.Get("start")); err != nil {
			writeError(w, http.StatusBadRequest, "start: "+err.Error())
			return
		}
		if q.End, err = parseTime(qs.Get("end")); err != nil {
			writeError(w, http.StatusBadRequest, "end: "+err.Error())
			return
		}
		if s := qs.Get("limit"); s != "" {
			if q.Limit, err = strconv.Atoi(s); err != nil || q.Limit < 0 {
				writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
				return
			}
		}
		recs, err := store.Query(r.Context(), q)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if recs == nil {
			recs = []predictionlog.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

// NewJourneysHandler serves GET /api/journeys?line=&towards=&date=YYYY-MM-DD.
// The date defaults to today in loc.
func NewJourneysHandler(loader JourneyLoader, loc *time.Location) http.HandlerFunc {
	if loc == nil {
		loc = time.UTC
	}
	return func(w http.ResponseWriter, r *http.Request) {
		qs := r.URL.Query()
		line := qs.Get("line")
		if line == "" {
			writeError(w, http.StatusBadRequest, "line parameter is required")
			return
		}
		towards, err := strconv.ParseInt(qs.Get("towards"), 10, 64)
		if err != nil || towards <= 0 {
			writeError(w, http.StatusBadRequest, "towards must be a positive station id")
			return
		}
		date := time.Now().In(loc)
		if s := qs.Get("date"); s != "" {
			if date, err = time.ParseInLocation(time.DateOnly, s, loc); err != nil {
				writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
				return
			}
		}
		journeys, err := loader.LoadJourneys(r.Context(), line, towards, date)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if journeys == nil {
			journeys = []model.Journey{}
		}
		w.Header().Set("Cache-Control", "public, max-age=5")
		writeJSON(w, http.StatusOK, journeys)
	}
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
