package predictions

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kilianp07/bustrack/core/predictionlog"
)

// Pinger reports store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the router. Nil components disable their routes.
type Options struct {
	Latest      LatestSource
	Journeys    JourneyLoader
	History     predictionlog.Store
	Health      Pinger
	Gatherer    prometheus.Gatherer
	Location    *time.Location
	CORSOrigins []string
	Token       string
}

// NewRouter returns the HTTP API.
func NewRouter(o Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if len(o.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.CORSOrigins,
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if o.Health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := o.Health.Ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]any{
					"status": "error",
					"store":  "disconnected",
					"error":  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "timestamp": time.Now().UTC()})
	})
	if o.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(o.Gatherer, promhttp.HandlerOpts{}))
	}
	if o.History != nil {
		r.Get("/api/predictions/history", NewHistoryHandler(o.History, o.Token))
	}
	if o.Latest != nil {
		r.Get("/api/predictions", NewLatestHandler(o.Latest))
		r.Get("/api/predictions/{watch}", NewWatchHandler(o.Latest))
	}
	if o.Journeys != nil {
		r.Get("/api/journeys", NewJourneysHandler(o.Journeys, o.Location))
	}
	return r
}
