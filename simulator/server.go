package simulator

import (
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/bustrack/core/logger"
	"github.com/kilianp07/bustrack/core/model"
	"github.com/kilianp07/bustrack/infra/feed"
)

// Server answers getbuses requests from a Fleet.
type Server struct {
	Fleet *Fleet
	Loc   *time.Location
	Now   func() time.Time
	Log   logger.Logger
}

// NewServer returns a server reading the wall clock.
func NewServer(f *Fleet, loc *time.Location, log logger.Logger) *Server {
	if loc == nil {
		loc = time.UTC
	}
	return &Server{Fleet: f, Loc: loc, Now: time.Now, Log: logger.OrNop(log)}
}

// Handler serves /getbuses.php and a root page for reachability probes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/getbuses.php", s.getBuses)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) getBuses(w http.ResponseWriter, r *http.Request) {
	reports := s.Fleet.Reports(s.Now())
	q := r.URL.Query()
	if q.Has("lat") && q.Has("lon") && q.Has("radius") {
		lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
		lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
		radius, err3 := strconv.ParseFloat(q.Get("radius"), 64)
		if err1 != nil || err2 != nil || err3 != nil {
			http.Error(w, "lat, lon and radius must be numbers", http.StatusBadRequest)
			return
		}
		reports = within(reports, Stop{Lat: lat, Lon: lon}, radius)
	}
	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	if err := feed.Encode(w, reports, s.Loc); err != nil {
		s.Log.Errorf("encode feed: %v", err)
		return
	}
	s.Log.Debugw("served buses", map[string]any{"count": len(reports)})
}

func within(reports []model.VehicleReport, center Stop, radius float64) []model.VehicleReport {
	out := reports[:0:0]
	for _, r := range reports {
		if distance(center, Stop{Lat: r.Lat, Lon: r.Lon}) <= radius {
			out = append(out, r)
		}
	}
	return out
}
