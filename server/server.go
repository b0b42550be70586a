// Package server exposes a run as an HTTP API: the active scenario, a
// control endpoint, and a live SSE tick stream, generalizing
// jwmdev-brt08/backend/server/server.go's single-fleet SSE server to the
// consist/split/merge event stream this spec produces. Routing and CORS
// come from KhalidEchchahid-transit-app's stack (go-chi/chi, rs/cors).
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/shivirity/busimulator/config"
	"github.com/shivirity/busimulator/engine"
	"github.com/shivirity/busimulator/lineconf"
	"github.com/shivirity/busimulator/model"
)

// Server serves one scenario's worth of runs. Each /api/stream connection
// gets its own Engine — the engine is share-nothing per run (spec §5), so
// concurrent viewers never interfere with one another.
type Server struct {
	Scenario config.Scenario
	Line     *lineconf.Line
	Arrivals []*model.Passenger
	DepCount, DepDuration [24]int

	log *slog.Logger
}

// New builds a Server.
func New(scenario config.Scenario, line *lineconf.Line, arrivals []*model.Passenger, depCount, depDuration [24]int, log *slog.Logger) *Server {
	return &Server{Scenario: scenario, Line: line, Arrivals: arrivals, DepCount: depCount, DepDuration: depDuration, log: log}
}

// Router builds the chi mux with CORS applied, mirroring the teacher's flat
// route set but behind chi instead of bare net/http.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)

	r.Get("/api/scenario", s.handleScenario)
	r.Post("/api/control", s.handleControl)
	r.Get("/api/stream", s.handleStream)
	r.Get("/api/vehicle-positions", s.handleVehiclePositions)

	return r
}

func (s *Server) handleScenario(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.Scenario)
}

// handleControl accepts a scenario-field override for the *next* stream
// connection (this module runs share-nothing batches, so there is no
// in-flight speed/arrival-rate control to mutate, unlike the teacher's
// live-tunable fleet).
func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode      string `json:"mode"`
		RouteRule string `json:"route_rule"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Mode != "" {
		s.Scenario.Mode = req.Mode
	}
	if req.RouteRule != "" {
		s.Scenario.RouteRule = req.RouteRule
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	eng := engine.New(s.Scenario, s.Line.Clone(), model.ClonePassengers(s.Arrivals), s.DepCount, s.DepDuration)
	ticks := make(chan engine.Tick, 16)
	stop := make(chan struct{})
	go eng.RunStreaming(stop, ticks)
	defer close(stop)
	s.log.Info("stream connected", "mode", s.Scenario.Mode, "remote", r.RemoteAddr)
	defer s.log.Info("stream disconnected", "remote", r.RemoteAddr)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case tick, ok := <-ticks:
			if !ok {
				return
			}
			b, _ := json.Marshal(tick)
			_, _ = w.Write([]byte("event: tick\ndata: "))
			_, _ = w.Write(b)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
			if tick.Done {
				return
			}
		}
	}
}
