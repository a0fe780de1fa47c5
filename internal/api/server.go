// Package api provides the HTTP API for observing a running simulation.
// Every endpoint is GET and read-only; there is no control plane.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/engine"
	"github.com/talgya/mini-market/internal/telemetry"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim     *engine.Simulation
	Eng     *engine.Engine
	Metrics *telemetry.Collector // nil disables /metrics
	Hub     *Hub
	Addr    string

	// Origins allowed by CORS in addition to local dev servers.
	AllowedOrigins []string

	// Stream connection attempts per client per minute. 0 = 30.
	StreamRate int
}

// Handler builds the routed handler with CORS applied.
func (s *Server) Handler() http.Handler {
	streamRate := s.StreamRate
	if streamRate <= 0 {
		streamRate = 30
	}
	streamLimiter := NewRateLimiter(streamRate, time.Minute)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", getOnly(s.handleStatus))
	mux.HandleFunc("/api/v1/metrics", getOnly(s.handleMetrics))
	mux.HandleFunc("/api/v1/metrics/history", getOnly(s.handleMetricsHistory))
	mux.HandleFunc("/api/v1/agents", getOnly(s.handleAgents))
	mux.HandleFunc("/api/v1/agent/", getOnly(s.handleAgentDetail))

	if s.Hub != nil {
		mux.HandleFunc("/api/v1/stream", RateLimitMiddleware(streamLimiter, s.handleStream))
	}
	if s.Metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	return corsMiddleware(s.AllowedOrigins, mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP API starting", "addr", s.Addr, "metrics", s.Metrics != nil, "stream", s.Hub != nil)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	if s.Hub != nil {
		s.Hub.Close()
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	slog.Info("HTTP API stopped")
	return nil
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	p := s.Sim.Params()
	clamped, requested := s.Sim.Clamped()

	status := map[string]any{
		"name":            "mini-market",
		"tick":            s.Sim.CurrentTick(),
		"agents":          p.Agents,
		"requested":       requested,
		"clamped":         clamped,
		"width":           p.Width,
		"height":          p.Height,
		"strategy":        p.Strategy,
		"initial_wealth":  p.InitialWealth,
		"seed":            p.Seed,
		"series":          s.Sim.SeriesNames(),
		"stream_watchers": 0,
	}
	if s.Eng != nil {
		status["max_ticks"] = s.Eng.MaxTicks
		status["interval"] = s.Eng.Interval.String()
	}
	if s.Hub != nil {
		status["stream_watchers"] = s.Hub.Subscribers()
	}
	writeJSON(w, status)
}

// handleMetrics returns the last collected tick, or the live aggregates
// before the first tick.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m, ok := s.Sim.LatestMetrics()
	if !ok {
		m = s.Sim.Current()
	}
	m.AgentWealth = nil
	writeJSON(w, m)
}

// handleMetricsHistory returns one named series (?series=gini) or, without
// the parameter, every collected tick. Undefined points are null.
func (s *Server) handleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("series")
	if name == "" {
		history := s.Sim.MetricsHistory()
		for i := range history {
			history[i].AgentWealth = nil
		}
		writeJSON(w, history)
		return
	}

	values, ok := s.Sim.SeriesValues(name)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown series %q", name), http.StatusNotFound)
		return
	}
	points := make([]*float64, len(values))
	for i, v := range values {
		points[i] = engine.Nullable(v)
	}
	writeJSON(w, map[string]any{
		"series": name,
		"points": points,
	})
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	type agentSummary struct {
		ID              agents.AgentID  `json:"id"`
		Wealth          float64         `json:"wealth"`
		X               int             `json:"x"`
		Y               int             `json:"y"`
		Strategy        agents.Strategy `json:"strategy"`
		Assets          int             `json:"assets"`
		TradesCompleted uint64          `json:"trades_completed"`
		Interactions    uint64          `json:"interactions"`
	}

	wealthy := r.URL.Query().Get("wealthy")

	result := []agentSummary{}
	for _, snap := range s.Sim.AgentSnapshots() {
		if wealthy == "true" && snap.Wealth <= 0 {
			continue
		}
		if wealthy == "false" && snap.Wealth > 0 {
			continue
		}
		result = append(result, agentSummary{
			ID:              snap.ID,
			Wealth:          snap.Wealth,
			X:               snap.Position.X,
			Y:               snap.Position.Y,
			Strategy:        snap.Strategy,
			Assets:          len(snap.Assets),
			TradesCompleted: snap.TradesCompleted,
			Interactions:    snap.Interactions,
		})
	}
	writeJSON(w, result)
}

// handleAgentDetail serves /api/v1/agent/:id with the agent's state, recent
// activity and reporter series.
func (s *Server) handleAgentDetail(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(r.URL.Path, "/")
	if len(parts) < 5 || parts[4] == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseUint(parts[4], 10, 64)
	if err != nil {
		http.Error(w, "invalid agent id", http.StatusBadRequest)
		return
	}

	snap, ok := s.Sim.AgentSnapshot(agents.AgentID(id))
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}
	series, _ := s.Sim.AgentSeries(agents.AgentID(id))

	writeJSON(w, struct {
		engine.Snapshot
		Series engine.AgentSeries `json:"series"`
	}{snap, series})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Error("write json response", "error", err)
	}
}
