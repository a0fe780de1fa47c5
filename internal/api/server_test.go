package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/engine"
	"github.com/talgya/mini-market/internal/telemetry"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	sim, err := engine.NewSimulation(engine.Params{
		Agents:        6,
		Width:         4,
		Height:        4,
		Strategy:      agents.StrategyAssetTrading,
		InitialWealth: 10,
		Seed:          11,
	})
	require.NoError(t, err)
	metrics, err := telemetry.NewCollector()
	require.NoError(t, err)

	s := &Server{Sim: sim, Eng: engine.NewEngine(), Metrics: metrics, Hub: NewHub()}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestStatus(t *testing.T) {
	s, ts := newTestServer(t)
	s.Sim.Step()

	var status map[string]any
	resp := getJSON(t, ts.URL+"/api/v1/status", &status)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), status["tick"])
	assert.Equal(t, float64(6), status["agents"])
	assert.Equal(t, "Asset Trading", status["strategy"])
	assert.Equal(t, false, status["clamped"])
}

func TestMetrics_BeforeAndAfterFirstTick(t *testing.T) {
	s, ts := newTestServer(t)

	var before map[string]any
	getJSON(t, ts.URL+"/api/v1/metrics", &before)
	assert.Equal(t, float64(0), before["tick"])
	assert.Equal(t, float64(60), before["total_wealth"])
	assert.NotContains(t, before, "agent_wealth")

	s.Sim.Step()
	var after map[string]any
	getJSON(t, ts.URL+"/api/v1/metrics", &after)
	assert.Equal(t, float64(1), after["tick"])
}

func TestMetricsHistory(t *testing.T) {
	s, ts := newTestServer(t)
	for i := 0; i < 3; i++ {
		s.Sim.Step()
	}

	var series struct {
		Series string     `json:"series"`
		Points []*float64 `json:"points"`
	}
	resp := getJSON(t, ts.URL+"/api/v1/metrics/history?series=total_wealth", &series)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "total_wealth", series.Series)
	require.Len(t, series.Points, 3)
	assert.NotNil(t, series.Points[0])

	var all []map[string]any
	getJSON(t, ts.URL+"/api/v1/metrics/history", &all)
	assert.Len(t, all, 3)

	resp = getJSON(t, ts.URL+"/api/v1/metrics/history?series=bogus", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAgents(t *testing.T) {
	_, ts := newTestServer(t)

	var list []map[string]any
	getJSON(t, ts.URL+"/api/v1/agents", &list)
	assert.Len(t, list, 6)

	var none []map[string]any
	getJSON(t, ts.URL+"/api/v1/agents?wealthy=false", &none)
	assert.Empty(t, none)
}

func TestAgentDetail(t *testing.T) {
	s, ts := newTestServer(t)
	s.Sim.Step()

	var detail map[string]any
	resp := getJSON(t, ts.URL+"/api/v1/agent/2", &detail)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), detail["id"])
	assert.Contains(t, detail, "series")
	assert.Contains(t, detail, "recent_activity")

	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/agent/99", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/agent/abc", nil).StatusCode)
	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/agent/", nil).StatusCode)
}

func TestPostIsRejected(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+"/api/v1/status", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	_, ts := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/status", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestPrometheusEndpoint(t *testing.T) {
	s, ts := newTestServer(t)
	s.Sim.Step()
	m, _ := s.Sim.LatestMetrics()
	s.Metrics.Observe(m)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body := new(bytes.Buffer)
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, body.String(), "minimarket_simulation_tick 1")
}

func TestStream_PushesPublishedTicks(t *testing.T) {
	s, ts := newTestServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.Hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	s.Sim.Step()
	m, _ := s.Sim.LatestMetrics()
	s.Hub.Publish(m)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, float64(1), got["tick"])
}

func TestRateLimiter_RefillsPerClient(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))
	assert.Equal(t, 30, rl.RetryAfter("a"))
	assert.Equal(t, 30, rl.RetryAfter("a"), "asking again must not consume a token")
	assert.Equal(t, 0, rl.RetryAfter("unknown"))

	now = now.Add(30 * time.Second)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	now = now.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
}

func TestRateLimiter_ZeroLimitRejects(t *testing.T) {
	rl := NewRateLimiter(0, time.Minute)

	assert.False(t, rl.Allow("a"))
	assert.Equal(t, 60, rl.RetryAfter("a"))
}

func TestRateLimitMiddleware_Returns429(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	h := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/stream", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	first := httptest.NewRecorder()
	h(first, req)
	second := httptest.NewRecorder()
	h(second, req)

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "60", second.Header().Get("Retry-After"))
}
