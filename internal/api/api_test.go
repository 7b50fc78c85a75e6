package api

import (
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lane-defense/internal/config"
	"lane-defense/internal/game"
	"lane-defense/internal/session"
)

// nopConn is a session member that discards everything
type nopConn struct{}

func (nopConn) Send([]byte) bool { return true }
func (nopConn) Close()           {}

func testRegistry(t *testing.T) *session.Registry {
	t.Helper()
	sim := config.DefaultSim()
	sim.TickRate = 1
	reg := session.NewRegistry(session.Options{
		Sim:     sim,
		Rules:   config.DefaultRules(),
		Balance: config.DefaultBalance(),
		Seed:    func() int64 { return 1 },
	}, time.Minute)
	t.Cleanup(reg.CloseAll)
	return reg
}

type testServer struct {
	*httptest.Server
	sessions *session.Registry
}

func newTestServer(t *testing.T, admin *AdminAuth, commandsPerSecond float64, burst int) testServer {
	t.Helper()
	reg := testRegistry(t)
	limiter := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000})
	t.Cleanup(limiter.Stop)

	hub := NewWebSocketHub(reg, nil, commandsPerSecond, burst)
	router := NewRouter(RouterConfig{
		Sessions:       reg,
		WebSocket:      hub.HandleWebSocket,
		RateLimiter:    limiter,
		Admin:          admin,
		DisableLogging: true,
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return testServer{Server: ts, sessions: reg}
}

func (ts testServer) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// readUntil skips messages until one with event arrives
func readUntil(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var msg inbound
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", event)
		if msg.Event == event {
			return msg.Data
		}
	}
}

func TestHealthAndListSessions(t *testing.T) {
	ts := newTestServer(t, nil, 20, 40)
	_, _, err := ts.sessions.Join(game.ModeSolo, nopConn{})
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "ok", health["status"])
	assert.EqualValues(t, 1, health["sessions"])

	resp, err = http.Get(ts.URL + "/api/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()

	var list []session.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, game.PhaseBuild, list[0].Phase)
	assert.Equal(t, game.ModeSolo, list[0].Mode)
}

func TestGetSession(t *testing.T) {
	ts := newTestServer(t, nil, 20, 40)
	room, playerID, err := ts.sessions.Join(game.ModeSolo, nopConn{})
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/sessions/" + room.ID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Snapshot struct {
			Phase      game.Phase                 `json:"phase"`
			GridWidth  int                        `json:"gridWidth"`
			GridHeight int                        `json:"gridHeight"`
			Players    map[string]json.RawMessage `json:"players"`
		} `json:"snapshot"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, game.PhaseBuild, body.Snapshot.Phase)
	assert.Equal(t, 60, body.Snapshot.GridWidth)
	assert.Equal(t, 30, body.Snapshot.GridHeight)
	assert.Contains(t, body.Snapshot.Players, playerID)

	resp, err = http.Get(ts.URL + "/api/sessions/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMinimapPNG(t *testing.T) {
	ts := newTestServer(t, nil, 20, 40)
	room, _, err := ts.sessions.Join(game.ModeSolo, nopConn{})
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/api/sessions/" + room.ID + "/minimap.png")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)

	health, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer health.Body.Close()

	var body struct {
		Minimaps struct {
			Cached int    `json:"cached"`
			Misses uint64 `json:"misses"`
		} `json:"minimaps"`
	}
	require.NoError(t, json.NewDecoder(health.Body).Decode(&body))
	assert.Equal(t, 1, body.Minimaps.Cached)
	assert.Equal(t, uint64(1), body.Minimaps.Misses)
}

func TestAdminCloseSession(t *testing.T) {
	tests := []struct {
		name       string
		admin      *AdminAuth
		header     string
		wantStatus int
	}{
		{"disabled", nil, "Bearer s3cret", http.StatusForbidden},
		{"missing token", NewAdminAuth("s3cret"), "", http.StatusUnauthorized},
		{"wrong token", NewAdminAuth("s3cret"), "Bearer guess", http.StatusUnauthorized},
		{"valid token", NewAdminAuth("s3cret"), "Bearer s3cret", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.admin, 20, 40)
			room, _, err := ts.sessions.Join(game.ModeSolo, nopConn{})
			require.NoError(t, err)

			req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/sessions/"+room.ID, nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			_, exists := ts.sessions.Get(room.ID)
			assert.Equal(t, tt.wantStatus != http.StatusNoContent, exists)
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	defer limiter.Stop()

	router := NewRouter(RouterConfig{
		Sessions:       testRegistry(t),
		RateLimiter:    limiter,
		DisableLogging: true,
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.Equal(t, uint64(1), limiter.GetStats()["rejected"])
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	assert.Equal(t, "10.0.0.9", GetClientIP(req))

	req.Header.Set("X-Real-IP", "10.1.1.1")
	assert.Equal(t, "10.1.1.1", GetClientIP(req))

	req.Header.Set("X-Forwarded-For", "1.2.3.4, 10.1.1.1")
	assert.Equal(t, "1.2.3.4", GetClientIP(req))
}

func TestWebSocketLimiterPerIP(t *testing.T) {
	l := NewWebSocketRateLimiter(2)
	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("a"))
	assert.False(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))

	l.Release("a")
	assert.Equal(t, 1, l.GetConnectionCount("a"))
	assert.True(t, l.Allow("a"))
}

func TestOriginMatcher(t *testing.T) {
	m := newOriginMatcher([]string{"https://game.example", "https://*.example.org"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:8080", true},
		{"https://game.example", true},
		{"https://play.example.org", true},
		{"https://example.org.evil.test", false},
		{"https://evil.test", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, m.allowed(tt.origin), tt.origin)
	}
}

func TestAdminAuthValid(t *testing.T) {
	a := NewAdminAuth("token")
	assert.True(t, a.Enabled())
	assert.True(t, a.Valid("token"))
	assert.False(t, a.Valid("tokenx"))
	assert.False(t, a.Valid(""))

	var none *AdminAuth
	assert.False(t, none.Enabled())
	assert.False(t, NewAdminAuth("").Valid(""))
}

func TestWebSocketRejectsBadQuery(t *testing.T) {
	ts := newTestServer(t, nil, 20, 40)

	for _, q := range []string{"mode=chaos", "session=abc", "player=abc"} {
		resp, err := http.Get(ts.URL + "/ws?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
	}
}

func TestWebSocketSoloCommands(t *testing.T) {
	ts := newTestServer(t, nil, 20, 40)
	conn := ts.dial(t, "mode=solo")

	var joined session.JoinedData
	require.NoError(t, json.Unmarshal(readUntil(t, conn, session.EventJoined), &joined))
	assert.Equal(t, game.SideLeft, joined.Side)
	assert.Equal(t, game.ModeSolo, joined.Mode)

	// Malformed input is dropped; the connection keeps working
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{garbage")))

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "place_tower", "x": 10, "y": 5, "towerType": "basic"}))
	var placed session.TowerPlacedData
	require.NoError(t, json.Unmarshal(readUntil(t, conn, session.EventTowerPlaced), &placed))
	assert.Equal(t, game.Cell{X: 10, Y: 5}, placed.Cell)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "place_tower", "x": 10, "y": 5, "towerType": "basic"}))
	var failed session.ActionFailedData
	require.NoError(t, json.Unmarshal(readUntil(t, conn, session.EventActionFailed), &failed))
	assert.Equal(t, game.ReasonCellOccupied, failed.Reason)
}

func TestWebSocketCommandRateLimit(t *testing.T) {
	ts := newTestServer(t, nil, 0.001, 1)
	conn := ts.dial(t, "mode=solo")
	readUntil(t, conn, session.EventJoined)

	bad := map[string]any{"type": "place_tower", "x": -1, "y": 0, "towerType": "basic"}
	require.NoError(t, conn.WriteJSON(bad))
	require.NoError(t, conn.WriteJSON(bad))

	var first, second session.ActionFailedData
	require.NoError(t, json.Unmarshal(readUntil(t, conn, session.EventActionFailed), &first))
	require.NoError(t, json.Unmarshal(readUntil(t, conn, session.EventActionFailed), &second))
	assert.Equal(t, game.ReasonOutOfBounds, first.Reason)
	assert.Equal(t, game.ReasonRateLimited, second.Reason)
}

func TestWebSocketDisconnectAndRejoin(t *testing.T) {
	ts := newTestServer(t, nil, 20, 40)

	alice := ts.dial(t, "mode=versus")
	readUntil(t, alice, session.EventJoined)
	bob := ts.dial(t, "mode=versus")
	var bobJoined session.JoinedData
	require.NoError(t, json.Unmarshal(readUntil(t, bob, session.EventJoined), &bobJoined))
	assert.Equal(t, game.SideRight, bobJoined.Side)
	readUntil(t, alice, session.EventPhaseChanged)

	bob.Close()
	var gone session.PlayerData
	require.NoError(t, json.Unmarshal(readUntil(t, alice, session.EventPlayerDisconnected), &gone))
	assert.Equal(t, bobJoined.PlayerID, gone.PlayerID)

	room, ok := ts.sessions.Get(bobJoined.SessionID)
	require.True(t, ok)
	assert.True(t, room.Paused())

	bob2 := ts.dial(t, "session="+bobJoined.SessionID+"&player="+bobJoined.PlayerID)
	var rejoined session.JoinedData
	require.NoError(t, json.Unmarshal(readUntil(t, bob2, session.EventJoined), &rejoined))
	assert.Equal(t, bobJoined.PlayerID, rejoined.PlayerID)
	assert.Equal(t, game.SideRight, rejoined.Side)

	readUntil(t, alice, session.EventPlayerReconnected)
	assert.False(t, room.Paused())
}

func TestWebSocketRejoinUnknownSession(t *testing.T) {
	ts := newTestServer(t, nil, 20, 40)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?session=missing&player=ghost"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, session.ErrSessionNotFound.Error(), closeErr.Text)
}

func TestDebugHandlerBasicAuth(t *testing.T) {
	h := debugHandler(ObservabilityConfig{BasicAuthUser: "ops", BasicAuthPass: "pw"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.SetBasicAuth("ops", "pw")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "game_sessions_active")
}
