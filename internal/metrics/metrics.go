// Package metrics holds the process-wide Prometheus collectors.
//
// Labels are bounded (no per-player or per-session labels) so a flood of
// sessions cannot blow up series cardinality.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in one simulation step",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05},
	})

	ticksSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_ticks_skipped_total",
		Help: "Fixed steps dropped because the loop fell behind past the catch-up cap",
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_sessions_active",
		Help: "Sessions currently open",
	})

	enemiesSpawned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_enemies_spawned_total",
		Help: "Enemies placed on a board",
	})

	enemiesKilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_enemies_killed_total",
		Help: "Enemies killed by projectiles",
	})

	enemiesLeaked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_enemies_leaked_total",
		Help: "Enemies that reached a goal band",
	})

	commandsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_commands_rejected_total",
		Help: "Player commands rejected by validation",
	}, []string{"reason"}) // Bounded: the fixed rejection reason set

	// Minimap render cache
	minimapRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "minimap_requests_total",
		Help: "Minimap lookups by cache result",
	}, []string{"result"}) // Bounded: "hit", "miss"

	minimapsCached = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "minimap_cache_entries",
		Help: "Sessions with a cached minimap",
	})

	// Journal metrics
	eventLogTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_records",
		Help: "Records accepted by the match journal since start",
	})

	eventLogDropped = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "event_log_dropped_records",
		Help: "Records dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or session assignment",
	}, []string{"reason"}) // Bounded: "rate_limit", "invalid", "full", "not_found"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})

	wsMessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_dropped_total",
		Help: "Outbound messages dropped because a client's send buffer was full",
	})
)

// RecordTick records the duration of one simulation step
func RecordTick(duration time.Duration) {
	tickDuration.Observe(duration.Seconds())
}

// AddSkippedTicks counts fixed steps dropped by the loop
func AddSkippedTicks(n int) {
	if n > 0 {
		ticksSkipped.Add(float64(n))
	}
}

// SessionOpened increments the active session gauge
func SessionOpened() {
	sessionsActive.Inc()
}

// SessionClosed decrements the active session gauge
func SessionClosed() {
	sessionsActive.Dec()
}

// EnemiesSpawned counts n enemies placed on a board
func EnemiesSpawned(n int) {
	if n > 0 {
		enemiesSpawned.Add(float64(n))
	}
}

// EnemyKilled counts one kill
func EnemyKilled() {
	enemiesKilled.Inc()
}

// EnemyLeaked counts one enemy reaching a goal
func EnemyLeaked() {
	enemiesLeaked.Inc()
}

// RecordMinimapLookup counts a minimap cache hit or miss
func RecordMinimapLookup(hit bool) {
	if hit {
		minimapRequests.WithLabelValues("hit").Inc()
		return
	}
	minimapRequests.WithLabelValues("miss").Inc()
}

// SetMinimapsCached reports the minimap cache size
func SetMinimapsCached(n int) {
	minimapsCached.Set(float64(n))
}

// RecordCommandRejected counts a rejected command.
// reason must come from the fixed rejection reason set.
func RecordCommandRejected(reason string) {
	commandsRejected.WithLabelValues(reason).Inc()
}

// UpdateEventLogStats mirrors the journal's counters
func UpdateEventLogStats(total, dropped uint64) {
	eventLogTotal.Set(float64(total))
	eventLogDropped.Set(float64(dropped))
}

// RecordConnectionRejected increments the rejection counter
// reason must be one of: "rate_limit", "invalid", "full", "not_found"
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, http.StatusText(status)).Inc()
}

// WSConnected increments the WebSocket connection gauge
func WSConnected() {
	wsConnectionsActive.Inc()
}

// WSDisconnected decrements the WebSocket connection gauge
func WSDisconnected() {
	wsConnectionsActive.Dec()
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// IncrementWSDropped counts an outbound message dropped for a slow client
func IncrementWSDropped() {
	wsMessagesDropped.Inc()
}
