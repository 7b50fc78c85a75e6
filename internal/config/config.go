// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for server, simulation and economy settings.
//
// Gameplay tables (tower and enemy types, difficulty curve) live in balance.yaml;
// everything else is a Go default with an environment variable override.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds the fixed-step loop and board geometry.
type SimConfig struct {
	TickRate        int // Ticks per second
	CatchupMaxTicks int // Max fixed steps run per wakeup before backlog is dropped
	GridWidth       int // Cells
	GridHeight      int // Cells
	SpawnZoneMargin int // Non-buildable ring around the 2x2 spawn block
	GoalDepth       int // Goal band thickness at each outer edge
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate:        20,
		CatchupMaxTicks: 3,
		GridWidth:       60,
		GridHeight:      30,
		SpawnZoneMargin: 1,
		GoalDepth:       1,
	}
}

// SimFromEnv returns simulation configuration with environment variable overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if v := getEnvInt("TICK_RATE", 0); v > 0 {
		cfg.TickRate = v
	}
	if v := getEnvInt("CATCHUP_MAX_TICKS", 0); v > 0 {
		cfg.CatchupMaxTicks = v
	}
	if v := getEnvInt("GRID_WIDTH", 0); v >= 8 {
		cfg.GridWidth = v
	}
	if v := getEnvInt("GRID_HEIGHT", 0); v >= 6 {
		cfg.GridHeight = v
	}

	return cfg
}

// =============================================================================
// ECONOMY & WAVE CONFIGURATION
// =============================================================================

// RulesConfig holds player economy and wave pacing settings.
type RulesConfig struct {
	StartingCredits   int
	PlayerHealth      int
	WaveStipend       int     // Flat payout on every BUILD entry after a wave
	FirstWaveEnemies  int     // Enemy count baseline for wave 1
	SpawnPhaseSeconds float64 // Target duration of a wave's spawn drip
	MinSpawnInterval  float64 // Floor for the per-entry spawn delay
	ProjectileSpeed   float64 // Cells per second
	ArrivalEpsilon    float64 // Snap distance for waypoints and projectile impact
	SellRefundRatio   float64
	PriceGrowth       float64 // Dynamic pricing step per prior purchase of a type
	UpgradeCostMult   float64
	UpgradeDamageMult float64
	UpgradeRateMult   float64
	UpgradeRangeBonus float64
	MaxLevel          int
	RepairCostPerHP   float64
}

// DefaultRules returns the default economy configuration.
func DefaultRules() RulesConfig {
	return RulesConfig{
		StartingCredits:   200,
		PlayerHealth:      100,
		WaveStipend:       100,
		FirstWaveEnemies:  6,
		SpawnPhaseSeconds: 20,
		MinSpawnInterval:  0.25,
		ProjectileSpeed:   12,
		ArrivalEpsilon:    0.05,
		SellRefundRatio:   0.6,
		PriceGrowth:       0.1,
		UpgradeCostMult:   1.5,
		UpgradeDamageMult: 1.5,
		UpgradeRateMult:   1.15,
		UpgradeRangeBonus: 0.5,
		MaxLevel:          5,
		RepairCostPerHP:   0.5,
	}
}

// RulesFromEnv returns economy configuration with environment variable overrides.
func RulesFromEnv() RulesConfig {
	cfg := DefaultRules()

	if v := getEnvInt("STARTING_CREDITS", -1); v >= 0 {
		cfg.StartingCredits = v
	}
	if v := getEnvInt("PLAYER_HEALTH", 0); v > 0 {
		cfg.PlayerHealth = v
	}
	if v := getEnvInt("WAVE_STIPEND", -1); v >= 0 {
		cfg.WaveStipend = v
	}
	if v := getEnvInt("FIRST_WAVE_ENEMIES", 0); v > 0 {
		cfg.FirstWaveEnemies = v
	}
	if v := getEnvFloat("SPAWN_PHASE_SECONDS", 0); v > 0 {
		cfg.SpawnPhaseSeconds = v
	}
	if v := getEnvFloat("MIN_SPAWN_INTERVAL", 0); v > 0 {
		cfg.MinSpawnInterval = v
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               int
	CORSOrigins        []string
	SessionIdleTimeout time.Duration // Close sessions with no connected members after this long
	CommandsPerSecond  float64       // Per-connection command budget
	CommandBurst       int
	EventLogPath       string
	BalancePath        string
	AdminToken         string // Bearer token for admin routes; empty disables them
	DebugServer        bool   // Serve pprof and /metrics on localhost
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:               3000,
		SessionIdleTimeout: 10 * time.Minute,
		CommandsPerSecond:  20,
		CommandBurst:       40,
		DebugServer:        true,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, o)
			}
		}
	}
	if v := os.Getenv("SESSION_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionIdleTimeout = d
		}
	}
	cfg.EventLogPath = os.Getenv("EVENT_LOG_PATH")
	cfg.BalancePath = os.Getenv("BALANCE_PATH")
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.DebugServer = false
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim     SimConfig
	Rules   RulesConfig
	Server  ServerConfig
	Balance Balance
}

// Load returns the complete configuration with environment overrides.
// The balance table comes from BALANCE_PATH when set, otherwise the embedded default.
func Load() (AppConfig, error) {
	server := ServerFromEnv()

	balance, err := LoadBalance(server.BalancePath)
	if err != nil {
		return AppConfig{}, err
	}

	return AppConfig{
		Sim:     SimFromEnv(),
		Rules:   RulesFromEnv(),
		Server:  server,
		Balance: balance,
	}, nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
