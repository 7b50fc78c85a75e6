package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"lane-defense/internal/api"
	"lane-defense/internal/config"
	"lane-defense/internal/game"
	"lane-defense/internal/session"

	"github.com/joho/godotenv"
)

const sweepInterval = 30 * time.Second

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🏰 ================================")
	log.Println("🏰  LANE DEFENSE - GO SERVER")
	log.Println("🏰 ================================")

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}
	simCfg := appConfig.Sim
	serverCfg := appConfig.Server

	log.Printf("🎮 Config: %d TPS, %dx%d grid, %d tower types, %d enemy types",
		simCfg.TickRate, simCfg.GridWidth, simCfg.GridHeight,
		len(appConfig.Balance.Towers), len(appConfig.Balance.Enemies))

	var journal *game.EventLog
	if serverCfg.EventLogPath != "" {
		journal = game.NewEventLog()
		if err := journal.Start(serverCfg.EventLogPath); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
			journal = nil
		} else {
			log.Printf("📝 Event log: %s", serverCfg.EventLogPath)
		}
	}

	if serverCfg.DebugServer {
		if err := api.StartDebugServer(api.DefaultObservabilityConfig()); err != nil {
			log.Printf("⚠️ Debug server disabled: %v", err)
		}
	}

	sessions := session.NewRegistry(session.Options{
		Sim:     simCfg,
		Rules:   appConfig.Rules,
		Balance: appConfig.Balance,
		Journal: journal,
	}, serverCfg.SessionIdleTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sessions.RunSweeper(ctx, sweepInterval)

	server := api.NewServer(sessions, serverCfg)
	go func() {
		if err := server.Start(fmt.Sprintf(":%d", serverCfg.Port)); err != nil {
			log.Printf("❌ Failed to start server: %v", err)
			stop()
		}
	}()

	if serverCfg.AdminToken == "" {
		log.Println("⚠️ ADMIN_TOKEN not set - admin routes disabled")
	}
	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Println("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ Shutdown: %v", err)
	}
	if journal != nil {
		journal.Stop()
	}
	log.Println("👋 Goodbye!")
}
