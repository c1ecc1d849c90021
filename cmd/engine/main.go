package main

import (
	"log"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/rawblock/shapley-engine/internal/api"
	"github.com/rawblock/shapley-engine/internal/config"
	"github.com/rawblock/shapley-engine/internal/db"
	"github.com/rawblock/shapley-engine/internal/telemetry"
)

func main() {
	log.Println("Starting Shapley Lesion Engine...")

	// ─── Environment ────────────────────────────────────────────────────
	// Settings come from the environment, optionally seeded from a .env
	// file for local development: cp .env.example .env && edit .env
	// ────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: invalid configuration: %v", err)
	}

	var store api.LesionStore
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set, lesion-table games are disabled")
	} else {
		dbConn, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: Failed to connect to PostgreSQL, continuing without the lesion store. Error: %v", err)
		} else {
			defer dbConn.Close()
			if err := dbConn.InitSchema(); err != nil {
				log.Printf("Warning: DB schema init failed: %v", err)
			}
			store = dbConn
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	// Setup WebSocket Hub
	wsHub := api.NewHub(cfg.AllowedOrigins)
	go wsHub.Run()

	// Setup the Gin Router
	r := api.SetupRouter(cfg, store, wsHub, metrics, reg)

	log.Printf("Engine running on :%s (max %d players, %d samples)\n", cfg.Port, cfg.MaxPlayers, cfg.MaxSamples)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
