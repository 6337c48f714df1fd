package main

import (
	"fmt"
	"net/http"
	"os"

	"go.uber.org/zap"

	"tradesense-go/internal/advisor"
	"tradesense-go/internal/api"
	"tradesense-go/internal/challenge"
	"tradesense-go/internal/config"
	"tradesense-go/internal/database"
	"tradesense-go/internal/logger"
	"tradesense-go/internal/market"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("./configs")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	log.Info("Configuration loaded")

	// Connect to the database and migrate the schema
	db, err := database.NewDatabase(&cfg)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connection successful and schema migrated.")

	// Wire up the domain services
	engine := challenge.NewRuleEngine(log)
	svc := challenge.NewService(log, db, engine, cfg.Challenge)
	quotes := market.NewQuoteClient(&cfg.Market, log)
	scraper := market.NewScraper(log)
	adv := advisor.NewClient(&cfg.Advisor, log)

	handler := api.NewHandler(log, db, svc, quotes, scraper, adv)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info("Starting API server", zap.String("address", addr))

	if err := http.ListenAndServe(addr, handler.Routes()); err != nil {
		log.Fatal("API server failed", zap.Error(err))
	}
}
