package main

import (
	"context"
	"log"
	"time"

	"github.com/HadichaRaxmat/online-market-api/config"
	"github.com/HadichaRaxmat/online-market-api/internal/broker"
	"github.com/HadichaRaxmat/online-market-api/internal/service"
	"github.com/HadichaRaxmat/online-market-api/internal/store"
	"github.com/HadichaRaxmat/online-market-api/internal/util"
)

// One-shot expiry sweep, for cron or manual runs.
func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	sweeper := service.NewSweeper(db, broker.NewNopPublisher(util.GetLogger()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cancelled, err := sweeper.SweepExpired(ctx)
	if err != nil {
		log.Fatalf("Sweep failed: %v", err)
	}

	log.Printf("Sweep finished, cancelled %d orders", cancelled)
}
