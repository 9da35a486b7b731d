package main

import (
	"context"
	"database/sql"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/listsync/internal/cache"
	"github.com/ignite/listsync/internal/config"
	"github.com/ignite/listsync/internal/mailchimp"
	"github.com/ignite/listsync/internal/mailchimp/export"
	"github.com/ignite/listsync/internal/repository/postgres"
	"github.com/ignite/listsync/internal/worker"
)

func main() {
	log.Println("Starting listsync queue worker...")

	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := openDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Connected to database")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		// Locks need Redis; refusing to start is safer than draining unlocked.
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	customers := postgres.NewCustomerRepo(db)
	queue := postgres.NewQueueRepo(db)

	handlers, err := buildProviderHandlers(cfg, db, rdb)
	if err != nil {
		log.Fatalf("Failed to build provider handlers: %v", err)
	}
	log.Printf("Configured %d provider list(s)", len(handlers))

	syncWorker := worker.NewSyncWorker(cfg.Worker, handlers, customers, queue, rdb)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	syncWorker.Run(ctx)
	log.Println("Worker stopped")
}

func configPath() string {
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return "config/config.yaml"
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// buildProviderHandlers wires one mailchimp handler per configured list.
func buildProviderHandlers(cfg *config.Config, db *sql.DB, rdb *redis.Client) ([]*mailchimp.Handler, error) {
	stateRepo := postgres.NewExportStateRepo(db)
	segments := postgres.NewSegmentRepo(db)
	customers := postgres.NewCustomerRepo(db)
	activities := postgres.NewActivityRepo(db)
	snapshots := cache.NewSnapshots(rdb, 24*time.Hour)

	handlers := make([]*mailchimp.Handler, 0, len(cfg.Providers))
	for _, p := range cfg.Providers {
		client := export.NewClient(p, stateRepo)
		state := export.NewStateService(stateRepo, snapshots)

		h, err := mailchimp.NewHandler(p, mailchimp.Deps{
			Single:        client,
			Batch:         client,
			Segments:      client,
			State:         state,
			SegmentSource: segments,
			Customers:     customers,
			Activity:      activities,
		})
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}
