package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet/internal/config"
	"wallet/internal/db"
	"wallet/internal/events/kafka"
	"wallet/internal/handlers"
	"wallet/internal/notify"
	"wallet/internal/ratelimit"
	"wallet/internal/services"
	"wallet/internal/store"
	"wallet/internal/stream"

	"github.com/go-redis/redis/v8"
)

func main() {
	cfg := config.Load()
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer database.Close()

	dialect := db.DialectFor(database.DriverName())
	if cfg.AppEnv == "development" || dialect == db.SQLite {
		if _, err := db.Migrate(context.Background(), database); err != nil {
			log.Fatalf("failed to migrate: %v", err)
		}
	}

	users := store.NewUserStore(database, dialect)
	audit := store.NewAuditStore(database, dialect)
	txRunner := db.NewTxRunner(database)
	transfers := services.NewTransferService(txRunner, users, audit)

	streams := stream.NewManager(cfg.EventBuffer)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	go func() {
		if err := streams.Run(dispatchCtx); err != nil {
			log.Printf("stream dispatcher: %v", err)
		}
	}()

	var notifier *notify.Notifier
	var publisher *kafka.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		notifier = notify.New(streams, publisher)
		log.Printf("publishing transfer events to kafka topic %s", cfg.KafkaTopic)
	} else {
		notifier = notify.New(streams, nil)
	}

	limiter, redisClient := newLimiter(cfg)

	handler := handlers.New(txRunner, cfg, users, audit, transfers, notifier, streams, limiter)
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("wallet API listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	// streams are closed first so SSE and websocket handlers return before Shutdown waits on them
	stopDispatch()
	streams.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			log.Printf("kafka close: %v", err)
		}
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

// newLimiter prefers a shared Redis window and falls back to a per-process one.
func newLimiter(cfg config.Config) (ratelimit.Limiter, *redis.Client) {
	if cfg.RedisAddr == "" {
		return ratelimit.NewMemory(cfg.RateLimit, time.Minute), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("redis unavailable at %s, using in-memory rate limiter: %v", cfg.RedisAddr, err)
		_ = client.Close()
		return ratelimit.NewMemory(cfg.RateLimit, time.Minute), nil
	}
	return ratelimit.NewRedis(client, cfg.RateLimit, time.Minute), client
}
