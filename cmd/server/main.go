package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"coderoom/internal/api"
	"coderoom/internal/config"
	"coderoom/internal/events"
	"coderoom/internal/generate"
	"coderoom/internal/metrics"
	"coderoom/internal/reaper"
	mongorepo "coderoom/internal/repositories/mongo"
	"coderoom/internal/routers"
	"coderoom/internal/session"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	mongoClient, err := mongorepo.NewClient(ctx, cfg.MongoURI)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}
	defer mongoClient.Disconnect(ctx)

	rooms, err := mongorepo.NewRoomRepo(mongoClient, cfg.MongoDB, cfg.RoomsCollection)
	if err != nil {
		log.Fatalf("mongo: %v", err)
	}

	var publisher session.EventPublisher
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		publisher = events.NewPublisher(rdb, logger)
	}

	var gen generate.Provider
	if cfg.GeminiAPIKey != "" {
		gen, err = generate.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("code generation disabled", zap.Error(err))
			gen = nil
		}
	}

	hub := session.NewHub()
	coord := session.NewCoordinator(hub, rooms, publisher, logger)

	rp := reaper.New(hub, cfg.RoomIdleTTL, logger)
	if err := rp.Start(); err != nil {
		log.Fatalf("reaper: %v", err)
	}
	defer rp.Stop()

	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(60*time.Second),
		metrics.Middleware,
	)

	h := api.NewHandlers(logger, coord, rooms, gen, cfg.JWTSecret)
	r.Mount("/", routers.New(h))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("ok")) })
	r.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.Port
	log.Printf("coderoom listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, r))
}
