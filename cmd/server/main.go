package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damon-houk/currency-tracker/internal/application/service"
	"github.com/damon-houk/currency-tracker/internal/config"
	"github.com/damon-houk/currency-tracker/internal/domain/repository"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/api"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/cache"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/db"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/handler"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/kafka"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/logger"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/metrics"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/middleware"
	"github.com/damon-houk/currency-tracker/internal/infrastructure/pubsub"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		logger.Fatal("Server terminated", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func run() error {
	// A missing .env file is fine, the environment alone is enough
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return err
	}

	log := logger.NewJSONLogger(os.Stdout, logger.ParseLevel(cfg.Log.Level))
	logger.SetDefaultLogger(log)

	log.Info("Starting currency tracker", map[string]interface{}{
		"port":        cfg.Server.Port,
		"provider":    cfg.Upstream.BaseURL,
		"cache_store": cfg.Cache.Store,
		"cache_ttl":   cfg.Cache.TTL.String(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	m.RegisterBases(cfg.BroadcastBases()...)

	// Snapshot store
	var store repository.SnapshotRepository = cache.NewMemoryStore()
	if cfg.Cache.Store == config.StoreBadger {
		badgerDB, err := db.OpenInMemory(log)
		if err != nil {
			return err
		}
		defer func() {
			if err := badgerDB.Close(); err != nil {
				log.Error("Error closing BadgerDB", map[string]interface{}{"error": err.Error()})
			}
		}()
		store = db.NewBadgerSnapshotRepository(badgerDB)
	}

	var estimator cache.ChangeEstimator = cache.NoChangeEstimator{}
	if cfg.Cache.ChangeEstimator == config.EstimatorRandom {
		estimator = cache.NewRandomChangeEstimator(0)
	}

	// Provider and cache
	client := api.NewExchangeRateAPIClient(cfg.Upstream.BaseURL,
		&http.Client{Timeout: cfg.Upstream.Timeout},
		api.WithRetries(cfg.Upstream.MaxRetries, 0),
		api.WithLogger(log.WithField("component", "provider")),
		api.WithMetrics(m),
	)

	rateCache := cache.NewExchangeRateCache(client,
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithFetchTimeout(cfg.Upstream.Timeout),
		cache.WithStore(store),
		cache.WithChangeEstimator(estimator),
		cache.WithLogger(log.WithField("component", "cache")),
		cache.WithMetrics(m),
	)

	// Publishers
	hub := pubsub.NewHub(cfg.Broadcast.SubscriberBuffer, log.WithField("component", "hub"), m)
	publishers := []service.SnapshotPublisher{hub}

	if cfg.KafkaEnabled() {
		kafkaPublisher := kafka.NewSnapshotPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix, log.WithField("component", "kafka"))
		defer func() {
			if err := kafkaPublisher.Close(); err != nil {
				log.Error("Error closing Kafka writer", map[string]interface{}{"error": err.Error()})
			}
		}()
		publishers = append(publishers, kafkaPublisher)

		log.Info("Kafka mirror enabled", map[string]interface{}{
			"brokers":      cfg.Kafka.Brokers,
			"topic_prefix": cfg.Kafka.TopicPrefix,
		})
	}

	broadcaster := service.NewBroadcaster(rateCache, publishers, cfg.BroadcastBases(), cfg.Broadcast.Interval,
		log.WithField("component", "broadcaster"), m)

	// Handlers
	rateService := service.NewRateService(rateCache, log)

	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware, middleware.LoggingMiddleware(log), middleware.MetricsMiddleware(m))

	handler.NewSubscriptionHandler(hub, cfg.Server.CORSOrigins, log).RegisterRoutes(router)
	handler.NewRateHandler(rateService, log).RegisterRoutes(router)
	handler.NewHealthHandler().RegisterRoutes(router)
	router.Handle("/metrics", m.Handler()).Methods("GET")

	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.Server.CORSOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Request-ID"}),
		handlers.ExposedHeaders([]string{"X-Request-ID"}),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           cors(router),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := broadcaster.Start(ctx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{"addr": server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received", nil)
	case err := <-serverErr:
		if err != nil {
			broadcaster.Stop()
			hub.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	broadcaster.Stop()
	// Sends a close frame to every websocket subscriber
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	log.Info("Server stopped", nil)
	return nil
}
