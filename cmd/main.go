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

	"github.com/gin-gonic/gin"

	"github.com/HichuYamichu/goelearn-sub000/internal/auth"
	"github.com/HichuYamichu/goelearn-sub000/internal/cache"
	"github.com/HichuYamichu/goelearn-sub000/internal/config"
	"github.com/HichuYamichu/goelearn-sub000/internal/handler"
	"github.com/HichuYamichu/goelearn-sub000/internal/hub"
	"github.com/HichuYamichu/goelearn-sub000/internal/kafka"
	"github.com/HichuYamichu/goelearn-sub000/internal/metrics"
	"github.com/HichuYamichu/goelearn-sub000/internal/repository"
	"github.com/HichuYamichu/goelearn-sub000/internal/service"
	"github.com/HichuYamichu/goelearn-sub000/internal/store"
	"github.com/HichuYamichu/goelearn-sub000/pkg/database"
	"github.com/HichuYamichu/goelearn-sub000/pkg/jwt"
	pkglog "github.com/HichuYamichu/goelearn-sub000/pkg/log"
	"github.com/HichuYamichu/goelearn-sub000/pkg/middleware"
	"github.com/HichuYamichu/goelearn-sub000/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := pkglog.Init(cfg.Log)
	logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("starting meeting-relay")

	// Presence store
	redisClient, err := store.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	presence := store.NewRedisStore(redisClient)
	logger.Info().Str("address", cfg.Redis.Address).Msg("connected to redis")

	// Meeting bus
	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize pubsub")
	}
	defer bus.Close()
	logger.Info().Str("driver", cfg.PubSub.Driver).Msg("meeting bus ready")

	// Class directory
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)
	logger.Info().Str("driver", cfg.Database.Driver).Msg("connected to database")

	var classes repository.ClassRepository = repository.NewGormClassRepository(db)
	if cfg.ClassCache.Enabled {
		classCache := cache.NewRedisClassCache(redisClient, cfg.ClassCache.Prefix)
		classes = repository.NewCachedClassRepository(classes, classCache, cfg.ClassCache.TTL)
		logger.Info().Dur("ttl", cfg.ClassCache.TTL).Msg("class cache enabled")
	}

	tokens, err := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, 0)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token validator")
	}

	// Meeting lifecycle events are optional
	var producer kafka.MeetingEventProducer
	if cfg.Events.Enabled {
		p, err := kafka.NewConfluentProducer(cfg.Events.Brokers, cfg.Events.Topic, cfg.Events.Partitions)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, meeting events disabled")
		} else {
			defer p.Close()
			producer = p
			logger.Info().Str("brokers", cfg.Events.Brokers).Str("topic", cfg.Events.Topic).Msg("connected to kafka")
		}
	}

	wsHub := hub.NewHub(cfg.WebSocket)
	meetingSvc := service.NewMeetingService(presence, bus, producer)
	gate := auth.NewGate(tokens, classes)

	wsHandler := handler.NewWSHandler(wsHub, gate, meetingSvc, cfg.WebSocket)
	httpHandler := handler.NewHandler(meetingSvc, middleware.NewAuthMiddleware(tokens))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), pkglog.GinMiddleware(logger))
	wsHandler.RegisterRoutes(router)
	httpHandler.RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, metrics.Handler())
	}

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("host", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("meeting-relay listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Int("sessions", wsHub.Count()).Msg("shutting down meeting-relay")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	wsHub.CloseAll()
	if err := wsHub.Wait(shutdownCtx); err != nil {
		logger.Warn().Err(err).Int("sessions", wsHub.Count()).Msg("sessions still open at shutdown")
	}

	logger.Info().Msg("meeting-relay stopped")
}
