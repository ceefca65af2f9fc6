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

	"github.com/weiawesome/wes-io-live/membership-service/internal/cache"
	"github.com/weiawesome/wes-io-live/membership-service/internal/config"
	"github.com/weiawesome/wes-io-live/membership-service/internal/domain"
	"github.com/weiawesome/wes-io-live/membership-service/internal/generator"
	"github.com/weiawesome/wes-io-live/membership-service/internal/handler"
	"github.com/weiawesome/wes-io-live/membership-service/internal/repository"
	"github.com/weiawesome/wes-io-live/membership-service/internal/service"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/database"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/membership-service/pkg/log"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/middleware"
	"github.com/weiawesome/wes-io-live/membership-service/pkg/pubsub"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	// Connect to database using GORM
	db, err := database.New(cfg.Database.ToDatabaseConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, domain.Models()...); err != nil {
			logger.Fatal().Err(err).Msg("failed to auto-migrate")
		}
		logger.Info().Msg("database migration completed")
	}

	roomRepo := repository.NewGormRoomRepository(db)

	// Initialize cache store
	var (
		store      cache.Store
		redisStore *cache.RedisStore
	)
	switch cfg.Cache.Driver {
	case "redis":
		redisStore, err = cache.NewRedisStore(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		store = redisStore
	case "memory":
		store, err = cache.NewLocalStore(cfg.Cache.Local)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create local cache")
		}
	default:
		logger.Fatal().Str("driver", cfg.Cache.Driver).Msg("unsupported cache driver")
	}

	roomCache := cache.NewRoomCache(store, cfg.Cache.TTL)
	defer roomCache.Close()
	logger.Info().Str("driver", cfg.Cache.Driver).Dur("ttl", cfg.Cache.TTL).Msg("cache ready")

	if cfg.Cache.ClearOnStart {
		if err := roomCache.Clear(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("failed to clear cache on start")
		} else {
			logger.Info().Msg("cache cleared")
		}
	}

	// Initialize event publisher
	var publisher pubsub.Publisher
	if cfg.Events.Driver == "redis" && redisStore != nil {
		publisher = pubsub.NewRedisPublisherFromClient(redisStore.Client())
	} else {
		publisher, err = pubsub.NewPublisher(cfg.Events)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create event publisher")
		}
	}
	defer publisher.Close()
	logger.Info().Str("driver", cfg.Events.Driver).Msg("event publisher ready")

	// Initialize service
	roomService := service.NewRoomService(
		roomRepo,
		roomCache,
		service.NewCacheInvalidator(roomCache),
		publisher,
		generator.NewRoomIDGenerator(),
	)

	// Initialize auth middleware
	jwtManager, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create token validator")
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	httpHandler := handler.NewHandler(roomService, authMiddleware)

	// Setup Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	httpHandler.RegisterRoutes(r)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Str("db_driver", cfg.Database.Driver).Msg("membership-service starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down membership-service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("membership-service stopped")
}
