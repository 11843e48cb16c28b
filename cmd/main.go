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

	"github.com/pulsegram/relation-service/internal/config"
	"github.com/pulsegram/relation-service/internal/domain"
	"github.com/pulsegram/relation-service/internal/handler"
	"github.com/pulsegram/relation-service/internal/publisher"
	"github.com/pulsegram/relation-service/internal/reconciler"
	"github.com/pulsegram/relation-service/internal/repository"
	"github.com/pulsegram/relation-service/internal/service"
	"github.com/pulsegram/relation-service/internal/store"
	"github.com/pulsegram/relation-service/pkg/database"
	"github.com/pulsegram/relation-service/pkg/jwt"
	pkglog "github.com/pulsegram/relation-service/pkg/log"
	"github.com/pulsegram/relation-service/pkg/middleware"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: "relation-service",
	})
	logger := pkglog.L()

	// 3. Init DB (GORM, auto-migrate models)
	dbConfig := &database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	db, err := database.New(dbConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get underlying sql.DB")
	}
	defer sqlDB.Close()

	if err := database.AutoMigrate(db,
		&domain.UserModel{},
		&domain.FollowModel{},
		&domain.BlockModel{},
		&domain.FollowRequestModel{},
		&domain.PrivacySettingsModel{},
	); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Msg("database migration completed")

	// Partial unique index: one PENDING request per (requester, target) pair.
	// Terminal rows stay as history, so a re-request after rejection inserts
	// a fresh row without tripping the constraint.
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uidx_request_pair_pending
		 ON follow_requests (requester_id, target_id)
		 WHERE status = 'pending'`,
	).Error; err != nil {
		logger.Fatal().Err(err).Msg("failed to create partial unique index uidx_request_pair_pending")
	}
	logger.Info().Msg("partial unique index ensured")

	// 4. Init Redis counter store
	redisStore, err := store.NewRedisCounterStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisStore.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

	// 5. Init event publisher (optional, kafka)
	var events publisher.EventPublisher = publisher.Noop{}
	if cfg.Kafka.Brokers != "" {
		kp, err := publisher.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka publisher, relationship events disabled")
		} else {
			events = kp
			logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka event publisher started")
		}
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not configured; relationship events disabled")
	}

	// 6. Create repos and services
	relationshipRepo := repository.NewGormRelationshipRepository(db)
	requestRepo := repository.NewGormFollowRequestRepository(db)
	privacyRepo := repository.NewGormPrivacyRepository(db)

	relationshipSvc := service.NewRelationshipService(relationshipRepo, requestRepo, privacyRepo, redisStore, events)
	requestSvc := service.NewFollowRequestService(requestRepo, redisStore, events)
	privacySvc := service.NewPrivacyService(privacyRepo)

	// 7. Create JWT auth middleware
	jwtManager, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create jwt manager")
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtManager)

	// 8. Init reconciler and start
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := reconciler.New(redisStore, relationshipRepo, cfg.Reconciler)
	rec.Start(ctx)
	logger.Info().Dur("interval", cfg.Reconciler.Interval).Int("top_n", cfg.Reconciler.TopN).Msg("reconciler started")

	// 9. Setup Gin router + HTTP server
	httpHandler := handler.NewHandler(relationshipSvc, requestSvc, privacySvc, authMiddleware)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	httpHandler.RegisterRoutes(r)

	// 10. Start server goroutine
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("relation-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 11. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// 1. cancel() — stop the reconciler ticker
		cancel()

		// 2. events.Close() — flush in-flight relationship events
		if err := events.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing event publisher")
		}

		// 3. reconciler.Stop(); <-reconciler.Done()
		rec.Stop()
		<-rec.Done()

		// 4. server.Shutdown(5s) — drain HTTP
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("relation-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
