// Package main runs the stream ledger HTTP server with WebSocket and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aura-streams/backend/config"
	"github.com/aura-streams/backend/internal/access"
	"github.com/aura-streams/backend/internal/auth"
	"github.com/aura-streams/backend/internal/custody"
	"github.com/aura-streams/backend/internal/events"
	"github.com/aura-streams/backend/internal/lifecycle"
	"github.com/aura-streams/backend/internal/middleware"
	"github.com/aura-streams/backend/internal/realtime"
	"github.com/aura-streams/backend/internal/streams"
	"github.com/aura-streams/backend/pkg/queue"
	"github.com/aura-streams/backend/pkg/redis"
	"github.com/aura-streams/backend/pkg/response"
	"github.com/aura-streams/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	be, err := newBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("storage backend", zap.Error(err), zap.String("backend", cfg.Ledger.StorageBackend))
	}
	defer be.close()
	logger.Info("storage backend ready", zap.String("backend", cfg.Ledger.StorageBackend))

	gate := access.NewGate(be.directory, logger)
	if err := gate.Bootstrap(ctx, cfg.Ledger.BootstrapAdminID); err != nil {
		logger.Fatal("bootstrap", zap.Error(err))
	}

	// Event fan-out: log always; Redis pub/sub and the receipt queue when Redis
	// is configured, otherwise straight into the local websocket hub.
	emitters := events.Multi{events.NewLogEmitter(logger)}
	var hub *realtime.Hub
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		pubsub := events.NewRedisPubSub(rdb.Client, logger)
		hub = realtime.NewHub(logger, pubsub)
		emitters = append(emitters, pubsub, events.NewQueueEmitter(queue.NewQueue(rdb.Client, logger)))
	} else {
		hub = realtime.NewHub(logger, nil)
		emitters = append(emitters, hub)
	}

	var receipts lifecycle.Receipts
	if cfg.AWS.Region != "" && cfg.AWS.ReceiptsBucket != "" {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ReceiptsBucket:       cfg.AWS.ReceiptsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			receipts = s3Client
		}
	}

	registry := streams.NewRegistry(be.streams, logger)
	manager, err := lifecycle.NewManager(lifecycle.Deps{
		Registry: registry,
		Gate:     gate,
		Ledger:   be.book,
		Tx:       be.tx,
		Emitter:  emitters,
		Logger:   logger,
	})
	if err != nil {
		logger.Fatal("lifecycle manager", zap.Error(err))
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authHandler := auth.NewHandler(be.users, jwtService, logger)
	streamHandler := lifecycle.NewHandler(manager, receipts, logger)
	accessHandler := access.NewHandler(gate)
	accountHandler := custody.NewHandler(be.book, cfg.Ledger.AssetSymbol, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.AllowedOrigins()))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Public stream reads
	router.GET("/streams/:id", streamHandler.Get)
	router.GET("/streams/:id/claimable", streamHandler.Claimable)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Streams
		api.POST("/streams", middleware.RequireCapability(gate, access.Creator), streamHandler.Create)
		api.GET("/streams", streamHandler.List)
		api.POST("/streams/:id/pause", streamHandler.Pause)
		api.POST("/streams/:id/resume", streamHandler.Resume)
		api.POST("/streams/:id/withdraw", streamHandler.Withdraw)
		api.POST("/streams/:id/milestone", streamHandler.ReleaseMilestone)
		api.POST("/streams/:id/cancel", streamHandler.Cancel)
		api.GET("/streams/:id/receipts/:eventId/download-url", streamHandler.ReceiptURL)

		// Capabilities (the gate checks the caller is an administrator)
		api.GET("/capabilities/:principal", accessHandler.List)
		api.POST("/capabilities/grant", accessHandler.Grant)
		api.POST("/capabilities/revoke", accessHandler.Revoke)

		// Custody accounts
		api.GET("/accounts/me", accountHandler.Me)
		api.POST("/accounts/approve", accountHandler.Approve)
		api.POST("/accounts/:principal/credit", middleware.RequireCapability(gate, access.Administrator), accountHandler.Credit)
	}

	// WebSocket (token in query; no Authorization header required)
	validate := func(token string) (uuid.UUID, error) {
		claims, err := jwtService.Validate(token)
		if err != nil {
			return uuid.Nil, err
		}
		return claims.PrincipalID, nil
	}
	lookup := func(ctx context.Context, id uint64) error {
		_, err := registry.Get(ctx, id)
		return err
	}
	router.GET("/ws", realtime.ServeWs(hub, logger, validate, lookup))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
