package main

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/lalith-99/roomcast/internal/api"
	"github.com/lalith-99/roomcast/internal/authz"
	"github.com/lalith-99/roomcast/internal/broker"
	"github.com/lalith-99/roomcast/internal/cache"
	"github.com/lalith-99/roomcast/internal/config"
	"github.com/lalith-99/roomcast/internal/db"
	"github.com/lalith-99/roomcast/internal/middleware"
	"github.com/lalith-99/roomcast/internal/observ"
	"github.com/lalith-99/roomcast/internal/repository/postgres"
	"github.com/lalith-99/roomcast/internal/storage"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Config and logger
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// ---------------------------------------------------------------
	// 2. Postgres — startup has no deadline, so Background() is right.
	// ---------------------------------------------------------------
	database, err := db.New(context.Background(), cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	// ---------------------------------------------------------------
	// 3. Redis snapshot cache
	// ---------------------------------------------------------------
	snapshots, err := cache.NewSnapshots(cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("connect to redis: %w", err)
	}
	defer snapshots.Close()

	// ---------------------------------------------------------------
	// 4. Stores, image storage, broker
	// ---------------------------------------------------------------
	pool := database.Pool()
	userRepo := postgres.NewUserStore(pool)
	roomRepo := postgres.NewRoomStore(pool)
	messageRepo := postgres.NewMessageStore(pool)

	images, err := storage.NewDiskStore(cfg.UploadDir, cfg.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("init image store: %w", err)
	}

	roomBroker := broker.New(logger)
	policy := authz.SenderOnly{}

	// ---------------------------------------------------------------
	// 5. Handlers
	// ---------------------------------------------------------------
	authHandler := api.NewAuthHandler(userRepo, cfg.JWTSecret, logger)
	roomHandler := api.NewRoomHandler(roomRepo, logger)
	messageHandler := api.NewMessageHandler(messageRepo, roomRepo, roomBroker, snapshots, images, policy, logger)
	liveHandler := api.NewLiveHandler(roomBroker, roomRepo, logger)

	// ---------------------------------------------------------------
	// 6. Routes. Reads (snapshot, room list, live channel) are open;
	//    every mutation sits behind the bearer middleware.
	// ---------------------------------------------------------------
	srv := gin.New()
	srv.Use(gin.Logger(), gin.Recovery())

	srv.GET("/api/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	srv.Static("/uploads", cfg.UploadDir)

	v1 := srv.Group("/api/v1")
	{
		v1.POST("/signup", authHandler.Signup)
		v1.POST("/login", authHandler.Login)

		v1.GET("/chat_rooms", roomHandler.List)
		v1.GET("/chat_rooms/:roomId", roomHandler.GetByID)
		v1.GET("/chat_rooms/:roomId/messages", messageHandler.List)
		v1.GET("/chat_rooms/:roomId/live", middleware.OptionalAuth(cfg.JWTSecret), liveHandler.Serve)
	}

	authed := srv.Group("/api/v1", middleware.RequireAuth(cfg.JWTSecret))
	{
		authed.POST("/chat_rooms", roomHandler.Create)
		authed.POST("/chat_rooms/:roomId/messages", messageHandler.Create)
		authed.PATCH("/chat_rooms/:roomId/messages/:id", messageHandler.Update)
		authed.DELETE("/chat_rooms/:roomId/messages/:id", messageHandler.Delete)
	}

	logger.Info("starting roomcast",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
	)

	return srv.Run(":" + cfg.Port)
}
