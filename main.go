package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"eventsapi/config"
	"eventsapi/db"
	"eventsapi/middlewares"
	"eventsapi/models"
	"eventsapi/routes"
	"eventsapi/storage"
	"eventsapi/utils"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Postgres (credential store)
	sqldb, err := db.Open(cfg.PostgresDSN)
	if err != nil {
		logger.Error("postgres connect failed", "error", err)
		os.Exit(1)
	}
	defer sqldb.Close()
	if err := db.Migrate(sqldb); err != nil {
		logger.Error("postgres migrate failed", "error", err)
		os.Exit(1)
	}

	// Mongo (event store)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	mg, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Error("mongo connect failed", "error", err)
		os.Exit(1)
	}
	if err := mg.Ping(ctx, nil); err != nil {
		logger.Error("mongo ping failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = mg.Disconnect(context.Background()) }()
	eventsCol := mg.Database(cfg.MongoDatabase).Collection("events")

	// Redis (response cache + quotas)
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	inv := utils.NewCacheInvalidator(rdb)

	// Upload storage
	uploads, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		logger.Error("upload dir init failed", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	server := gin.New()
	server.Use(gin.Recovery())
	server.Use(middlewares.RequestID())
	server.Use(middlewares.RequestLogger(logger))
	server.Use(middlewares.CORS(cfg.AllowedOrigins))
	server.Use(middlewares.ResponseCache(rdb, 30*time.Second))
	server.Static("/uploads", uploads.Dir())

	routes.RegisterRoutes(server,
		models.NewSQLUserRepository(sqldb),
		models.NewMongoEventRepository(eventsCol),
		uploads,
		rdb, inv)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      server,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
