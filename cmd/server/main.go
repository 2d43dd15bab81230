// Package main runs the attendance HTTP server with the live feed and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "time/tzdata"

	"github.com/campus-attendance/backend/config"
	"github.com/campus-attendance/backend/internal/analytics"
	"github.com/campus-attendance/backend/internal/auth"
	"github.com/campus-attendance/backend/internal/checkin"
	"github.com/campus-attendance/backend/internal/codes"
	"github.com/campus-attendance/backend/internal/deliveries"
	"github.com/campus-attendance/backend/internal/metrics"
	"github.com/campus-attendance/backend/internal/middleware"
	"github.com/campus-attendance/backend/internal/models"
	"github.com/campus-attendance/backend/internal/realtime"
	"github.com/campus-attendance/backend/pkg/database"
	"github.com/campus-attendance/backend/pkg/queue"
	"github.com/campus-attendance/backend/pkg/redis"
	"github.com/campus-attendance/backend/pkg/response"
	"github.com/campus-attendance/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	window, err := cfg.Attendance.Window()
	if err != nil {
		logger.Fatal("attendance window", zap.Error(err))
	}
	loc := window.Location

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolConfig{
		MaxConns:        int32(cfg.Database.MaxConns),
		MinConns:        int32(cfg.Database.MinConns),
		MaxConnLifetime: cfg.Database.MaxConnLifetime(),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool, logger); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var signer deliveries.URLSigner
	if cfg.AWS.ArchiveEnabled() {
		s3Client, err := storage.NewS3(ctx, s3Config(cfg.AWS), logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		} else {
			signer = s3Client
		}
	}

	m := metrics.New()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)

	// Accounts
	authRepo := auth.NewRepository(pool)
	if err := auth.EnsureAdmin(ctx, authRepo, cfg.Admin.Username, cfg.Admin.Password, logger); err != nil {
		logger.Fatal("seed admin", zap.Error(err))
	}
	authHandler := auth.NewHandler(authRepo, jwtService, logger)

	// Live feed, fanned out across instances through Redis
	feed := realtime.NewRedisPubSub(rdb.Universal(), logger)
	hub := realtime.NewHub(logger, feed, feed)
	hubCtx, hubCancel := context.WithCancel(context.Background())
	defer hubCancel()
	go func() {
		if err := hub.Run(hubCtx); err != nil {
			logger.Error("feed subscription stopped", zap.Error(err))
		}
	}()

	// Admission tokens and check-ins
	registry := codes.NewRegistry(codes.NewRepository(pool), loc, m, logger)
	codesHandler := codes.NewHandler(registry, logger)
	checkinRepo := checkin.NewRepository(pool)
	checkinSvc := checkin.NewService(window, registry, checkinRepo, hub, m, logger)
	checkinHandler := checkin.NewHandler(checkinSvc, logger)

	// Reports and deliveries
	jobQueue := queue.NewQueue(rdb.Universal(), logger)
	deliveriesHandler := deliveries.NewHandler(deliveries.NewRepository(pool), jobQueue, signer, loc, logger)

	analyticsHandler := analytics.NewHandler(authRepo, checkinRepo, window, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.Metrics(m))

	router.GET("/health", func(c *gin.Context) {
		hctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		dbOK := pool.Ping(hctx) == nil
		redisOK := rdb.Healthy(hctx)
		if !dbOK || !redisOK {
			response.Reject(c, http.StatusServiceUnavailable, "unhealthy", "dependency unavailable", gin.H{"database": dbOK, "redis": redisOK})
			return
		}
		response.OK(c, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/auth/login", authHandler.Login)

	// Faculty (JWT required)
	attendance := router.Group("/attendance")
	attendance.Use(middleware.JWT(jwtService, false))
	{
		attendance.POST("/scan", middleware.RequireRole(models.RoleFaculty), checkinHandler.Scan)
		attendance.GET("/status", checkinHandler.Status)
	}

	// Admin
	admin := router.Group("/admin")
	admin.Use(middleware.JWT(jwtService, false), middleware.RequireRole(models.RoleAdmin))
	{
		admin.GET("/dashboard", analyticsHandler.Dashboard)

		admin.POST("/faculty", authHandler.RegisterFaculty)
		admin.GET("/faculty", authHandler.ListFaculty)
		admin.PATCH("/faculty/:id", authHandler.UpdateFaculty)

		admin.POST("/tokens/generate", codesHandler.Generate)
		admin.GET("/tokens/today", codesHandler.Today)
		admin.GET("/tokens", codesHandler.ListMonth)
		admin.GET("/tokens/:date/qr.png", codesHandler.DownloadQR)

		admin.GET("/attendance", checkinHandler.ListByDate)

		admin.GET("/deliveries", deliveriesHandler.List)
		admin.POST("/reports/send", deliveriesHandler.Send)
		admin.GET("/reports/:date/archive-url", deliveriesHandler.ArchiveURL)
	}

	// WebSocket (token in query; browsers cannot set headers on upgrade)
	router.GET("/ws/attendance",
		middleware.JWT(jwtService, true),
		middleware.RequireRole(models.RoleAdmin),
		realtime.ServeWs(hub, logger),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port), zap.String("timezone", loc.String()))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	hubCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func s3Config(c config.AWSConfig) storage.S3Config {
	return storage.S3Config{
		Region:               c.Region,
		AccessKeyID:          c.AccessKeyID,
		SecretAccessKey:      c.SecretAccessKey,
		Endpoint:             c.Endpoint,
		ReportsBucket:        c.ReportsBucket,
		PresignExpireMinutes: c.PresignExpireMinutes,
	}
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
