// Package main runs the background worker: the daily report schedule and
// report jobs requested from the admin API.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "time/tzdata"

	"github.com/campus-attendance/backend/config"
	"github.com/campus-attendance/backend/internal/auth"
	"github.com/campus-attendance/backend/internal/checkin"
	"github.com/campus-attendance/backend/internal/deliveries"
	"github.com/campus-attendance/backend/internal/metrics"
	"github.com/campus-attendance/backend/internal/notify"
	"github.com/campus-attendance/backend/internal/report"
	"github.com/campus-attendance/backend/internal/scheduler"
	"github.com/campus-attendance/backend/internal/worker"
	"github.com/campus-attendance/backend/pkg/database"
	"github.com/campus-attendance/backend/pkg/queue"
	"github.com/campus-attendance/backend/pkg/redis"
	"github.com/campus-attendance/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	loc, err := cfg.Attendance.Location()
	if err != nil {
		logger.Fatal("timezone", zap.Error(err))
	}
	if len(cfg.Email.Recipients) == 0 {
		logger.Warn("ADMIN_EMAILS is empty; every report will be recorded as failed")
	}

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

	rdb, err := redis.NewClient(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	m := metrics.New()
	deps := report.TriggerDeps{
		Participants: auth.NewRepository(pool),
		CheckIns:     checkin.NewRepository(pool),
		Builder:      report.NewDocumentBuilder(),
		Notifier: notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUser,
			Password: cfg.Email.SMTPPass,
			From:     cfg.Email.FromAddress,
		}, logger),
		Deliveries: deliveries.NewRepository(pool),
		Metrics:    m,
	}
	if cfg.AWS.ArchiveEnabled() {
		s3Client, err := storage.NewS3(ctx, storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			Endpoint:             cfg.AWS.Endpoint,
			ReportsBucket:        cfg.AWS.ReportsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}, logger)
		if err != nil {
			logger.Warn("report archiving disabled", zap.Error(err))
		} else {
			deps.Archive = s3Client
		}
	}
	trigger := report.NewTrigger(deps, cfg.Email.Recipients, loc, logger)

	sched, err := scheduler.New(scheduler.Config{
		Spec:     cfg.Report.Cron,
		Location: loc,
		Timeout:  cfg.Report.Timeout(),
	}, trigger, scheduler.NewRedisGuard(rdb.Universal()), logger)
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	sched.Start()

	jobQueue := queue.NewQueue(rdb.Universal(), logger)
	processor := worker.NewReportProcessor(trigger, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		processor.Run(workerCtx)
	}()
	logger.Info("worker started", zap.String("report_cron", cfg.Report.Cron), zap.String("timezone", loc.String()))

	var metricsSrv *http.Server
	if cfg.Server.WorkerMetricsPort != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: ":" + cfg.Server.WorkerMetricsPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), cfg.Report.Timeout())
	defer stopCancel()
	select {
	case <-sched.Stop().Done():
	case <-stopCtx.Done():
		logger.Warn("report still running at shutdown")
	}
	<-done
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(stopCtx)
	}
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
