package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	mqcontracts "obraflow/contracts/mq"
	"obraflow/pkg/auth"
	"obraflow/pkg/db"
	"obraflow/pkg/logger"
	"obraflow/pkg/mq"
	"obraflow/pkg/otel"
	"obraflow/pkg/outbox"
	"obraflow/pkg/redis"
	"obraflow/pkg/util"
	"obraflow/schedule-service/internal/config"
	"obraflow/schedule-service/internal/handler"
	"obraflow/schedule-service/internal/httpserver"
	"obraflow/schedule-service/internal/mqhandler"
	"obraflow/schedule-service/internal/repository"
	"obraflow/schedule-service/internal/service"
)

const (
	serviceName = "schedule-service"
	queueName   = "schedule.recalculate.requested.q"
)

func main() {
	log := logger.NewLogger(serviceName)
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load config", zap.Error(err))
	}

	log.Info("Starting schedule-service...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.Duration("lock_ttl", cfg.Schedule.LockTTL),
	)

	shutdownOtel, err := otel.Init(otel.Config{
		ServiceName:    serviceName,
		ServiceVersion: "1.0.0",
		Endpoint:       cfg.OTel.Endpoint,
		Enabled:        cfg.OTel.Enabled,
	}, log)
	if err != nil {
		log.Fatal("Failed to init OpenTelemetry", zap.Error(err))
	}
	defer shutdownOtel()

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	dbConn, err := db.NewConnection(rootCtx, cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	// Redis
	rdb, err := redis.NewRedisClient(rootCtx, cfg.Redis)
	if err != nil {
		log.Fatal("Failed to init Redis", zap.Error(err))
	}
	defer rdb.Close()

	// MQ Publisher（outbox 与 DLQ 共用）
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	outboxRepo := outbox.NewRepository(dbConn)
	scheduleRepo := repository.NewScheduleRepository(dbConn, outboxRepo, log)
	locker := redis.NewLocker(rdb, "schedule-lock:", cfg.Schedule.LockTTL)
	recalcService := service.NewRecalcService(scheduleRepo, locker, cfg.Schedule.DefaultCalendar, log)

	// Outbox Dispatcher
	dispatcher := outbox.NewDispatcher(outboxRepo, publisher, log)
	go dispatcher.Start(rootCtx)

	// MQ Consumer for schedule.recalculate.requested
	consumer, err := mq.NewConsumer(cfg.MQ.URL, queueName, mqcontracts.RoutingKeyRecalculateRequested, log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()

	deduper := util.NewDeduper(rdb, cfg.Schedule.DedupTTL, log)
	requestedHandler := mqhandler.NewRecalculateRequestedHandler(recalcService, deduper, log)
	consumer.SetHandler(requestedHandler.Handle)
	consumer.SetErrorClassifier(mqhandler.ClassifyError)
	if err := consumer.EnableRetry(util.NewRetryCounter(rdb, time.Hour), cfg.Consumer.MaxRetries, publisher); err != nil {
		log.Fatal("Failed to enable consumer retries", zap.Error(err))
	}

	go func() {
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("Recalculate consumer failed", zap.Error(err))
		}
	}()

	// HTTP Server
	router := httpserver.NewRouter(httpserver.RouterDeps{
		Handler:   handler.NewScheduleHandler(recalcService, log),
		Logger:    log,
		DB:        dbConn,
		MQ:        []httpserver.Connected{consumer, publisher},
		JWTSecret: cfg.JWT.Secret,
		APIKeys:   auth.KeyRing(cfg.APIKeys),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	log.Info("schedule-service is fully initialized and running",
		zap.String("http_port", cfg.Server.Port),
		zap.String("mq_queue", queueName),
	)

	// 优雅退出处理
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down schedule-service gracefully...")

	consumer.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}

	cancel()
	log.Info("schedule-service shutdown complete")
}
