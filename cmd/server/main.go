package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vogiaan1904/ticketbottle-registration/config"
	"github.com/vogiaan1904/ticketbottle-registration/internal/cache"
	httpDelivery "github.com/vogiaan1904/ticketbottle-registration/internal/delivery/http"
	"github.com/vogiaan1904/ticketbottle-registration/internal/delivery/kafka/dispatcher"
	"github.com/vogiaan1904/ticketbottle-registration/internal/delivery/kafka/producer"
	infraPostgres "github.com/vogiaan1904/ticketbottle-registration/internal/infra/postgres"
	infraRedis "github.com/vogiaan1904/ticketbottle-registration/internal/infra/redis"
	repo "github.com/vogiaan1904/ticketbottle-registration/internal/repository/postgres"
	"github.com/vogiaan1904/ticketbottle-registration/internal/service"
	pkgKafka "github.com/vogiaan1904/ticketbottle-registration/pkg/kafka"
	pkgLog "github.com/vogiaan1904/ticketbottle-registration/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	l := pkgLog.InitializeZapLogger(pkgLog.ZapConfig{
		Level:    cfg.Log.Level,
		Mode:     cfg.Log.Mode,
		Encoding: cfg.Log.Encoding,
	})

	pgPool, err := infraPostgres.Connect(ctx, cfg.Postgres)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Postgres: %v", err)
	}
	defer infraPostgres.Disconnect(pgPool)

	if err := infraPostgres.EnsureSchema(ctx, pgPool); err != nil {
		l.Fatalf(ctx, "Failed to ensure schema: %v", err)
	}

	redisCli, err := infraRedis.Connect(ctx, cfg.Redis)
	if err != nil {
		l.Fatalf(ctx, "Failed to connect to Redis: %v", err)
	}
	defer infraRedis.Disconnect(redisCli)

	eventRepo := repo.NewPgEventRepository(pgPool, l)
	regRepo := repo.NewPgRegistrationRepository(pgPool, l)
	wlRepo := repo.NewPgWaitlistRepository(pgPool, l)

	statsCache := cache.NewRedisStatsCache(redisCli, cfg.Registration.StatsCacheTTL, l)

	// Initialize Kafka producer
	kafkaSyncProd, err := pkgKafka.NewProducer(pkgKafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RetryMax:     cfg.Kafka.ProducerRetryMax,
		RequiredAcks: cfg.Kafka.ProducerRequiredAcks,
	})
	if err != nil {
		l.Fatalf(ctx, "Failed to initialize Kafka producer: %v", err)
	}

	prod := producer.NewProducer(kafkaSyncProd, l)
	disp := dispatcher.NewDispatcher(prod, l)
	defer func() {
		if err := disp.Close(); err != nil {
			l.Errorf(ctx, "Failed to close dispatcher: %v", err)
		}
	}()

	// Initialize services
	waitlist := service.NewWaitlistManager(wlRepo, disp, cfg.Registration.PromotionWindow, l)
	admission := service.NewAdmissionController(regRepo, wlRepo, waitlist, l)
	tracker := service.NewCapacityTracker(eventRepo, regRepo, statsCache, l)
	regSvc := service.NewRegistrationService(eventRepo, regRepo, admission, waitlist, tracker, disp, statsCache, l)

	sweeper := service.NewExpirySweeper(waitlist, cfg.Registration, l)
	if err := sweeper.Start(ctx); err != nil {
		l.Fatalf(ctx, "Failed to start expiry sweeper: %v", err)
	}

	// HTTP server
	handler := httpDelivery.NewHTTPHandler(regSvc, l)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		l.Infof(ctx, "HTTP server is listening on port: %d", cfg.Server.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatalf(ctx, "Failed to serve HTTP: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info(ctx, "Server shutting down...")

	if err := sweeper.Stop(); err != nil {
		l.Errorf(ctx, "Failed to stop expiry sweeper: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Errorf(ctx, "HTTP server shutdown: %v", err)
	}

	cancel()

	l.Info(ctx, "Server exited")
}
