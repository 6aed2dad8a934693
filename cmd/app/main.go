// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"billing-lifecycle/internal/config"
	"billing-lifecycle/internal/domain/ports/adapter"
	"billing-lifecycle/internal/infra/api"
	apiv1 "billing-lifecycle/internal/infra/api/apiv1"
	"billing-lifecycle/internal/infra/blob"
	"billing-lifecycle/internal/infra/identity"
	pg "billing-lifecycle/internal/infra/db/postgres"
	"billing-lifecycle/internal/infra/logging"
	"billing-lifecycle/internal/infra/metrics"
	"billing-lifecycle/internal/infra/notify"
	red "billing-lifecycle/internal/infra/redis"
	"billing-lifecycle/internal/infra/sched"
	"billing-lifecycle/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	// ---- Redis (optional; pass lock only) ----
	var locker red.Locker
	if cfg.Redis.URL != "" {
		redisClient, err := red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer redisClient.Close()
		locker = red.NewLocker(redisClient)
	} else {
		logger.Warn().Msg("redis.url not set; evaluation passes run without the cross-process lock")
	}

	// ---- Evidence storage ----
	var evidence adapter.EvidenceStore
	if cfg.Blob.Bucket != "" {
		evidence, err = blob.NewS3Store(ctx, &cfg.Blob)
		if err != nil {
			log.Fatalf("blob store: %v", err)
		}
	} else {
		logger.Warn().Msg("blob.bucket not set; storing evidence on local disk")
		evidence, err = blob.NewDirStore("data/evidence")
		if err != nil {
			log.Fatalf("blob store: %v", err)
		}
	}

	// ---- Repositories ----
	serviceRepo := pg.NewServiceRepo(pool)
	requestRepo := pg.NewPaymentRequestRepo(pool)
	channelRepo := pg.NewChannelRepo(pool)
	tm := pg.NewTxManager(pool)

	// ---- Use cases ----
	sink := notify.NewLogSink(logger)
	router := usecase.NewChannelRouter(channelRepo, logger)
	renewalUC, err := usecase.NewRenewalUseCase(serviceRepo, requestRepo, router, tm, sink, usecase.RenewalConfig{
		ReminderDays:    cfg.Billing.ReminderDays,
		GraceDays:       cfg.Billing.GraceDays,
		CustomCycleDays: cfg.Billing.CustomCycleDays,
	}, logger)
	if err != nil {
		log.Fatalf("renewal usecase: %v", err)
	}
	requestUC := usecase.NewRequestUseCase(requestRepo, router, sink, logger)
	proofUC := usecase.NewProofUseCase(requestRepo, router, evidence, sink, logger)

	// ---- Renewal worker ----
	bus := sched.NewTriggerBus()
	worker := sched.NewRenewalWorker(cfg.Billing.EvalInterval, renewalUC, bus, locker, logger)
	go func() { _ = worker.Run(ctx) }()

	// ---- HTTP ----
	r := chi.NewRouter()
	srv := apiv1.NewServer(renewalUC, requestUC, proofUC, router, identity.NewContextProvider(), bus, logger)
	apiv1.RegisterAPIV1(r, srv)
	r.Handle("/metrics", promhttp.Handler())

	handler := api.Chain(r,
		api.Recover(logger),
		api.TraceID(),
		api.Actor(),
		api.RequestLog(logger),
		api.Timeout(60*time.Second),
	)
	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Admin.Port), Handler: handler}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()
	_ = server.Shutdown(context.Background())
}
