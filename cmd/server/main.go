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
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/anakin-skynnet/payment-analysis-sub000/internal/api"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/audit"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/config"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/enrichment"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/outcome"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/policy"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/scoring"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/similarity"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/snapshot"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/store"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/streaming"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/telemetry"
	"github.com/anakin-skynnet/payment-analysis-sub000/internal/webhook"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	logger := log.With().Str("component", "server").Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	telemetry.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create store")
	}
	defer func() { _ = st.Close() }()

	cache := snapshot.NewCache(st, cfg.RefreshInterval)
	if err := cache.Refresh(ctx); err != nil {
		// Start anyway on default parameters; the refresh loop keeps trying.
		logger.Warn().Err(err).Msg("initial snapshot load failed, starting with defaults")
	}
	snap := cache.Current()
	logger.Info().
		Int("rules", len(snap.Rules)).
		Int("routes", len(snap.Routes)).
		Str("etag", snap.ETag).
		Msg("snapshot loaded")
	go cache.Run(ctx)

	enricher := enrichment.New(
		scoring.NewHTTPClient(scoring.ClientOptions{BaseURL: cfg.ScoringURL, RequestTimeout: cfg.ScoringTimeout}),
		similarity.NewHTTPClient(similarity.ClientOptions{BaseURL: cfg.SimilarityURL, RequestTimeout: cfg.SimilarityTimeout}),
		streaming.NewStoreReader(st, cfg.StreamingTimeout),
		enrichment.Options{
			ScoringTimeout:    cfg.ScoringTimeout,
			SimilarityTimeout: cfg.SimilarityTimeout,
		},
	)

	recorder := outcome.NewRecorder(st)
	recorder.Start()
	defer func() { _ = recorder.Close() }()

	auditSvc := audit.NewService(audit.NewStoreSink(st), nil, 256)
	defer func() { _ = auditSvc.Close() }()

	var hooks *webhook.Dispatcher
	if cfg.WebhookURL != "" {
		hooks = webhook.NewDispatcher([]webhook.Endpoint{
			{URL: cfg.WebhookURL, Secret: cfg.WebhookSecret},
		})
		hooks.Start()
		defer func() { _ = hooks.Close() }()
		logger.Info().Str("url", cfg.WebhookURL).Msg("rule change webhook enabled")
	}

	engine := policy.NewEngine(cache, enricher, cfg.ExperimentSalt)
	srvAPI := api.NewServer(engine, cache, st, recorder, auditSvc, hooks, cfg.AdminAPIKey, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Msg("listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("metrics listening")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	cancel()
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShut()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	logger.Info().Msg("stopped")
}
