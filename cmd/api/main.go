package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/wealthwisdom/internal/aggregate"
	"github.com/dvloznov/wealthwisdom/internal/api/handlers"
	"github.com/dvloznov/wealthwisdom/internal/api/middleware"
	"github.com/dvloznov/wealthwisdom/internal/assistant"
	"github.com/dvloznov/wealthwisdom/internal/config"
	"github.com/dvloznov/wealthwisdom/internal/domain"
	"github.com/dvloznov/wealthwisdom/internal/export"
	"github.com/dvloznov/wealthwisdom/internal/gateway"
	ledgermem "github.com/dvloznov/wealthwisdom/internal/ledger/inmemory"
	"github.com/dvloznov/wealthwisdom/internal/live"
	"github.com/dvloznov/wealthwisdom/internal/logger"
	"github.com/dvloznov/wealthwisdom/internal/receipts"
	"github.com/dvloznov/wealthwisdom/internal/requests"
	requestsmem "github.com/dvloznov/wealthwisdom/internal/requests/inmemory"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

func main() {
	var (
		port    = flag.String("port", "", "HTTP server port (overrides PORT)")
		envFile = flag.String("env-file", ".env", "Optional env file to load before the environment")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		bootLog := logger.New("")
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *port != "" {
		cfg.Port = *port
	}

	log := logger.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	// Amounts go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx, log)

	var storeOpts []ledgermem.Option
	if cfg.SeedSample {
		storeOpts = append(storeOpts, ledgermem.WithSeed(domain.SampleTransactions()))
	}
	store := ledgermem.NewStore(storeOpts...)

	if cfg.GeminiKey() == "" && cfg.GeminiBackend == config.BackendGemini {
		log.Warn().Msg("No Gemini API key configured - AI features will fail with a network error")
	}
	gw := gateway.NewFromConfig(ctx, cfg.Gateway(), log)
	tracker := requests.NewTracker(requestsmem.NewStore(cfg.RequestHistory), log)

	var svc *assistant.Service
	hub := live.NewHub(func() aggregate.Dashboard { return svc.Dashboard() }, log)

	svcOpts := []assistant.Option{
		assistant.WithNotifier(hub),
		assistant.WithDashboardLimits(cfg.TrendWindow, cfg.RecentLimit),
	}
	if cfg.ReceiptBucket != "" {
		archive, err := receipts.NewGCSArchive(ctx, cfg.ReceiptBucket, cfg.ReceiptPrefix, cfg.CredentialsFile, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create receipt archive")
		}
		defer archive.Close()
		svcOpts = append(svcOpts, assistant.WithArchive(archive))
	} else {
		log.Warn().Msg("No receipt bucket configured - receipt images will not be archived")
	}
	svc = assistant.New(store, gw, tracker, log, svcOpts...)

	var sinks []export.Sink
	if cfg.BigQueryEnabled() {
		bq, err := export.NewBigQuerySink(ctx, cfg.BigQueryProjectID(), cfg.BigQueryDataset, cfg.BigQueryTable, cfg.CredentialsFile, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery sink")
		}
		defer bq.Close()
		sinks = append(sinks, bq)
	}
	if cfg.NotionEnabled() {
		sinks = append(sinks, export.NewNotionSink(export.NewNotionClient(cfg.NotionToken), cfg.NotionDatabaseID, log))
	}
	registry := export.NewRegistry(sinks...)

	mux := handlers.NewRouter(handlers.RouterConfig{
		Service:     svc,
		Sinks:       registry,
		Live:        hub,
		TrendWindow: cfg.TrendWindow,
		RecentLimit: cfg.RecentLimit,
		Log:         log,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      middleware.Chain(mux, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // AI calls can be slow
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(gctx)
	})

	g.Go(func() error {
		log.Info().
			Str("port", cfg.Port).
			Strs("sinks", registry.Names()).
			Bool("seeded", cfg.SeedSample).
			Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Server stopped with error")
		os.Exit(1)
	}

	log.Info().Msg("Server exited")
}
