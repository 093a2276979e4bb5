// Package main is the entry point for the Patrimonio analytics engine.
// The engine sits between the investment-tracker REST backend and the
// presentation layer: it keeps a synchronized local view of the backend's
// collections, aggregates positions across portfolios, derives risk and
// return metrics, and serves the results over HTTP and a websocket stream.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asantos/patrimonio/internal/clients/tracker"
	"github.com/asantos/patrimonio/internal/config"
	"github.com/asantos/patrimonio/internal/domain"
	"github.com/asantos/patrimonio/internal/modules/aggregation"
	"github.com/asantos/patrimonio/internal/modules/analytics"
	"github.com/asantos/patrimonio/internal/scheduler"
	"github.com/asantos/patrimonio/internal/server"
	"github.com/asantos/patrimonio/internal/syncstate"
	"github.com/asantos/patrimonio/pkg/logger"
)

// valueHistorySamples bounds the in-memory portfolio value series.
const valueHistorySamples = 1440

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().
		Str("backend", cfg.BackendURL).
		Dur("poll_interval", cfg.PollInterval).
		Msg("Starting Patrimonio engine")

	// Warm-start store: last-known collection values survive restarts.
	store, err := syncstate.OpenStore(cfg.CacheDBPath())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open cache store")
	}

	cache := syncstate.New(cfg.StaleAfter, store, log)
	client := tracker.NewClient(cfg.BackendURL, log)

	cache.Register(aggregation.PortfoliosKey, func(ctx context.Context) (interface{}, error) {
		return client.ListPortfolios(ctx)
	}, aggregation.DecodePortfolios)
	cache.Register(aggregation.DividendsKey, func(ctx context.Context) (interface{}, error) {
		return client.ListDividends(ctx, tracker.Filter{})
	}, aggregation.DecodeDividends)

	aggregator := aggregation.NewService(cache, client, log)
	analyticsService := analytics.NewService(analytics.BenchmarkConfig{
		MarketReturn:     cfg.MarketReturn,
		MarketVolatility: cfg.MarketVolatility,
		RiskFreeRate:     cfg.RiskFreeRate,
	}, log)
	history := analytics.NewValueHistory(valueHistorySamples)
	hub := server.NewHub(log)

	// After each sync cycle: sample the aggregate portfolio value for the
	// trend series and push fresh metrics to stream subscribers.
	onCycle := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		value, err := cache.Get(ctx, aggregation.PortfoliosKey)
		if err != nil && value == nil {
			return
		}
		portfolios, _ := value.([]domain.Portfolio)
		positions := aggregator.Aggregate(ctx, portfolios)

		var dividends []domain.Dividend
		if dv, err := cache.Get(ctx, aggregation.DividendsKey); err == nil || dv != nil {
			dividends, _ = dv.([]domain.Dividend)
		}

		summary := analyticsService.Summary(positions, dividends, analytics.AllPortfolios)
		history.Record(summary.CurrentValue)

		hub.Broadcast(map[string]interface{}{
			"summary": summary,
			"metrics": analyticsService.Metrics(positions, analytics.AllPortfolios),
		})
	}

	srv := server.New(server.Config{
		Log:         log,
		Port:        cfg.Port,
		DevMode:     cfg.DevMode,
		TrendWindow: cfg.TrendWindow,
		Cache:       cache,
		Client:      client,
		Aggregator:  aggregator,
		Analytics:   analyticsService,
		History:     history,
		Hub:         hub,
	})

	jobs := scheduler.New(log)
	pollJob := syncstate.NewPollJob(cache, onCycle, log)
	if err := jobs.AddJob(fmt.Sprintf("@every %s", cfg.PollInterval), pollJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule sync job")
	}
	if err := jobs.AddJob("0 0 3 * * *", syncstate.NewCleanupJob(store, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule cleanup job")
	}
	jobs.Start()

	// Prime the cache before serving.
	if err := jobs.RunNow(pollJob); err != nil {
		log.Warn().Err(err).Msg("Initial sync failed, serving warm-start data")
	}

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
	jobs.Stop()
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close cache store")
	}
	log.Info().Msg("Stopped")
}
