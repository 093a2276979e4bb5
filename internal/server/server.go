// Package server provides the HTTP server and routing for the engine.
// It exposes the aggregated position list, the computed metric bundles and
// the projected views as plain JSON, plus a websocket stream that pushes
// fresh metrics after every completed sync cycle.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/asantos/patrimonio/internal/clients/tracker"
	"github.com/asantos/patrimonio/internal/modules/aggregation"
	"github.com/asantos/patrimonio/internal/modules/analytics"
	"github.com/asantos/patrimonio/internal/syncstate"
)

// Config holds server configuration
type Config struct {
	Log         zerolog.Logger
	Port        int
	DevMode     bool
	TrendWindow int

	Cache      *syncstate.Cache
	Client     *tracker.Client
	Aggregator *aggregation.Service
	Analytics  *analytics.Service
	History    *analytics.ValueHistory
	Hub        *Hub
}

// Server represents the HTTP server
type Server struct {
	router      *chi.Mux
	server      *http.Server
	log         zerolog.Logger
	startupTime time.Time
	trendWindow int

	cache      *syncstate.Cache
	client     *tracker.Client
	aggregator *aggregation.Service
	analytics  *analytics.Service
	history    *analytics.ValueHistory
	hub        *Hub
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:      chi.NewRouter(),
		log:         cfg.Log.With().Str("component", "server").Logger(),
		startupTime: time.Now(),
		trendWindow: cfg.TrendWindow,
		cache:       cfg.Cache,
		client:      cfg.Client,
		aggregator:  cfg.Aggregator,
		analytics:   cfg.Analytics,
		history:     cfg.History,
		hub:         cfg.Hub,
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	allowedOrigins := []string{"http://localhost:*", "http://127.0.0.1:*"}
	if devMode {
		allowedOrigins = []string{"*"}
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/positions", s.handleListPositions)
		r.Get("/positions/projected", s.handleProjectedPositions)
		r.Delete("/positions/{portfolioID}/{assetID}", s.handleDeletePosition)

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/summary", s.handleSummary)
			r.Get("/metrics", s.handleMetrics)
			r.Get("/allocation", s.handleTypeAllocation)
			r.Get("/history", s.handleHistory)
		})

		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/", s.handleListPortfolios)
			r.Post("/", s.handleCreatePortfolio)
			r.Put("/{id}", s.handleUpdatePortfolio)
			r.Delete("/{id}", s.handleDeletePortfolio)
		})

		r.Get("/transactions", s.handleListTransactions)
		r.Get("/dividends", s.handleListDividends)

		r.Post("/assets/refresh-prices", s.handleRefreshPrices)

		r.Get("/stream", s.handleStream)

		r.Route("/system", func(r chi.Router) {
			r.Get("/health", s.handleSystemHealth)
			r.Get("/cache", s.handleCacheInspect)
		})
	})
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server starting")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("HTTP server shutting down")
	return s.server.Shutdown(ctx)
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler {
	return s.router
}
