package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/asantos/patrimonio/internal/clients/tracker"
	"github.com/asantos/patrimonio/internal/domain"
	"github.com/asantos/patrimonio/internal/modules/aggregation"
	"github.com/asantos/patrimonio/internal/modules/projection"
)

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode response")
	}
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

func (s *Server) respondError(w http.ResponseWriter, status int, err error, retryable bool) {
	s.respondJSON(w, status, errorResponse{Error: err.Error(), Retryable: retryable})
}

// portfolios returns the cached portfolio collection.
func (s *Server) portfolios(ctx context.Context) ([]domain.Portfolio, error) {
	value, err := s.cache.Get(ctx, aggregation.PortfoliosKey)
	if err != nil && value == nil {
		return nil, err
	}
	portfolios, _ := value.([]domain.Portfolio)
	return portfolios, nil
}

// aggregated returns the cross-portfolio position list.
func (s *Server) aggregated(ctx context.Context) ([]domain.Position, error) {
	portfolios, err := s.portfolios(ctx)
	if err != nil {
		return nil, err
	}
	return s.aggregator.Aggregate(ctx, portfolios), nil
}

// dividends returns the cached dividend collection. A fetch failure with no
// cached fallback degrades to an empty list; dividends only enrich totals.
func (s *Server) dividends(ctx context.Context) []domain.Dividend {
	value, err := s.cache.Get(ctx, aggregation.DividendsKey)
	if err != nil && value == nil {
		s.log.Warn().Err(err).Msg("Dividend fetch failed, proceeding without")
		return nil
	}
	dividends, _ := value.([]domain.Dividend)
	return dividends
}

func scopeParam(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.URL.Query().Get("portfolio_id"), 10, 64)
	return id
}

func (s *Server) handleListPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.aggregated(r.Context())
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	s.respondJSON(w, http.StatusOK, positions)
}

func (s *Server) handleProjectedPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := s.aggregated(r.Context())
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}

	q := r.URL.Query()
	params := projection.ParamsFromQuery(
		q.Get("search"), q.Get("type"), q.Get("sort_by"), q.Get("order"),
	)
	s.respondJSON(w, http.StatusOK, projection.Project(positions, params))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	positions, err := s.aggregated(r.Context())
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	summary := s.analytics.Summary(positions, s.dividends(r.Context()), scopeParam(r))
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	positions, err := s.aggregated(r.Context())
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	s.respondJSON(w, http.StatusOK, s.analytics.Metrics(positions, scopeParam(r)))
}

func (s *Server) handleTypeAllocation(w http.ResponseWriter, r *http.Request) {
	positions, err := s.aggregated(r.Context())
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	s.respondJSON(w, http.StatusOK, s.analytics.TypeAllocation(positions, scopeParam(r)))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.analytics.History(s.history, s.trendWindow))
}

func (s *Server) handleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := s.portfolios(r.Context())
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	s.respondJSON(w, http.StatusOK, portfolios)
}

func (s *Server) handleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var form tracker.PortfolioForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err), false)
		return
	}

	var created *domain.Portfolio
	err := s.cache.Mutate(r.Context(), aggregation.PortfoliosKey,
		func(current interface{}) interface{} {
			portfolios, _ := current.([]domain.Portfolio)
			// Temporary id, replaced by the backend's record on refetch.
			optimistic := domain.Portfolio{
				ID:          time.Now().UnixMilli(),
				Name:        form.Name,
				Description: form.Description,
				Currency:    form.Currency,
				Benchmark:   form.Benchmark,
				CreatedAt:   time.Now(),
			}
			next := make([]domain.Portfolio, 0, len(portfolios)+1)
			next = append(next, portfolios...)
			return append(next, optimistic)
		},
		func(ctx context.Context) error {
			var err error
			created, err = s.client.CreatePortfolio(ctx, form)
			return err
		},
	)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	s.respondJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid portfolio id"), false)
		return
	}
	var form tracker.PortfolioForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err), false)
		return
	}

	var updated *domain.Portfolio
	err = s.cache.Mutate(r.Context(), aggregation.PortfoliosKey,
		func(current interface{}) interface{} {
			portfolios, _ := current.([]domain.Portfolio)
			next := make([]domain.Portfolio, len(portfolios))
			copy(next, portfolios)
			for i := range next {
				if next[i].ID == id {
					next[i].Name = form.Name
					next[i].Description = form.Description
					next[i].Currency = form.Currency
					next[i].Benchmark = form.Benchmark
				}
			}
			return next
		},
		func(ctx context.Context) error {
			var err error
			updated, err = s.client.UpdatePortfolio(ctx, id, form)
			return err
		},
	)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	s.respondJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid portfolio id"), false)
		return
	}

	err = s.cache.Mutate(r.Context(), aggregation.PortfoliosKey,
		func(current interface{}) interface{} {
			portfolios, _ := current.([]domain.Portfolio)
			next := make([]domain.Portfolio, 0, len(portfolios))
			for _, p := range portfolios {
				if p.ID != id {
					next = append(next, p)
				}
			}
			return next
		},
		func(ctx context.Context) error {
			return s.client.DeletePortfolio(ctx, id)
		},
	)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	s.cache.Invalidate(aggregation.PositionsKey(id))
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleDeletePosition(w http.ResponseWriter, r *http.Request) {
	portfolioID, err1 := strconv.ParseInt(chi.URLParam(r, "portfolioID"), 10, 64)
	assetID, err2 := strconv.ParseInt(chi.URLParam(r, "assetID"), 10, 64)
	if err1 != nil || err2 != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Errorf("invalid position identity"), false)
		return
	}

	s.aggregator.EnsureRegistered(portfolioID)
	err := s.cache.Mutate(r.Context(), aggregation.PositionsKey(portfolioID),
		func(current interface{}) interface{} {
			positions, _ := current.([]domain.Position)
			next := make([]domain.Position, 0, len(positions))
			for _, p := range positions {
				if p.AssetID != assetID {
					next = append(next, p)
				}
			}
			return next
		},
		func(ctx context.Context) error {
			return s.client.DeletePosition(ctx, portfolioID, assetID)
		},
	)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	s.respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	if err := s.client.BatchUpdatePrices(r.Context()); err != nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	// Prices changed server-side; every cached collection is now suspect.
	s.cache.InvalidateAll()
	s.respondJSON(w, http.StatusAccepted, map[string]string{"status": "refresh scheduled"})
}

func (s *Server) handleCacheInspect(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.cache.Inspect())
}
