package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/asantos/patrimonio/internal/clients/tracker"
	"github.com/asantos/patrimonio/internal/modules/aggregation"
)

// periodRange translates a report period code into a date range ending now.
// Unknown or empty codes mean no date constraint.
func periodRange(period string) (time.Time, time.Time, bool) {
	end := time.Now()
	switch period {
	case "1M":
		return end.AddDate(0, -1, 0), end, true
	case "3M":
		return end.AddDate(0, -3, 0), end, true
	case "6M":
		return end.AddDate(0, -6, 0), end, true
	case "1A":
		return end.AddDate(-1, 0, 0), end, true
	case "2A":
		return end.AddDate(-2, 0, 0), end, true
	default:
		return time.Time{}, time.Time{}, false
	}
}

func activityFilter(r *http.Request) (tracker.Filter, string) {
	portfolioID := scopeParam(r)
	period := r.URL.Query().Get("period")

	f := tracker.Filter{PortfolioID: portfolioID}
	if start, end, ok := periodRange(period); ok {
		f.StartDate = start
		f.EndDate = end
	}

	// The cache key is the query signature: a changed portfolio or period
	// is a different key, so a slow fetch for the old parameters can never
	// overwrite the new view.
	signature := fmt.Sprintf("p%d:%s", portfolioID, period)
	return f, signature
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	f, signature := activityFilter(r)
	key := aggregation.TransactionsKey + ":" + signature

	s.cache.Register(key, func(ctx context.Context) (interface{}, error) {
		return s.client.ListTransactions(ctx, f)
	}, aggregation.DecodeTransactions)

	value, err := s.cache.Get(r.Context(), key)
	if err != nil && value == nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	s.respondJSON(w, http.StatusOK, value)
}

func (s *Server) handleListDividends(w http.ResponseWriter, r *http.Request) {
	f, signature := activityFilter(r)
	key := aggregation.DividendsKey + ":" + signature

	s.cache.Register(key, func(ctx context.Context) (interface{}, error) {
		return s.client.ListDividends(ctx, f)
	}, aggregation.DecodeDividends)

	value, err := s.cache.Get(r.Context(), key)
	if err != nil && value == nil {
		s.respondError(w, http.StatusBadGateway, err, true)
		return
	}
	s.respondJSON(w, http.StatusOK, value)
}
