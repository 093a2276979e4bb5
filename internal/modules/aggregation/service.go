// Package aggregation joins per-portfolio position fetches into one
// cross-portfolio collection with portfolio metadata attached.
package aggregation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/asantos/patrimonio/internal/domain"
	"github.com/asantos/patrimonio/internal/syncstate"
)

// Cache keys of the backend-owned collections. Positions are keyed per
// portfolio since the backend serves them per portfolio.
const (
	PortfoliosKey   = "portfolios"
	DividendsKey    = "dividends"
	TransactionsKey = "transactions"
)

// PositionsKey returns the cache key of one portfolio's positions.
func PositionsKey(portfolioID int64) string {
	return fmt.Sprintf("positions:%d", portfolioID)
}

// PositionLister fetches positions for one portfolio from the backend.
type PositionLister interface {
	ListPositions(ctx context.Context, portfolioID int64) ([]domain.Position, error)
}

// Service aggregates positions across portfolios through the query cache.
type Service struct {
	cache  *syncstate.Cache
	client PositionLister
	log    zerolog.Logger
}

// NewService creates a new aggregation service.
func NewService(cache *syncstate.Cache, client PositionLister, log zerolog.Logger) *Service {
	return &Service{
		cache:  cache,
		client: client,
		log:    log.With().Str("service", "aggregation").Logger(),
	}
}

// EnsureRegistered declares the positions cache key for a portfolio.
// Registration is idempotent; portfolios discovered on later polls get
// their keys added here as the aggregator first sees them.
func (s *Service) EnsureRegistered(portfolioID int64) {
	id := portfolioID
	s.cache.Register(
		PositionsKey(id),
		func(ctx context.Context) (interface{}, error) {
			return s.client.ListPositions(ctx, id)
		},
		DecodePositions,
	)
}

// DecodePositions rebuilds a persisted positions value on warm start.
func DecodePositions(data []byte) (interface{}, error) {
	var positions []domain.Position
	if err := msgpack.Unmarshal(data, &positions); err != nil {
		return nil, err
	}
	return positions, nil
}

// DecodePortfolios rebuilds a persisted portfolio list on warm start.
func DecodePortfolios(data []byte) (interface{}, error) {
	var portfolios []domain.Portfolio
	if err := msgpack.Unmarshal(data, &portfolios); err != nil {
		return nil, err
	}
	return portfolios, nil
}

// DecodeDividends rebuilds a persisted dividend list on warm start.
func DecodeDividends(data []byte) (interface{}, error) {
	var dividends []domain.Dividend
	if err := msgpack.Unmarshal(data, &dividends); err != nil {
		return nil, err
	}
	return dividends, nil
}

// DecodeTransactions rebuilds a persisted transaction list on warm start.
func DecodeTransactions(data []byte) (interface{}, error) {
	var transactions []domain.Transaction
	if err := msgpack.Unmarshal(data, &transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

// Aggregate unions the positions of the given portfolios.
//
// One fetch is issued per portfolio (through the cache, so fresh entries are
// served locally). A failing portfolio is logged and skipped, or served from
// its last-known value when one exists; it never aborts the others. Every
// returned position carries the portfolio name and a non-zero price per the
// fallback chain, and the output is deduplicated on (portfolio, asset)
// keeping first occurrence. Output order is portfolio input order, then
// backend position order.
func (s *Service) Aggregate(ctx context.Context, portfolios []domain.Portfolio) []domain.Position {
	out := make([]domain.Position, 0)
	seen := make(map[string]bool)

	for _, pf := range portfolios {
		s.EnsureRegistered(pf.ID)

		value, err := s.cache.Get(ctx, PositionsKey(pf.ID))
		if err != nil {
			if value == nil {
				s.log.Warn().
					Err(err).
					Int64("portfolio_id", pf.ID).
					Msg("Failed to fetch positions, omitting portfolio")
				continue
			}
			s.log.Warn().
				Err(err).
				Int64("portfolio_id", pf.ID).
				Msg("Fetch failed, using last-known positions")
		}

		positions, ok := value.([]domain.Position)
		if !ok {
			continue
		}

		for _, pos := range positions {
			pos.PortfolioID = pf.ID
			pos.PortfolioName = pf.Name
			normalize(&pos)

			if seen[pos.Key()] {
				continue
			}
			seen[pos.Key()] = true
			out = append(out, pos)
		}
	}

	return out
}

// normalize guarantees the price and valuation invariants on one position:
// a non-zero current price (fallback chain), the asset echoing that price,
// and current_value = quantity * price when the backend left it unset.
// The cached value is never written to; the asset record is copied first.
func normalize(pos *domain.Position) {
	price := pos.EffectivePrice()
	pos.CurrentPrice = price

	if pos.Asset != nil {
		asset := *pos.Asset
		if asset.CurrentPrice == 0 {
			asset.CurrentPrice = price
		}
		pos.Asset = &asset
	}

	if pos.CurrentValue == 0 && pos.Quantity > 0 && price > 0 {
		pos.CurrentValue = pos.Quantity * price
	}
	if pos.TotalReturn == 0 && pos.CurrentValue > 0 && pos.TotalInvested > 0 {
		pos.TotalReturn = pos.CurrentValue - pos.TotalInvested
	}
}
