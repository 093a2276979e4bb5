// Package analytics derives portfolio-level risk and return figures from an
// aggregated position set. Every computation tolerates an empty input by
// returning zeroed or empty structures; degenerate arithmetic (no invested
// capital, zero volatility) resolves to 0 instead of NaN or an error.
package analytics

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/asantos/patrimonio/internal/domain"
	"github.com/asantos/patrimonio/pkg/formulas"
)

// AllPortfolios selects every portfolio when passed as a scope id.
const AllPortfolios int64 = 0

// topPerformerCount is how many ranked contributors the metrics bundle keeps.
const topPerformerCount = 4

// defaultBucket labels positions whose asset carries no sector.
const defaultBucket = "Outros"

// BenchmarkConfig holds the fixed reference constants for beta and Sharpe.
//
// These stand in for a real benchmark price history, which the engine does
// not retain: beta here is a ratio of expected figures, not a covariance
// against observed benchmark returns.
type BenchmarkConfig struct {
	MarketReturn     float64 // expected benchmark return, percent
	MarketVolatility float64 // typical benchmark volatility, percent
	RiskFreeRate     float64 // risk-free rate, percent
}

// Service computes summaries and risk metrics over position sets.
type Service struct {
	benchmark BenchmarkConfig
	log       zerolog.Logger
}

// NewService creates a new analytics service.
func NewService(benchmark BenchmarkConfig, log zerolog.Logger) *Service {
	return &Service{
		benchmark: benchmark,
		log:       log.With().Str("service", "analytics").Logger(),
	}
}

// scope filters positions to one portfolio, or returns all when
// portfolioID is AllPortfolios.
func scope(positions []domain.Position, portfolioID int64) []domain.Position {
	if portfolioID == AllPortfolios {
		return positions
	}
	scoped := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		if p.PortfolioID == portfolioID {
			scoped = append(scoped, p)
		}
	}
	return scoped
}

// positionReturn computes one position's total return percentage,
// with dividends counted as part of the return.
func positionReturn(p domain.Position) float64 {
	invested := p.TotalInvested
	current := p.CurrentValue
	if current == 0 {
		current = invested
	}
	return formulas.PercentageReturn(current-invested, p.DividendsReceived, invested)
}

// Summary totals a position set. Total return is capital gain plus dividends
// received, not capital gain alone. When the position set is empty the
// dividend collection still feeds the dividend total, so a portfolio that
// was fully sold keeps reporting what it paid out.
func (s *Service) Summary(positions []domain.Position, dividends []domain.Dividend, portfolioID int64) Summary {
	positions = scope(positions, portfolioID)

	if len(positions) == 0 {
		var total float64
		for _, d := range dividends {
			if portfolioID != AllPortfolios && d.PortfolioID != portfolioID {
				continue
			}
			total += d.Net()
		}
		return Summary{TotalDividends: total}
	}

	var invested, current, divs float64
	for _, p := range positions {
		invested += p.TotalInvested
		value := p.CurrentValue
		if value == 0 {
			value = p.TotalInvested
		}
		current += value
		divs += p.DividendsReceived
	}

	totalReturn := (current - invested) + divs
	return Summary{
		TotalInvested:    invested,
		CurrentValue:     current,
		TotalReturn:      totalReturn,
		ReturnPercentage: formulas.PercentageReturn(current-invested, divs, invested),
		TotalDividends:   divs,
	}
}

// Metrics computes the advanced bundle: volatility, beta, Sharpe ratio,
// max drawdown, ranked contributors and sector allocation.
//
// Volatility treats each position, not each time period, as one observation.
// Max drawdown is the most negative per-position return, floored at 0: a
// proxy for peak-to-trough drawdown, which would need a valuation series.
func (s *Service) Metrics(positions []domain.Position, portfolioID int64) Metrics {
	positions = scope(positions, portfolioID)

	if len(positions) == 0 {
		return Metrics{TopPerformers: []Performer{}, Sectors: []SectorBucket{}}
	}

	returns := make([]float64, len(positions))
	var totalInvested float64
	for i, p := range positions {
		returns[i] = positionReturn(p)
		totalInvested += p.TotalInvested
	}

	meanReturn := formulas.Mean(returns)
	volatility := formulas.StdDev(returns)

	var beta, sharpe float64
	if volatility > 0 {
		if s.benchmark.MarketReturn != 0 && s.benchmark.MarketVolatility != 0 {
			beta = (meanReturn / s.benchmark.MarketReturn) * (volatility / s.benchmark.MarketVolatility)
		}
		sharpe = (meanReturn - s.benchmark.RiskFreeRate) / volatility
	}

	maxDrawdown := 0.0
	for _, r := range returns {
		if r < maxDrawdown {
			maxDrawdown = r
		}
	}

	return Metrics{
		Volatility:    volatility,
		Beta:          beta,
		SharpeRatio:   sharpe,
		MaxDrawdown:   maxDrawdown,
		TopPerformers: s.topPerformers(positions, totalInvested),
		Sectors:       s.sectorAllocation(positions, totalInvested),
	}
}

// topPerformers ranks positions by absolute total return (capital gain plus
// dividends) and keeps the best four. All positions rank, including losers,
// so a short list still shows where the money went.
func (s *Service) topPerformers(positions []domain.Position, totalInvested float64) []Performer {
	ranked := make([]domain.Position, 0, len(positions))
	for _, p := range positions {
		if p.Asset != nil {
			ranked = append(ranked, p)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a := capitalReturn(ranked[i]) + ranked[i].DividendsReceived
		b := capitalReturn(ranked[j]) + ranked[j].DividendsReceived
		return a > b
	})

	if len(ranked) > topPerformerCount {
		ranked = ranked[:topPerformerCount]
	}

	performers := make([]Performer, 0, len(ranked))
	for _, p := range ranked {
		totalReturn := capitalReturn(p) + p.DividendsReceived
		returnPct := formulas.PercentageReturn(capitalReturn(p), p.DividendsReceived, p.TotalInvested)

		contribution := 0.0
		if p.TotalInvested > 0 && totalInvested > 0 {
			contribution = (p.TotalInvested / totalInvested) * returnPct
		}

		value := p.CurrentValue
		if value == 0 {
			value = p.TotalInvested
		}

		performers = append(performers, Performer{
			Symbol:       p.Asset.Symbol,
			Name:         p.Asset.Name,
			Return:       returnPct,
			Contribution: contribution,
			Value:        value,
			TotalReturn:  totalReturn,
		})
	}
	return performers
}

// capitalReturn is the position's gain excluding dividends.
func capitalReturn(p domain.Position) float64 {
	if p.TotalReturn != 0 {
		return p.TotalReturn
	}
	if p.CurrentValue == 0 {
		return 0
	}
	return p.CurrentValue - p.TotalInvested
}

// sectorAllocation groups positions by sector. Percentage is relative to
// total invested; trend is the mean member return percentage. Buckets come
// back sorted by value, largest first.
func (s *Service) sectorAllocation(positions []domain.Position, totalInvested float64) []SectorBucket {
	type acc struct {
		value     float64
		count     int
		returnSum float64
	}
	buckets := make(map[string]*acc)
	order := make([]string, 0)

	for _, p := range positions {
		sector := defaultBucket
		if p.Asset != nil && p.Asset.Sector != "" {
			sector = p.Asset.Sector
		}
		b, ok := buckets[sector]
		if !ok {
			b = &acc{}
			buckets[sector] = b
			order = append(order, sector)
		}
		value := p.CurrentValue
		if value == 0 {
			value = p.TotalInvested
		}
		b.value += value
		b.count++
		b.returnSum += positionReturn(p)
	}

	out := make([]SectorBucket, 0, len(buckets))
	for _, name := range order {
		b := buckets[name]
		pct := 0.0
		if totalInvested > 0 {
			pct = b.value / totalInvested * 100
		}
		trend := 0.0
		if b.count > 0 {
			trend = b.returnSum / float64(b.count)
		}
		out = append(out, SectorBucket{
			Name:       name,
			Value:      b.value,
			Percentage: pct,
			Trend:      trend,
			Count:      b.count,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}

// TypeAllocation groups positions by asset class. Percentage here is
// relative to the summed bucket values, matching the dashboard's
// allocation panel.
func (s *Service) TypeAllocation(positions []domain.Position, portfolioID int64) []TypeBucket {
	positions = scope(positions, portfolioID)

	type acc struct {
		value float64
		count int
	}
	buckets := make(map[domain.AssetType]*acc)
	order := make([]domain.AssetType, 0)

	var totalValue float64
	for _, p := range positions {
		assetType := domain.AssetTypeOther
		if p.Asset != nil && p.Asset.AssetType != "" {
			assetType = p.Asset.AssetType
		}
		b, ok := buckets[assetType]
		if !ok {
			b = &acc{}
			buckets[assetType] = b
			order = append(order, assetType)
		}
		value := p.CurrentValue
		if value == 0 {
			value = p.TotalInvested
		}
		b.value += value
		b.count++
		totalValue += value
	}

	out := make([]TypeBucket, 0, len(buckets))
	for _, assetType := range order {
		b := buckets[assetType]
		pct := 0.0
		if totalValue > 0 {
			pct = b.value / totalValue * 100
		}
		out = append(out, TypeBucket{
			AssetType:  assetType,
			Value:      b.value,
			Percentage: pct,
			Count:      b.count,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	return out
}
