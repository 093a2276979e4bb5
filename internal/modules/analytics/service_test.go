package analytics

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asantos/patrimonio/internal/domain"
)

var testBenchmark = BenchmarkConfig{
	MarketReturn:     15,
	MarketVolatility: 25,
	RiskFreeRate:     12,
}

// Two-position fixture: a winner at +25% and a loser at -10%, across two
// portfolios and two sectors. Population stddev of {25, -10} is 17.5.
func testPositions() []domain.Position {
	return []domain.Position{
		{
			ID: 1, AssetID: 1, PortfolioID: 1,
			TotalInvested: 2000, CurrentValue: 2500,
			Asset: &domain.Asset{ID: 1, Symbol: "AAA3", Name: "Alpha", AssetType: domain.AssetTypeStock, Sector: "Energia"},
		},
		{
			ID: 2, AssetID: 2, PortfolioID: 2,
			TotalInvested: 1000, CurrentValue: 900,
			Asset: &domain.Asset{ID: 2, Symbol: "BBB11", Name: "Beta", AssetType: domain.AssetTypeFund},
		},
	}
}

func testAnalytics() *Service {
	return NewService(testBenchmark, zerolog.Nop())
}

func TestSummary(t *testing.T) {
	summary := testAnalytics().Summary(testPositions(), nil, AllPortfolios)

	assert.Equal(t, 3000.0, summary.TotalInvested)
	assert.Equal(t, 3400.0, summary.CurrentValue)
	assert.Equal(t, 400.0, summary.TotalReturn)
	assert.InDelta(t, 13.3333, summary.ReturnPercentage, 0.001)
	assert.Equal(t, 0.0, summary.TotalDividends)
}

func TestSummaryCountsDividendsAsReturn(t *testing.T) {
	positions := []domain.Position{
		{ID: 1, AssetID: 1, PortfolioID: 1, TotalInvested: 1000, CurrentValue: 1000, DividendsReceived: 50},
	}

	summary := testAnalytics().Summary(positions, nil, AllPortfolios)

	assert.Equal(t, 50.0, summary.TotalReturn, "flat price plus dividends is still a gain")
	assert.Equal(t, 5.0, summary.ReturnPercentage)
	assert.Equal(t, 50.0, summary.TotalDividends)
}

func TestSummaryDividendsOutweighCapitalLoss(t *testing.T) {
	positions := []domain.Position{
		{ID: 1, AssetID: 1, PortfolioID: 1, TotalInvested: 1000, CurrentValue: 1200, DividendsReceived: 50,
			Asset: &domain.Asset{ID: 1, Symbol: "AAA", Name: "Alpha"}},
		{ID: 2, AssetID: 2, PortfolioID: 1, TotalInvested: 2000, CurrentValue: 1800,
			Asset: &domain.Asset{ID: 2, Symbol: "BBB", Name: "Beta"}},
	}

	summary := testAnalytics().Summary(positions, nil, AllPortfolios)

	// Capital: +200 and -200 cancel out; the dividend tips the total.
	assert.Equal(t, 3000.0, summary.TotalInvested)
	assert.Equal(t, 50.0, summary.TotalReturn)
	assert.InDelta(t, 1.6667, summary.ReturnPercentage, 0.001)

	metrics := testAnalytics().Metrics(positions, AllPortfolios)
	require.Len(t, metrics.TopPerformers, 2)
	assert.Equal(t, "AAA", metrics.TopPerformers[0].Symbol)
	assert.Equal(t, "BBB", metrics.TopPerformers[1].Symbol)
}

func TestSummaryScopesToPortfolio(t *testing.T) {
	summary := testAnalytics().Summary(testPositions(), nil, 2)

	assert.Equal(t, 1000.0, summary.TotalInvested)
	assert.Equal(t, 900.0, summary.CurrentValue)
	assert.Equal(t, -100.0, summary.TotalReturn)
}

func TestSummaryEmptyPositionsKeepsDividendTotal(t *testing.T) {
	dividends := []domain.Dividend{
		{ID: 1, PortfolioID: 1, TotalAmount: 100, NetAmount: 85},
		{ID: 2, PortfolioID: 2, TotalAmount: 40},
	}

	summary := testAnalytics().Summary(nil, dividends, AllPortfolios)
	assert.Equal(t, 125.0, summary.TotalDividends)
	assert.Equal(t, 0.0, summary.TotalInvested)

	scoped := testAnalytics().Summary(nil, dividends, 2)
	assert.Equal(t, 40.0, scoped.TotalDividends)
}

func TestSummaryMissingCurrentValueFallsBackToInvested(t *testing.T) {
	positions := []domain.Position{
		{ID: 1, AssetID: 1, PortfolioID: 1, TotalInvested: 1000},
	}

	summary := testAnalytics().Summary(positions, nil, AllPortfolios)

	assert.Equal(t, 1000.0, summary.CurrentValue)
	assert.Equal(t, 0.0, summary.TotalReturn)
	assert.Equal(t, 0.0, summary.ReturnPercentage)
}

func TestMetrics(t *testing.T) {
	metrics := testAnalytics().Metrics(testPositions(), AllPortfolios)

	// Returns are {25, -10}: mean 7.5, population stddev 17.5.
	// Beta = (7.5/15) * (17.5/25); Sharpe = (7.5-12) / 17.5.
	assert.InDelta(t, 17.5, metrics.Volatility, 1e-9)
	assert.InDelta(t, 0.35, metrics.Beta, 1e-9)
	assert.InDelta(t, -0.2571, metrics.SharpeRatio, 0.001)
	assert.Equal(t, -10.0, metrics.MaxDrawdown)
}

func TestMetricsEmptyPositions(t *testing.T) {
	metrics := testAnalytics().Metrics(nil, AllPortfolios)

	assert.Equal(t, Metrics{
		TopPerformers: []Performer{},
		Sectors:       []SectorBucket{},
	}, metrics)
}

func TestMetricsSinglePositionHasZeroRiskFigures(t *testing.T) {
	metrics := testAnalytics().Metrics(testPositions(), 1)

	// One observation: no spread, so volatility and its dependents are 0.
	assert.Equal(t, 0.0, metrics.Volatility)
	assert.Equal(t, 0.0, metrics.Beta)
	assert.Equal(t, 0.0, metrics.SharpeRatio)
	assert.Equal(t, 0.0, metrics.MaxDrawdown)
}

func TestMetricsAllGainsMeansZeroDrawdown(t *testing.T) {
	positions := []domain.Position{
		{ID: 1, AssetID: 1, PortfolioID: 1, TotalInvested: 100, CurrentValue: 110,
			Asset: &domain.Asset{ID: 1, Symbol: "A"}},
		{ID: 2, AssetID: 2, PortfolioID: 1, TotalInvested: 100, CurrentValue: 130,
			Asset: &domain.Asset{ID: 2, Symbol: "B"}},
	}

	metrics := testAnalytics().Metrics(positions, AllPortfolios)
	assert.Equal(t, 0.0, metrics.MaxDrawdown)
}

func TestTopPerformersRankByAbsoluteReturn(t *testing.T) {
	positions := []domain.Position{
		{ID: 1, AssetID: 1, PortfolioID: 1, TotalInvested: 1000, CurrentValue: 1050,
			Asset: &domain.Asset{ID: 1, Symbol: "SMALL", Name: "Small gain"}},
		{ID: 2, AssetID: 2, PortfolioID: 1, TotalInvested: 10000, CurrentValue: 10500,
			Asset: &domain.Asset{ID: 2, Symbol: "BIG", Name: "Big gain"}},
		{ID: 3, AssetID: 3, PortfolioID: 1, TotalInvested: 1000, CurrentValue: 800,
			Asset: &domain.Asset{ID: 3, Symbol: "LOSS", Name: "Loser"}},
		{ID: 4, AssetID: 4, PortfolioID: 1, TotalInvested: 500, CurrentValue: 500, DividendsReceived: 200,
			Asset: &domain.Asset{ID: 4, Symbol: "DIV", Name: "Payer"}},
		{ID: 5, AssetID: 5, PortfolioID: 1, TotalInvested: 1000, CurrentValue: 1000,
			Asset: &domain.Asset{ID: 5, Symbol: "FLAT", Name: "Flat"}},
	}

	metrics := testAnalytics().Metrics(positions, AllPortfolios)

	require.Len(t, metrics.TopPerformers, 4)
	symbols := make([]string, 4)
	for i, p := range metrics.TopPerformers {
		symbols[i] = p.Symbol
	}
	// Ranked by absolute gain including dividends: 500, 200, 50, 0.
	assert.Equal(t, []string{"BIG", "DIV", "SMALL", "FLAT"}, symbols)
}

func TestTopPerformersSkipPositionsWithoutAsset(t *testing.T) {
	positions := []domain.Position{
		{ID: 1, AssetID: 1, PortfolioID: 1, TotalInvested: 100, CurrentValue: 200},
	}

	metrics := testAnalytics().Metrics(positions, AllPortfolios)
	assert.Empty(t, metrics.TopPerformers)
}

func TestTopPerformerContribution(t *testing.T) {
	metrics := testAnalytics().Metrics(testPositions(), AllPortfolios)

	require.Len(t, metrics.TopPerformers, 2)

	best := metrics.TopPerformers[0]
	assert.Equal(t, "AAA3", best.Symbol)
	assert.Equal(t, 25.0, best.Return)
	assert.InDelta(t, 16.6667, best.Contribution, 0.001) // (2000/3000) * 25
	assert.Equal(t, 500.0, best.TotalReturn)

	worst := metrics.TopPerformers[1]
	assert.Equal(t, "BBB11", worst.Symbol)
	assert.InDelta(t, -3.3333, worst.Contribution, 0.001)
}

func TestSectorAllocation(t *testing.T) {
	metrics := testAnalytics().Metrics(testPositions(), AllPortfolios)

	require.Len(t, metrics.Sectors, 2)

	energia := metrics.Sectors[0]
	assert.Equal(t, "Energia", energia.Name)
	assert.Equal(t, 2500.0, energia.Value)
	assert.InDelta(t, 83.3333, energia.Percentage, 0.001)
	assert.Equal(t, 25.0, energia.Trend)
	assert.Equal(t, 1, energia.Count)

	outros := metrics.Sectors[1]
	assert.Equal(t, "Outros", outros.Name, "missing sector falls into the default bucket")
	assert.Equal(t, 900.0, outros.Value)
	assert.Equal(t, -10.0, outros.Trend)
}

func TestTypeAllocation(t *testing.T) {
	buckets := testAnalytics().TypeAllocation(testPositions(), AllPortfolios)

	require.Len(t, buckets, 2)

	assert.Equal(t, domain.AssetTypeStock, buckets[0].AssetType)
	assert.Equal(t, 2500.0, buckets[0].Value)
	assert.InDelta(t, 73.5294, buckets[0].Percentage, 0.001) // of 3400 total value

	assert.Equal(t, domain.AssetTypeFund, buckets[1].AssetType)
	assert.InDelta(t, 26.4706, buckets[1].Percentage, 0.001)
}

func TestTypeAllocationDefaultsToOther(t *testing.T) {
	positions := []domain.Position{
		{ID: 1, AssetID: 1, PortfolioID: 1, TotalInvested: 100, CurrentValue: 100},
	}

	buckets := testAnalytics().TypeAllocation(positions, AllPortfolios)

	require.Len(t, buckets, 1)
	assert.Equal(t, domain.AssetTypeOther, buckets[0].AssetType)
	assert.Equal(t, 100.0, buckets[0].Percentage)
}
