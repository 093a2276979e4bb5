package projection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asantos/patrimonio/internal/domain"
)

func fixture() []domain.Position {
	return []domain.Position{
		{ID: 1, AssetID: 1, PortfolioID: 1, CurrentPrice: 38.50, PortfolioName: "Ações BR",
			Asset: &domain.Asset{Symbol: "PETR4", Name: "Petrobras", AssetType: domain.AssetTypeStock}},
		{ID: 2, AssetID: 2, PortfolioID: 1, CurrentPrice: 61.20, PortfolioName: "Ações BR",
			Asset: &domain.Asset{Symbol: "VALE3", Name: "Vale", AssetType: domain.AssetTypeStock}},
		{ID: 3, AssetID: 3, PortfolioID: 2, CurrentPrice: 9.80, PortfolioName: "FIIs",
			Asset: &domain.Asset{Symbol: "MXRF11", Name: "Maxi Renda", AssetType: domain.AssetTypeFund}},
		{ID: 4, AssetID: 4, PortfolioID: 2, CurrentPrice: 104.00, PortfolioName: "FIIs",
			Asset: &domain.Asset{Symbol: "HGLG11", Name: "CSHG Logística", AssetType: domain.AssetTypeFund}},
	}
}

func ids(positions []domain.Position) []int64 {
	out := make([]int64, len(positions))
	for i, p := range positions {
		out[i] = p.ID
	}
	return out
}

func TestProjectNoParamsKeepsInputOrder(t *testing.T) {
	result := Project(fixture(), Params{})
	assert.Equal(t, []int64{1, 2, 3, 4}, ids(result))
}

func TestProjectDoesNotMutateInput(t *testing.T) {
	input := fixture()

	Project(input, Params{SortBy: SortByPrice, Order: Descending})

	assert.Equal(t, []int64{1, 2, 3, 4}, ids(input))
}

func TestProjectSearchMatchesSymbolNameAndPortfolio(t *testing.T) {
	positions := fixture()

	bySymbol := Project(positions, Params{Search: "petr"})
	assert.Equal(t, []int64{1}, ids(bySymbol))

	byName := Project(positions, Params{Search: "VALE"})
	assert.Equal(t, []int64{2}, ids(byName))

	byPortfolio := Project(positions, Params{Search: "fiis"})
	assert.Equal(t, []int64{3, 4}, ids(byPortfolio))
}

func TestProjectSearchNoMatch(t *testing.T) {
	result := Project(fixture(), Params{Search: "bitcoin"})
	assert.Empty(t, result)
}

func TestProjectTypeFilterIsExact(t *testing.T) {
	result := Project(fixture(), Params{Type: domain.AssetTypeFund})
	assert.Equal(t, []int64{3, 4}, ids(result))
}

func TestProjectSortByPriceDescending(t *testing.T) {
	result := Project(fixture(), Params{SortBy: SortByPrice, Order: Descending})
	assert.Equal(t, []int64{4, 2, 1, 3}, ids(result))
}

func TestProjectSortBySymbol(t *testing.T) {
	result := Project(fixture(), Params{SortBy: SortBySymbol, Order: Ascending})
	assert.Equal(t, []int64{4, 3, 1, 2}, ids(result))
}

func TestProjectSortIsStable(t *testing.T) {
	// Equal sort keys keep input order.
	result := Project(fixture(), Params{SortBy: SortByType, Order: Ascending})
	assert.Equal(t, []int64{3, 4, 1, 2}, ids(result))
}

func TestProjectIsIdempotent(t *testing.T) {
	params := Params{Search: "1", SortBy: SortBySymbol, Order: Descending}

	once := Project(fixture(), params)
	twice := Project(once, params)

	assert.Equal(t, once, twice)
}

func TestProjectMissingAssetSortsFirst(t *testing.T) {
	positions := append(fixture(), domain.Position{ID: 5, AssetID: 5, PortfolioID: 3})

	result := Project(positions, Params{SortBy: SortBySymbol, Order: Ascending})

	require.Len(t, result, 5)
	assert.Equal(t, int64(5), result[0].ID)
}

func TestParamsFromQuery(t *testing.T) {
	params := ParamsFromQuery("petr", "stock", "SYMBOL", "DESC")

	assert.Equal(t, "petr", params.Search)
	assert.Equal(t, domain.AssetTypeStock, params.Type)
	assert.Equal(t, SortBySymbol, params.SortBy)
	assert.Equal(t, Descending, params.Order)
}

func TestParamsFromQueryUnknownKeysPassThrough(t *testing.T) {
	params := ParamsFromQuery("", "", "bogus", "sideways")

	assert.Equal(t, SortKey(""), params.SortBy)
	assert.Equal(t, Order(""), params.Order)
}
