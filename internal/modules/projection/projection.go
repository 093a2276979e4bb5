// Package projection derives filtered, sorted views over aggregated
// positions for presentation. Project is a pure function: it never touches
// its input and identical inputs always yield identically ordered output.
package projection

import (
	"sort"
	"strings"

	"github.com/asantos/patrimonio/internal/domain"
)

// SortKey selects the field positions are ordered by.
type SortKey string

const (
	SortBySymbol    SortKey = "symbol"
	SortByName      SortKey = "name"
	SortByPrice     SortKey = "price"
	SortByType      SortKey = "type"
	SortByPortfolio SortKey = "portfolio"
)

// Order is the sort direction.
type Order string

const (
	Ascending  Order = "asc"
	Descending Order = "desc"
)

// Params are the filter and sort inputs. Zero values pass everything
// through: empty search matches all, empty type filter matches all, empty
// sort key keeps input order.
type Params struct {
	Search string
	Type   domain.AssetType
	SortBy SortKey
	Order  Order
}

// Project filters and sorts positions.
//
// Search matches case-insensitively against symbol, asset name and
// portfolio name. The type filter is exact. Sorting is stable, so positions
// with equal keys keep their input order, and repeated projection of an
// already projected list is a no-op.
func Project(positions []domain.Position, params Params) []domain.Position {
	out := make([]domain.Position, 0, len(positions))

	search := strings.ToLower(strings.TrimSpace(params.Search))
	for _, p := range positions {
		if !matchesSearch(p, search) {
			continue
		}
		if params.Type != "" && (p.Asset == nil || p.Asset.AssetType != params.Type) {
			continue
		}
		out = append(out, p)
	}

	if params.SortBy != "" {
		desc := params.Order == Descending
		sort.SliceStable(out, func(i, j int) bool {
			less := lessBy(out[i], out[j], params.SortBy)
			if desc {
				return lessBy(out[j], out[i], params.SortBy)
			}
			return less
		})
	}

	return out
}

func matchesSearch(p domain.Position, search string) bool {
	if search == "" {
		return true
	}
	if p.Asset != nil {
		if strings.Contains(strings.ToLower(p.Asset.Symbol), search) {
			return true
		}
		if strings.Contains(strings.ToLower(p.Asset.Name), search) {
			return true
		}
	}
	return strings.Contains(strings.ToLower(p.PortfolioName), search)
}

func lessBy(a, b domain.Position, key SortKey) bool {
	switch key {
	case SortBySymbol:
		return assetField(a, func(x *domain.Asset) string { return x.Symbol }) <
			assetField(b, func(x *domain.Asset) string { return x.Symbol })
	case SortByName:
		return assetField(a, func(x *domain.Asset) string { return x.Name }) <
			assetField(b, func(x *domain.Asset) string { return x.Name })
	case SortByPrice:
		return a.CurrentPrice < b.CurrentPrice
	case SortByType:
		return assetField(a, func(x *domain.Asset) string { return string(x.AssetType) }) <
			assetField(b, func(x *domain.Asset) string { return string(x.AssetType) })
	case SortByPortfolio:
		return a.PortfolioName < b.PortfolioName
	default:
		return false
	}
}

func assetField(p domain.Position, get func(*domain.Asset) string) string {
	if p.Asset == nil {
		return ""
	}
	return get(p.Asset)
}

// ParamsFromQuery builds Params from raw HTTP query values, normalizing
// unknown sort keys and orders to their pass-through defaults.
func ParamsFromQuery(search, assetType, sortBy, order string) Params {
	params := Params{
		Search: search,
		Type:   domain.AssetType(strings.ToUpper(assetType)),
	}

	switch SortKey(strings.ToLower(sortBy)) {
	case SortBySymbol, SortByName, SortByPrice, SortByType, SortByPortfolio:
		params.SortBy = SortKey(strings.ToLower(sortBy))
	}

	if Order(strings.ToLower(order)) == Descending {
		params.Order = Descending
	} else if params.SortBy != "" {
		params.Order = Ascending
	}

	return params
}
