package analytics

import (
	"time"

	"github.com/asantos/patrimonio/internal/domain"
)

// Summary is the headline money view of a position set.
type Summary struct {
	TotalInvested    float64 `json:"total_invested"`
	CurrentValue     float64 `json:"current_value"`
	TotalReturn      float64 `json:"total_return"`
	ReturnPercentage float64 `json:"return_percentage"`
	TotalDividends   float64 `json:"total_dividends"`
}

// Performer is one ranked contributor to portfolio return.
type Performer struct {
	Symbol       string  `json:"symbol"`
	Name         string  `json:"name"`
	Return       float64 `json:"return"`       // total return as % of invested
	Contribution float64 `json:"contribution"` // weight * return percentage
	Value        float64 `json:"value"`
	TotalReturn  float64 `json:"total_return"` // capital gain + dividends, absolute
}

// SectorBucket aggregates the positions of one sector.
type SectorBucket struct {
	Name       string  `json:"name"`
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
	Trend      float64 `json:"trend"` // mean member return percentage
	Count      int     `json:"count"`
}

// TypeBucket aggregates the positions of one asset class.
type TypeBucket struct {
	AssetType  domain.AssetType `json:"asset_type"`
	Value      float64          `json:"value"`
	Percentage float64          `json:"percentage"`
	Count      int              `json:"count"`
}

// Metrics is the advanced risk/return bundle.
//
// Beta and Sharpe are computed against fixed benchmark constants rather than
// a historical benchmark series, and max drawdown is approximated by the
// worst single-position return; see the service for details.
type Metrics struct {
	Volatility    float64        `json:"volatility"`
	Beta          float64        `json:"beta"`
	SharpeRatio   float64        `json:"sharpe_ratio"`
	MaxDrawdown   float64        `json:"max_drawdown"`
	TopPerformers []Performer    `json:"top_performers"`
	Sectors       []SectorBucket `json:"sectors"`
}

// HistoryPoint is one sampled total portfolio value.
type HistoryPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// History is the sampled value series with its moving-average trend.
// SMA is nil until a full window of samples exists.
type History struct {
	Points []HistoryPoint `json:"points"`
	SMA    *float64       `json:"sma,omitempty"`
	EMA    *float64       `json:"ema,omitempty"`
}
