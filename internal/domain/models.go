// Package domain defines the data model shared across the engine.
//
// Portfolio, Position, Asset, Transaction and Dividend mirror the REST
// backend's contract; the backend owns them and the engine only ever holds a
// cached, possibly stale projection. Derived aggregates (sector buckets,
// metric bundles) live with the modules that compute them and are never
// persisted.
package domain

import (
	"fmt"
	"time"
)

// AssetType enumerates the asset classes known to the backend.
type AssetType string

const (
	AssetTypeStock      AssetType = "STOCK"
	AssetTypeBond       AssetType = "BOND"
	AssetTypeFund       AssetType = "FUND"
	AssetTypeETF        AssetType = "ETF"
	AssetTypeCrypto     AssetType = "CRYPTO"
	AssetTypeRealEstate AssetType = "REAL_ESTATE"
	AssetTypeCommodity  AssetType = "COMMODITY"
	AssetTypeCash       AssetType = "CASH"
	AssetTypeOther      AssetType = "OTHER"
)

// TransactionType enumerates trade directions.
type TransactionType string

const (
	TransactionBuy  TransactionType = "BUY"
	TransactionSell TransactionType = "SELL"
)

// Portfolio is the backend's portfolio record plus its summary totals.
type Portfolio struct {
	ID                    int64     `json:"id"`
	Name                  string    `json:"name"`
	Description           string    `json:"description,omitempty"`
	Currency              string    `json:"currency"`
	Benchmark             string    `json:"benchmark,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	TotalValue            float64   `json:"total_value"`
	TotalInvested         float64   `json:"total_invested"`
	TotalReturn           float64   `json:"total_return"`
	TotalReturnPercentage float64   `json:"total_return_percentage"`
}

// Asset describes a tradable instrument.
type Asset struct {
	ID           int64     `json:"id"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	AssetType    AssetType `json:"asset_type"`
	Sector       string    `json:"sector,omitempty"`
	CurrentPrice float64   `json:"current_price,omitempty"`
}

// Position is a holding of one asset within one portfolio.
//
// PortfolioName is not part of the backend payload; the aggregator attaches
// it when joining positions with their parent portfolio.
type Position struct {
	ID                    int64   `json:"id"`
	AssetID               int64   `json:"asset_id"`
	PortfolioID           int64   `json:"portfolio_id"`
	Quantity              float64 `json:"quantity"`
	AveragePrice          float64 `json:"average_price"`
	CurrentPrice          float64 `json:"current_price,omitempty"`
	CurrentValue          float64 `json:"current_value"`
	TotalInvested         float64 `json:"total_invested"`
	TotalReturn           float64 `json:"total_return"`
	TotalReturnPercentage float64 `json:"total_return_percentage"`
	DividendsReceived     float64 `json:"dividends_received"`
	Asset                 *Asset  `json:"asset,omitempty"`
	PortfolioName         string  `json:"portfolio_name,omitempty"`
}

// Key returns the stable (portfolio, asset) identity of a position.
// No two entries in an aggregated position list share a key.
func (p Position) Key() string {
	return fmt.Sprintf("%d:%d", p.PortfolioID, p.AssetID)
}

// EffectivePrice resolves the price to use for valuation.
// Fallback order: the position's own current price, then the asset's
// current price, then the average cost.
func (p Position) EffectivePrice() float64 {
	if p.CurrentPrice > 0 {
		return p.CurrentPrice
	}
	if p.Asset != nil && p.Asset.CurrentPrice > 0 {
		return p.Asset.CurrentPrice
	}
	return p.AveragePrice
}

// Symbol returns the asset symbol, empty when the asset join is missing.
func (p Position) Symbol() string {
	if p.Asset == nil {
		return ""
	}
	return p.Asset.Symbol
}

// Transaction is an executed buy or sell.
type Transaction struct {
	ID          int64           `json:"id"`
	AssetID     int64           `json:"asset_id"`
	PortfolioID int64           `json:"portfolio_id"`
	Type        TransactionType `json:"transaction_type"`
	Quantity    float64         `json:"quantity"`
	Price       float64         `json:"price"`
	TotalAmount float64         `json:"total_amount"`
	Date        time.Time       `json:"date"`
	Asset       *Asset          `json:"asset,omitempty"`
}

// Dividend is a cash distribution received for a held asset.
type Dividend struct {
	ID             int64     `json:"id"`
	AssetID        int64     `json:"asset_id"`
	PortfolioID    int64     `json:"portfolio_id"`
	Type           string    `json:"dividend_type"`
	AmountPerShare float64   `json:"amount_per_share"`
	SharesQuantity float64   `json:"shares_quantity"`
	TotalAmount    float64   `json:"total_amount"`
	NetAmount      float64   `json:"net_amount"`
	PaymentDate    time.Time `json:"payment_date"`
}

// Net returns the dividend's net amount, falling back to the gross total
// when the backend did not compute withholding.
func (d Dividend) Net() float64 {
	if d.NetAmount != 0 {
		return d.NetAmount
	}
	return d.TotalAmount
}
