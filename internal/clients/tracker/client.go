// Package tracker is the HTTP client for the investment-tracker REST backend.
// The backend owns all collections; this client only reads them and submits
// mutations, it never caches anything itself.
package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/asantos/patrimonio/internal/domain"
)

// Client talks to the investment-tracker backend API.
type Client struct {
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new backend client.
func NewClient(baseURL string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log.With().Str("client", "tracker").Logger(),
	}
}

// Filter narrows transaction and dividend listings.
// Zero values mean "no constraint".
type Filter struct {
	PortfolioID int64
	AssetID     int64
	StartDate   time.Time
	EndDate     time.Time
}

func (f Filter) query() url.Values {
	q := url.Values{}
	if f.PortfolioID > 0 {
		q.Set("portfolio_id", fmt.Sprintf("%d", f.PortfolioID))
	}
	if f.AssetID > 0 {
		q.Set("asset_id", fmt.Sprintf("%d", f.AssetID))
	}
	if !f.StartDate.IsZero() {
		q.Set("start_date", f.StartDate.Format("2006-01-02"))
	}
	if !f.EndDate.IsZero() {
		q.Set("end_date", f.EndDate.Format("2006-01-02"))
	}
	return q
}

// PortfolioForm carries the writable portfolio fields for create/update.
type PortfolioForm struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Currency    string `json:"currency"`
	Benchmark   string `json:"benchmark,omitempty"`
}

// ListPortfolios returns all portfolios with their summary totals.
func (c *Client) ListPortfolios(ctx context.Context) ([]domain.Portfolio, error) {
	var out []domain.Portfolio
	if err := c.get(ctx, "/api/portfolios/", nil, &out); err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	return out, nil
}

// ListPositions returns the positions of one portfolio.
func (c *Client) ListPositions(ctx context.Context, portfolioID int64) ([]domain.Position, error) {
	var out []domain.Position
	path := fmt.Sprintf("/api/portfolios/%d/positions", portfolioID)
	if err := c.get(ctx, path, nil, &out); err != nil {
		return nil, fmt.Errorf("list positions for portfolio %d: %w", portfolioID, err)
	}
	return out, nil
}

// ListTransactions returns transactions matching the filter.
func (c *Client) ListTransactions(ctx context.Context, f Filter) ([]domain.Transaction, error) {
	var out []domain.Transaction
	if err := c.get(ctx, "/api/transactions/", f.query(), &out); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// ListDividends returns dividends matching the filter.
func (c *Client) ListDividends(ctx context.Context, f Filter) ([]domain.Dividend, error) {
	var out []domain.Dividend
	if err := c.get(ctx, "/api/dividends/", f.query(), &out); err != nil {
		return nil, fmt.Errorf("list dividends: %w", err)
	}
	return out, nil
}

// CreatePortfolio creates a portfolio and returns the backend's record.
func (c *Client) CreatePortfolio(ctx context.Context, form PortfolioForm) (*domain.Portfolio, error) {
	var out domain.Portfolio
	if err := c.send(ctx, http.MethodPost, "/api/portfolios/", form, &out); err != nil {
		return nil, fmt.Errorf("create portfolio: %w", err)
	}
	return &out, nil
}

// UpdatePortfolio updates a portfolio's writable fields.
func (c *Client) UpdatePortfolio(ctx context.Context, id int64, form PortfolioForm) (*domain.Portfolio, error) {
	var out domain.Portfolio
	path := fmt.Sprintf("/api/portfolios/%d", id)
	if err := c.send(ctx, http.MethodPut, path, form, &out); err != nil {
		return nil, fmt.Errorf("update portfolio %d: %w", id, err)
	}
	return &out, nil
}

// DeletePortfolio removes a portfolio.
func (c *Client) DeletePortfolio(ctx context.Context, id int64) error {
	path := fmt.Sprintf("/api/portfolios/%d", id)
	if err := c.send(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete portfolio %d: %w", id, err)
	}
	return nil
}

// DeletePosition removes one position from a portfolio.
func (c *Client) DeletePosition(ctx context.Context, portfolioID, assetID int64) error {
	path := fmt.Sprintf("/api/portfolios/%d/positions/%d", portfolioID, assetID)
	if err := c.send(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("delete position %d/%d: %w", portfolioID, assetID, err)
	}
	return nil
}

// UpdateAssetPrice asks the backend to refresh one asset's market price.
func (c *Client) UpdateAssetPrice(ctx context.Context, assetID int64) error {
	path := fmt.Sprintf("/api/assets/%d/update-price", assetID)
	if err := c.send(ctx, http.MethodPost, path, nil, nil); err != nil {
		return fmt.Errorf("update price for asset %d: %w", assetID, err)
	}
	return nil
}

// BatchUpdatePrices asks the backend to refresh all asset prices.
func (c *Client) BatchUpdatePrices(ctx context.Context) error {
	if err := c.send(ctx, http.MethodPost, "/api/assets/batch-update-prices", nil, nil); err != nil {
		return fmt.Errorf("batch update prices: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return c.do(ctx, http.MethodGet, u, nil, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out interface{}) error {
	return c.do(ctx, method, c.baseURL+path, body, out)
}

func (c *Client) do(ctx context.Context, method, url string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("method", method).
		Str("url", url).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Backend request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, string(excerpt))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
