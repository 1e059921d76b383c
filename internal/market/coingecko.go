package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"moodcanvas/internal/apperr"
)

const globalPath = "/global"

// GlobalOptions parameterise the aggregates client.
type GlobalOptions struct {
	BaseURL   string
	APIKey    string
	Timeout   time.Duration
	UserAgent string
}

// Global fetches global aggregates from a CoinGecko-compatible API.
type Global struct {
	opts    GlobalOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewGlobal constructs an aggregates client.
func NewGlobal(opts GlobalOptions, logger zerolog.Logger) *Global {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	return &Global{
		opts:    opts,
		logger:  logger.With().Str("component", "global_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type globalResponse struct {
	Data struct {
		ActiveCryptocurrencies int                `json:"active_cryptocurrencies"`
		Markets                int                `json:"markets"`
		TotalMarketCap         map[string]float64 `json:"total_market_cap"`
		TotalVolume            map[string]float64 `json:"total_volume"`
		MarketCapPercentage    map[string]float64 `json:"market_cap_percentage"`
		MarketCapChange24hUSD  float64            `json:"market_cap_change_percentage_24h_usd"`
		UpdatedAt              int64              `json:"updated_at"`
	} `json:"data"`
}

// FetchGlobal retrieves the mandatory market aggregates.
func (g *Global) FetchGlobal(ctx context.Context) (Snapshot, error) {
	payload, err := g.getJSON(ctx, g.baseURL+globalPath)
	if err != nil {
		return Snapshot{}, err
	}

	var res globalResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return Snapshot{}, &apperr.ExternalAPIError{Provider: "market-data", Message: "malformed global response", Cause: err}
	}

	capUSD, ok := res.Data.TotalMarketCap["usd"]
	if !ok {
		return Snapshot{}, &apperr.ExternalAPIError{Provider: "market-data", Message: "usd market cap missing from response"}
	}

	snapshot := Snapshot{
		TotalMarketCapUSD:  decimal.NewFromFloat(capUSD),
		TotalVolumeUSD:     decimal.NewFromFloat(res.Data.TotalVolume["usd"]),
		MarketCapChange24h: res.Data.MarketCapChange24hUSD,
		BTCDominance:       res.Data.MarketCapPercentage["btc"],
		ETHDominance:       res.Data.MarketCapPercentage["eth"],
		ActiveAssets:       res.Data.ActiveCryptocurrencies,
		Markets:            res.Data.Markets,
		UpdatedAt:          time.Unix(res.Data.UpdatedAt, 0).UTC(),
	}
	if snapshot.UpdatedAt.IsZero() || res.Data.UpdatedAt == 0 {
		snapshot.UpdatedAt = time.Now().UTC()
	}

	return snapshot, nil
}

// FetchMarkets retrieves market detail for a batch of asset ids.
func (g *Global) FetchMarkets(ctx context.Context, ids []string) ([]MarketRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	endpoint := fmt.Sprintf(
		"%s/coins/markets?vs_currency=usd&ids=%s&price_change_percentage=24h%%2C7d",
		g.baseURL,
		url.QueryEscape(strings.Join(ids, ",")),
	)

	payload, err := g.getJSON(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	var rows []MarketRow
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, &apperr.ExternalAPIError{Provider: "market-data", Message: "malformed markets response", Cause: err}
	}
	return rows, nil
}

// MarketRow mirrors one entry of the markets listing.
type MarketRow struct {
	ID                string   `json:"id"`
	Symbol            string   `json:"symbol"`
	Name              string   `json:"name"`
	Image             string   `json:"image"`
	CurrentPrice      float64  `json:"current_price"`
	MarketCap         float64  `json:"market_cap"`
	TotalVolume       float64  `json:"total_volume"`
	PriceChange24h    float64  `json:"price_change_percentage_24h"`
	PriceChange7d     float64  `json:"price_change_percentage_7d_in_currency"`
	Categories        []string `json:"categories"`
}

func (g *Global) getJSON(ctx context.Context, endpoint string) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &apperr.InternalError{Cause: err}
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(g.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	if g.opts.APIKey != "" {
		req.Header.Set("x-cg-demo-api-key", g.opts.APIKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		if urlErr, ok := err.(*url.Error); ok && urlErr.Timeout() {
			return nil, &apperr.TimeoutError{Op: "market-data request", Elapsed: time.Since(start), Configured: g.client.Timeout}
		}
		return nil, &apperr.ExternalAPIError{Provider: "market-data", Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apperr.ExternalAPIError{Provider: "market-data", Message: "read response", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &apperr.ExternalAPIError{
			Provider: "market-data",
			Status:   resp.StatusCode,
			Message:  strings.TrimSpace(string(payload)),
		}
	}

	return payload, nil
}

var _ GlobalFetcher = (*Global)(nil)
