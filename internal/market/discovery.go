package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"moodcanvas/internal/apperr"
	"moodcanvas/internal/selector"
)

type trendingResponse struct {
	Coins []struct {
		Item struct {
			ID     string `json:"id"`
			Symbol string `json:"symbol"`
			Name   string `json:"name"`
			Large  string `json:"large"`
			Score  int    `json:"score"`
		} `json:"item"`
	} `json:"coins"`
}

// FetchTrending retrieves the trending discovery feed, bounded by limit.
func (g *Global) FetchTrending(ctx context.Context, limit int) ([]selector.TrendingItem, error) {
	payload, err := g.getJSON(ctx, g.baseURL+"/search/trending")
	if err != nil {
		return nil, err
	}

	var res trendingResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, &apperr.ExternalAPIError{Provider: "trending", Message: "malformed trending response", Cause: err}
	}

	items := make([]selector.TrendingItem, 0, limit)
	for i, coin := range res.Coins {
		if i >= limit {
			break
		}
		items = append(items, selector.TrendingItem{
			ID:      coin.Item.ID,
			Symbol:  strings.ToUpper(coin.Item.Symbol),
			Name:    coin.Item.Name,
			LogoURL: coin.Item.Large,
			Rank:    i,
		})
	}
	return items, nil
}

// FetchMarketRows enriches a batch of asset ids with market detail.
func (g *Global) FetchMarketRows(ctx context.Context, ids []string) ([]selector.MarketDetail, error) {
	rows, err := g.FetchMarkets(ctx, ids)
	if err != nil {
		return nil, err
	}

	details := make([]selector.MarketDetail, 0, len(rows))
	for _, row := range rows {
		details = append(details, selector.MarketDetail{
			ID:             row.ID,
			Symbol:         row.Symbol,
			Name:           row.Name,
			LogoURL:        row.Image,
			Price:          row.CurrentPrice,
			PriceChange24h: row.PriceChange24h,
			PriceChange7d:  row.PriceChange7d,
			Volume24h:      row.TotalVolume,
			MarketCap:      row.MarketCap,
			Categories:     row.Categories,
		})
	}
	return details, nil
}

type searchResponse struct {
	Coins []struct {
		ID     string `json:"id"`
		Symbol string `json:"symbol"`
	} `json:"coins"`
}

// ResolveSymbol maps a ticker symbol to its canonical asset id. When
// several assets share the symbol the first (highest-ranked) match wins.
func (g *Global) ResolveSymbol(ctx context.Context, symbol string) (string, error) {
	endpoint := fmt.Sprintf("%s/search?query=%s", g.baseURL, url.QueryEscape(symbol))
	payload, err := g.getJSON(ctx, endpoint)
	if err != nil {
		return "", err
	}

	var res searchResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return "", &apperr.ExternalAPIError{Provider: "market-data", Message: "malformed search response", Cause: err}
	}

	for _, coin := range res.Coins {
		if strings.EqualFold(coin.Symbol, symbol) {
			return coin.ID, nil
		}
	}
	return "", &apperr.ExternalAPIError{Provider: "market-data", Message: fmt.Sprintf("symbol %q not found", symbol)}
}

var (
	_ selector.TrendingProvider = (*Global)(nil)
	_ selector.MarketLister     = (*Global)(nil)
	_ selector.SymbolResolver   = (*Global)(nil)
)
