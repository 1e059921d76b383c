// Package selector picks the asset a painting run is about.
package selector

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Source tags where a candidate came from.
type Source string

const (
	// SourceTrending marks candidates found via trending discovery.
	SourceTrending Source = "trending"
	// SourceOverride marks candidates forced via the operator override list.
	SourceOverride Source = "override"
)

// Candidate is one asset under consideration for the current run.
type Candidate struct {
	ID             string
	Symbol         string
	Name           string
	LogoURL        string
	Price          decimal.Decimal
	PriceChange24h float64
	PriceChange7d  float64
	Volume24h      decimal.Decimal
	MarketCap      decimal.Decimal
	Categories     []string
	Source         Source
	// Rank is the discovery rank (0 = hottest) in trending mode.
	Rank int
	// ForcePriority is the override list position in override mode; lower wins.
	ForcePriority int
}

// Scores records the components behind a winning candidate.
type Scores struct {
	Trend  float64
	Impact float64
	Mood   float64
	Final  float64
}

// Selected is the winning candidate enriched with its scores.
type Selected struct {
	Candidate
	Scores Scores
}

// TrendingItem is one entry of the trending discovery feed.
type TrendingItem struct {
	ID      string
	Symbol  string
	Name    string
	LogoURL string
	Rank    int
}

// TrendingProvider retrieves the trending discovery feed.
type TrendingProvider interface {
	FetchTrending(ctx context.Context, limit int) ([]TrendingItem, error)
}

// MarketLister enriches a batch of asset ids with market detail.
type MarketLister interface {
	FetchMarketRows(ctx context.Context, ids []string) ([]MarketDetail, error)
}

// MarketDetail is the enrichment shape the selector consumes.
type MarketDetail struct {
	ID             string
	Symbol         string
	Name           string
	LogoURL        string
	Price          float64
	PriceChange24h float64
	PriceChange7d  float64
	Volume24h      float64
	MarketCap      float64
	Categories     []string
}

// SymbolResolver maps a ticker symbol to a canonical asset id.
type SymbolResolver interface {
	ResolveSymbol(ctx context.Context, symbol string) (string, error)
}

// TokenStore persists winners and serves recency-exclusion lookups.
type TokenStore interface {
	RecentTokenIDs(ctx context.Context, since time.Time) ([]string, error)
	UpsertToken(ctx context.Context, token Selected) error
}
