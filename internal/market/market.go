// Package market retrieves global market aggregates and the external
// sentiment index that feed the painting pipeline.
package market

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Snapshot captures one immutable observation of the global market.
type Snapshot struct {
	TotalMarketCapUSD  decimal.Decimal
	TotalVolumeUSD     decimal.Decimal
	MarketCapChange24h float64
	BTCDominance       float64
	ETHDominance       float64
	ActiveAssets       int
	Markets            int
	// SentimentIndex is nil when the sentiment provider was unreachable.
	SentimentIndex     *float64
	SentimentLabel     string
	UpdatedAt          time.Time
}

// GlobalFetcher retrieves mandatory global market aggregates.
type GlobalFetcher interface {
	FetchGlobal(ctx context.Context) (Snapshot, error)
}

// SentimentFetcher retrieves the external sentiment index.
type SentimentFetcher interface {
	FetchSentiment(ctx context.Context) (float64, string, error)
}

// SnapshotFetcher combines the mandatory aggregates call with the
// best-effort sentiment call.
type SnapshotFetcher struct {
	global    GlobalFetcher
	sentiment SentimentFetcher
	logger    zerolog.Logger
}

// NewSnapshotFetcher wires the two providers together.
func NewSnapshotFetcher(global GlobalFetcher, sentiment SentimentFetcher, logger zerolog.Logger) *SnapshotFetcher {
	return &SnapshotFetcher{
		global:    global,
		sentiment: sentiment,
		logger:    logger.With().Str("component", "market_fetcher").Logger(),
	}
}

// FetchSnapshot retrieves a full market snapshot. A failing sentiment call
// degrades to a nil SentimentIndex; a failing aggregates call is fatal.
func (f *SnapshotFetcher) FetchSnapshot(ctx context.Context) (Snapshot, error) {
	snapshot, err := f.global.FetchGlobal(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	if f.sentiment != nil {
		value, label, sentErr := f.sentiment.FetchSentiment(ctx)
		if sentErr != nil {
			f.logger.Warn().Err(sentErr).Msg("sentiment fetch failed; continuing without index")
		} else {
			snapshot.SentimentIndex = &value
			snapshot.SentimentLabel = label
		}
	}

	return snapshot, nil
}
