package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Painting is one indexed archive row.
type Painting struct {
	ID             string
	Timestamp      time.Time
	Bucket         time.Time
	ParamsHash     string
	Seed           string
	ObjectKey      string
	ImageURL       string
	FileSize       int64
	VisualParams   json.RawMessage
	Prompt         string
	NegativePrompt string
	CreatedAt      time.Time
}

// MarketSnapshotRecord is a persisted per-bucket market observation.
type MarketSnapshotRecord struct {
	Bucket             time.Time
	TotalMarketCapUSD  decimal.Decimal
	TotalVolumeUSD     decimal.Decimal
	MarketCapChange24h float64
	BTCDominance       float64
	ETHDominance       float64
	ActiveAssets       int
	Markets            int
	SentimentIndex     *float64
	SentimentLabel     string
	UpdatedAt          time.Time
	CreatedAt          time.Time
}

// TokenRecord is a row of the tokens table used for recency exclusion.
type TokenRecord struct {
	ID             string
	Symbol         string
	Name           string
	CategoriesJSON string
	LastSelectedAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
