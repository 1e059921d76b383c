package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"moodcanvas/internal/selector"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	upsertSnapshotSQL = `INSERT INTO market_snapshots (
        bucket_ts,
        total_market_cap_usd,
        total_volume_usd,
        market_cap_change_24h,
        btc_dominance,
        eth_dominance,
        active_assets,
        markets,
        sentiment_index,
        sentiment_label,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    )
    ON CONFLICT (bucket_ts) DO UPDATE
    SET
        total_market_cap_usd  = EXCLUDED.total_market_cap_usd,
        total_volume_usd      = EXCLUDED.total_volume_usd,
        market_cap_change_24h = EXCLUDED.market_cap_change_24h,
        btc_dominance         = EXCLUDED.btc_dominance,
        eth_dominance         = EXCLUDED.eth_dominance,
        active_assets         = EXCLUDED.active_assets,
        markets               = EXCLUDED.markets,
        sentiment_index       = EXCLUDED.sentiment_index,
        sentiment_label       = EXCLUDED.sentiment_label,
        updated_at            = EXCLUDED.updated_at;`

	listSnapshotsBetweenSQL = `SELECT
        bucket_ts,
        total_market_cap_usd,
        total_volume_usd,
        market_cap_change_24h,
        btc_dominance,
        eth_dominance,
        active_assets,
        markets,
        sentiment_index,
        sentiment_label,
        updated_at,
        created_at
    FROM market_snapshots
    WHERE bucket_ts >= $1
      AND bucket_ts < $2
    ORDER BY bucket_ts;`

	upsertTokenSQL = `INSERT INTO tokens (
        id,
        symbol,
        name,
        categories,
        last_selected_at
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (id) DO UPDATE
    SET symbol           = EXCLUDED.symbol,
        name             = EXCLUDED.name,
        categories       = EXCLUDED.categories,
        last_selected_at = EXCLUDED.last_selected_at,
        updated_at       = now();`

	recentTokenIDsSQL = `SELECT id FROM tokens WHERE last_selected_at >= $1;`

	tokenCategoriesSQL = `SELECT categories FROM tokens WHERE id = $1;`

	insertPaintingSQL = `INSERT INTO paintings (
        id,
        ts,
        bucket_ts,
        params_hash,
        seed,
        object_key,
        image_url,
        file_size,
        visual_params,
        prompt,
        negative_prompt
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
    );`

	paintingByBucketSQL = `SELECT
        id, ts, bucket_ts, params_hash, seed, object_key, image_url,
        file_size, visual_params, prompt, negative_prompt, created_at
    FROM paintings
    WHERE bucket_ts = $1;`

	listPaintingsHeadSQL = `SELECT
        id, ts, bucket_ts, params_hash, seed, object_key, image_url,
        file_size, visual_params, prompt, negative_prompt, created_at
    FROM paintings
    WHERE ($1::timestamptz IS NULL OR ts >= $1)
      AND ($2::timestamptz IS NULL OR ts < $2)
    ORDER BY ts DESC, id DESC
    LIMIT $3;`

	listPaintingsAfterCursorSQL = `SELECT
        id, ts, bucket_ts, params_hash, seed, object_key, image_url,
        file_size, visual_params, prompt, negative_prompt, created_at
    FROM paintings
    WHERE ($1::timestamptz IS NULL OR ts >= $1)
      AND ($2::timestamptz IS NULL OR ts < $2)
      AND (ts, id) < ($3, $4)
    ORDER BY ts DESC, id DESC
    LIMIT $5;`
)

// SnapshotStore persists per-bucket market snapshots.
type SnapshotStore interface {
	UpsertMarketSnapshot(ctx context.Context, rec MarketSnapshotRecord) error
	ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]MarketSnapshotRecord, error)
}

// PaintingStore is the relational index over archived paintings.
type PaintingStore interface {
	InsertPainting(ctx context.Context, painting Painting) error
	GetPaintingByBucket(ctx context.Context, bucket time.Time) (*Painting, error)
	ListPaintings(ctx context.Context, q ListQuery) ([]Painting, error)
}

// ListQuery parameterises keyset pagination over the paintings index.
type ListQuery struct {
	Limit    int
	From     *time.Time
	To       *time.Time
	CursorTS *time.Time
	CursorID string
}

// Store aggregates relational access for the pipeline and archive.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertMarketSnapshot persists or refreshes the snapshot for its bucket.
func (s *Store) UpsertMarketSnapshot(ctx context.Context, rec MarketSnapshotRecord) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	var sentiment interface{}
	if rec.SentimentIndex != nil {
		sentiment = *rec.SentimentIndex
	}

	_, execErr := pool.Exec(ctx, upsertSnapshotSQL,
		rec.Bucket,
		rec.TotalMarketCapUSD.String(),
		rec.TotalVolumeUSD.String(),
		rec.MarketCapChange24h,
		rec.BTCDominance,
		rec.ETHDominance,
		rec.ActiveAssets,
		rec.Markets,
		sentiment,
		rec.SentimentLabel,
		rec.UpdatedAt,
	)
	if execErr != nil {
		return fmt.Errorf("upsert market snapshot: %w", execErr)
	}
	return nil
}

// ListSnapshotsBetween lists snapshots within a time window.
func (s *Store) ListSnapshotsBetween(ctx context.Context, from, to time.Time) ([]MarketSnapshotRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listSnapshotsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list snapshots between: %w", queryErr)
	}
	defer rows.Close()

	records := make([]MarketSnapshotRecord, 0)
	for rows.Next() {
		rec, scanErr := scanSnapshot(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// UpsertToken records the winning token of a run for recency exclusion.
func (s *Store) UpsertToken(ctx context.Context, token selector.Selected) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	categories, err := json.Marshal(token.Categories)
	if err != nil {
		return fmt.Errorf("marshal token categories: %w", err)
	}

	_, execErr := pool.Exec(ctx, upsertTokenSQL,
		token.ID,
		token.Symbol,
		token.Name,
		categories,
		time.Now().UTC(),
	)
	if execErr != nil {
		return fmt.Errorf("upsert token: %w", execErr)
	}
	return nil
}

// RecentTokenIDs returns ids of tokens selected at or after since.
func (s *Store) RecentTokenIDs(ctx context.Context, since time.Time) ([]string, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, recentTokenIDsSQL, since)
	if queryErr != nil {
		return nil, fmt.Errorf("recent token ids: %w", queryErr)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return ids, nil
}

// TokenCategories returns the persisted categories JSON for a token id, or
// an empty string when the token is unknown.
func (s *Store) TokenCategories(ctx context.Context, id string) (string, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", err
	}

	var categories json.RawMessage
	if scanErr := pool.QueryRow(ctx, tokenCategoriesSQL, id).Scan(&categories); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("token categories: %w", scanErr)
	}
	return string(categories), nil
}

// InsertPainting indexes a painting row. The bucket uniqueness constraint
// is what makes duplicate scheduler ticks detectable.
func (s *Store) InsertPainting(ctx context.Context, painting Painting) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertPaintingSQL,
		painting.ID,
		painting.Timestamp,
		painting.Bucket,
		painting.ParamsHash,
		painting.Seed,
		painting.ObjectKey,
		painting.ImageURL,
		painting.FileSize,
		[]byte(painting.VisualParams),
		painting.Prompt,
		painting.NegativePrompt,
	)
	if execErr != nil {
		return fmt.Errorf("insert painting: %w", execErr)
	}
	return nil
}

// GetPaintingByBucket returns the row for a bucket, or nil when absent.
func (s *Store) GetPaintingByBucket(ctx context.Context, bucket time.Time) (*Painting, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	row := pool.QueryRow(ctx, paintingByBucketSQL, bucket)
	painting, scanErr := scanPaintingRow(row)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("painting by bucket: %w", scanErr)
	}
	return &painting, nil
}

// ListPaintings pages the index by recency using a (ts, id) keyset cursor.
func (s *Store) ListPaintings(ctx context.Context, q ListQuery) ([]Painting, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var from, to interface{}
	if q.From != nil {
		from = *q.From
	}
	if q.To != nil {
		to = *q.To
	}

	var rows pgx.Rows
	var queryErr error
	if q.CursorTS != nil && q.CursorID != "" {
		rows, queryErr = pool.Query(ctx, listPaintingsAfterCursorSQL, from, to, *q.CursorTS, q.CursorID, q.Limit)
	} else {
		rows, queryErr = pool.Query(ctx, listPaintingsHeadSQL, from, to, q.Limit)
	}
	if queryErr != nil {
		return nil, fmt.Errorf("list paintings: %w", queryErr)
	}
	defer rows.Close()

	paintings := make([]Painting, 0, q.Limit)
	for rows.Next() {
		painting, scanErr := scanPaintingRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		paintings = append(paintings, painting)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return paintings, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPaintingRow(row rowScanner) (Painting, error) {
	var (
		painting Painting
		fileSize sql.NullInt64
		params   json.RawMessage
	)

	if err := row.Scan(
		&painting.ID,
		&painting.Timestamp,
		&painting.Bucket,
		&painting.ParamsHash,
		&painting.Seed,
		&painting.ObjectKey,
		&painting.ImageURL,
		&fileSize,
		&params,
		&painting.Prompt,
		&painting.NegativePrompt,
		&painting.CreatedAt,
	); err != nil {
		return Painting{}, err
	}

	if fileSize.Valid {
		painting.FileSize = fileSize.Int64
	}
	painting.VisualParams = params
	return painting, nil
}

func scanSnapshot(rows pgx.Rows) (MarketSnapshotRecord, error) {
	var (
		rec       MarketSnapshotRecord
		capStr    string
		volStr    string
		sentiment sql.NullFloat64
		label     sql.NullString
	)

	if err := rows.Scan(
		&rec.Bucket,
		&capStr,
		&volStr,
		&rec.MarketCapChange24h,
		&rec.BTCDominance,
		&rec.ETHDominance,
		&rec.ActiveAssets,
		&rec.Markets,
		&sentiment,
		&label,
		&rec.UpdatedAt,
		&rec.CreatedAt,
	); err != nil {
		return MarketSnapshotRecord{}, err
	}

	totalCap, err := decimal.NewFromString(capStr)
	if err != nil {
		return MarketSnapshotRecord{}, fmt.Errorf("parse total market cap: %w", err)
	}
	totalVol, err := decimal.NewFromString(volStr)
	if err != nil {
		return MarketSnapshotRecord{}, fmt.Errorf("parse total volume: %w", err)
	}

	rec.TotalMarketCapUSD = totalCap
	rec.TotalVolumeUSD = totalVol
	if sentiment.Valid {
		value := sentiment.Float64
		rec.SentimentIndex = &value
	}
	if label.Valid {
		rec.SentimentLabel = label.String
	}
	return rec, nil
}

var (
	_ SnapshotStore      = (*Store)(nil)
	_ PaintingStore      = (*Store)(nil)
	_ selector.TokenStore = (*Store)(nil)
)
