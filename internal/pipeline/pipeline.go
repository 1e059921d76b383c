// Package pipeline orchestrates one painting run end to end: token
// selection, market snapshot, symbolic classification, prompt composition,
// image generation, and archival.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"moodcanvas/internal/archive"
	"moodcanvas/internal/classify"
	"moodcanvas/internal/imagegen"
	"moodcanvas/internal/market"
	"moodcanvas/internal/prompt"
	"moodcanvas/internal/selector"
	"moodcanvas/internal/storage"
)

// Status reports how a run ended.
type Status string

const (
	// StatusSkipped means the bucket already has a painting.
	StatusSkipped Status = "skipped"
	// StatusGenerated means the painting was stored but the index row
	// could not be written; the archive remains servable via fallback.
	StatusGenerated Status = "generated"
	// StatusArchived means storage and indexing both succeeded.
	StatusArchived Status = "archived"
)

// Result summarises one run for logs and the CLI.
type Result struct {
	Status      Status
	Bucket      time.Time
	BucketLabel string
	TokenID     string
	TokenSymbol string
	ObjectKey   string
	ImageURL    string
	ParamsHash  string
	Seed        string
	Warning     string
}

// SnapshotProvider retrieves the live market snapshot.
type SnapshotProvider interface {
	FetchSnapshot(ctx context.Context) (market.Snapshot, error)
}

// TokenSelector picks the run's token.
type TokenSelector interface {
	SelectToken(ctx context.Context, opts selector.Options) (selector.Selected, error)
}

// CategoryLookup reads the persisted category list for a token.
type CategoryLookup interface {
	TokenCategories(ctx context.Context, id string) (string, error)
}

// ArchiveWriter persists the painting and its index row.
type ArchiveWriter interface {
	StoreImageWithMetadata(ctx context.Context, meta archive.Metadata, image []byte, format string) (archive.StoredArtifact, archive.Metadata, error)
	IndexPainting(ctx context.Context, meta archive.Metadata, objectKey string, bucket time.Time) error
}

// ListInvalidator drops cached archive listings after a successful run.
type ListInvalidator interface {
	InvalidateLists(ctx context.Context) error
}

// Describer supplies the one-line token description woven into the prompt.
type Describer interface {
	Describe(ctx context.Context, token selector.Selected) (string, error)
}

// StaticDescriber derives a short description from the token itself. It is
// the fallback when no richer description source is configured.
type StaticDescriber struct{}

func (StaticDescriber) Describe(_ context.Context, token selector.Selected) (string, error) {
	if len(token.Categories) > 0 {
		return fmt.Sprintf("%s, a %s asset", token.Name, strings.Join(token.Categories[:min(2, len(token.Categories))], " and ")), nil
	}
	return fmt.Sprintf("%s, a crypto asset", token.Name), nil
}

// Options carry the per-run settings resolved from config and CLI flags.
type Options struct {
	Interval time.Duration
	Selector selector.Options
	Prompt   prompt.Options
	Model    string
	// ReferenceImage enables image-to-image conditioning when set.
	ReferenceImage string
	// Force bypasses the idempotency check and regenerates the bucket.
	Force bool
}

// Service runs the painting pipeline.
type Service struct {
	selector    TokenSelector
	snapshots   SnapshotProvider
	snapStore   storage.SnapshotStore
	paintings   storage.PaintingStore
	categories  CategoryLookup
	generator   imagegen.Generator
	writer      ArchiveWriter
	describer   Describer
	invalidator ListInvalidator
	now         func() time.Time
	logger      zerolog.Logger
}

// New constructs a pipeline Service. snapStore, paintings, categories,
// describer, and invalidator may be nil; each missing piece degrades the
// run rather than failing it.
func New(sel TokenSelector, snapshots SnapshotProvider, snapStore storage.SnapshotStore, paintings storage.PaintingStore, categories CategoryLookup, generator imagegen.Generator, writer ArchiveWriter, logger zerolog.Logger) *Service {
	return &Service{
		selector:   sel,
		snapshots:  snapshots,
		snapStore:  snapStore,
		paintings:  paintings,
		categories: categories,
		generator:  generator,
		writer:     writer,
		describer:  StaticDescriber{},
		now:        time.Now,
		logger:     logger.With().Str("component", "pipeline").Logger(),
	}
}

// WithDescriber swaps the description source.
func (s *Service) WithDescriber(d Describer) *Service {
	if d != nil {
		s.describer = d
	}
	return s
}

// WithInvalidator attaches the archive list cache invalidator.
func (s *Service) WithInvalidator(inv ListInvalidator) *Service {
	s.invalidator = inv
	return s
}

// WithClock overrides the time source. Used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Execute runs one full pipeline pass for the current time bucket.
func (s *Service) Execute(ctx context.Context, opts Options) (Result, error) {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Hour
	}

	now := s.now().UTC()
	bucket := now.Truncate(interval)
	label := prompt.BucketLabel(bucket)
	logger := s.logger.With().Str("bucket", label).Logger()

	if !opts.Force {
		if skip, existing := s.bucketTaken(ctx, bucket, logger); skip {
			return Result{
				Status:      StatusSkipped,
				Bucket:      bucket,
				BucketLabel: label,
				ObjectKey:   existing.ObjectKey,
				ImageURL:    existing.ImageURL,
				ParamsHash:  existing.ParamsHash,
				Seed:        existing.Seed,
			}, nil
		}
	}

	token, err := s.selector.SelectToken(ctx, opts.Selector)
	if err != nil {
		return Result{}, fmt.Errorf("select token: %w", err)
	}
	logger.Info().
		Str("token", token.ID).
		Str("symbol", token.Symbol).
		Str("source", string(token.Source)).
		Float64("score", token.Scores.Final).
		Msg("token selected")

	snapshot, err := s.snapshots.FetchSnapshot(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("fetch market snapshot: %w", err)
	}

	if err := s.persistSnapshot(ctx, bucket, snapshot); err != nil {
		return Result{}, fmt.Errorf("persist market snapshot: %w", err)
	}

	paintingCtx := classify.BuildContext(snapshot, token, s.persistedCategories(ctx, token.ID, logger))
	logger.Info().
		Str("climate", string(paintingCtx.Climate)).
		Str("archetype", string(paintingCtx.Archetype)).
		Str("event", string(paintingCtx.Event.Kind)).
		Str("intensity", string(paintingCtx.Event.Intensity)).
		Float64("volatility", paintingCtx.Dynamics.Volatility).
		Msg("painting context derived")

	description, err := s.describer.Describe(ctx, token)
	if err != nil {
		logger.Warn().Err(err).Msg("description source failed; using static fallback")
		description, _ = StaticDescriber{}.Describe(ctx, token)
	}

	comp, err := prompt.Compose(paintingCtx, description, bucket, opts.Prompt)
	if err != nil {
		return Result{}, fmt.Errorf("compose prompt: %w", err)
	}

	generated, err := s.generator.Generate(ctx, imagegen.Request{
		Prompt:            comp.Prompt,
		NegativePrompt:    comp.NegativePrompt,
		Width:             comp.Width,
		Height:            comp.Height,
		Format:            comp.Format,
		Seed:              prompt.SeedUint32(comp.Seed),
		Model:             opts.Model,
		ReferenceImageURL: opts.ReferenceImage,
	})
	if err != nil {
		return Result{}, fmt.Errorf("generate image: %w", err)
	}
	logger.Info().
		Str("provider", generated.Meta.Provider).
		Int("bytes", len(generated.Image)).
		Msg("image generated")

	meta := archive.NewMetadata(comp, now)

	artifact, meta, err := s.writer.StoreImageWithMetadata(ctx, meta, generated.Image, comp.Format)
	if err != nil {
		return Result{}, fmt.Errorf("store painting: %w", err)
	}

	result := Result{
		Status:      StatusArchived,
		Bucket:      bucket,
		BucketLabel: label,
		TokenID:     token.ID,
		TokenSymbol: token.Symbol,
		ObjectKey:   artifact.ObjectKey,
		ImageURL:    artifact.ImageURL,
		ParamsHash:  comp.ParamsHash,
		Seed:        comp.Seed,
	}

	if err := s.writer.IndexPainting(ctx, meta, artifact.ObjectKey, bucket); err != nil {
		// The object store copy is authoritative; reads fall back to it.
		logger.Warn().Err(err).Msg("index insert failed; painting stored but unindexed")
		result.Status = StatusGenerated
		result.Warning = "painting stored but not indexed"
	}

	if s.invalidator != nil {
		if err := s.invalidator.InvalidateLists(ctx); err != nil {
			logger.Warn().Err(err).Msg("list cache invalidation failed")
		}
	}

	logger.Info().
		Str("status", string(result.Status)).
		Str("object_key", result.ObjectKey).
		Str("params_hash", result.ParamsHash).
		Msg("pipeline run complete")

	return result, nil
}

// bucketTaken checks the idempotency guard. An index error is treated as
// "not taken" so an index outage cannot stall generation.
func (s *Service) bucketTaken(ctx context.Context, bucket time.Time, logger zerolog.Logger) (bool, *storage.Painting) {
	if s.paintings == nil {
		return false, nil
	}
	existing, err := s.paintings.GetPaintingByBucket(ctx, bucket)
	if err != nil {
		logger.Warn().Err(err).Msg("idempotency check failed; proceeding with generation")
		return false, nil
	}
	if existing == nil {
		return false, nil
	}
	logger.Info().Str("id", existing.ID).Msg("bucket already painted; skipping")
	return true, existing
}

// persistSnapshot writes the bucket's market snapshot. A write failure is
// fatal to the run: a painting must never exist for a bucket that has no
// snapshot row.
func (s *Service) persistSnapshot(ctx context.Context, bucket time.Time, snapshot market.Snapshot) error {
	if s.snapStore == nil {
		return nil
	}
	rec := storage.MarketSnapshotRecord{
		Bucket:             bucket,
		TotalMarketCapUSD:  snapshot.TotalMarketCapUSD,
		TotalVolumeUSD:     snapshot.TotalVolumeUSD,
		MarketCapChange24h: snapshot.MarketCapChange24h,
		BTCDominance:       snapshot.BTCDominance,
		ETHDominance:       snapshot.ETHDominance,
		ActiveAssets:       snapshot.ActiveAssets,
		Markets:            snapshot.Markets,
		SentimentIndex:     snapshot.SentimentIndex,
		SentimentLabel:     snapshot.SentimentLabel,
		UpdatedAt:          snapshot.UpdatedAt,
	}
	return s.snapStore.UpsertMarketSnapshot(ctx, rec)
}

func (s *Service) persistedCategories(ctx context.Context, id string, logger zerolog.Logger) string {
	if s.categories == nil {
		return ""
	}
	categories, err := s.categories.TokenCategories(ctx, id)
	if err != nil {
		logger.Warn().Err(err).Msg("category lookup failed; using live tags")
		return ""
	}
	return categories
}
