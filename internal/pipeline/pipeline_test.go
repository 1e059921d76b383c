package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"moodcanvas/internal/archive"
	"moodcanvas/internal/imagegen"
	"moodcanvas/internal/market"
	"moodcanvas/internal/objstore"
	"moodcanvas/internal/prompt"
	"moodcanvas/internal/selector"
	"moodcanvas/internal/storage"
)

type fakeSelector struct {
	token selector.Selected
	err   error
}

func (f *fakeSelector) SelectToken(context.Context, selector.Options) (selector.Selected, error) {
	return f.token, f.err
}

type fakeSnapshots struct {
	snapshot market.Snapshot
	err      error
}

func (f *fakeSnapshots) FetchSnapshot(context.Context) (market.Snapshot, error) {
	return f.snapshot, f.err
}

type fakePaintingIndex struct {
	existing  *storage.Painting
	getErr    error
	insertErr error
	inserted  []storage.Painting
}

func (f *fakePaintingIndex) InsertPainting(_ context.Context, p storage.Painting) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, p)
	return nil
}

func (f *fakePaintingIndex) GetPaintingByBucket(context.Context, time.Time) (*storage.Painting, error) {
	return f.existing, f.getErr
}

func (f *fakePaintingIndex) ListPaintings(context.Context, storage.ListQuery) ([]storage.Painting, error) {
	return nil, nil
}

type fakeSnapshotStore struct {
	upserted []storage.MarketSnapshotRecord
	err      error
}

func (f *fakeSnapshotStore) UpsertMarketSnapshot(_ context.Context, rec storage.MarketSnapshotRecord) error {
	if f.err != nil {
		return f.err
	}
	f.upserted = append(f.upserted, rec)
	return nil
}

func (f *fakeSnapshotStore) ListSnapshotsBetween(context.Context, time.Time, time.Time) ([]storage.MarketSnapshotRecord, error) {
	return nil, nil
}

func testToken() selector.Selected {
	return selector.Selected{
		Candidate: selector.Candidate{
			ID:             "solana",
			Symbol:         "SOL",
			Name:           "Solana",
			PriceChange24h: 8,
			PriceChange7d:  25,
			Volume24h:      decimal.NewFromInt(3_000_000_000),
			MarketCap:      decimal.NewFromInt(60_000_000_000),
			Categories:     []string{"l1"},
			Source:         selector.SourceTrending,
		},
	}
}

func testSnapshot() market.Snapshot {
	sentiment := 80.0
	return market.Snapshot{
		TotalMarketCapUSD:  decimal.NewFromInt(3_000_000_000_000),
		TotalVolumeUSD:     decimal.NewFromInt(150_000_000_000),
		MarketCapChange24h: 4,
		BTCDominance:       52,
		ETHDominance:       17,
		SentimentIndex:     &sentiment,
		UpdatedAt:          time.Now().UTC(),
	}
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestService(index *fakePaintingIndex, snapStore *fakeSnapshotStore, store *objstore.Memory) *Service {
	writer := archive.NewWriter(store, index, zerolog.Nop())
	svc := New(
		&fakeSelector{token: testToken()},
		&fakeSnapshots{snapshot: testSnapshot()},
		snapStore,
		index,
		nil,
		&imagegen.Mock{Payload: []byte("mock-image")},
		writer,
		zerolog.Nop(),
	)
	return svc.WithClock(fixedClock(time.Date(2026, 8, 29, 14, 30, 0, 0, time.UTC)))
}

func defaultOptions() Options {
	return Options{
		Interval: time.Hour,
		Prompt:   prompt.Options{Width: 512, Height: 512},
	}
}

func TestExecuteHappyPath(t *testing.T) {
	index := &fakePaintingIndex{}
	snapStore := &fakeSnapshotStore{}
	store := objstore.NewMemory()

	result, err := newTestService(index, snapStore, store).Execute(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if result.Status != StatusArchived {
		t.Fatalf("status = %s, want archived", result.Status)
	}
	if result.BucketLabel != "20260829T14" {
		t.Fatalf("bucket label = %q", result.BucketLabel)
	}
	if result.TokenID != "solana" {
		t.Fatalf("token = %q", result.TokenID)
	}
	if store.Len() != 2 {
		t.Fatalf("expected image plus metadata in the store, got %d objects", store.Len())
	}
	if len(index.inserted) != 1 {
		t.Fatalf("expected one index row, got %d", len(index.inserted))
	}
	if len(snapStore.upserted) != 1 {
		t.Fatalf("expected one snapshot row, got %d", len(snapStore.upserted))
	}

	row := index.inserted[0]
	if row.ParamsHash != result.ParamsHash || row.Seed != result.Seed {
		t.Fatal("index row must carry the result's hash and seed")
	}
	if !row.Bucket.Equal(time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC)) {
		t.Fatalf("bucket = %v, want truncated hour", row.Bucket)
	}
}

func TestExecuteSkipsPaintedBucket(t *testing.T) {
	index := &fakePaintingIndex{existing: &storage.Painting{ID: "done", ObjectKey: "images/x.webp"}}
	store := objstore.NewMemory()

	result, err := newTestService(index, &fakeSnapshotStore{}, store).Execute(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != StatusSkipped {
		t.Fatalf("status = %s, want skipped", result.Status)
	}
	if store.Len() != 0 {
		t.Fatal("a skipped run must not write anything")
	}
}

func TestExecuteForceBypassesIdempotency(t *testing.T) {
	index := &fakePaintingIndex{existing: &storage.Painting{ID: "done"}}
	store := objstore.NewMemory()

	opts := defaultOptions()
	opts.Force = true

	result, err := newTestService(index, &fakeSnapshotStore{}, store).Execute(context.Background(), opts)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != StatusArchived {
		t.Fatalf("status = %s, want archived", result.Status)
	}
}

func TestExecuteIdempotencyCheckErrorProceeds(t *testing.T) {
	index := &fakePaintingIndex{getErr: errors.New("index down")}
	store := objstore.NewMemory()

	result, err := newTestService(index, &fakeSnapshotStore{}, store).Execute(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result.Status != StatusArchived {
		t.Fatalf("status = %s, want archived despite the failed check", result.Status)
	}
}

func TestExecuteIndexFailureIsSoft(t *testing.T) {
	index := &fakePaintingIndex{insertErr: errors.New("index down")}
	store := objstore.NewMemory()

	result, err := newTestService(index, &fakeSnapshotStore{}, store).Execute(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("an index failure must not fail the run: %v", err)
	}
	if result.Status != StatusGenerated {
		t.Fatalf("status = %s, want generated", result.Status)
	}
	if result.Warning == "" {
		t.Fatal("soft failure must surface a warning")
	}
	if store.Len() != 2 {
		t.Fatal("painting and metadata must remain in the store")
	}
}

func TestExecuteSnapshotStoreFailureIsFatal(t *testing.T) {
	index := &fakePaintingIndex{}
	snapStore := &fakeSnapshotStore{err: errors.New("db down")}
	store := objstore.NewMemory()

	_, err := newTestService(index, snapStore, store).Execute(context.Background(), defaultOptions())
	if err == nil {
		t.Fatal("a snapshot upsert failure must fail the run")
	}
	if store.Len() != 0 {
		t.Fatal("no painting may be stored for a bucket without a snapshot row")
	}
	if len(index.inserted) != 0 {
		t.Fatal("no index row may exist for a bucket without a snapshot row")
	}
}

func TestExecuteSelectorFailureIsFatal(t *testing.T) {
	writer := archive.NewWriter(objstore.NewMemory(), nil, zerolog.Nop())
	svc := New(
		&fakeSelector{err: errors.New("no candidates")},
		&fakeSnapshots{snapshot: testSnapshot()},
		nil, nil, nil,
		&imagegen.Mock{Payload: []byte("x")},
		writer,
		zerolog.Nop(),
	)

	if _, err := svc.Execute(context.Background(), defaultOptions()); err == nil {
		t.Fatal("selector failure must fail the run")
	}
}

func TestExecuteGeneratorFailureIsFatal(t *testing.T) {
	index := &fakePaintingIndex{}
	store := objstore.NewMemory()
	writer := archive.NewWriter(store, index, zerolog.Nop())
	svc := New(
		&fakeSelector{token: testToken()},
		&fakeSnapshots{snapshot: testSnapshot()},
		nil, index, nil,
		&imagegen.Mock{Err: errors.New("provider down")},
		writer,
		zerolog.Nop(),
	)

	if _, err := svc.Execute(context.Background(), defaultOptions()); err == nil {
		t.Fatal("generator failure must fail the run")
	}
	if store.Len() != 0 {
		t.Fatal("nothing may be stored when generation fails")
	}
}
