package archive

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"moodcanvas/internal/apperr"
	"moodcanvas/internal/objstore"
	"moodcanvas/internal/prompt"
)

func testMetadata(t *testing.T) Metadata {
	t.Helper()
	comp := prompt.Composition{
		Bucket:      time.Date(2026, 8, 29, 14, 0, 0, 0, time.UTC),
		BucketLabel: "20260829T14",
		ParamsHash:  strings.Repeat("a", 64),
		Seed:        strings.Repeat("b", 64),
		Prompt:      "a painting",
		Filename:    "20260829T14-aaaaaaaaaaaa-bbbbbbbb",
	}
	return NewMetadata(comp, time.Date(2026, 8, 29, 14, 3, 0, 0, time.UTC))
}

func TestStoreImageWithMetadata(t *testing.T) {
	store := objstore.NewMemory()
	w := NewWriter(store, nil, zerolog.Nop())

	meta := testMetadata(t)
	image := []byte("fake-webp-bytes")

	artifact, updated, err := w.StoreImageWithMetadata(context.Background(), meta, image, "webp")
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	wantKey := "images/2026/08/29/" + meta.ID + ".webp"
	if artifact.ObjectKey != wantKey {
		t.Fatalf("object key = %q, want %q", artifact.ObjectKey, wantKey)
	}
	if updated.FileSize != int64(len(image)) {
		t.Fatalf("file size = %d, want %d", updated.FileSize, len(image))
	}
	if updated.ImageURL == "" {
		t.Fatal("image url must be backfilled before the metadata write")
	}

	raw, err := store.Get(context.Background(), MetadataKeyFor(wantKey))
	if err != nil {
		t.Fatalf("metadata blob missing: %v", err)
	}
	var stored Metadata
	if err := json.Unmarshal(raw, &stored); err != nil {
		t.Fatalf("metadata blob unreadable: %v", err)
	}
	if stored.FileSize != updated.FileSize || stored.ImageURL != updated.ImageURL {
		t.Fatal("stored metadata must include the backfilled url and size")
	}
}

func TestStoreImageRollsBackOnMetadataFailure(t *testing.T) {
	store := objstore.NewMemory()
	store.PutHook = func(key string) error {
		if strings.HasSuffix(key, ".json") {
			return errors.New("injected failure")
		}
		return nil
	}
	w := NewWriter(store, nil, zerolog.Nop())

	_, _, err := w.StoreImageWithMetadata(context.Background(), testMetadata(t), []byte("img"), "webp")
	if err == nil {
		t.Fatal("metadata failure must surface")
	}
	if !apperr.IsStorage(err) {
		t.Fatalf("expected storage error, got %T", err)
	}
	if store.Len() != 0 {
		t.Fatalf("image must be rolled back, %d objects remain", store.Len())
	}
}

func TestStoreImageRejectsEmptyPayload(t *testing.T) {
	w := NewWriter(objstore.NewMemory(), nil, zerolog.Nop())
	if _, _, err := w.StoreImageWithMetadata(context.Background(), testMetadata(t), nil, "webp"); !apperr.IsValidation(err) {
		t.Fatalf("empty image should fail validation, got %v", err)
	}
}

func TestRollbackDeleteFailureLeavesOrphan(t *testing.T) {
	store := objstore.NewMemory()
	store.PutHook = func(key string) error {
		if strings.HasSuffix(key, ".json") {
			return errors.New("injected put failure")
		}
		return nil
	}
	store.DeleteHook = func(string) error { return errors.New("injected delete failure") }
	w := NewWriter(store, nil, zerolog.Nop())

	_, _, err := w.StoreImageWithMetadata(context.Background(), testMetadata(t), []byte("img"), "webp")
	if err == nil {
		t.Fatal("metadata failure must surface")
	}
	// The orphaned image stays, but without its metadata pair listings
	// never surface it.
	if store.Len() != 1 {
		t.Fatalf("expected orphaned image to remain, got %d objects", store.Len())
	}
}
