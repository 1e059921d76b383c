package archive

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"moodcanvas/internal/apperr"
	"moodcanvas/internal/objstore"
	"moodcanvas/internal/storage"
)

// StoredArtifact reports where a painting and its metadata landed.
type StoredArtifact struct {
	ObjectKey   string
	ImageURL    string
	MetadataURL string
}

// Writer sequences the dual-backend archive write: object store first,
// relational index second.
type Writer struct {
	store  objstore.Store
	index  storage.PaintingStore
	logger zerolog.Logger
}

// NewWriter constructs a Writer.
func NewWriter(store objstore.Store, index storage.PaintingStore, logger zerolog.Logger) *Writer {
	return &Writer{
		store:  store,
		index:  index,
		logger: logger.With().Str("component", "archive_writer").Logger(),
	}
}

// StoreImageWithMetadata writes the image, then its sibling metadata blob.
// A failed metadata write rolls the image back so a reader can never
// observe an image key without its metadata pair.
func (w *Writer) StoreImageWithMetadata(ctx context.Context, meta Metadata, image []byte, format string) (StoredArtifact, Metadata, error) {
	if len(image) == 0 {
		return StoredArtifact{}, meta, &apperr.ValidationError{Message: "image buffer is empty"}
	}

	imageKey := ImageKey(meta.Timestamp, meta.ID, format)
	metaKey := MetadataKeyFor(imageKey)

	if err := w.store.Put(ctx, imageKey, image, "image/"+format); err != nil {
		return StoredArtifact{}, meta, err
	}

	meta.ImageURL = w.store.PublicURL(imageKey)
	meta.FileSize = int64(len(image))

	payload, err := json.Marshal(meta)
	if err != nil {
		w.rollbackImage(ctx, imageKey)
		return StoredArtifact{}, meta, &apperr.InternalError{Cause: err}
	}

	if err := w.store.Put(ctx, metaKey, payload, "application/json"); err != nil {
		w.rollbackImage(ctx, imageKey)
		return StoredArtifact{}, meta, err
	}

	return StoredArtifact{
		ObjectKey:   imageKey,
		ImageURL:    meta.ImageURL,
		MetadataURL: w.store.PublicURL(metaKey),
	}, meta, nil
}

func (w *Writer) rollbackImage(ctx context.Context, imageKey string) {
	if err := w.store.Delete(ctx, imageKey); err != nil {
		// The orphan survives; it will be invisible to readers because the
		// metadata pair is missing, but flag it for manual cleanup.
		w.logger.Error().Err(err).Str("key", imageKey).Msg("rollback delete failed; orphaned image blob remains")
		return
	}
	w.logger.Warn().Str("key", imageKey).Msg("metadata write failed; image rolled back")
}

// IndexPainting inserts the relational row for a stored artifact. Callers
// treat a failure here as soft: the archive stays servable via the
// object-store fallback.
func (w *Writer) IndexPainting(ctx context.Context, meta Metadata, objectKey string, bucket time.Time) error {
	if w.index == nil {
		return &apperr.StorageError{Op: "put", Key: meta.ID, Cause: storage.ErrNotConfigured}
	}

	row, err := meta.ToPainting(objectKey, bucket)
	if err != nil {
		return err
	}
	return w.index.InsertPainting(ctx, row)
}
