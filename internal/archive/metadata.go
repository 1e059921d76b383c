// Package archive persists generated paintings across the object store and
// the relational index, and serves the paginated read path.
package archive

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"moodcanvas/internal/apperr"
	"moodcanvas/internal/prompt"
	"moodcanvas/internal/storage"
)

// Metadata is the JSON blob stored beside every image object. The object
// store copy is authoritative; the relational row is a rebuildable index.
type Metadata struct {
	ID             string              `json:"id"`
	Timestamp      time.Time           `json:"timestamp"`
	TimeBucket     string              `json:"timeBucket"`
	ParamsHash     string              `json:"paramsHash"`
	Seed           string              `json:"seed"`
	VisualParams   prompt.VisualParams `json:"visualParams"`
	ImageURL       string              `json:"imageUrl"`
	FileSize       int64               `json:"fileSize"`
	Prompt         string              `json:"prompt"`
	NegativePrompt string              `json:"negativePrompt"`
}

// NewMetadata builds the metadata record for a freshly composed painting.
// ImageURL and FileSize stay zero until storage completes. The timestamp
// is truncated to whole seconds to match the cursor's resolution, so a
// resumed keyset scan never skips rows on a shared boundary second.
func NewMetadata(comp prompt.Composition, now time.Time) Metadata {
	return Metadata{
		ID:             comp.Filename,
		Timestamp:      now.UTC().Truncate(time.Second),
		TimeBucket:     comp.BucketLabel,
		ParamsHash:     comp.ParamsHash,
		Seed:           comp.Seed,
		VisualParams:   comp.Params,
		Prompt:         comp.Prompt,
		NegativePrompt: comp.NegativePrompt,
	}
}

// Validate checks the shape of metadata read back from the object store.
func (m Metadata) Validate() error {
	if m.ID == "" {
		return &apperr.ValidationError{Message: "metadata missing id"}
	}
	if m.Timestamp.IsZero() {
		return &apperr.ValidationError{Message: "metadata missing timestamp", Details: map[string]any{"id": m.ID}}
	}
	if m.ParamsHash == "" || m.Seed == "" {
		return &apperr.ValidationError{Message: "metadata missing hash or seed", Details: map[string]any{"id": m.ID}}
	}
	return nil
}

// ToPainting converts metadata plus its object key into an index row.
func (m Metadata) ToPainting(objectKey string, bucket time.Time) (storage.Painting, error) {
	params, err := json.Marshal(m.VisualParams)
	if err != nil {
		return storage.Painting{}, &apperr.InternalError{Cause: err}
	}
	return storage.Painting{
		ID:             m.ID,
		Timestamp:      m.Timestamp,
		Bucket:         bucket,
		ParamsHash:     m.ParamsHash,
		Seed:           m.Seed,
		ObjectKey:      objectKey,
		ImageURL:       m.ImageURL,
		FileSize:       m.FileSize,
		VisualParams:   params,
		Prompt:         m.Prompt,
		NegativePrompt: m.NegativePrompt,
	}, nil
}

// DayPrefix returns the object key prefix for a calendar day.
func DayPrefix(day time.Time) string {
	day = day.UTC()
	return fmt.Sprintf("images/%04d/%02d/%02d/", day.Year(), int(day.Month()), day.Day())
}

// ImageKey builds the object key for an image artifact.
func ImageKey(day time.Time, filename, format string) string {
	return DayPrefix(day) + filename + "." + format
}

// MetadataKeyFor returns the sibling metadata key of an image key.
func MetadataKeyFor(imageKey string) string {
	if idx := strings.LastIndex(imageKey, "."); idx > 0 {
		return imageKey[:idx] + ".json"
	}
	return imageKey + ".json"
}
