package archive

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"moodcanvas/internal/apperr"
	"moodcanvas/internal/objstore"
	"moodcanvas/internal/storage"
)

// bucketLabelFormat mirrors the prompt package's bucket label layout.
const bucketLabelFormat = "20060102T15"

// ListOptions parameterise one archive listing.
type ListOptions struct {
	Limit  int
	Cursor string
	// From and To are calendar-day bounds; To is inclusive of its day.
	From *time.Time
	To   *time.Time
}

// Page is one listing result. Cursor is present only when HasMore is true
// and the index-backed path produced the page.
type Page struct {
	Items   []storage.Painting
	Cursor  string
	HasMore bool
}

// QueryEngineOptions tune listing behaviour.
type QueryEngineOptions struct {
	DefaultLimit  int
	MaxLimit      int
	ListOverfetch int
}

// QueryEngine serves the paginated archive read path.
type QueryEngine struct {
	index  storage.PaintingStore
	store  objstore.Store
	logger zerolog.Logger
	opts   QueryEngineOptions
}

// NewQueryEngine constructs a QueryEngine.
func NewQueryEngine(index storage.PaintingStore, store objstore.Store, opts QueryEngineOptions, logger zerolog.Logger) *QueryEngine {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 20
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = 100
	}
	if opts.ListOverfetch <= 0 {
		opts.ListOverfetch = 3
	}
	return &QueryEngine{
		index:  index,
		store:  store,
		logger: logger.With().Str("component", "archive_query").Logger(),
		opts:   opts,
	}
}

// ListImages pages the archive by recency. The relational index is the
// primary path; an index failure degrades silently to object listing.
func (e *QueryEngine) ListImages(ctx context.Context, opts ListOptions) (Page, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = e.opts.DefaultLimit
	}
	if limit > e.opts.MaxLimit {
		limit = e.opts.MaxLimit
	}

	from, toExclusive := normalizeBounds(opts.From, opts.To)

	var cursor *Cursor
	if opts.Cursor != "" {
		decoded, err := DecodeCursor(opts.Cursor)
		if err != nil {
			return Page{}, err
		}
		cursor = &decoded
	}

	if e.index != nil {
		page, err := e.listPrimary(ctx, limit, from, toExclusive, cursor)
		if err == nil {
			return page, nil
		}
		e.logger.Warn().Err(err).Msg("index listing failed; falling back to object store")
	}

	return e.listFallback(ctx, limit, opts.From, opts.To, from, toExclusive)
}

func (e *QueryEngine) listPrimary(ctx context.Context, limit int, from, toExclusive *time.Time, cursor *Cursor) (Page, error) {
	q := storage.ListQuery{Limit: limit + 1, From: from, To: toExclusive}
	if cursor != nil {
		ts := cursor.Time()
		q.CursorTS = &ts
		q.CursorID = cursor.ID
	}

	rows, err := e.index.ListPaintings(ctx, q)
	if err != nil {
		return Page{}, err
	}

	page := Page{Items: rows}
	if len(rows) > limit {
		page.Items = rows[:limit]
		page.HasMore = true
		last := page.Items[len(page.Items)-1]
		page.Cursor = EncodeCursor(last.Timestamp, last.ID)
	}
	return page, nil
}

func (e *QueryEngine) listFallback(ctx context.Context, limit int, fromDay, toDay *time.Time, from, toExclusive *time.Time) (Page, error) {
	if fromDay != nil && toDay != nil && !sameDay(*fromDay, *toDay) {
		return e.listRange(ctx, limit, *fromDay, *toDay, toExclusive)
	}

	prefix := "images/"
	if fromDay != nil {
		prefix = DayPrefix(*fromDay)
	}
	return e.listPrefix(ctx, limit, prefix, from, toExclusive)
}

// listPrefix pages one prefix, over-fetching per round trip to amortise
// list-call overhead.
func (e *QueryEngine) listPrefix(ctx context.Context, limit int, prefix string, from, toExclusive *time.Time) (Page, error) {
	var (
		items     []storage.Painting
		token     string
		storeMore bool
	)

	for {
		page, err := e.store.List(ctx, prefix, limit*e.opts.ListOverfetch, token)
		if err != nil {
			return Page{}, err
		}

		fetched := e.fetchMetadata(ctx, imageObjects(page.Objects))
		for _, item := range fetched {
			if within(item.Timestamp, from, toExclusive) {
				items = append(items, item)
			}
		}

		storeMore = page.HasMore
		if !page.HasMore || len(items) > limit {
			break
		}
		token = page.NextToken
	}

	sortByRecency(items)

	result := Page{Items: items}
	if len(items) > limit {
		result.Items = items[:limit]
		result.HasMore = true
	} else if storeMore {
		result.HasMore = true
	}
	// No cursor: fallback pages are not resumable.
	return result, nil
}

// listRange expands an explicit from/to range into per-day prefixes and
// lists them in parallel. This path cannot produce a resumable cursor.
func (e *QueryEngine) listRange(ctx context.Context, limit int, fromDay, toDay time.Time, toExclusive *time.Time) (Page, error) {
	days := enumerateDays(fromDay, toDay)

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		objects []objstore.ObjectInfo
		lastErr error
	)

	for _, day := range days {
		wg.Add(1)
		go func(prefix string) {
			defer wg.Done()

			var token string
			for {
				page, err := e.store.List(ctx, prefix, e.opts.MaxLimit*e.opts.ListOverfetch, token)
				if err != nil {
					e.logger.Warn().Err(err).Str("prefix", prefix).Msg("day prefix listing failed")
					mu.Lock()
					lastErr = err
					mu.Unlock()
					return
				}
				mu.Lock()
				objects = append(objects, page.Objects...)
				mu.Unlock()
				if !page.HasMore {
					return
				}
				token = page.NextToken
			}
		}(DayPrefix(day))
	}
	wg.Wait()

	if len(objects) == 0 && lastErr != nil {
		return Page{}, lastErr
	}

	items := e.fetchMetadata(ctx, imageObjects(objects))

	// Drop anything at/after the day following To.
	filtered := items[:0]
	for _, item := range items {
		if within(item.Timestamp, nil, toExclusive) {
			filtered = append(filtered, item)
		}
	}

	sortByRecency(filtered)

	result := Page{Items: filtered}
	if len(filtered) > limit {
		result.Items = filtered[:limit]
		result.HasMore = true
	}
	return result, nil
}

// fetchMetadata loads and validates sibling metadata for each image object
// in parallel. Individual failures drop the item, never the listing.
func (e *QueryEngine) fetchMetadata(ctx context.Context, objects []objstore.ObjectInfo) []storage.Painting {
	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		items []storage.Painting
	)

	for _, obj := range objects {
		wg.Add(1)
		go func(obj objstore.ObjectInfo) {
			defer wg.Done()

			item, err := e.loadItem(ctx, obj)
			if err != nil {
				e.logger.Warn().Err(err).Str("key", obj.Key).Msg("dropping archive entry with unreadable metadata")
				return
			}

			mu.Lock()
			items = append(items, item)
			mu.Unlock()
		}(obj)
	}
	wg.Wait()

	return items
}

func (e *QueryEngine) loadItem(ctx context.Context, obj objstore.ObjectInfo) (storage.Painting, error) {
	payload, err := e.store.Get(ctx, MetadataKeyFor(obj.Key))
	if err != nil {
		return storage.Painting{}, err
	}

	var meta Metadata
	if err := json.Unmarshal(payload, &meta); err != nil {
		return storage.Painting{}, &apperr.ValidationError{Message: "malformed metadata blob", Details: map[string]any{"key": obj.Key}}
	}
	if err := meta.Validate(); err != nil {
		return storage.Painting{}, err
	}

	// The store's reported size is authoritative when it has one.
	if obj.Size > 0 {
		meta.FileSize = obj.Size
	}

	bucket, err := time.Parse(bucketLabelFormat, meta.TimeBucket)
	if err != nil {
		bucket = meta.Timestamp.Truncate(time.Hour)
	}

	return meta.ToPainting(obj.Key, bucket.UTC())
}

func imageObjects(objects []objstore.ObjectInfo) []objstore.ObjectInfo {
	out := make([]objstore.ObjectInfo, 0, len(objects))
	for _, obj := range objects {
		if strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		out = append(out, obj)
	}
	return out
}

func sortByRecency(items []storage.Painting) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].Timestamp.Equal(items[j].Timestamp) {
			return items[i].ID > items[j].ID
		}
		return items[i].Timestamp.After(items[j].Timestamp)
	})
}

func within(ts time.Time, from, toExclusive *time.Time) bool {
	if from != nil && ts.Before(*from) {
		return false
	}
	if toExclusive != nil && !ts.Before(*toExclusive) {
		return false
	}
	return true
}

// normalizeBounds converts inclusive day bounds into half-open timestamp
// bounds: [start of From's day, start of the day after To).
func normalizeBounds(from, to *time.Time) (*time.Time, *time.Time) {
	var lower, upper *time.Time
	if from != nil {
		start := dayStart(*from)
		lower = &start
	}
	if to != nil {
		end := dayStart(*to).AddDate(0, 0, 1)
		upper = &end
	}
	return lower, upper
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func sameDay(a, b time.Time) bool {
	return dayStart(a).Equal(dayStart(b))
}

func enumerateDays(from, to time.Time) []time.Time {
	start := dayStart(from)
	end := dayStart(to)

	var days []time.Time
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	return days
}
