package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"moodcanvas/internal/apperr"
	"moodcanvas/internal/archive"
	"moodcanvas/internal/cache"
	"moodcanvas/internal/storage"
)

const dateLayout = "2006-01-02"

// imageItem is the wire shape of one archive entry.
type imageItem struct {
	ID           string          `json:"id"`
	Timestamp    time.Time       `json:"timestamp"`
	TimeBucket   string          `json:"timeBucket"`
	ParamsHash   string          `json:"paramsHash"`
	Seed         string          `json:"seed"`
	ImageURL     string          `json:"imageUrl"`
	FileSize     int64           `json:"fileSize"`
	VisualParams json.RawMessage `json:"visualParams,omitempty"`
	Prompt       string          `json:"prompt,omitempty"`
}

// listResponse is the wire shape of GET /api/images.
type listResponse struct {
	Items   []imageItem `json:"items"`
	Cursor  string      `json:"cursor,omitempty"`
	HasMore bool        `json:"hasMore"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListImages(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOptions(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, errCodeInvalidInput, err.Error(), validationDetails(err))
		return
	}

	ctx := r.Context()

	var cacheKey string
	if s.pages != nil {
		cacheKey = cache.ListKey(opts)
		if page, ok, cacheErr := s.pages.GetPage(ctx, cacheKey); cacheErr != nil {
			s.logger.Warn().Err(cacheErr).Msg("page cache read failed")
		} else if ok {
			respondJSON(w, http.StatusOK, toListResponse(page))
			return
		}
	}

	page, err := s.lister.ListImages(ctx, opts)
	if err != nil {
		status, code, msg := mapError(err)
		respondError(w, status, code, msg, validationDetails(err))
		return
	}

	if s.pages != nil {
		if cacheErr := s.pages.SetPage(ctx, cacheKey, page); cacheErr != nil {
			s.logger.Warn().Err(cacheErr).Msg("page cache write failed")
		}
	}

	respondJSON(w, http.StatusOK, toListResponse(page))
}

func parseListOptions(r *http.Request) (archive.ListOptions, error) {
	q := r.URL.Query()
	opts := archive.ListOptions{Cursor: q.Get("cursor")}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return archive.ListOptions{}, &apperr.ValidationError{
				Message: "limit must be a positive integer",
				Details: map[string]any{"limit": raw},
			}
		}
		opts.Limit = limit
	}

	from, err := parseDate(q.Get("from"), "from")
	if err != nil {
		return archive.ListOptions{}, err
	}
	to, err := parseDate(q.Get("to"), "to")
	if err != nil {
		return archive.ListOptions{}, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return archive.ListOptions{}, &apperr.ValidationError{Message: "to must not precede from"}
	}
	opts.From = from
	opts.To = to

	return opts, nil
}

func parseDate(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, &apperr.ValidationError{
			Message: field + " must be a YYYY-MM-DD date",
			Details: map[string]any{field: raw},
		}
	}
	return &t, nil
}

func toListResponse(page archive.Page) listResponse {
	items := make([]imageItem, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, toImageItem(p))
	}
	return listResponse{Items: items, Cursor: page.Cursor, HasMore: page.HasMore}
}

func toImageItem(p storage.Painting) imageItem {
	return imageItem{
		ID:           p.ID,
		Timestamp:    p.Timestamp,
		TimeBucket:   p.Bucket.UTC().Format("20060102T15"),
		ParamsHash:   p.ParamsHash,
		Seed:         p.Seed,
		ImageURL:     p.ImageURL,
		FileSize:     p.FileSize,
		VisualParams: p.VisualParams,
		Prompt:       p.Prompt,
	}
}
