package market

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"moodcanvas/internal/apperr"
)

const fngPath = "/fng/"

// SentimentOptions parameterise the sentiment index client.
type SentimentOptions struct {
	BaseURL string
	Timeout time.Duration
}

// FearGreed fetches the Fear & Greed index from alternative.me.
type FearGreed struct {
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewFearGreed constructs a sentiment client.
func NewFearGreed(opts SentimentOptions, logger zerolog.Logger) *FearGreed {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.alternative.me"
	}

	return &FearGreed{
		logger:  logger.With().Str("component", "sentiment_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type fngResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

// FetchSentiment retrieves the current index value and its label.
func (f *FearGreed) FetchSentiment(ctx context.Context) (float64, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+fngPath, nil)
	if err != nil {
		return 0, "", &apperr.InternalError{Cause: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", &apperr.ExternalAPIError{Provider: "sentiment", Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", &apperr.ExternalAPIError{Provider: "sentiment", Message: "read response", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return 0, "", &apperr.ExternalAPIError{Provider: "sentiment", Status: resp.StatusCode, Message: strings.TrimSpace(string(payload))}
	}

	var res fngResponse
	if err := json.Unmarshal(payload, &res); err != nil {
		return 0, "", &apperr.ExternalAPIError{Provider: "sentiment", Message: "malformed response", Cause: err}
	}
	if len(res.Data) == 0 {
		return 0, "", &apperr.ExternalAPIError{Provider: "sentiment", Message: "empty index data"}
	}

	value, err := strconv.ParseFloat(res.Data[0].Value, 64)
	if err != nil {
		return 0, "", &apperr.ExternalAPIError{Provider: "sentiment", Message: "non-numeric index value", Cause: err}
	}

	return value, res.Data[0].Classification, nil
}

var _ SentimentFetcher = (*FearGreed)(nil)
