package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"moodcanvas/internal/apperr"
)

const generatePath = "/v2beta/stable-image/generate/core"

// StabilityOptions parameterise the HTTP provider.
type StabilityOptions struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Stability calls a Stability-compatible image generation API.
type Stability struct {
	opts    StabilityOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewStability constructs the HTTP provider.
func NewStability(opts StabilityOptions, logger zerolog.Logger) *Stability {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.stability.ai"
	}

	return &Stability{
		opts:    opts,
		logger:  logger.With().Str("component", "imagegen").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type generateRequest struct {
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	OutputFormat   string `json:"output_format"`
	Seed           uint32 `json:"seed"`
	Model          string `json:"model,omitempty"`
	ImageURL       string `json:"image,omitempty"`
}

// Generate sends the prompt and returns the raw image bytes.
func (s *Stability) Generate(ctx context.Context, req Request) (Result, error) {
	if s.opts.APIKey == "" {
		return Result{}, &apperr.ConfigurationError{Setting: "image_gen.api_key", Message: "required for the live provider"}
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return Result{}, &apperr.ValidationError{Message: "prompt must not be empty"}
	}

	payload := generateRequest{
		Prompt:         req.Prompt,
		NegativePrompt: req.NegativePrompt,
		Width:          req.Width,
		Height:         req.Height,
		OutputFormat:   req.Format,
		Seed:           req.Seed,
		Model:          req.Model,
		ImageURL:       req.ReferenceImageURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{}, &apperr.InternalError{Cause: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+generatePath, bytes.NewReader(body))
	if err != nil {
		return Result{}, &apperr.InternalError{Cause: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/*")
	httpReq.Header.Set("Authorization", "Bearer "+s.opts.APIKey)

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	if err != nil {
		if urlErr, ok := err.(*url.Error); ok && urlErr.Timeout() {
			return Result{}, &apperr.TimeoutError{Op: "image generation", Elapsed: time.Since(start), Configured: s.client.Timeout}
		}
		return Result{}, &apperr.ExternalAPIError{Provider: "imagegen", Message: "request failed", Cause: err}
	}
	defer resp.Body.Close()

	image, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, &apperr.ExternalAPIError{Provider: "imagegen", Message: "read response", Cause: err}
	}

	if err := classifyStatus(resp.StatusCode, image); err != nil {
		return Result{}, err
	}
	if len(image) == 0 {
		return Result{}, &apperr.ExternalAPIError{Provider: "imagegen", Message: "provider returned an empty image"}
	}

	s.logger.Debug().Int("bytes", len(image)).Dur("elapsed", time.Since(start)).Msg("image generated")

	return Result{
		Image: image,
		Meta: ProviderMeta{
			Provider:     "stability",
			Model:        req.Model,
			FinishReason: resp.Header.Get("finish-reason"),
		},
	}, nil
}

func classifyStatus(status int, payload []byte) error {
	if status == http.StatusOK {
		return nil
	}

	message := strings.TrimSpace(string(payload))
	var apiErr struct {
		Errors []string `json:"errors"`
		Name   string   `json:"name"`
	}
	if err := json.Unmarshal(payload, &apiErr); err == nil && len(apiErr.Errors) > 0 {
		message = strings.Join(apiErr.Errors, "; ")
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		message = fmt.Sprintf("authentication rejected: %s", message)
	case http.StatusTooManyRequests:
		message = fmt.Sprintf("rate limited: %s", message)
	}

	return &apperr.ExternalAPIError{Provider: "imagegen", Status: status, Message: message}
}

var _ Generator = (*Stability)(nil)
