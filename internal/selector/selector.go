package selector

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"moodcanvas/internal/apperr"
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9]{1,12}$`)

// Known stablecoin symbols excluded from selection.
var stablecoinSymbols = map[string]struct{}{
	"USDT": {}, "USDC": {}, "DAI": {}, "BUSD": {}, "TUSD": {},
	"USDE": {}, "FDUSD": {}, "USDS": {}, "PYUSD": {}, "FRAX": {},
}

// Scoring weights for discovery mode.
const (
	weightTrend  = 0.40
	weightImpact = 0.35
	weightMood   = 0.25
)

// Options parameterise one selection run.
type Options struct {
	// OverrideTokens is a comma-separated ticker list; non-empty switches
	// the selector to override mode.
	OverrideTokens          string
	TrendingLimit           int
	ExcludeRecentlySelected bool
	RecencyWindow           time.Duration
}

// Selector scores candidates and picks the run's token.
type Selector struct {
	trending TrendingProvider
	markets  MarketLister
	resolver SymbolResolver
	store    TokenStore
	logger   zerolog.Logger
}

// New constructs a Selector.
func New(trending TrendingProvider, markets MarketLister, resolver SymbolResolver, store TokenStore, logger zerolog.Logger) *Selector {
	return &Selector{
		trending: trending,
		markets:  markets,
		resolver: resolver,
		store:    store,
		logger:   logger.With().Str("component", "selector").Logger(),
	}
}

// SelectToken runs sourcing, filtering, and scoring, then upserts the winner.
func (s *Selector) SelectToken(ctx context.Context, opts Options) (Selected, error) {
	var (
		candidates []Candidate
		err        error
		override   = strings.TrimSpace(opts.OverrideTokens) != ""
	)

	if override {
		candidates, err = s.sourceOverride(ctx, opts.OverrideTokens)
	} else {
		candidates, err = s.sourceTrending(ctx, opts.TrendingLimit)
	}
	if err != nil {
		return Selected{}, err
	}
	if len(candidates) == 0 {
		return Selected{}, &apperr.ExternalAPIError{Provider: "trending", Message: "no candidates available"}
	}

	filtered := excludeStablecoins(candidates)
	if len(filtered) == 0 {
		filtered = candidates
	}

	if opts.ExcludeRecentlySelected && s.store != nil {
		filtered = s.applyRecency(ctx, filtered, opts.RecencyWindow)
	}

	var winner Selected
	if override {
		winner = pickByPriority(filtered)
	} else {
		winner = pickByScore(filtered)
	}

	if s.store != nil {
		if err := s.store.UpsertToken(ctx, winner); err != nil {
			return Selected{}, fmt.Errorf("upsert selected token: %w", err)
		}
	}

	s.logger.Info().
		Str("token", winner.ID).
		Str("source", string(winner.Source)).
		Float64("final_score", winner.Scores.Final).
		Msg("token selected")

	return winner, nil
}

func (s *Selector) sourceTrending(ctx context.Context, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 15
	}

	items, err := s.trending.FetchTrending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch trending: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(items))
	ranks := make(map[string]int, len(items))
	logos := make(map[string]string, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
		ranks[item.ID] = item.Rank
		logos[item.ID] = item.LogoURL
	}

	rows, err := s.markets.FetchMarketRows(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("enrich trending candidates: %w", err)
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		c := fromDetail(row)
		c.Source = SourceTrending
		c.Rank = ranks[row.ID]
		if c.LogoURL == "" {
			c.LogoURL = logos[row.ID]
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

func (s *Selector) sourceOverride(ctx context.Context, raw string) ([]Candidate, error) {
	symbols, rejected := sanitizeOverrideList(raw)
	if len(symbols) == 0 {
		return nil, &apperr.ValidationError{
			Message: "override list contains no valid ticker symbols",
			Details: map[string]any{"rejected": rejected},
		}
	}

	ids := make([]string, 0, len(symbols))
	priorities := make(map[string]int, len(symbols))
	for i, symbol := range symbols {
		id, err := s.resolver.ResolveSymbol(ctx, symbol)
		if err != nil {
			s.logger.Warn().Err(err).Str("symbol", symbol).Msg("override symbol did not resolve")
			continue
		}
		if _, seen := priorities[id]; seen {
			continue
		}
		ids = append(ids, id)
		priorities[id] = i
	}
	if len(ids) == 0 {
		return nil, &apperr.ValidationError{
			Message: "no override symbol resolved to a known asset",
			Details: map[string]any{"symbols": symbols},
		}
	}

	rows, err := s.markets.FetchMarketRows(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("enrich override candidates: %w", err)
	}

	candidates := make([]Candidate, 0, len(rows))
	for _, row := range rows {
		c := fromDetail(row)
		c.Source = SourceOverride
		c.ForcePriority = priorities[row.ID]
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// sanitizeOverrideList splits, uppercases, and validates the override input.
func sanitizeOverrideList(raw string) (valid []string, rejected []string) {
	for _, part := range strings.Split(raw, ",") {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol == "" {
			continue
		}
		if !tickerPattern.MatchString(symbol) {
			rejected = append(rejected, symbol)
			continue
		}
		valid = append(valid, symbol)
	}
	return valid, rejected
}

func (s *Selector) applyRecency(ctx context.Context, candidates []Candidate, window time.Duration) []Candidate {
	if window <= 0 {
		window = 72 * time.Hour
	}
	since := time.Now().UTC().Add(-window)

	recentIDs, err := s.store.RecentTokenIDs(ctx, since)
	if err != nil {
		s.logger.Warn().Err(err).Msg("recency lookup failed; skipping exclusion")
		return candidates
	}
	if len(recentIDs) == 0 {
		return candidates
	}

	recent := make(map[string]struct{}, len(recentIDs))
	for _, id := range recentIDs {
		recent[id] = struct{}{}
	}

	remaining := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := recent[c.ID]; !ok {
			remaining = append(remaining, c)
		}
	}

	// Selection must never hard-fail merely because everything is recent.
	if len(remaining) == 0 {
		s.logger.Info().Msg("recency exclusion would empty the candidate set; using unfiltered set")
		return candidates
	}
	return remaining
}

func excludeStablecoins(candidates []Candidate) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if _, ok := stablecoinSymbols[strings.ToUpper(c.Symbol)]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

func pickByScore(candidates []Candidate) Selected {
	best := Selected{Candidate: candidates[0], Scores: scoreCandidate(candidates[0])}
	for _, c := range candidates[1:] {
		scores := scoreCandidate(c)
		if scores.Final > best.Scores.Final {
			best = Selected{Candidate: c, Scores: scores}
		}
	}
	return best
}

func pickByPriority(candidates []Candidate) Selected {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.ForcePriority < best.ForcePriority {
			best = c
		}
	}
	return Selected{Candidate: best, Scores: scoreCandidate(best)}
}

// scoreCandidate combines trend, impact, and mood into the final score.
func scoreCandidate(c Candidate) Scores {
	trend := 1.0 / float64(1+c.Rank)

	impact := 0.0
	if c.MarketCap.IsPositive() {
		ratio, _ := c.Volume24h.Div(c.MarketCap).Float64()
		impact = clamp01(ratio)
	}

	// Map 24h change from [-25%, +25%] onto [0,1], neutral at 0.5.
	mood := clamp01(0.5 + c.PriceChange24h/50.0)

	final := weightTrend*trend + weightImpact*impact + weightMood*mood
	return Scores{Trend: trend, Impact: impact, Mood: mood, Final: final}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func fromDetail(row MarketDetail) Candidate {
	return Candidate{
		ID:             row.ID,
		Symbol:         strings.ToUpper(row.Symbol),
		Name:           row.Name,
		LogoURL:        row.LogoURL,
		Price:          decimal.NewFromFloat(row.Price),
		PriceChange24h: row.PriceChange24h,
		PriceChange7d:  row.PriceChange7d,
		Volume24h:      decimal.NewFromFloat(row.Volume24h),
		MarketCap:      decimal.NewFromFloat(row.MarketCap),
		Categories:     row.Categories,
	}
}
