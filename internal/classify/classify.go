// Package classify maps a market snapshot and a selected token onto the
// symbolic painting context. Everything here is a pure function of its
// inputs.
package classify

import (
	"encoding/json"
	"math"
	"strings"
	"unicode"

	"moodcanvas/internal/market"
	"moodcanvas/internal/selector"
)

// Climate is the symbolic state of the market as a whole.
type Climate string

const (
	ClimateEuphoria   Climate = "euphoria"
	ClimateCooling    Climate = "cooling"
	ClimateDespair    Climate = "despair"
	ClimatePanic      Climate = "panic"
	ClimateTransition Climate = "transition"
)

// Archetype is the symbolic identity of the selected token.
type Archetype string

const (
	ArchetypeL1Sovereign   Archetype = "l1-sovereign"
	ArchetypeMemeAscendant Archetype = "meme-ascendant"
	ArchetypePrivacy       Archetype = "privacy"
	ArchetypeAIOracle      Archetype = "ai-oracle"
	ArchetypePolitical     Archetype = "political"
	ArchetypePerpLiquidity Archetype = "perp-liquidity"
	ArchetypeUnknown       Archetype = "unknown"
)

// EventKind labels the token's short-term pressure.
type EventKind string

const (
	EventBreakout     EventKind = "breakout"
	EventCapitulation EventKind = "capitulation"
	EventSwell        EventKind = "swell"
	EventDrift        EventKind = "drift"
)

// Intensity grades event pressure and volatility.
type Intensity string

const (
	IntensityLow    Intensity = "low"
	IntensityMedium Intensity = "medium"
	IntensityHigh   Intensity = "high"
)

// EventPressure is the classified short-term dynamic.
type EventPressure struct {
	Kind      EventKind
	Intensity Intensity
}

// TokenSummary identifies the token inside the context.
type TokenSummary struct {
	ID     string
	Symbol string
	Name   string
}

// MarketSummary is the compact market-metric view carried by the context.
type MarketSummary struct {
	MarketCapChange24h float64
	BTCDominance       float64
	ETHDominance       float64
	SentimentIndex     *float64
}

// TokenDynamics summarises the token's own movement.
type TokenDynamics struct {
	PriceChange24h  float64
	PriceChange7d   float64
	Volume24hUSD    float64
	MarketCapUSD    float64
	Volatility      float64
	VolatilityLevel Intensity
}

// PaintingContext is the full symbolic record the prompt compositor reads.
type PaintingContext struct {
	Token          TokenSummary
	Market         MarketSummary
	Dynamics       TokenDynamics
	Climate        Climate
	Archetype      Archetype
	Event          EventPressure
	Composition    string
	Palette        string
	Motifs         []string
	NarrativeHints []string
}

// BuildContext derives the painting context. categoriesJSON, when non-empty,
// is the persisted token record's category list and takes precedence over
// the live candidate's tags; a parse failure falls back to the live tags.
func BuildContext(snapshot market.Snapshot, token selector.Selected, categoriesJSON string) PaintingContext {
	categories := token.Categories
	if categoriesJSON != "" {
		var persisted []string
		if err := json.Unmarshal([]byte(categoriesJSON), &persisted); err == nil && len(persisted) > 0 {
			categories = persisted
		}
	}

	climate := ClassifyClimate(snapshot.MarketCapChange24h, snapshot.SentimentIndex)
	archetype := ClassifyArchetype(categories)

	volatility := VolatilityScore(token.PriceChange24h, token.PriceChange7d)
	level := VolatilityLevel(volatility)
	event := ClassifyEvent(token.PriceChange24h, token.PriceChange7d, level)

	composition, palette := lookupScene(climate, archetype, event.Kind)

	volume, _ := token.Volume24h.Float64()
	marketCap, _ := token.MarketCap.Float64()

	return PaintingContext{
		Token: TokenSummary{ID: token.ID, Symbol: token.Symbol, Name: token.Name},
		Market: MarketSummary{
			MarketCapChange24h: snapshot.MarketCapChange24h,
			BTCDominance:       snapshot.BTCDominance,
			ETHDominance:       snapshot.ETHDominance,
			SentimentIndex:     snapshot.SentimentIndex,
		},
		Dynamics: TokenDynamics{
			PriceChange24h:  token.PriceChange24h,
			PriceChange7d:   token.PriceChange7d,
			Volume24hUSD:    volume,
			MarketCapUSD:    marketCap,
			Volatility:      volatility,
			VolatilityLevel: level,
		},
		Climate:        climate,
		Archetype:      archetype,
		Event:          event,
		Composition:    composition,
		Palette:        palette,
		Motifs:         motifsFor(archetype),
		NarrativeHints: narrativeFor(climate, event.Kind),
	}
}

// ClassifyClimate buckets the market state from the 24h cap change and the
// optional sentiment index.
func ClassifyClimate(capChange24h float64, sentiment *float64) Climate {
	sentimentAtMost := func(limit float64) bool {
		return sentiment != nil && *sentiment <= limit
	}

	switch {
	case capChange24h <= -8 || sentimentAtMost(15):
		return ClimatePanic
	case capChange24h <= -3 || sentimentAtMost(30):
		return ClimateDespair
	case capChange24h < -0.5:
		return ClimateCooling
	case capChange24h >= 3 && (sentiment == nil || *sentiment >= 65):
		return ClimateEuphoria
	default:
		return ClimateTransition
	}
}

// ClassifyArchetype maps category tags onto the archetype enum. Needles
// match whole words within a tag, never substrings, so short markers like
// "ai" or "zk" cannot fire on unrelated tags ("chain" contains "ai").
func ClassifyArchetype(categories []string) Archetype {
	tags := make([][]string, 0, len(categories))
	for _, c := range categories {
		if words := tagWords(c); len(words) > 0 {
			tags = append(tags, words)
		}
	}

	matches := func(needles ...string) bool {
		for _, n := range needles {
			want := strings.Fields(n)
			for _, words := range tags {
				if hasWordRun(words, want) {
					return true
				}
			}
		}
		return false
	}

	switch {
	case matches("meme", "memes"):
		return ArchetypeMemeAscendant
	case matches("political", "politics", "politifi", "election", "elections"):
		return ArchetypePolitical
	case matches("privacy", "zero knowledge", "zk"):
		return ArchetypePrivacy
	case matches("artificial intelligence", "ai", "oracle", "oracles"):
		return ArchetypeAIOracle
	case matches("perp", "perps", "perpetual", "perpetuals", "derivative", "derivatives", "decentralized exchange", "liquidity"):
		return ArchetypePerpLiquidity
	case matches("l1", "layer 1", "smart contract platform"):
		return ArchetypeL1Sovereign
	default:
		return ArchetypeUnknown
	}
}

// tagWords lowercases a tag and splits it on anything that is not a letter
// or digit, so "Layer-1 (L1)" yields ["layer", "1", "l1"].
func tagWords(tag string) []string {
	return strings.FieldsFunc(strings.ToLower(tag), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// hasWordRun reports whether want appears as a consecutive run in words.
func hasWordRun(words, want []string) bool {
	if len(want) == 0 {
		return false
	}
	for i := 0; i+len(want) <= len(words); i++ {
		run := true
		for j := range want {
			if words[i+j] != want[j] {
				run = false
				break
			}
		}
		if run {
			return true
		}
	}
	return false
}

// VolatilityScore computes min(1, (|p24| + |p7|/7) / 50). The 7-day delta
// is dampened by 7 before combination.
func VolatilityScore(priceChange24h, priceChange7d float64) float64 {
	score := (math.Abs(priceChange24h) + math.Abs(priceChange7d)/7) / 50
	return math.Min(1, score)
}

// VolatilityLevel grades a volatility score. 0.33 exactly is low and 0.66
// exactly is medium.
func VolatilityLevel(score float64) Intensity {
	switch {
	case score <= 0.33:
		return IntensityLow
	case score <= 0.66:
		return IntensityMedium
	default:
		return IntensityHigh
	}
}

// ClassifyEvent derives event pressure from short-term dynamics.
func ClassifyEvent(priceChange24h, priceChange7d float64, level Intensity) EventPressure {
	kind := EventDrift
	switch {
	case priceChange24h >= 12:
		kind = EventBreakout
	case priceChange24h <= -12:
		kind = EventCapitulation
	case math.Abs(priceChange7d) >= 25:
		kind = EventSwell
	}
	return EventPressure{Kind: kind, Intensity: level}
}
