package classify

import (
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"moodcanvas/internal/market"
	"moodcanvas/internal/selector"
)

func TestVolatilityScore(t *testing.T) {
	cases := []struct {
		p24, p7 float64
		want    float64
	}{
		{10, 35, 0.3},
		{0, 0, 0},
		{50, 350, 1.0},
		{-15, -42, 0.42},
	}
	for _, tc := range cases {
		got := VolatilityScore(tc.p24, tc.p7)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("VolatilityScore(%v, %v) = %v, want %v", tc.p24, tc.p7, got, tc.want)
		}
	}
}

func TestVolatilityLevelBoundaries(t *testing.T) {
	cases := []struct {
		score float64
		want  Intensity
	}{
		{0, IntensityLow},
		{0.33, IntensityLow},
		{0.331, IntensityMedium},
		{0.66, IntensityMedium},
		{0.661, IntensityHigh},
		{1, IntensityHigh},
	}
	for _, tc := range cases {
		if got := VolatilityLevel(tc.score); got != tc.want {
			t.Fatalf("VolatilityLevel(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestClassifyClimate(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	cases := []struct {
		name      string
		capChange float64
		sentiment *float64
		want      Climate
	}{
		{"deep drawdown is panic", -9, nil, ClimatePanic},
		{"extreme fear is panic", 1, f(10), ClimatePanic},
		{"moderate drawdown is despair", -4, nil, ClimateDespair},
		{"fearful sentiment is despair", 0, f(25), ClimateDespair},
		{"mild drawdown is cooling", -1, f(50), ClimateCooling},
		{"strong rally with greed is euphoria", 4, f(80), ClimateEuphoria},
		{"strong rally without sentiment is euphoria", 4, nil, ClimateEuphoria},
		{"rally against fearful sentiment is transition", 4, f(40), ClimateTransition},
		{"flat market is transition", 0.2, f(50), ClimateTransition},
	}
	for _, tc := range cases {
		if got := ClassifyClimate(tc.capChange, tc.sentiment); got != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestClassifyArchetype(t *testing.T) {
	cases := []struct {
		categories []string
		want       Archetype
	}{
		{[]string{"l1"}, ArchetypeL1Sovereign},
		{[]string{"Layer 1 (L1)", "Smart Contract Platform"}, ArchetypeL1Sovereign},
		{[]string{"Layer-1"}, ArchetypeL1Sovereign},
		{[]string{"BNB Chain Ecosystem", "Layer 1 (L1)"}, ArchetypeL1Sovereign},
		{[]string{"Meme", "Dog Themed"}, ArchetypeMemeAscendant},
		{[]string{"Politics", "Meme"}, ArchetypeMemeAscendant},
		{[]string{"Political"}, ArchetypePolitical},
		{[]string{"Privacy Coins"}, ArchetypePrivacy},
		{[]string{"Artificial Intelligence"}, ArchetypeAIOracle},
		{[]string{"Oracle"}, ArchetypeAIOracle},
		{[]string{"Perpetuals", "Derivatives"}, ArchetypePerpLiquidity},
		{[]string{"Gaming"}, ArchetypeUnknown},
		{nil, ArchetypeUnknown},
		// Short markers must match whole words only, never substrings.
		{[]string{"Avalanche Ecosystem"}, ArchetypeUnknown},
		{[]string{"Blockchain Infrastructure"}, ArchetypeUnknown},
		{[]string{"Kusama Ecosystem"}, ArchetypeUnknown},
		{[]string{"AI Agents"}, ArchetypeAIOracle},
		{[]string{"zk-Rollups"}, ArchetypePrivacy},
	}
	for _, tc := range cases {
		if got := ClassifyArchetype(tc.categories); got != tc.want {
			t.Fatalf("ClassifyArchetype(%v) = %s, want %s", tc.categories, got, tc.want)
		}
	}
}

func TestClassifyEvent(t *testing.T) {
	cases := []struct {
		p24, p7 float64
		want    EventKind
	}{
		{13, 0, EventBreakout},
		{-13, 0, EventCapitulation},
		{5, 30, EventSwell},
		{5, -28, EventSwell},
		{2, 4, EventDrift},
	}
	for _, tc := range cases {
		got := ClassifyEvent(tc.p24, tc.p7, IntensityLow)
		if got.Kind != tc.want {
			t.Fatalf("ClassifyEvent(%v, %v) = %s, want %s", tc.p24, tc.p7, got.Kind, tc.want)
		}
	}
}

func TestBuildContextEndToEnd(t *testing.T) {
	sentiment := 80.0
	snapshot := market.Snapshot{
		MarketCapChange24h: 4,
		BTCDominance:       52.1,
		ETHDominance:       17.3,
		SentimentIndex:     &sentiment,
	}
	token := selector.Selected{
		Candidate: selector.Candidate{
			ID:             "solana",
			Symbol:         "SOL",
			Name:           "Solana",
			PriceChange24h: 8,
			PriceChange7d:  25,
			Volume24h:      decimal.NewFromInt(3_000_000_000),
			MarketCap:      decimal.NewFromInt(60_000_000_000),
			Categories:     []string{"l1"},
		},
	}

	ctx := BuildContext(snapshot, token, "")

	if ctx.Climate != ClimateEuphoria {
		t.Fatalf("climate = %s, want euphoria", ctx.Climate)
	}
	if ctx.Archetype != ArchetypeL1Sovereign {
		t.Fatalf("archetype = %s, want l1-sovereign", ctx.Archetype)
	}
	wantVol := (8 + 25.0/7) / 50
	if math.Abs(ctx.Dynamics.Volatility-wantVol) > 1e-9 {
		t.Fatalf("volatility = %v, want %v", ctx.Dynamics.Volatility, wantVol)
	}
	if ctx.Dynamics.VolatilityLevel != IntensityLow {
		t.Fatalf("volatility level = %s, want low", ctx.Dynamics.VolatilityLevel)
	}
	if ctx.Event.Kind != EventSwell {
		t.Fatalf("event = %s, want swell", ctx.Event.Kind)
	}
	if ctx.Composition == "" || ctx.Palette == "" {
		t.Fatal("scene lookup must always produce composition and palette")
	}
	if len(ctx.Motifs) == 0 || len(ctx.NarrativeHints) == 0 {
		t.Fatal("motifs and narrative hints must never be empty")
	}
}

func TestBuildContextPersistedCategoriesPrecedence(t *testing.T) {
	token := selector.Selected{
		Candidate: selector.Candidate{
			ID:         "pepe",
			Categories: []string{"Gaming"},
		},
	}

	ctx := BuildContext(market.Snapshot{}, token, `["Meme"]`)
	if ctx.Archetype != ArchetypeMemeAscendant {
		t.Fatalf("persisted categories should win, got %s", ctx.Archetype)
	}

	// Malformed JSON falls back to the live tags.
	ctx = BuildContext(market.Snapshot{}, token, `{not json`)
	if ctx.Archetype != ArchetypeUnknown {
		t.Fatalf("malformed categories should fall back, got %s", ctx.Archetype)
	}
}
