// Package prompt renders a painting context into generation-ready prompt
// text and the deterministic hash/seed pair that makes runs reproducible.
package prompt

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"moodcanvas/internal/apperr"
	"moodcanvas/internal/classify"
)

// bucketLabelFormat renders an hourly time bucket, e.g. "20260829T15".
const bucketLabelFormat = "20060102T15"

// VisualParams is the fixed set of named numeric dials, each in [0,1],
// that parameterises the prompt. It is the canonical input to hashing.
type VisualParams struct {
	Energy     float64 `json:"energy"`
	Turbulence float64 `json:"turbulence"`
	Warmth     float64 `json:"warmth"`
	Density    float64 `json:"density"`
	Luminosity float64 `json:"luminosity"`
	Dominance  float64 `json:"dominance"`
}

// Composition is the finished, generation-ready prompt bundle.
type Composition struct {
	Bucket         time.Time
	BucketLabel    string
	Params         VisualParams
	ParamsHash     string
	Seed           string
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Format         string
	Filename       string
}

// Options carries the output-shape settings for composition.
type Options struct {
	Width  int
	Height int
	Format string
}

// BucketLabel formats a time bucket for ids, filenames, and seeding.
func BucketLabel(bucket time.Time) string {
	return bucket.UTC().Format(bucketLabelFormat)
}

// Compose builds the full prompt composition for one pipeline run.
func Compose(ctx classify.PaintingContext, shortDescription string, bucket time.Time, opts Options) (Composition, error) {
	if bucket.IsZero() {
		return Composition{}, &apperr.ValidationError{Message: "time bucket is required"}
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		return Composition{}, &apperr.ValidationError{Message: "output dimensions must be positive"}
	}
	format := opts.Format
	if format == "" {
		format = "webp"
	}

	params := DeriveParams(ctx)
	hash := HashParams(params)
	label := BucketLabel(bucket)
	seed := DeriveSeed(label, hash)

	text := renderPrompt(ctx, shortDescription, hash, seed)
	negative := renderNegative()

	filename := fmt.Sprintf("%s-%s-%s", label, hash[:12], seed[:8])

	return Composition{
		Bucket:         bucket.UTC(),
		BucketLabel:    label,
		Params:         params,
		ParamsHash:     hash,
		Seed:           seed,
		Prompt:         text,
		NegativePrompt: negative,
		Width:          opts.Width,
		Height:         opts.Height,
		Format:         format,
		Filename:       filename,
	}, nil
}

// DeriveParams normalises the symbolic context into the fixed dial set.
func DeriveParams(ctx classify.PaintingContext) VisualParams {
	sentiment := 0.5
	if ctx.Market.SentimentIndex != nil {
		sentiment = clamp01(*ctx.Market.SentimentIndex / 100)
	}

	density := 0.0
	if ctx.Dynamics.MarketCapUSD > 0 {
		density = clamp01(ctx.Dynamics.Volume24hUSD / ctx.Dynamics.MarketCapUSD)
	}

	return VisualParams{
		Energy:     clamp01(0.5 + ctx.Market.MarketCapChange24h/20),
		Turbulence: clamp01(ctx.Dynamics.Volatility),
		Warmth:     sentiment,
		Density:    density,
		Luminosity: luminosityFor(ctx.Climate),
		Dominance:  clamp01(ctx.Market.BTCDominance / 100),
	}
}

var climateLuminosity = map[classify.Climate]float64{
	classify.ClimateEuphoria:   0.90,
	classify.ClimateTransition: 0.60,
	classify.ClimateCooling:    0.45,
	classify.ClimateDespair:    0.30,
	classify.ClimatePanic:      0.15,
}

func luminosityFor(climate classify.Climate) float64 {
	if v, ok := climateLuminosity[climate]; ok {
		return v
	}
	return 0.5
}

// HashParams computes the content-addressed digest of the visual params.
// The serialization is a fixed field order at fixed precision, so equal
// params always produce equal hashes regardless of process or time.
func HashParams(p VisualParams) string {
	canonical := fmt.Sprintf(
		"density=%.6f|dominance=%.6f|energy=%.6f|luminosity=%.6f|turbulence=%.6f|warmth=%.6f",
		p.Density, p.Dominance, p.Energy, p.Luminosity, p.Turbulence, p.Warmth,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// DeriveSeed computes the generation seed from the bucket label and the
// params hash. Pure function; no hidden entropy.
func DeriveSeed(bucketLabel, paramsHash string) string {
	sum := sha256.Sum256([]byte(bucketLabel + ":" + paramsHash))
	return hex.EncodeToString(sum[:])
}

// SeedUint32 folds a hex seed digest into the numeric seed generators take.
func SeedUint32(seed string) uint32 {
	raw, err := hex.DecodeString(seed)
	if err != nil || len(raw) < 4 {
		sum := sha256.Sum256([]byte(seed))
		raw = sum[:]
	}
	return binary.BigEndian.Uint32(raw[:4])
}

func renderPrompt(ctx classify.PaintingContext, shortDescription, hash, seed string) string {
	b := strings.Builder{}
	b.WriteString("An allegorical oil painting of the market's mood. ")
	b.WriteString(fmt.Sprintf("Subject: %s (%s). ", ctx.Token.Name, ctx.Token.Symbol))
	if desc := strings.TrimSpace(shortDescription); desc != "" {
		b.WriteString(desc)
		if !strings.HasSuffix(desc, ".") {
			b.WriteString(".")
		}
		b.WriteString(" ")
	}
	b.WriteString(fmt.Sprintf("Scene: %s. ", ctx.Composition))
	b.WriteString(fmt.Sprintf("Palette: %s. ", ctx.Palette))
	if len(ctx.Motifs) > 0 {
		b.WriteString(fmt.Sprintf("Recurring motifs: %s. ", strings.Join(ctx.Motifs, ", ")))
	}
	if len(ctx.NarrativeHints) > 0 {
		b.WriteString(fmt.Sprintf("Atmosphere: %s. ", strings.Join(ctx.NarrativeHints, "; ")))
	}
	b.WriteString(fmt.Sprintf("Market climate: %s, event pressure: %s (%s intensity). ",
		ctx.Climate, ctx.Event.Kind, ctx.Event.Intensity))
	b.WriteString("Painterly texture, visible brushwork, museum lighting.")
	// Machine-readable trailer for downstream traceability.
	b.WriteString(fmt.Sprintf("\ncontrols: paramsHash=%s, seed=%s", hash, seed))
	return b.String()
}

func renderNegative() string {
	return "text, watermark, logo, signature, charts, candlesticks, numbers, ui elements, photorealism, low quality, deformed anatomy"
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
