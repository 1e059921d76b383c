// Package imagegen abstracts the external image generation provider.
package imagegen

import "context"

// Request describes one image generation call.
type Request struct {
	Prompt         string
	NegativePrompt string
	Width          int
	Height         int
	Format         string
	Seed           uint32
	Model          string
	// ReferenceImageURL enables image-to-image conditioning when set.
	ReferenceImageURL string
}

// ProviderMeta carries provider-reported details about a generation.
type ProviderMeta struct {
	Provider     string
	Model        string
	FinishReason string
}

// Result is a successful generation.
type Result struct {
	Image []byte
	Meta  ProviderMeta
}

// Generator produces an image from a composed prompt.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
