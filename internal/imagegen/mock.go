package imagegen

import (
	"context"

	"moodcanvas/internal/apperr"
)

// Mock is a zero-byte generator used for integration testing and dry runs.
// It echoes the request back through provider metadata without any I/O.
type Mock struct {
	// Payload overrides the returned image bytes; defaults to a 1-byte stub.
	Payload []byte
	// Err, when set, is returned instead of a result.
	Err error
}

// Generate returns the stub payload.
func (m *Mock) Generate(ctx context.Context, req Request) (Result, error) {
	if m.Err != nil {
		return Result{}, m.Err
	}
	if err := ctx.Err(); err != nil {
		return Result{}, &apperr.InternalError{Cause: err}
	}

	payload := m.Payload
	if payload == nil {
		payload = []byte{0}
	}

	return Result{
		Image: payload,
		Meta: ProviderMeta{
			Provider:     "mock",
			Model:        req.Model,
			FinishReason: "SUCCESS",
		},
	}, nil
}

var _ Generator = (*Mock)(nil)
