// Package embed abstracts the embedding provider that maps text to a
// fixed-length vector. The engine is agnostic to vector length and
// provider implementation.
package embed

import "context"

// Provider maps text to a numeric vector of provider-defined length.
// Implementations must respect ctx cancellation: the sync coordinator
// bounds every call with a per-file timeout.
type Provider interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a plain function to the Provider interface.
type Func func(ctx context.Context, text string) ([]float32, error)

// Embed implements Provider.
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}
