package embedding

import "context"

// Embedder turns question text into a query vector. The vector's
// dimensionality must match the loaded corpus or the request fails fast.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
