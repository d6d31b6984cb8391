// Package embeddings defines the provider-polymorphic embedding contract
// and its interchangeable backends. All providers in one deployment must
// return vectors of the same dimensionality.
package embeddings

import "context"

type Provider interface {
	// Embed returns one equal-length float vector per input string. A
	// provider-level error aborts the whole batch; there is never partial
	// silent success.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
}
