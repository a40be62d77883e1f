package embedding

import (
	"context"
	"crypto/sha256"
	"math"
)

// DevModel is the provenance tag recorded for locally derived embeddings.
const DevModel = "dev-hash"

// DevEmbedder derives deterministic pseudo-embeddings from a SHA-256 digest
// of the text. It exists so the full pipeline runs without an API key.
// Vectors carry no semantic signal; they only have stable geometry, so
// identical texts still land next to each other.
type DevEmbedder struct {
	dimension int
}

// NewDevEmbedder creates a deterministic local embedder.
func NewDevEmbedder(dimension int) *DevEmbedder {
	if dimension <= 0 {
		dimension = 1536
	}
	return &DevEmbedder{dimension: dimension}
}

// Embed derives one vector per text.
func (e *DevEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		embeddings[i] = e.derive(text)
	}
	return embeddings, nil
}

// EmbedSingle derives a vector for a single text.
func (e *DevEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return e.derive(text), nil
}

// Model returns the provenance tag.
func (e *DevEmbedder) Model() string {
	return DevModel
}

// Dimension returns the embedding dimension.
func (e *DevEmbedder) Dimension() int {
	return e.dimension
}

// derive maps the 32 digest bytes to a base vector in [-1, 1], tiles it to
// the configured dimension, and L2-normalizes.
func (e *DevEmbedder) derive(text string) []float32 {
	sum := sha256.Sum256([]byte(text))

	base := make([]float32, len(sum))
	for i, b := range sum {
		base[i] = float32(b)/127.5 - 1.0
	}

	vec := make([]float32, e.dimension)
	for i := range vec {
		vec[i] = base[i%len(base)]
	}

	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		inv := float32(1.0 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}

	return vec
}
