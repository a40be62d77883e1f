package embedding

import (
	"context"
	"math"
)

// MockClient provides a deterministic embedding client for tests.
type MockClient struct {
	dimension int
	// Err, when set, is returned from every call.
	Err error
	// Calls counts Embed invocations, useful for batch assertions.
	Calls int
}

// NewMockClient creates a mock client.
func NewMockClient(dimension int) *MockClient {
	if dimension <= 0 {
		dimension = 1536
	}
	return &MockClient{dimension: dimension}
}

// Embed generates character-hash embeddings, stable per input text.
func (c *MockClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}

	embeddings := make([][]float32, len(texts))
	for i := range texts {
		embeddings[i] = make([]float32, c.dimension)
		for j, char := range texts[i] {
			embeddings[i][j%c.dimension] += float32(char) / 1000.0
		}
		normalize(embeddings[i])
	}
	return embeddings, nil
}

// EmbedSingle generates a mock embedding for a single text.
func (c *MockClient) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := c.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// Model returns the mock model name.
func (c *MockClient) Model() string {
	return "mock-embedding-model"
}

// Dimension returns the embedding dimension.
func (c *MockClient) Dimension() int {
	return c.dimension
}

func normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
