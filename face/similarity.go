// Package face holds the match decision for externally produced face embeddings.
package face

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// MatchThreshold is the cosine similarity a probe must exceed to match.
const MatchThreshold = 0.80

// Embedding is a fixed-length face vector produced by an external model.
type Embedding []float32

// EmbeddingProvider turns a face image into an Embedding. Implementations wrap a model
// loaded once at process start and are passed to whoever needs them.
type EmbeddingProvider interface {
	Embed(ctx context.Context, image []byte) (Embedding, error)
}

// ProviderFunc adapts a function to EmbeddingProvider.
type ProviderFunc func(ctx context.Context, image []byte) (Embedding, error)

// Embed calls f.
func (f ProviderFunc) Embed(ctx context.Context, image []byte) (Embedding, error) {
	return f(ctx, image)
}

// ErrInvalidEmbedding indicates an undecodable or empty embedding.
var ErrInvalidEmbedding = errors.New("face: invalid embedding")

// CosineSimilarity returns dot(a,b)/(|a||b|). ok is false when the vectors differ in
// length, are empty, contain non-finite values, or either has zero norm.
func CosineSimilarity(a, b Embedding) (similarity float64, ok bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}

	similarity = dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(similarity) || math.IsInf(similarity, 0) {
		return 0, false
	}
	return similarity, true
}

// Match reports whether probe matches enrolled. Anything CosineSimilarity cannot score is
// a non-match, never an error.
func Match(enrolled, probe Embedding) bool {
	similarity, ok := CosineSimilarity(enrolled, probe)
	return ok && similarity > MatchThreshold
}

// ParseEmbedding decodes a JSON array of numbers.
func ParseEmbedding(raw string) (Embedding, error) {
	var e Embedding
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmbedding, err)
	}
	if len(e) == 0 {
		return nil, fmt.Errorf("%w: empty vector", ErrInvalidEmbedding)
	}
	return e, nil
}

// String encodes the embedding as a JSON array.
func (e Embedding) String() string {
	raw, err := json.Marshal([]float32(e))
	if err != nil {
		return "[]"
	}
	return string(raw)
}
