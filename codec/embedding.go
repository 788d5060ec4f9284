package codec

import (
	"fmt"
	"strings"
)

// EmbeddingPrecision is the fixed-point precision used per element.
const EmbeddingPrecision = 6

// EncodeEmbedding encodes a float vector as comma-joined, per-element
// fixed-point Base62 tokens.
func EncodeEmbedding(vector []float64) (string, error) {
	tokens := make([]string, len(vector))
	for i, v := range vector {
		encoded, err := EncodeFixedPoint(v, EmbeddingPrecision)
		if err != nil {
			return "", fmt.Errorf("embedding element %d: %w", i, err)
		}
		tokens[i] = encoded
	}
	return strings.Join(tokens, ","), nil
}

// DecodeEmbedding is the inverse of EncodeEmbedding.
func DecodeEmbedding(s string) ([]float64, error) {
	if s == "" {
		return []float64{}, nil
	}

	tokens := strings.Split(s, ",")
	vector := make([]float64, len(tokens))
	for i, tok := range tokens {
		v, err := DecodeFixedPoint(tok, EmbeddingPrecision)
		if err != nil {
			return nil, fmt.Errorf("embedding element %d: %w", i, err)
		}
		vector[i] = v
	}
	return vector, nil
}
