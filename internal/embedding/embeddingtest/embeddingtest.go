// Package embeddingtest provides deterministic embedders for tests.
package embeddingtest

import (
	"context"
	"errors"
	"hash/fnv"
	"sync/atomic"

	"github.com/painradar/painradar/internal/textutil"
)

const dims = 512

// BagOfWords hashes tokens into a fixed-size count vector, so texts sharing
// words end up close together.
type BagOfWords struct {
	Calls atomic.Int32
}

// Embed implements embedding.Embedder
func (b *BagOfWords) Embed(_ context.Context, texts []string) ([][]float64, error) {
	b.Calls.Add(1)
	out := make([][]float64, len(texts))
	for i, text := range texts {
		v := make([]float64, dims)
		for _, tok := range textutil.Tokenize(text) {
			h := fnv.New32a()
			h.Write([]byte(tok))
			v[h.Sum32()%dims]++
		}
		out[i] = v
	}
	return out, nil
}

// Failing always errors
type Failing struct{}

// Embed implements embedding.Embedder
func (Failing) Embed(context.Context, []string) ([][]float64, error) {
	return nil, errors.New("model offline")
}
