package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrUnavailable is returned when the embedding model could not be loaded
var ErrUnavailable = errors.New("embedding model unavailable")

const batchSize = 64

// Embedder generates one vector per input text
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Loader prepares an Embedder, typically by probing a model server
type Loader func(ctx context.Context) (Embedder, error)

// Model is the shared sentence-embedding model. The first caller triggers the
// load; concurrent callers wait for that same load. A failed load is
// remembered, so later calls fail fast with ErrUnavailable.
type Model struct {
	loader      Loader
	loadTimeout time.Duration

	once     sync.Once
	embedder Embedder
	err      error
}

// NewModel creates a lazily loaded model
func NewModel(loader Loader) *Model {
	return &Model{loader: loader, loadTimeout: 30 * time.Second}
}

// NewStaticModel wraps an already constructed Embedder
func NewStaticModel(e Embedder) *Model {
	return NewModel(func(context.Context) (Embedder, error) { return e, nil })
}

func (m *Model) load(ctx context.Context) error {
	m.once.Do(func() {
		if m.loader == nil {
			m.err = ErrUnavailable
			return
		}
		// the load outlives the request that happened to trigger it
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.loadTimeout)
		defer cancel()

		m.embedder, m.err = m.loader(loadCtx)
		if m.err != nil {
			logrus.Warnf("Embedding model failed to load, semantic stages will degrade: %v", m.err)
			m.err = fmt.Errorf("%w: %v", ErrUnavailable, m.err)
			return
		}
		logrus.Info("Embedding model loaded")
	})
	return m.err
}

// Available loads the model if needed and reports whether it can be used
func (m *Model) Available(ctx context.Context) bool {
	return m != nil && m.load(ctx) == nil
}

// Embed returns L2-normalized vectors for texts, batching calls to the model
func (m *Model) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if m == nil {
		return nil, ErrUnavailable
	}
	if err := m.load(ctx); err != nil {
		return nil, err
	}

	vectors := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch, err := m.embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embedding batch %d-%d: got %d vectors", start, end, len(batch))
		}
		for _, v := range batch {
			vectors = append(vectors, Normalize(v))
		}
	}
	return vectors, nil
}

// Normalize scales v to unit length; the zero vector is returned unchanged
func Normalize(v []float64) []float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

// Cosine returns the cosine similarity of two vectors
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
