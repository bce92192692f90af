package signals

import (
	"context"
	"fmt"
	"sync"

	"github.com/painradar/painradar/internal/embedding"
)

// PainScorer rates how closely sentences resemble a fixed set of pain
// archetypes. The archetype vectors are computed once, on first use.
type PainScorer struct {
	model      *embedding.Model
	archetypes []string

	mu      sync.Mutex
	vectors [][]float64
}

// NewPainScorer creates a scorer over archetype phrases
func NewPainScorer(model *embedding.Model, archetypes []string) *PainScorer {
	return &PainScorer{model: model, archetypes: archetypes}
}

// Available reports whether semantic scoring can run
func (p *PainScorer) Available(ctx context.Context) bool {
	return p != nil && len(p.archetypes) > 0 && p.model.Available(ctx)
}

func (p *PainScorer) archetypeVectors(ctx context.Context) ([][]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.vectors != nil {
		return p.vectors, nil
	}
	vectors, err := p.model.Embed(ctx, p.archetypes)
	if err != nil {
		return nil, fmt.Errorf("embedding pain archetypes: %w", err)
	}
	p.vectors = vectors
	return vectors, nil
}

// Score returns, for each text, its best cosine similarity to any archetype
func (p *PainScorer) Score(ctx context.Context, texts []string) ([]float64, error) {
	if p == nil || len(p.archetypes) == 0 {
		return nil, embedding.ErrUnavailable
	}
	if len(texts) == 0 {
		return nil, nil
	}
	archetypes, err := p.archetypeVectors(ctx)
	if err != nil {
		return nil, err
	}
	vectors, err := p.model.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(vectors))
	for i, v := range vectors {
		best := 0.0
		for _, a := range archetypes {
			if sim := embedding.Cosine(v, a); sim > best {
				best = sim
			}
		}
		scores[i] = best
	}
	return scores, nil
}

// Boost turns an archetype similarity into extra pain signal: nothing at or
// below 0.3, rising linearly to 2 at 0.7 and above.
func Boost(similarity float64) float64 {
	switch {
	case similarity <= 0.3:
		return 0
	case similarity >= 0.7:
		return 2
	default:
		return 2 * (similarity - 0.3) / 0.4
	}
}
