package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// OllamaEmbedder generates mean-pooled sentence embeddings via the Ollama API
type OllamaEmbedder struct {
	Model   string
	BaseURL string
	client  *resty.Client
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// NewOllamaEmbedder creates a new Ollama embedder
func NewOllamaEmbedder(model, baseURL string) *OllamaEmbedder {
	return &OllamaEmbedder{
		Model:   model,
		BaseURL: baseURL,
		client: resty.New().
			SetTimeout(120*time.Second).
			SetHeader("Content-Type", "application/json"),
	}
}

// Embed generates embeddings for the given texts
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	var result ollamaEmbedResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"model": e.Model,
			"input": texts,
		}).
		SetResult(&result).
		Post(e.BaseURL + "/api/embed")

	if err != nil {
		return nil, fmt.Errorf("ollama embed error: %w", err)
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("ollama embed returned %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	return result.Embeddings, nil
}

// OllamaLoader returns a Loader that checks the model with one embedding before handing it out
func OllamaLoader(model, baseURL string) Loader {
	return func(ctx context.Context) (Embedder, error) {
		e := NewOllamaEmbedder(model, baseURL)
		check, err := e.Embed(ctx, []string{"ping"})
		if err != nil {
			return nil, err
		}
		if len(check) != 1 || len(check[0]) == 0 {
			return nil, fmt.Errorf("ollama model %q returned no embedding", model)
		}
		return e, nil
	}
}
