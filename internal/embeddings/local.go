package embeddings

import (
	"context"
	"fmt"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

// LocalEmbedder talks to a self-hosted OpenAI-compatible embedding server
// (for example a sentence-transformers model such as all-MiniLM-L6-v2
// behind llama.cpp or text-embeddings-inference).
type LocalEmbedder struct {
	embedder   *lcembeddings.EmbedderImpl
	model      string
	dimensions int
}

// NewLocalEmbedder creates an embedder for the server at baseURL. Local
// servers usually ignore the token, so an empty apiKey is sent as "none".
func NewLocalEmbedder(baseURL, model, apiKey string, dimensions int) (*LocalEmbedder, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("local embedder requires a base URL")
	}
	if apiKey == "" {
		apiKey = "none"
	}

	client, err := lcopenai.New(
		lcopenai.WithBaseURL(baseURL),
		lcopenai.WithToken(apiKey),
		lcopenai.WithEmbeddingModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create local embedding client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(client,
		lcembeddings.WithStripNewLines(true),
		lcembeddings.WithBatchSize(maxBatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("create local embedder: %w", err)
	}

	return &LocalEmbedder{
		embedder:   embedder,
		model:      model,
		dimensions: dimensions,
	}, nil
}

func (e *LocalEmbedder) Name() string {
	return "local/" + e.model
}

func (e *LocalEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("local embedding request failed: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("local server returned %d embeddings, expected %d", len(vecs), len(texts))
	}
	return vecs, nil
}
