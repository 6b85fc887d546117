package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openaisdk "github.com/openai/openai-go"
	contractx "github.com/tanpawarit/Chative-Concierge/agent/contract"
)

type EmbeddingConfig struct {
	Model      string `envconfig:"MODEL" split_words:"true" default:"openai/text-embedding-3-small"`
	Dimensions int    `envconfig:"DIMENSIONS" split_words:"true" default:"1536"`
}

var _ contractx.Embedder = (*OpenAIEmbedder)(nil)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint. Every
// vector it returns has exactly Dimensions components.
type OpenAIEmbedder struct {
	client     *openaisdk.Client
	model      string
	dimensions int
}

func NewOpenAIEmbedder(client *openaisdk.Client, cfg EmbeddingConfig) (*OpenAIEmbedder, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: embedding client is nil", contractx.ErrConfiguration)
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return nil, fmt.Errorf("%w: embedding model is required", contractx.ErrConfiguration)
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be > 0", contractx.ErrConfiguration)
	}
	return &OpenAIEmbedder{client: client, model: model, dimensions: cfg.Dimensions}, nil
}

func (e *OpenAIEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("embed: empty text")
	}

	resp, err := e.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Input:      openaisdk.EmbeddingNewParamsInputUnion{OfString: openaisdk.String(text)},
		Model:      openaisdk.EmbeddingModel(e.model),
		Dimensions: openaisdk.Int(int64(e.dimensions)),
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("embed: response has no data")
	}

	raw := resp.Data[0].Embedding
	if len(raw) != e.dimensions {
		return nil, fmt.Errorf("embed: got %d dimensions, want %d", len(raw), e.dimensions)
	}
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
