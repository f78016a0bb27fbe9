package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/upb/character-chat/internal/rag"
	"github.com/upb/character-chat/services"
)

// DefaultModel is the sentence embedding model the knowledge collections were indexed with.
const DefaultModel = "keepitreal/vietnamese-sbert"

// Config configures an Encoder
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
	// Dimension, when set, is enforced on every returned vector
	Dimension int
}

// Encoder maps text to a query vector through an OpenAI-compatible
// /embeddings endpoint. Safe for concurrent use.
type Encoder struct {
	client    *goopenai.Client
	model     string
	dimension int
	logger    *zap.Logger
}

// NewEncoder creates an encoder
func NewEncoder(cfg Config, logger *zap.Logger) *Encoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	clientConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &Encoder{
		client:    goopenai.NewClientWithConfig(clientConfig),
		model:     cfg.Model,
		dimension: cfg.Dimension,
		logger:    logger,
	}
}

// Model returns the embedding model name
func (e *Encoder) Model() string {
	return e.model
}

// Encode returns the embedding of text. Empty input and any model failure
// are reported as EncodingError.
func (e *Encoder) Encode(ctx context.Context, text string) (rag.QueryVector, error) {
	if strings.TrimSpace(text) == "" {
		return nil, services.NewEncodingError("text cannot be empty", nil)
	}

	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(e.model),
	})
	if err != nil {
		e.logger.Warn("embedding request failed", zap.String("model", e.model), zap.Error(err))
		return nil, services.NewEncodingError("embedding request failed", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, services.NewEncodingError("embedding endpoint returned no vector", nil)
	}

	vector := resp.Data[0].Embedding
	if e.dimension > 0 && len(vector) != e.dimension {
		return nil, services.NewEncodingError(
			fmt.Sprintf("embedding has dimension %d, want %d", len(vector), e.dimension), nil)
	}
	return rag.QueryVector(vector), nil
}
