package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const (
	DefaultGeminiModel = "gemini-embedding-exp-03-07"
	DefaultTaskType    = "SEMANTIC_SIMILARITY"
)

// GeminiProvider implements Provider on top of the Gemini embedContent API.
// Every call carries the same output dimensionality and task type so that
// document and query vectors are comparable.
type GeminiProvider struct {
	client    *genai.Client
	model     string
	dimension int
	taskType  string
}

// NewGeminiProvider creates a GeminiProvider. An empty Endpoint uses the
// public Gemini API.
func NewGeminiProvider(ctx context.Context, cfg Config) (*GeminiProvider, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("embedding: create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = DefaultGeminiModel
	}
	taskType := cfg.TaskType
	if taskType == "" {
		taskType = DefaultTaskType
	}
	return &GeminiProvider{
		client:    client,
		model:     model,
		dimension: cfg.Dimension,
		taskType:  taskType,
	}, nil
}

// Embed issues a single embedContent call for all texts.
func (p *GeminiProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, t := range texts {
		contents[i] = genai.NewContentFromText(t, genai.RoleUser)
	}

	ecfg := &genai.EmbedContentConfig{TaskType: p.taskType}
	if p.dimension > 0 {
		dim := int32(p.dimension)
		ecfg.OutputDimensionality = &dim
	}

	resp, err := p.client.Models.EmbedContent(ctx, p.model, contents, ecfg)
	if err != nil {
		return nil, fmt.Errorf("embedding: gemini embed content: %w", err)
	}

	embeddings := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		if e == nil {
			return nil, fmt.Errorf("embedding: gemini returned empty embedding at %d", i)
		}
		embeddings[i] = e.Values
	}
	return embeddings, nil
}

// Dimension returns the configured output dimensionality.
func (p *GeminiProvider) Dimension() int {
	return p.dimension
}
