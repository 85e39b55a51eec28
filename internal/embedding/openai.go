package embedding

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/sync/errgroup"
)

const (
	openAIDefaultModel       = "text-embedding-3-small"
	openAIDefaultDimensions  = 1536
	openAIMaxBatch           = 2048
	openAIDefaultConcurrency = 4
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint. Large batches are split into
// sub-batches sent concurrently; results are reassembled in input order and L2-normalized.
type OpenAIEmbedder struct {
	client      *openai.Client
	model       string
	dimensions  int
	maxBatch    int
	concurrency int
}

type openAIConfig struct {
	model       string
	dimensions  int
	baseURL     string
	maxBatch    int
	concurrency int
	httpClient  *http.Client
}

// OpenAIOption configures an OpenAIEmbedder.
type OpenAIOption func(*openAIConfig)

// WithModel sets the embedding model name.
func WithModel(model string) OpenAIOption {
	return func(c *openAIConfig) { c.model = model }
}

// WithDimensions sets the requested output dimension.
func WithDimensions(dimensions int) OpenAIOption {
	return func(c *openAIConfig) { c.dimensions = dimensions }
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) OpenAIOption {
	return func(c *openAIConfig) { c.baseURL = url }
}

// WithMaxBatch limits the number of inputs per request.
func WithMaxBatch(n int) OpenAIOption {
	return func(c *openAIConfig) { c.maxBatch = n }
}

// WithConcurrency limits the number of requests in flight for one EmbedBatch call.
func WithConcurrency(n int) OpenAIOption {
	return func(c *openAIConfig) { c.concurrency = n }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) OpenAIOption {
	return func(c *openAIConfig) { c.httpClient = client }
}

// NewOpenAIEmbedder creates an embedder for the OpenAI embeddings API or a compatible provider.
func NewOpenAIEmbedder(apiKey string, opts ...OpenAIOption) *OpenAIEmbedder {
	cfg := openAIConfig{
		model:       openAIDefaultModel,
		dimensions:  openAIDefaultDimensions,
		maxBatch:    openAIMaxBatch,
		concurrency: openAIDefaultConcurrency,
		httpClient:  http.DefaultClient,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxBatch <= 0 || cfg.maxBatch > openAIMaxBatch {
		cfg.maxBatch = openAIMaxBatch
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = 1
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithHTTPClient(cfg.httpClient),
	}
	if cfg.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.baseURL))
	}
	client := openai.NewClient(clientOpts...)

	return &OpenAIEmbedder{
		client:      &client,
		model:       cfg.model,
		dimensions:  cfg.dimensions,
		maxBatch:    cfg.maxBatch,
		concurrency: cfg.concurrency,
	}
}

// Embed returns the embedding for a single text.
func (o *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	vecs, err := o.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embeddings for texts in input order.
func (o *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	result := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i := 0; i < len(texts); i += o.maxBatch {
		start, end := i, min(i+o.maxBatch, len(texts))
		g.Go(func() error {
			vecs, err := o.callAPI(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
			}
			copy(result[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// Dimensions returns the configured vector dimension.
func (o *OpenAIEmbedder) Dimensions() int {
	return o.dimensions
}

// Close is a no-op; the HTTP client is shared.
func (o *OpenAIEmbedder) Close() error {
	return nil
}

func (o *OpenAIEmbedder) callAPI(ctx context.Context, texts []string) ([][]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          o.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if o.dimensions > 0 {
		params.Dimensions = openai.Int(int64(o.dimensions))
	}

	resp, err := o.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, err
	}

	vecs := make([][]float32, len(texts))
	for _, item := range resp.Data {
		idx := item.Index
		if idx < 0 || idx >= int64(len(texts)) {
			return nil, fmt.Errorf("unexpected embedding index %d for batch size %d", idx, len(texts))
		}
		vec := make([]float32, len(item.Embedding))
		for j, v := range item.Embedding {
			vec[j] = float32(v)
		}
		NormalizeL2Slice(vec)
		vecs[idx] = vec
	}
	for i, v := range vecs {
		if v == nil {
			return nil, fmt.Errorf("missing embedding for index %d", i)
		}
	}
	return vecs, nil
}
