//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

const onnxBatchSize = 32

// ONNXEmbedder runs a local sentence-transformer model through ONNX Runtime. Texts are
// tokenized into fixed-length rows, run as one batch per session call, and mean-pooled
// over the attention mask from last_hidden_state. Requires CGO and the onnxruntime
// shared library.
type ONNXEmbedder struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	tokenizer  Tokenizer
	dimensions int
	maxTokens  int
}

// NewONNXEmbedder loads modelPath. dimensions must equal the model's hidden size.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	if maxTokens <= 0 {
		maxTokens = 256
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}
	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}
	return &ONNXEmbedder{
		session:    session,
		tokenizer:  &SimpleTokenizer{},
		dimensions: dimensions,
		maxTokens:  maxTokens,
	}, nil
}

// Embed embeds a single text.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in session batches of up to onnxBatchSize rows.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil, fmt.Errorf("onnx embedder is closed")
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += onnxBatchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+onnxBatchSize, len(texts))
		vecs, err := e.runLocked(texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *ONNXEmbedder) runLocked(texts []string) ([][]float32, error) {
	n, seq := len(texts), e.maxTokens
	ids := make([]int64, 0, n*seq)
	mask := make([]int64, 0, n*seq)
	types := make([]int64, 0, n*seq)
	for _, text := range texts {
		i, m, t := e.tokenizer.Tokenize(text, seq)
		ids = append(ids, i...)
		mask = append(mask, m...)
		types = append(types, t...)
	}

	shape := ort.NewShape(int64(n), int64(seq))
	idsT, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idsT.Destroy()
	maskT, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskT.Destroy()
	typesT, err := ort.NewTensor(shape, types)
	if err != nil {
		return nil, fmt.Errorf("token_type_ids tensor: %w", err)
	}
	defer typesT.Destroy()

	outputs := []ort.ArbitraryTensor{nil}
	if err := e.session.Run([]ort.ArbitraryTensor{idsT, maskT, typesT}, outputs); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer outputs[0].Destroy()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("last_hidden_state is not a float32 tensor")
	}
	dims := hidden.GetShape()
	if len(dims) != 3 || dims[0] != int64(n) || dims[1] != int64(seq) {
		return nil, fmt.Errorf("unexpected last_hidden_state shape %v", dims)
	}
	if dims[2] != int64(e.dimensions) {
		return nil, fmt.Errorf("model hidden size %d does not match configured dimensions %d", dims[2], e.dimensions)
	}

	vecs, err := meanPool(hidden.GetData(), mask, n, seq, e.dimensions)
	if err != nil {
		return nil, err
	}
	for _, v := range vecs {
		NormalizeL2Slice(v)
	}
	return vecs, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close destroys the session. It is safe to call more than once.
func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	return err
}
