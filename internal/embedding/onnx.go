//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ONNXEmbedder runs a local ONNX sentence-embedding model. Requires CGO and
// the onnxruntime shared library; without CGO the stub in onnx_nocgo.go is built.
type ONNXEmbedder struct {
	session    *ort.AdvancedSession
	dimensions int
	maxTokens  int
	cache      *Cache
	tokenizer  Tokenizer

	// Tensors are allocated once and reused; Run() is serialized by mu.
	mu            sync.Mutex
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

// NewONNXEmbedder loads the model at modelPath and prepares reusable tensors.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens, cacheSize int) (*ONNXEmbedder, error) {
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", err)
	}

	tok := wordTokenizer{}
	ids, mask, types := tok.Tokenize("", maxTokens)

	shape := ort.NewShape(1, int64(maxTokens))
	inputIDs, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	attentionMask, err := ort.NewTensor(shape, mask)
	if err != nil {
		inputIDs.Destroy()
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	tokenTypeIDs, err := ort.NewTensor(shape, types)
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	output, err := ort.NewTensor(ort.NewShape(1, int64(dimensions)), make([]float32, dimensions))
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		tokenTypeIDs.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"output"},
		[]ort.ArbitraryTensor{inputIDs, attentionMask, tokenTypeIDs},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		inputIDs.Destroy()
		attentionMask.Destroy()
		tokenTypeIDs.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	return &ONNXEmbedder{
		session:       session,
		dimensions:    dimensions,
		maxTokens:     maxTokens,
		cache:         NewCache(cacheSize),
		tokenizer:     tok,
		inputIDs:      inputIDs,
		attentionMask: attentionMask,
		tokenTypeIDs:  tokenTypeIDs,
		output:        output,
	}, nil
}

// Embed returns the normalized embedding for text, using the cache when available.
func (e *ONNXEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ids, mask, types := e.tokenizer.Tokenize(text, e.maxTokens)
	copy(e.inputIDs.GetData(), ids)
	copy(e.attentionMask.GetData(), mask)
	copy(e.tokenTypeIDs.GetData(), types)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}

	vector := make([]float32, e.dimensions)
	copy(vector, e.output.GetData()[:e.dimensions])
	normalize(vector)
	e.cache.Set(text, vector)
	return vector, nil
}

// EmbedBatch embeds each text sequentially.
func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vector
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }

// Close destroys the session and tensors.
func (e *ONNXEmbedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	for _, t := range []*ort.Tensor[int64]{e.inputIDs, e.attentionMask, e.tokenTypeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	e.inputIDs, e.attentionMask, e.tokenTypeIDs = nil, nil, nil
	if e.output != nil {
		_ = e.output.Destroy()
		e.output = nil
	}
	return err
}
