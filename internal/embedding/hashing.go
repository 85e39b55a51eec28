package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	unicodetok "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/registry"
)

const lexicalAnalyzerName = "simstore_lexical"

var (
	lexicalOnce    sync.Once
	lexicalAnalyze func([]byte) analysis.TokenStream
	lexicalErr     error
)

// lexicalAnalyzer is a Unicode word tokenizer with lowercasing and no stemming or stop words,
// so short keywords survive analysis unchanged.
func lexicalAnalyzer() (func([]byte) analysis.TokenStream, error) {
	lexicalOnce.Do(func() {
		cache := registry.NewCache()
		a, err := cache.DefineAnalyzer(lexicalAnalyzerName, map[string]interface{}{
			"type":          custom.Name,
			"tokenizer":     unicodetok.Name,
			"token_filters": []string{lowercase.Name},
		})
		if err != nil {
			lexicalErr = fmt.Errorf("define lexical analyzer: %w", err)
			return
		}
		lexicalAnalyze = a.Analyze
	})
	return lexicalAnalyze, lexicalErr
}

// HashingEmbedder is a lexical embedder. Features come from the bleve analyzer: whole
// tokens for alphabetic scripts, character bigrams for Hangul and CJK tokens (so "대출을"
// still shares "대출" with the bare keyword). Each feature is hashed into one of dimensions
// buckets with a hash-derived sign, and the result is L2-normalized.
type HashingEmbedder struct {
	dimensions int
}

// NewHashingEmbedder returns a hashing embedder. Non-positive dimensions default to 1024.
func NewHashingEmbedder(dimensions int) *HashingEmbedder {
	if dimensions <= 0 {
		dimensions = 1024
	}
	return &HashingEmbedder{dimensions: dimensions}
}

// Embed hashes the features of text into a unit vector. Text without tokens yields a zero vector.
func (e *HashingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	features, err := Features(text)
	if err != nil {
		return nil, err
	}
	vec := make([]float32, e.dimensions)
	for _, f := range features {
		h := fnv.New64a()
		_, _ = h.Write([]byte(f))
		sum := h.Sum64()
		bucket := (sum >> 32) % uint64(e.dimensions)
		if sum&1 == 1 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}
	NormalizeL2Slice(vec)
	return vec, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (e *HashingEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op.
func (e *HashingEmbedder) Close() error {
	return nil
}

// Tokens runs text through the lexical analyzer and returns the lowercase terms.
func Tokens(text string) ([]string, error) {
	analyze, err := lexicalAnalyzer()
	if err != nil {
		return nil, err
	}
	stream := analyze([]byte(text))
	out := make([]string, 0, len(stream))
	for _, tok := range stream {
		out = append(out, string(tok.Term))
	}
	return out, nil
}

// Features returns the hashed features of text: each token, except that Hangul and CJK
// tokens longer than one character are replaced by their character bigrams.
func Features(text string) ([]string, error) {
	tokens, err := Tokens(text)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if !isCJK(tok) || utf8.RuneCountInString(tok) < 2 {
			out = append(out, tok)
			continue
		}
		runes := []rune(tok)
		for i := 0; i+1 < len(runes); i++ {
			out = append(out, string(runes[i:i+2]))
		}
	}
	return out, nil
}

func isCJK(tok string) bool {
	for _, r := range tok {
		if unicode.In(r, unicode.Hangul, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}
