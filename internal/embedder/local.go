package embedder

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// Local provider settings
const (
	LocalDimension = 384
	LocalModel     = "hash-384"
)

// LocalProvider embeds text offline by hashing identifier tokens and token
// bigrams into a fixed number of signed buckets. Texts sharing vocabulary
// land close together, which is enough for tests and air-gapped use.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates the offline embedder
func NewLocalProvider(cache *Cache) *LocalProvider {
	return &LocalProvider{cache: cache}
}

func (l *LocalProvider) Embed(ctx context.Context, text string) (*Embedding, error) {
	return embedOne(ctx, l, text)
}

func (l *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([]*Embedding, error) {
	return cachedBatch(ctx, l.cache, texts, 0, func(ctx context.Context, missing []string) ([]*Embedding, error) {
		embeddings := make([]*Embedding, len(missing))
		for i, text := range missing {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			embeddings[i] = &Embedding{
				Vector:    HashVector(text, LocalDimension),
				Dimension: LocalDimension,
				Provider:  ProviderLocal,
				Model:     LocalModel,
			}
		}
		return embeddings, nil
	})
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return LocalModel
}

func (l *LocalProvider) Close() error {
	return nil
}

// HashVector returns the unit-length feature-hashed vector of text
func HashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	tokens := Tokenize(text)

	for i, token := range tokens {
		addFeature(vector, token, 1.0)
		if i > 0 {
			addFeature(vector, tokens[i-1]+" "+token, 0.5)
		}
	}

	return NormalizeVector(vector)
}

func addFeature(vector []float32, feature string, weight float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum32()

	bucket := int(sum % uint32(len(vector)))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	vector[bucket] += weight
}

// Tokenize splits text into lowercase word tokens, breaking identifiers on
// underscores and camelCase boundaries
func Tokenize(text string) []string {
	var tokens []string
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		for _, part := range splitCamel(word) {
			tokens = append(tokens, strings.ToLower(part))
		}
	}
	return tokens
}

// splitCamel splits "parseHTTPRequest" into parse, HTTP, Request
func splitCamel(word string) []string {
	runes := []rune(word)
	var parts []string
	start := 0
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		boundary := unicode.IsLower(prev) && unicode.IsUpper(cur)
		if !boundary && unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			boundary = true
		}
		if boundary {
			parts = append(parts, string(runes[start:i]))
			start = i
		}
	}
	return append(parts, string(runes[start:]))
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val * val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
