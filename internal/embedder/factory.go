package embedder

import (
	"fmt"
	"strings"

	"github.com/dshills/ctxselect/internal/config"
)

// NewFromConfig builds the configured embedder. Without an explicit provider
// the first available of Jina, OpenAI and the local hasher is used.
func NewFromConfig(cfg config.EmbeddingConfig) (Embedder, error) {
	cache := NewCache(cfg.CacheSize)

	switch DetectProvider(cfg) {
	case ProviderJina:
		return NewJinaProvider(cfg.JinaAPIKey, cfg.JinaBaseURL, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIKey, cfg.BaseURL, cache)
	case ProviderLocal:
		return NewLocalProvider(cache), nil
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider returns the provider NewFromConfig would use
func DetectProvider(cfg config.EmbeddingConfig) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.JinaAPIKey != "" {
		return ProviderJina
	}
	if cfg.OpenAIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
