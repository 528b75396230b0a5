// Package classifier decides whether a query is about the conversation itself
// or about code, memoizing answers in a TTL cache.
package classifier

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Labels stored in the cache and expected from the LLM
const (
	LabelConversation = "CONVERSATION"
	LabelCode         = "CODE"
)

const (
	// KeyPrefix namespaces classification entries in a shared cache
	KeyPrefix = "query_classification:"

	DefaultTTL       = 86400 * time.Second
	DefaultTimeout   = 5 * time.Second
	DefaultMaxTokens = 10
)

// SystemPrompt forces a one-word answer from the model
const SystemPrompt = `You classify user queries for a code assistant.
Answer CONVERSATION if the query is about the conversation or session itself
(summaries of what was discussed, earlier questions, previous answers).
Answer CODE if the query is about code, implementation or the project.
Respond with exactly one word: CONVERSATION or CODE.`

// Request is a single classification prompt
type Request struct {
	SystemPrompt string
	UserPrompt   string
	MaxTokens    int
	Temperature  float32
	Timeout      time.Duration
}

// LLM answers classification prompts
type LLM interface {
	Classify(ctx context.Context, req Request) (string, error)
}

// Cache stores string values with an expiry
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// Options configures a Classifier
type Options struct {
	LLM     LLM
	Cache   Cache
	TTL     time.Duration
	Timeout time.Duration
}

// Classifier labels queries as conversation meta-queries or code queries
type Classifier struct {
	llm     LLM
	cache   Cache
	ttl     time.Duration
	timeout time.Duration
}

// New creates a Classifier. Zero durations take the defaults; a nil cache
// disables memoization and a nil LLM classifies every query as code.
func New(opts Options) *Classifier {
	c := &Classifier{
		llm:     opts.LLM,
		cache:   opts.Cache,
		ttl:     opts.TTL,
		timeout: opts.Timeout,
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// CacheKey returns the cache key for query
func CacheKey(query string) string {
	sum := md5.Sum([]byte(strings.ToLower(query)))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// IsConversationMetaQuery reports whether query asks about the conversation.
// Failures of any collaborator resolve to false.
func (c *Classifier) IsConversationMetaQuery(ctx context.Context, query string) bool {
	logger := zerolog.Ctx(ctx)
	key := CacheKey(query)

	if c.cache != nil {
		label, ok, err := c.cache.Get(ctx, key)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("classification cache read failed")
		case ok:
			logger.Debug().Str("label", label).Msg("classification cache hit")
			return label == LabelConversation
		}
	}

	if c.llm == nil {
		return false
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reply, err := c.llm.Classify(callCtx, Request{
		SystemPrompt: SystemPrompt,
		UserPrompt:   query,
		MaxTokens:    DefaultMaxTokens,
		Temperature:  0,
		Timeout:      c.timeout,
	})
	if err == nil && callCtx.Err() != nil {
		// a reply that arrives after the deadline is discarded
		err = callCtx.Err()
	}
	if err != nil {
		logger.Warn().Err(err).Msg("query classification failed, treating as code query")
		return false
	}

	isConversation := strings.Contains(strings.ToUpper(strings.TrimSpace(reply)), LabelConversation)
	label := LabelCode
	if isConversation {
		label = LabelConversation
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, label, c.ttl); err != nil {
			logger.Warn().Err(err).Msg("classification cache write failed")
		}
	}

	logger.Debug().Str("label", label).Msg("query classified")
	return isConversation
}
