package classifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLLM struct {
	reply string
	err   error
	calls int
	last  Request
}

func (f *fakeLLM) Classify(_ context.Context, req Request) (string, error) {
	f.calls++
	f.last = req
	return f.reply, f.err
}

type fakeCache struct {
	mu      sync.Mutex
	values  map[string]string
	ttls    map[string]time.Duration
	getErr  error
	setErr  error
	setCall int
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setCall++
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func TestCacheKey(t *testing.T) {
	// md5("hello")
	assert.Equal(t, "query_classification:5d41402abc4b2a76b9719d911017c592", CacheKey("hello"))
	assert.Equal(t, CacheKey("hello"), CacheKey("HeLLo"))
	assert.NotEqual(t, CacheKey("hello"), CacheKey("hello "))
}

func TestIsConversationMetaQuery_Replies(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"CONVERSATION", true},
		{"  conversation\n", true},
		{"Conversation.", true},
		{"CODE", false},
		{"code", false},
		{"", false},
		{"I think this is about the CONVERSATION", true},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			llm := &fakeLLM{reply: tt.reply}
			c := New(Options{LLM: llm, Cache: newFakeCache()})

			assert.Equal(t, tt.want, c.IsConversationMetaQuery(context.Background(), "what did we discuss?"))
			assert.Equal(t, 1, llm.calls)
		})
	}
}

func TestIsConversationMetaQuery_RequestShape(t *testing.T) {
	llm := &fakeLLM{reply: "CODE"}
	c := New(Options{LLM: llm})

	c.IsConversationMetaQuery(context.Background(), "How is the index built?")

	assert.Equal(t, SystemPrompt, llm.last.SystemPrompt)
	assert.Equal(t, "How is the index built?", llm.last.UserPrompt)
	assert.Equal(t, 10, llm.last.MaxTokens)
	assert.Zero(t, llm.last.Temperature)
	assert.Equal(t, 5*time.Second, llm.last.Timeout)
}

func TestIsConversationMetaQuery_CachesResult(t *testing.T) {
	llm := &fakeLLM{reply: "CONVERSATION"}
	cache := newFakeCache()
	c := New(Options{LLM: llm, Cache: cache, TTL: time.Hour})
	ctx := context.Background()

	assert.True(t, c.IsConversationMetaQuery(ctx, "Summarize our chat"))
	assert.True(t, c.IsConversationMetaQuery(ctx, "SUMMARIZE OUR CHAT"))

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, LabelConversation, cache.values[CacheKey("summarize our chat")])
	assert.Equal(t, time.Hour, cache.ttls[CacheKey("summarize our chat")])
}

func TestIsConversationMetaQuery_DefaultTTL(t *testing.T) {
	cache := newFakeCache()
	c := New(Options{LLM: &fakeLLM{reply: "CODE"}, Cache: cache})

	assert.False(t, c.IsConversationMetaQuery(context.Background(), "q"))
	assert.Equal(t, LabelCode, cache.values[CacheKey("q")])
	assert.Equal(t, 86400*time.Second, cache.ttls[CacheKey("q")])
}

func TestIsConversationMetaQuery_CacheHitSkipsLLM(t *testing.T) {
	cache := newFakeCache()
	cache.values[CacheKey("what did I ask before?")] = LabelConversation
	cache.values[CacheKey("fix the parser")] = LabelCode
	llm := &fakeLLM{reply: "CONVERSATION"}
	c := New(Options{LLM: llm, Cache: cache})

	assert.True(t, c.IsConversationMetaQuery(context.Background(), "what did I ask before?"))
	assert.False(t, c.IsConversationMetaQuery(context.Background(), "fix the parser"))
	assert.Zero(t, llm.calls)
}

func TestIsConversationMetaQuery_Failures(t *testing.T) {
	t.Run("llm error is code and not cached", func(t *testing.T) {
		cache := newFakeCache()
		c := New(Options{LLM: &fakeLLM{err: context.DeadlineExceeded}, Cache: cache})

		assert.False(t, c.IsConversationMetaQuery(context.Background(), "summarize"))
		assert.Zero(t, cache.setCall)
	})

	t.Run("cache read error falls through to llm", func(t *testing.T) {
		cache := newFakeCache()
		cache.getErr = errors.New("connection refused")
		llm := &fakeLLM{reply: "CONVERSATION"}
		c := New(Options{LLM: llm, Cache: cache})

		assert.True(t, c.IsConversationMetaQuery(context.Background(), "summarize"))
		assert.Equal(t, 1, llm.calls)
	})

	t.Run("cache write error is non-fatal", func(t *testing.T) {
		cache := newFakeCache()
		cache.setErr = errors.New("read-only")
		c := New(Options{LLM: &fakeLLM{reply: "CONVERSATION"}, Cache: cache})

		assert.True(t, c.IsConversationMetaQuery(context.Background(), "summarize"))
		assert.Equal(t, 1, cache.setCall)
	})

	t.Run("no llm configured", func(t *testing.T) {
		c := New(Options{})
		require.NotNil(t, c)
		assert.False(t, c.IsConversationMetaQuery(context.Background(), "summarize"))
	})
}

// blockingLLM waits for the context to end, then answers with reply and the
// context error, or with reply alone when lateReply is set
type blockingLLM struct {
	reply     string
	lateReply bool
}

func (b blockingLLM) Classify(ctx context.Context, _ Request) (string, error) {
	select {
	case <-ctx.Done():
		if b.lateReply {
			return b.reply, nil
		}
		return "", ctx.Err()
	case <-time.After(time.Minute):
		return b.reply, nil
	}
}

func TestIsConversationMetaQuery_Timeout(t *testing.T) {
	tests := []struct {
		name string
		llm  blockingLLM
	}{
		{"llm returns context error", blockingLLM{reply: "CONVERSATION"}},
		{"reply after deadline discarded", blockingLLM{reply: "CONVERSATION", lateReply: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cache := newFakeCache()
			c := New(Options{LLM: tt.llm, Cache: cache, Timeout: 50 * time.Millisecond})

			start := time.Now()
			assert.False(t, c.IsConversationMetaQuery(context.Background(), "what did we discuss"))
			assert.Less(t, time.Since(start), 5*time.Second)
			assert.Zero(t, cache.setCall)
		})
	}
}
