// Package retrieval answers similarity queries over the indexed chunks.
//
// Client implements the strategy engine's Retriever: it embeds the query,
// searches storage in vector, keyword or hybrid mode and converts chunks into
// scored context items. Responses are cached in an LRU keyed by the query,
// mode, project and result count.
package retrieval

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/dshills/ctxselect/internal/embedder"
	"github.com/dshills/ctxselect/internal/storage"
	"github.com/dshills/ctxselect/pkg/types"
)

// Mode defines how search is performed
type Mode string

const (
	ModeHybrid  Mode = "hybrid"  // Vector + BM25 with RRF
	ModeVector  Mode = "vector"  // Vector similarity only
	ModeKeyword Mode = "keyword" // BM25 text search only
)

// Defaults
const (
	DefaultRRFConstant = 60
	DefaultCacheSize   = 1000
	DefaultCacheTTL    = time.Hour
	MaxTopK            = 100
)

// ParseMode converts a case-insensitive mode name
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeHybrid:
		return ModeHybrid, nil
	case ModeVector, "":
		return ModeVector, nil
	case ModeKeyword:
		return ModeKeyword, nil
	default:
		return "", fmt.Errorf("unsupported search mode: %s", s)
	}
}

// Options configures a Client
type Options struct {
	Storage     storage.Storage
	Embedder    embedder.Embedder
	Mode        Mode
	Filters     *storage.SearchFilters
	CacheSize   int
	CacheTTL    time.Duration
	RRFConstant float64
}

// Response contains search results and metadata
type Response struct {
	Items         []types.ContextItem
	Mode          Mode
	CacheHit      bool
	VectorResults int
	TextResults   int
}

// cacheEntry is a cached response with its expiration time
type cacheEntry struct {
	items     []types.ContextItem
	expiresAt time.Time
}

// Client coordinates vector and text search over storage
type Client struct {
	storage  storage.Storage
	embedder embedder.Embedder
	mode     Mode
	filters  *storage.SearchFilters
	ttl      time.Duration
	k        float64
	now      func() time.Time

	cacheMu sync.Mutex
	cache   *lru.Cache[[32]byte, *cacheEntry]
}

// New creates a Client. Keyword mode does not need an embedder.
func New(opts Options) (*Client, error) {
	if opts.Storage == nil {
		return nil, fmt.Errorf("storage is required")
	}
	mode := opts.Mode
	if mode == "" {
		mode = ModeVector
	}
	if mode != ModeKeyword && opts.Embedder == nil {
		return nil, fmt.Errorf("embedder is required for %s search", mode)
	}

	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[[32]byte, *cacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	k := opts.RRFConstant
	if k <= 0 {
		k = DefaultRRFConstant
	}

	return &Client{
		storage:  opts.Storage,
		embedder: opts.Embedder,
		mode:     mode,
		filters:  opts.Filters,
		ttl:      ttl,
		k:        k,
		now:      time.Now,
		cache:    cache,
	}, nil
}

// Mode returns the configured search mode
func (c *Client) Mode() Mode {
	return c.mode
}

// Retrieve returns up to topK items for query in projectID, best first.
// An empty projectID searches the default project.
func (c *Client) Retrieve(ctx context.Context, query, projectID string, topK int) ([]types.ContextItem, error) {
	resp, err := c.Search(ctx, query, projectID, topK)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Search is Retrieve with response metadata
func (c *Client) Search(ctx context.Context, query, projectID string, topK int) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.ErrEmptyQuery
	}
	if topK <= 0 {
		return &Response{Items: []types.ContextItem{}, Mode: c.mode}, nil
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	if projectID == "" {
		projectID = types.DefaultProjectID
	}

	key := queryHash(query, c.mode, projectID, topK)
	if items, ok := c.checkCache(key); ok {
		return &Response{Items: items, Mode: c.mode, CacheHit: true}, nil
	}

	var resp *Response
	var err error
	switch c.mode {
	case ModeHybrid:
		resp, err = c.hybridSearch(ctx, query, projectID, topK)
	case ModeVector:
		resp, err = c.vectorSearch(ctx, query, projectID, topK)
	case ModeKeyword:
		resp, err = c.keywordSearch(ctx, query, projectID, topK)
	default:
		return nil, fmt.Errorf("unsupported search mode: %s", c.mode)
	}
	if err != nil {
		return nil, err
	}
	resp.Mode = c.mode

	zerolog.Ctx(ctx).Debug().
		Str("mode", string(c.mode)).
		Str("project_id", projectID).
		Int("results", len(resp.Items)).
		Msg("retrieval")

	if len(resp.Items) > 0 {
		c.storeInCache(key, resp.Items)
	}
	return resp, nil
}

// rankedResult is a chunk with its relevance score
type rankedResult struct {
	chunkID int64
	score   float64
}

func (c *Client) embedQuery(ctx context.Context, query string) ([]float32, error) {
	emb, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	return emb.Vector, nil
}

// vectorSearch performs only vector similarity search
func (c *Client) vectorSearch(ctx context.Context, query, projectID string, topK int) (*Response, error) {
	vector, err := c.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	vectorResults, err := c.storage.SearchVector(ctx, projectID, vector, topK, c.filters)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(vectorResults))
	for i, vr := range vectorResults {
		ranked[i] = rankedResult{chunkID: vr.ChunkID, score: vr.SimilarityScore}
	}

	items, err := c.fetchItems(ctx, ranked, topK)
	if err != nil {
		return nil, err
	}
	return &Response{Items: items, VectorResults: len(vectorResults)}, nil
}

// keywordSearch performs only BM25 text search
func (c *Client) keywordSearch(ctx context.Context, query, projectID string, topK int) (*Response, error) {
	textResults, err := c.storage.SearchText(ctx, projectID, query, topK, c.filters)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(textResults))
	for i, tr := range textResults {
		ranked[i] = rankedResult{chunkID: tr.ChunkID, score: tr.BM25Score}
	}

	items, err := c.fetchItems(ctx, ranked, topK)
	if err != nil {
		return nil, err
	}
	return &Response{Items: items, TextResults: len(textResults)}, nil
}

// hybridSearch runs both searches concurrently and fuses them with RRF.
// One side may fail.
func (c *Client) hybridSearch(ctx context.Context, query, projectID string, topK int) (*Response, error) {
	var (
		wg            sync.WaitGroup
		vectorResults []storage.VectorResult
		textResults   []storage.TextResult
		vectorErr     error
		textErr       error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		vector, err := c.embedQuery(ctx, query)
		if err != nil {
			vectorErr = err
			return
		}
		vectorResults, vectorErr = c.storage.SearchVector(ctx, projectID, vector, topK*2, c.filters)
	}()
	go func() {
		defer wg.Done()
		textResults, textErr = c.storage.SearchText(ctx, projectID, query, topK*2, c.filters)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if vectorErr != nil && textErr != nil {
		return nil, fmt.Errorf("both searches failed: vector=%w, text=%v", vectorErr, textErr)
	}
	if vectorErr != nil {
		zerolog.Ctx(ctx).Warn().Err(vectorErr).Msg("vector search failed, using text results only")
	}
	if textErr != nil {
		zerolog.Ctx(ctx).Debug().Err(textErr).Msg("text search failed, using vector results only")
	}

	lists := 0
	if vectorErr == nil {
		lists++
	}
	if textErr == nil {
		lists++
	}

	ranked := applyRRF(vectorResults, textResults, c.k, lists)
	items, err := c.fetchItems(ctx, ranked, topK)
	if err != nil {
		return nil, err
	}
	return &Response{
		Items:         items,
		VectorResults: len(vectorResults),
		TextResults:   len(textResults),
	}, nil
}

// applyRRF combines ranked lists with Reciprocal Rank Fusion,
// RRF(d) = Σ 1/(k + rank(d)), normalised so a chunk ranked first in every
// successful list scores 1
func applyRRF(vectorResults []storage.VectorResult, textResults []storage.TextResult, k float64, lists int) []rankedResult {
	scores := make(map[int64]float64)
	for rank, vr := range vectorResults {
		scores[vr.ChunkID] += 1.0 / (k + float64(rank+1))
	}
	for rank, tr := range textResults {
		scores[tr.ChunkID] += 1.0 / (k + float64(rank+1))
	}

	if lists < 1 {
		lists = 1
	}
	maxScore := float64(lists) / (k + 1)

	results := make([]rankedResult, 0, len(scores))
	for chunkID, score := range scores {
		results = append(results, rankedResult{chunkID: chunkID, score: score / maxScore})
	}
	sortRankedResults(results)
	return results
}

// fetchItems loads chunk content for the top ranked results
func (c *Client) fetchItems(ctx context.Context, ranked []rankedResult, limit int) ([]types.ContextItem, error) {
	if limit > len(ranked) {
		limit = len(ranked)
	}
	ranked = ranked[:limit]

	ids := make([]int64, len(ranked))
	for i, rr := range ranked {
		ids[i] = rr.chunkID
	}
	chunks, err := c.storage.GetChunks(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}

	items := make([]types.ContextItem, 0, len(ranked))
	for _, rr := range ranked {
		chunk, ok := chunks[rr.chunkID]
		if !ok {
			continue // Deleted between search and load
		}
		items = append(items, chunk.ToContextItem(rr.score))
	}
	return items, nil
}

// checkCache returns a copy of the cached items for key
func (c *Client) checkCache(key [32]byte) ([]types.ContextItem, bool) {
	c.cacheMu.Lock()
	defer c.cacheMu.Unlock()

	entry, found := c.cache.Get(key)
	if !found {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.cache.Remove(key)
		return nil, false
	}
	return cloneItems(entry.items), true
}

func (c *Client) storeInCache(key [32]byte, items []types.ContextItem) {
	entry := &cacheEntry{
		items:     cloneItems(items),
		expiresAt: c.now().Add(c.ttl),
	}

	c.cacheMu.Lock()
	c.cache.Add(key, entry)
	c.cacheMu.Unlock()
}

// Invalidate drops every cached response. Called after indexing.
func (c *Client) Invalidate() {
	c.cacheMu.Lock()
	c.cache.Purge()
	c.cacheMu.Unlock()
}

// CacheLen returns the number of cached responses
func (c *Client) CacheLen() int {
	return c.cache.Len()
}

func cloneItems(items []types.ContextItem) []types.ContextItem {
	out := make([]types.ContextItem, len(items))
	for i, item := range items {
		out[i] = item.Clone()
	}
	return out
}

// queryHash computes the cache key of a request
func queryHash(query string, mode Mode, projectID string, topK int) [32]byte {
	var data strings.Builder
	data.WriteString(query)
	data.WriteString("|")
	data.WriteString(string(mode))
	data.WriteString("|")
	data.WriteString(projectID)
	data.WriteString("|")
	data.WriteString(strconv.Itoa(topK))
	return sha256.Sum256([]byte(data.String()))
}

// sortRankedResults sorts by score descending, then chunk ID
func sortRankedResults(results []rankedResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].chunkID < results[j].chunkID
	})
}
