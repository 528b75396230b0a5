// Package embedder turns chunk content and queries into vectors.
//
// Three providers implement Embedder:
//
//   - JinaProvider calls the Jina AI embeddings endpoint over HTTP
//   - OpenAIProvider uses the go-openai embeddings client
//   - LocalProvider hashes identifier tokens into 384 signed buckets and
//     needs no network access
//
// Remote providers retry transient failures (network errors, 429 and 5xx)
// with exponential backoff; other 4xx responses fail at once. All providers
// share an LRU cache keyed by the SHA-256 of the text, and EmbedBatch only
// sends cache misses to the provider.
//
//	emb, err := embedder.NewFromConfig(cfg.Embedding)
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	vectors, err := emb.EmbedBatch(ctx, []string{chunkA.Content, chunkB.Content})
//
// Errors wrap ErrProviderFailed, ErrInvalidInput or ErrNoProviderEnabled.
package embedder
