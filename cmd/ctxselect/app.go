package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dshills/ctxselect/internal/cache"
	"github.com/dshills/ctxselect/internal/chunker"
	"github.com/dshills/ctxselect/internal/classifier"
	"github.com/dshills/ctxselect/internal/config"
	"github.com/dshills/ctxselect/internal/embedder"
	"github.com/dshills/ctxselect/internal/indexer"
	"github.com/dshills/ctxselect/internal/logging"
	"github.com/dshills/ctxselect/internal/retrieval"
	"github.com/dshills/ctxselect/internal/selector"
	"github.com/dshills/ctxselect/internal/session"
	"github.com/dshills/ctxselect/internal/storage"
)

// app holds the wired components shared by all commands
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	store     *storage.SQLiteStorage
	embedder  embedder.Embedder
	retrieval *retrieval.Client
	selector  *selector.Selector
	indexer   *indexer.Indexer
	sessions  *session.Manager
}

// newApp loads configuration and wires storage, embedding, retrieval,
// selection, indexing and sessions
func newApp(flags *rootFlags) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if flags.debug {
		cfg.Debug = true
	}

	logger := logging.New(cfg.Debug, os.Stderr)

	dbFile, err := cfg.DatabaseFile()
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(dbFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: store}
	if err := a.wire(); err != nil {
		_ = store.Close()
		return nil, err
	}

	logger.Debug().
		Str("db", dbFile).
		Str("driver", storage.DriverName).
		Str("embedding_provider", a.embedder.Provider()).
		Str("search_mode", string(a.retrieval.Mode())).
		Msg("components ready")

	return a, nil
}

func (a *app) wire() error {
	cfg := a.cfg

	emb, err := embedder.NewFromConfig(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %w", err)
	}
	a.embedder = emb

	mode, err := retrieval.ParseMode(cfg.Retrieval.Mode)
	if err != nil {
		return err
	}
	client, err := retrieval.New(retrieval.Options{
		Storage:  a.store,
		Embedder: emb,
		Mode:     mode,
		CacheTTL: cfg.Retrieval.CacheTTL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize retrieval: %w", err)
	}
	a.retrieval = client

	var llm classifier.LLM
	if cfg.Classifier.APIKey != "" {
		openAI, err := classifier.NewOpenAI(cfg.Classifier.APIKey, cfg.Classifier.BaseURL, cfg.Classifier.Model)
		if err != nil {
			return fmt.Errorf("failed to initialize classifier: %w", err)
		}
		llm = openAI
	}

	var classificationCache classifier.Cache = a.store
	if strings.EqualFold(cfg.Classifier.CacheBackend, config.CacheBackendMemory) {
		classificationCache = cache.NewMemory(cfg.Classifier.CacheSize, cfg.Classifier.CacheTTL)
	}

	a.selector = selector.New(selector.Options{
		Retriever:         client,
		LLM:               llm,
		Cache:             classificationCache,
		ClassificationTTL: cfg.Classifier.CacheTTL,
		ClassifierTimeout: cfg.Classifier.Timeout,
		DefaultStrategy:   cfg.DefaultStrategy(),
		Logger:            &a.logger,
	})

	a.indexer = indexer.New(a.store, chunker.New(chunker.WithTokenCounter(a.tokenCounter())), emb,
		indexer.WithInvalidator(client))
	a.sessions = session.NewManager(a.store)
	return nil
}

func (a *app) tokenCounter() chunker.TokenCounter {
	encoding := a.cfg.Indexer.TokenEncoding
	if strings.EqualFold(encoding, config.TokenEstimate) {
		return chunker.EstimatedCounter{}
	}
	counter, err := chunker.NewTiktokenCounter(encoding)
	if err != nil {
		a.logger.Warn().Err(err).Str("encoding", encoding).Msg("tiktoken unavailable, estimating token counts")
		return chunker.EstimatedCounter{}
	}
	return counter
}

// withLogger returns ctx carrying the app logger
func (a *app) withLogger(ctx context.Context) context.Context {
	return a.logger.WithContext(ctx)
}

func (a *app) Close() error {
	if a.embedder != nil {
		_ = a.embedder.Close()
	}
	return a.store.Close()
}
