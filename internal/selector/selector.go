// Package selector is the entry point of context selection. It resolves the
// Auto strategy and runs the chosen strategy through the engine.
package selector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dshills/ctxselect/internal/analyzer"
	"github.com/dshills/ctxselect/internal/classifier"
	"github.com/dshills/ctxselect/internal/strategy"
	"github.com/dshills/ctxselect/internal/structure"
	"github.com/dshills/ctxselect/pkg/types"
)

// Options holds the collaborators and settings of a Selector
type Options struct {
	Retriever strategy.Retriever
	LLM       classifier.LLM
	Cache     classifier.Cache

	ClassificationTTL time.Duration
	ClassifierTimeout time.Duration

	// DefaultStrategy is used when a request names none; empty means Auto
	DefaultStrategy types.StrategyName

	Logger *zerolog.Logger
}

// Request describes one selection call
type Request struct {
	Query       string
	ProjectID   string
	MaxContexts int
	Strategy    types.StrategyName
	Session     strategy.SessionAdapter // Optional
}

// Selector selects and ranks context fragments for a query
type Selector struct {
	analyzer        *analyzer.Analyzer
	classifier      *classifier.Classifier
	engine          *strategy.Engine
	defaultStrategy types.StrategyName
	logger          *zerolog.Logger
}

// New builds a Selector and all of its components
func New(opts Options) *Selector {
	logger := opts.Logger
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	extractor := structure.New(structure.WithLogger(*logger))

	defaultStrategy := opts.DefaultStrategy
	if defaultStrategy == "" {
		defaultStrategy = types.StrategyAuto
	}

	return &Selector{
		analyzer: analyzer.New(extractor),
		classifier: classifier.New(classifier.Options{
			LLM:     opts.LLM,
			Cache:   opts.Cache,
			TTL:     opts.ClassificationTTL,
			Timeout: opts.ClassifierTimeout,
		}),
		engine:          strategy.New(opts.Retriever, extractor),
		defaultStrategy: defaultStrategy,
		logger:          logger,
	}
}

// SelectContext returns up to req.MaxContexts fragments, best first.
// It never fails; collaborator errors reduce the result instead.
func (s *Selector) SelectContext(ctx context.Context, req Request) []types.ContextItem {
	ctx = s.withLogger(ctx)
	start := time.Now()

	name := s.Resolve(ctx, req)
	items := s.engine.Run(ctx, name, req.Query, req.ProjectID, req.MaxContexts, req.Session)

	zerolog.Ctx(ctx).Info().
		Str("strategy", string(name)).
		Str("project_id", req.ProjectID).
		Int("max_contexts", req.MaxContexts).
		Int("results", len(items)).
		Dur("duration", time.Since(start)).
		Msg("context selected")

	return items
}

// Resolve returns the concrete strategy a request will run
func (s *Selector) Resolve(ctx context.Context, req Request) types.StrategyName {
	ctx = s.withLogger(ctx)

	name := req.Strategy
	if name == "" {
		name = s.defaultStrategy
	}
	if name != types.StrategyAuto {
		return name
	}

	if req.Session != nil && s.hasActiveSession(ctx, req.Session) &&
		s.classifier.IsConversationMetaQuery(ctx, req.Query) {
		return types.StrategyConversation
	}

	return s.analyzer.Analyze(req.Query).OptimalStrategy
}

// Analyze reports the complexity metrics of a query
func (s *Selector) Analyze(query string) types.QueryAnalysis {
	return s.analyzer.Analyze(query)
}

// Engine exposes the strategy engine for callers running strategies directly
func (s *Selector) Engine() *strategy.Engine {
	return s.engine
}

func (s *Selector) hasActiveSession(ctx context.Context, sessions strategy.SessionAdapter) bool {
	active, err := sessions.ActiveSession(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("reading active session failed")
		return false
	}
	return active != nil
}

// withLogger attaches the selector's logger unless ctx already carries one
func (s *Selector) withLogger(ctx context.Context) context.Context {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return ctx
	}
	return s.logger.WithContext(ctx)
}
