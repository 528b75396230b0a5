package structure

import (
	"github.com/rs/zerolog"

	"github.com/dshills/ctxselect/pkg/types"
)

// Mode records which extraction path produced a structure set
type Mode string

const (
	ModeStrict    Mode = "strict"
	ModeHeuristic Mode = "heuristic"
)

// Languages recognised by the strict parsers
const (
	LangPython = "python"
	LangGo     = "go"
)

// ParseOutcome is the tagged result of an extraction
type ParseOutcome struct {
	Mode     Mode
	Language string // Empty for heuristic outcomes
	Set      types.StructureSet
}

// strictParser attempts a full parse; ok is false when the input is not valid in its language
type strictParser interface {
	language() string
	parse(src []byte) (set types.StructureSet, ok bool, err error)
}

// Extractor parses text into structural fingerprints
type Extractor struct {
	parsers []strictParser
	logger  zerolog.Logger
}

// Option configures an Extractor
type Option func(*Extractor)

// WithLogger sets the logger used for parse failures
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Extractor) {
		e.logger = logger
	}
}

// New creates an Extractor with the Python and Go strict parsers
func New(opts ...Option) *Extractor {
	e := &Extractor{
		parsers: []strictParser{pythonParser{}, goParser{}},
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract returns the structural fingerprint of text
func (e *Extractor) Extract(text string) types.StructureSet {
	return e.Parse(text).Set
}

// Parse tries each strict parser in order and falls back to heuristics
func (e *Extractor) Parse(text string) ParseOutcome {
	src := []byte(text)

	for _, p := range e.parsers {
		set, ok, err := e.safeParse(p, src)
		if err != nil {
			e.logger.Debug().Err(err).Str("language", p.language()).Msg("strict parse failed")
			continue
		}
		if ok {
			return ParseOutcome{Mode: ModeStrict, Language: p.language(), Set: set}
		}
	}

	return ParseOutcome{Mode: ModeHeuristic, Set: extractHeuristic(text)}
}

// safeParse shields callers from panics inside parser bindings
func (e *Extractor) safeParse(p strictParser, src []byte) (set types.StructureSet, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().Interface("panic", r).Str("language", p.language()).Msg("parser panicked")
			set, ok, err = types.StructureSet{}, false, nil
		}
	}()
	return p.parse(src)
}
