package chunker

import (
	"fmt"
	"os"
	"strings"

	"github.com/dshills/ctxselect/internal/structure"
	"github.com/dshills/ctxselect/pkg/types"
)

const (
	// MaxTokensPerChunk is the token count above which a chunk is split into windows
	MaxTokensPerChunk = 1000

	// DefaultWindowLines is the size of line windows for files without a parser
	DefaultWindowLines = 60
)

// Chunker splits source files into chunks at declaration boundaries
type Chunker struct {
	counter     TokenCounter
	windowLines int
}

// Option configures a Chunker
type Option func(*Chunker)

// WithTokenCounter overrides the token counter
func WithTokenCounter(counter TokenCounter) Option {
	return func(c *Chunker) {
		c.counter = counter
	}
}

// WithWindowLines sets the window size used for unparsed content
func WithWindowLines(n int) Option {
	return func(c *Chunker) {
		if n > 0 {
			c.windowLines = n
		}
	}
}

// New creates a Chunker. Without WithTokenCounter, tiktoken is loaded.
func New(opts ...Option) *Chunker {
	c := &Chunker{windowLines: DefaultWindowLines}
	for _, opt := range opts {
		opt(c)
	}
	if c.counter == nil {
		c.counter = DefaultTokenCounter()
	}
	return c
}

// ChunkFile reads path and chunks it; relPath is stored as the chunk's file path
func (c *Chunker) ChunkFile(projectID, path, relPath string) ([]*types.Chunk, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return c.Chunk(projectID, relPath, content), nil
}

// Chunk splits content by language: Go and Python by top-level declaration,
// everything else (and unparseable source) in line windows
func (c *Chunker) Chunk(projectID, filePath string, content []byte) []*types.Chunk {
	if strings.TrimSpace(string(content)) == "" {
		return nil
	}

	lines := strings.Split(string(content), "\n")
	language := LanguageFor(filePath)

	var spans []span
	switch language {
	case LangGo:
		spans = goSpans(content, lines)
	case LangPython:
		spans = pythonSpans(content, lines)
	}
	if len(spans) == 0 {
		spans = windowSpans(lines, 1, len(lines), c.windowLines, types.ChunkWindow, "")
	}

	chunks := make([]*types.Chunk, 0, len(spans))
	for _, sp := range spans {
		for _, part := range c.splitOversized(lines, sp) {
			chunk := c.newChunk(projectID, filePath, language, lines, part)
			if chunk != nil {
				chunks = append(chunks, chunk)
			}
		}
	}
	return chunks
}

// ChunkText wraps a standalone snippet as a single chunk
func (c *Chunker) ChunkText(projectID, name, language, text string) (*types.Chunk, error) {
	if strings.TrimSpace(text) == "" {
		return nil, types.ErrEmptyContent
	}
	lines := strings.Split(text, "\n")
	chunk := &types.Chunk{
		ProjectID: projectID,
		FilePath:  name,
		Content:   text,
		StartLine: 1,
		EndLine:   len(lines),
		Kind:      types.ChunkSnippet,
		Name:      name,
		Language:  language,
	}
	chunk.TokenCount = c.counter.Count(text)
	chunk.ComputeContentHash()
	return chunk, nil
}

// span is a 1-based inclusive line range with its chunk kind
type span struct {
	start, end int
	kind       types.ChunkKind
	name       string
	content    string // Overrides the line range when set
}

// goSpans returns the header (package and imports) and one span per
// top-level declaration
func goSpans(content []byte, lines []string) []span {
	pkg, imports, decls, _ := structure.GoDeclarations(content)
	if len(decls) == 0 {
		return nil
	}

	var spans []span
	if len(imports) > 0 && decls[0].StartLine > 1 {
		spans = append(spans, span{start: 1, end: decls[0].StartLine - 1, kind: types.ChunkModule, name: pkg})
	}
	for _, d := range decls {
		spans = append(spans, span{start: d.StartLine, end: clampLine(d.EndLine, len(lines)), kind: d.Kind, name: d.Name})
	}
	return spans
}

// pythonSpans returns one span per top-level class or function plus a
// module span holding the remaining non-blank lines
func pythonSpans(content []byte, lines []string) []span {
	defs, ok := structure.PythonDefinitions(content)
	if !ok || len(defs) == 0 {
		return nil
	}

	covered := make([]bool, len(lines)+1)
	spans := make([]span, 0, len(defs)+1)
	for _, d := range defs {
		end := clampLine(d.EndLine, len(lines))
		for l := d.StartLine; l <= end; l++ {
			covered[l] = true
		}
		spans = append(spans, span{start: d.StartLine, end: end, kind: d.Kind, name: d.Name})
	}

	var rest []string
	first, last := 0, 0
	for l := 1; l <= len(lines); l++ {
		if covered[l] || strings.TrimSpace(lines[l-1]) == "" {
			continue
		}
		if first == 0 {
			first = l
		}
		last = l
		rest = append(rest, lines[l-1])
	}
	if first > 0 {
		module := span{start: first, end: last, kind: types.ChunkModule, content: strings.Join(rest, "\n")}
		spans = append([]span{module}, spans...)
	}
	return spans
}

// windowSpans cuts lines [from, to] into windows of size lines
func windowSpans(lines []string, from, to, size int, kind types.ChunkKind, name string) []span {
	var spans []span
	for start := from; start <= to; start += size {
		end := start + size - 1
		if end > to {
			end = to
		}
		if blank(lines[start-1 : end]) {
			continue
		}
		spans = append(spans, span{start: start, end: end, kind: kind, name: name})
	}
	return spans
}

// splitOversized breaks a span over MaxTokensPerChunk into windows
func (c *Chunker) splitOversized(lines []string, sp span) []span {
	if sp.content != "" || sp.end-sp.start+1 <= c.windowLines {
		return []span{sp}
	}
	if c.counter.Count(strings.Join(lines[sp.start-1:sp.end], "\n")) <= MaxTokensPerChunk {
		return []span{sp}
	}
	return windowSpans(lines, sp.start, sp.end, c.windowLines, sp.kind, sp.name)
}

func (c *Chunker) newChunk(projectID, filePath, language string, lines []string, sp span) *types.Chunk {
	if sp.start <= 0 || sp.start > len(lines) || sp.end < sp.start {
		return nil
	}

	content := sp.content
	if content == "" {
		content = strings.Join(lines[sp.start-1:sp.end], "\n")
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}

	chunk := &types.Chunk{
		ProjectID: projectID,
		FilePath:  filePath,
		Content:   content,
		StartLine: sp.start,
		EndLine:   sp.end,
		Kind:      sp.kind,
		Name:      sp.name,
		Language:  language,
	}
	chunk.TokenCount = c.counter.Count(content)
	chunk.ComputeContentHash()
	return chunk
}

func clampLine(line, limit int) int {
	if line > limit {
		return limit
	}
	return line
}

func blank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}
