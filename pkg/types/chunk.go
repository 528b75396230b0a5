package types

import (
	"crypto/sha256"
	"errors"
)

// DefaultProjectID scopes retrieval when no project is given
const DefaultProjectID = "default"

// ChunkKind represents the kind of indexed code chunk
type ChunkKind string

const (
	ChunkFunction ChunkKind = "function"
	ChunkMethod   ChunkKind = "method"
	ChunkClass    ChunkKind = "class"
	ChunkTypeDecl ChunkKind = "type"
	ChunkVarGroup ChunkKind = "var_group"
	ChunkModule   ChunkKind = "module"
	ChunkWindow   ChunkKind = "window"
	ChunkSnippet  ChunkKind = "snippet"
)

// Chunk represents a section of source stored for embedding and retrieval
type Chunk struct {
	// Identification
	ID        int64
	ProjectID string
	FilePath  string

	// Content
	Content     string
	ContentHash [32]byte // SHA-256 hash for change detection
	TokenCount  int

	// Location
	StartLine int
	EndLine   int

	// Metadata
	Kind     ChunkKind
	Name     string
	Language string
}

// ValidateContent checks if the chunk content is valid
func (c *Chunk) ValidateContent() error {
	if c.Content == "" {
		return ErrEmptyContent
	}

	if c.StartLine <= 0 || c.EndLine <= 0 {
		return errors.New("line numbers must be positive")
	}

	if c.StartLine > c.EndLine {
		return errors.New("start line must be before or equal to end line")
	}

	return nil
}

// ValidateKind checks if the chunk kind is valid
func (c *Chunk) ValidateKind() error {
	switch c.Kind {
	case ChunkFunction, ChunkMethod, ChunkClass, ChunkTypeDecl, ChunkVarGroup, ChunkModule, ChunkWindow, ChunkSnippet:
		return nil
	default:
		return errors.New("invalid chunk kind")
	}
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if err := c.ValidateContent(); err != nil {
		return err
	}

	if err := c.ValidateKind(); err != nil {
		return err
	}

	if c.ProjectID == "" {
		return errors.New("project ID is required")
	}

	return nil
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}

// ToContextItem converts a stored chunk into a scored context item
func (c *Chunk) ToContextItem(score float64) ContextItem {
	return NewContextItem(c.Content, score, map[string]any{
		MetaFilename:  c.FilePath,
		MetaType:      string(c.Kind),
		MetaName:      c.Name,
		MetaLanguage:  c.Language,
		MetaProjectID: c.ProjectID,
		MetaChunkID:   c.ID,
		MetaStartLine: c.StartLine,
		MetaEndLine:   c.EndLine,
	})
}
