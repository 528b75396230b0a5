package chunker

import (
	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the tiktoken encoding used for token counts
const DefaultEncoding = "cl100k_base"

// TokensPerChar is the heuristic for estimating tokens (chars/4)
const TokensPerChar = 4

// TokenCounter counts tokens in chunk content
type TokenCounter interface {
	Count(text string) int
}

// TiktokenCounter counts tokens with a tiktoken encoding
type TiktokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding, DefaultEncoding when empty
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{encoding: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	if c.encoding == nil {
		return EstimateTokenCount(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

// EstimatedCounter approximates tokens as chars/4
type EstimatedCounter struct{}

func (EstimatedCounter) Count(text string) int {
	return EstimateTokenCount(text)
}

// DefaultTokenCounter prefers tiktoken and falls back to the estimate when
// the encoding cannot be loaded
func DefaultTokenCounter() TokenCounter {
	counter, err := NewTiktokenCounter(DefaultEncoding)
	if err != nil {
		return EstimatedCounter{}
	}
	return counter
}

// EstimateTokenCount estimates the number of tokens in a string
func EstimateTokenCount(text string) int {
	return len(text) / TokensPerChar
}

var (
	_ TokenCounter = (*TiktokenCounter)(nil)
	_ TokenCounter = EstimatedCounter{}
)
