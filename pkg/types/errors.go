package types

import "errors"

// Domain errors
var (
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrEmptyQuery      = errors.New("query cannot be empty")
	ErrEmptyContent    = errors.New("content cannot be empty")
)
