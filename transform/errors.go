package transform

import "errors"

var (
	// ErrMissingField indicates a source row without a required column.
	ErrMissingField = errors.New("required source field missing")
)
