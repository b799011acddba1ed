package norma43

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRecord  = errors.New("invalid norma 43 record")
	ErrTotalsMismatch = errors.New("norma 43 totals mismatch")
	ErrEmptyFile      = errors.New("empty norma 43 file")
)

// ParseError locates a failure in the input.
type ParseError struct {
	Line   int
	Record string
	Msg    string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Record != "" {
		return fmt.Sprintf("line %d (record %s): %s", e.Line, e.Record, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error { return e.Err }
