package extract

import (
	"fmt"
	"strings"
)

// UnknownColumnError lists requested columns missing from the table schema.
type UnknownColumnError struct {
	Columns []string
}

func (e *UnknownColumnError) Error() string {
	return fmt.Sprintf("unknown column(s): %s", strings.Join(e.Columns, ", "))
}

// ExtractionError is an I/O or cancellation failure that aborted extraction.
type ExtractionError struct {
	Op   string
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("extraction failed: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("extraction failed: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
