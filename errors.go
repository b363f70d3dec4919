package hq

import (
	"errors"
	"fmt"
)

// Sentinel errors for pipeline construction and execution.
var (
	// Construction-time errors, reported by Compile.
	ErrEmptyPipeline   = errors.New("pipeline has no passes")
	ErrEmptyPass       = errors.New("pass has no selectors")
	ErrInvalidSelector = errors.New("invalid selector expression")
	ErrInvalidPattern  = errors.New("invalid rewrite pattern")

	// Execution-time errors, reported by Run. A failed run produces no
	// partial output.
	ErrTemplateRender = errors.New("template rendering failed")
	ErrAttributeWrite = errors.New("attribute write failed")
	ErrInvalidUTF8    = errors.New("output is not valid UTF-8")
)

// RunError reports an execution failure together with the pass,
// selector and action that caused it.
type RunError struct {
	Pass     int    // pass index in declaration order
	Selector string // selector expression that matched
	Action   string // action kind: "filter", "rewriteAttribute", "setInnerContent"
	Err      error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pass %d: selector %q: %s: %v", e.Pass, e.Selector, e.Action, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
