package hq

import (
	"fmt"

	"github.com/alnah/go-hq/internal/cssselect"
	"github.com/alnah/go-hq/internal/rewrite"
)

// Pass is one ordered stage of the pipeline: a list of selectors plus,
// at run time, a private visibility stack. Passes are built through
// Pipeline.AddPass and are immutable once the builder returns.
type Pass struct {
	idx       int
	selectors []*Selector
	err       error
}

// On adds a selector to the pass and hands it to build for
// configuration. Selector compilation errors surface when the
// pipeline is compiled.
func (p *Pass) On(pattern string, build func(*Selector)) {
	sel := &Selector{pattern: pattern}
	compiled, err := cssselect.Compile(pattern)
	if err != nil {
		sel.fail(fmt.Errorf("%w: %v", ErrInvalidSelector, err))
	}
	sel.compiled = compiled
	build(sel)
	p.selectors = append(p.selectors, sel)
}

// Filter is sugar for a selector whose only action is Filter.
func (p *Pass) Filter(pattern string) {
	p.On(pattern, func(s *Selector) { s.Filter() })
}

// defaultOutput computes the pass's base visibility: false as soon as
// any selector carries a Filter action, true otherwise. A filtering
// pass starts each run in "suppress unless explicitly entered" mode.
func (p *Pass) defaultOutput() bool {
	for _, sel := range p.selectors {
		if sel.filtering() {
			return false
		}
	}
	return true
}

// check returns the first construction error recorded on the pass or
// its selectors.
func (p *Pass) check() error {
	if p.err != nil {
		return p.err
	}
	if len(p.selectors) == 0 {
		return ErrEmptyPass
	}
	for _, sel := range p.selectors {
		if sel.err != nil {
			return fmt.Errorf("selector %q: %w", sel.pattern, sel.err)
		}
	}
	return nil
}

// handlers binds the pass's selectors to fresh per-run state. The
// returned handlers close over st and es, so each run gets an isolated
// visibility stack and output buffer.
func (p *Pass) handlers(st *passState, es *execState) []rewrite.Handler {
	hs := make([]rewrite.Handler, 0, len(p.selectors))
	for _, sel := range p.selectors {
		sel := sel
		hs = append(hs, rewrite.Handler{
			Match: sel.compiled,
			OnEnter: func(el *rewrite.Element) error {
				for _, act := range sel.actions {
					if err := act.enter(el, st, es); err != nil {
						return &RunError{Pass: p.idx, Selector: sel.pattern, Action: act.name(), Err: err}
					}
				}
				el.OnEndTag(func(tag string) error {
					for _, act := range sel.actions {
						act.leave(tag, st)
					}
					return nil
				})
				return nil
			},
		})
	}
	return hs
}

// passState is the per-run visibility stack of one pass. The base
// entry is pushed at construction and never popped; the top entry
// decides whether emitted chunks are forwarded.
type passState struct {
	visibility []bool
}

func newPassState(base bool) *passState {
	return &passState{visibility: []bool{base}}
}

func (s *passState) push(v bool) {
	s.visibility = append(s.visibility, v)
}

func (s *passState) pop() {
	// The base entry stays: open/close pairing is guaranteed by the
	// rewriter, so a pop at depth one would indicate a bug there.
	if len(s.visibility) > 1 {
		s.visibility = s.visibility[:len(s.visibility)-1]
	}
}

func (s *passState) visible() bool {
	return s.visibility[len(s.visibility)-1]
}

func (s *passState) depth() int {
	return len(s.visibility)
}
