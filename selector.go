package hq

import (
	"fmt"
	"regexp"

	"github.com/alnah/go-hq/internal/cssselect"
)

// Selector bundles a structural match pattern with the ordered actions
// to run on every element it matches. Selectors are built through
// Pass.On and are immutable once the pass builder returns.
type Selector struct {
	pattern  string
	compiled cssselect.List
	actions  []action
	err      error
}

// Filter adds a Filter action: the pass emits only explicitly entered
// subtrees once any of its selectors filters.
func (s *Selector) Filter() {
	s.actions = append(s.actions, filterAction{})
}

// RewriteAttribute adds an action that rewrites the named attribute by
// applying pattern/replacement (regexp syntax, $1-style references).
// An invalid pattern surfaces when the pipeline is compiled.
func (s *Selector) RewriteAttribute(attr, pattern, replacement string) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		s.fail(fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err))
		return
	}
	s.actions = append(s.actions, rewriteAttributeAction{
		attr:        attr,
		pattern:     re,
		replacement: replacement,
	})
}

// SetInnerContent adds an action that replaces the matched element's
// content with the rendered template. The template sees {{.tag}} and
// {{.attributes}} and is parsed on first use, then cached on the
// compiled pipeline.
func (s *Selector) SetInnerContent(template string) {
	s.actions = append(s.actions, setInnerContentAction{template: template})
}

// filtering reports whether any action on this selector is a Filter.
func (s *Selector) filtering() bool {
	for _, a := range s.actions {
		if _, ok := a.(filterAction); ok {
			return true
		}
	}
	return false
}

// fail records the first construction error for Compile to report.
func (s *Selector) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}
