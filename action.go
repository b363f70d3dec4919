package hq

import (
	"fmt"
	"regexp"

	"github.com/alnah/go-hq/internal/rewrite"
)

// action is one atomic edit or suppression operation bound to a
// selector. The set is closed: Filter, RewriteAttribute and
// SetInnerContent. Actions are immutable after construction and run in
// declaration order, both on enter and on leave.
type action interface {
	// name identifies the action kind in RunError reports.
	name() string
	// enter runs when a matched element opens. It may mutate the
	// element and the pass's visibility state.
	enter(el *rewrite.Element, st *passState, es *execState) error
	// leave runs after the matched element's end tag has been emitted.
	leave(tag string, st *passState)
}

// filterAction marks a matched subtree as visible in a pass whose base
// visibility is suppressed. Nested filters compose by stack
// discipline; the innermost entry decides.
type filterAction struct{}

func (filterAction) name() string { return "filter" }

func (filterAction) enter(_ *rewrite.Element, st *passState, _ *execState) error {
	st.push(true)
	return nil
}

func (filterAction) leave(_ string, st *passState) {
	st.pop()
}

// rewriteAttributeAction applies a compiled regexp substitution to one
// attribute. An absent attribute is treated as empty, so a pattern
// matching the empty string creates it.
type rewriteAttributeAction struct {
	attr        string
	pattern     *regexp.Regexp
	replacement string
}

func (rewriteAttributeAction) name() string { return "rewriteAttribute" }

func (a rewriteAttributeAction) enter(el *rewrite.Element, _ *passState, _ *execState) error {
	val, _ := el.Attr(a.attr)
	rewritten := a.pattern.ReplaceAllString(val, a.replacement)
	if err := el.SetAttr(a.attr, rewritten); err != nil {
		return fmt.Errorf("%w: %v", ErrAttributeWrite, err)
	}
	return nil
}

func (rewriteAttributeAction) leave(string, *passState) {}

// setInnerContentAction replaces a matched element's content with a
// rendered template. The render context exposes "tag" and
// "attributes"; referencing anything undefined fails the run.
type setInnerContentAction struct {
	template string
}

func (setInnerContentAction) name() string { return "setInnerContent" }

func (a setInnerContentAction) enter(el *rewrite.Element, _ *passState, es *execState) error {
	attrs := make(map[string]string, len(el.Attributes()))
	for _, attr := range el.Attributes() {
		attrs[attr.Name] = attr.Value
	}
	rendered, err := es.renderTemplate(a.template, map[string]any{
		"tag":        el.TagName(),
		"attributes": attrs,
	})
	if err != nil {
		return err
	}
	el.SetInnerContent(rendered)
	return nil
}

func (setInnerContentAction) leave(string, *passState) {}
