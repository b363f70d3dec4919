// Package rewrite is a streaming HTML rewriter built on the
// golang.org/x/net/html tokenizer.
//
// A Rewriter holds selector-bound handlers. Run scans the input token
// by token, invokes each matching handler when an element opens, and
// emits the (possibly rewritten) document to the output writer as it
// goes. No parse tree is built; the only retained state is the stack
// of currently open elements.
//
// Tokens that no handler touches are emitted from the tokenizer's raw
// buffer, so unmatched markup round-trips byte for byte, including
// whitespace, entities and attribute quoting.
package rewrite

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/alnah/go-hq/internal/cssselect"
)

// Sentinel errors for element mutation.
var (
	ErrAttributeName = errors.New("invalid attribute name")
)

// Attribute is one name/value pair on an element. Names are lowercase;
// values are entity-decoded.
type Attribute struct {
	Name  string
	Value string
}

// Handler binds a compiled selector to an element-open callback.
type Handler struct {
	Match   cssselect.List
	OnEnter func(*Element) error
}

// Rewriter streams a document through a set of handlers.
// A Rewriter is stateless between calls to Run and may be reused.
type Rewriter struct {
	handlers []Handler
}

// New creates a Rewriter with the given handlers. Handlers run in
// registration order when an element matches more than one.
func New(handlers ...Handler) *Rewriter {
	return &Rewriter{handlers: handlers}
}

// Element is a matched element as seen by a handler. Mutations apply
// to the element's start tag and content span; the element is only
// valid for the duration of the handler call and any registered
// end-tag callbacks.
type Element struct {
	tag         string
	attrs       []Attribute
	selfClosing bool
	mutated     bool
	replaced    bool
	replacement string
	onEnd       []func(tag string) error
}

// TagName returns the lowercase tag name.
func (e *Element) TagName() string { return e.tag }

// Attr returns the value of the named attribute and whether it is set.
func (e *Element) Attr(name string) (string, bool) {
	name = strings.ToLower(name)
	for _, a := range e.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Attributes returns a copy of the element's attributes in document
// order, reflecting any mutations made so far.
func (e *Element) Attributes() []Attribute {
	out := make([]Attribute, len(e.attrs))
	copy(out, e.attrs)
	return out
}

// SetAttr sets the named attribute, replacing an existing value or
// appending a new attribute. The name must be a valid attribute name.
func (e *Element) SetAttr(name, value string) error {
	name = strings.ToLower(name)
	if !validAttrName(name) {
		return fmt.Errorf("%w: %q", ErrAttributeName, name)
	}
	e.mutated = true
	for i := range e.attrs {
		if e.attrs[i].Name == name {
			e.attrs[i].Value = value
			return nil
		}
	}
	e.attrs = append(e.attrs, Attribute{Name: name, Value: value})
	return nil
}

// SetInnerContent replaces everything between the element's start and
// end tags with markup. The markup is emitted as-is, not escaped.
// No-op on void and self-closing elements, which have no content span.
func (e *Element) SetInnerContent(markup string) {
	if e.selfClosing {
		return
	}
	e.replaced = true
	e.replacement = markup
}

// OnEndTag registers fn to run after the element's end tag has been
// emitted. For void and self-closing elements it runs immediately
// after the enter handlers. Callbacks run in registration order.
func (e *Element) OnEndTag(fn func(tag string) error) {
	e.onEnd = append(e.onEnd, fn)
}

// validAttrName reports whether name is usable as an HTML attribute
// name: nonempty, no whitespace, quotes, slashes or tag delimiters.
func validAttrName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsAny(name, " \t\n\r\f\"'>/=")
}

// voidElement reports whether tag never has an end tag.
func voidElement(tag string) bool {
	switch atom.Lookup([]byte(tag)) {
	case atom.Area, atom.Base, atom.Br, atom.Col, atom.Embed, atom.Hr,
		atom.Img, atom.Input, atom.Link, atom.Meta, atom.Param,
		atom.Source, atom.Track, atom.Wbr:
		return true
	}
	return false
}

// run carries the per-call state of one Run invocation.
type run struct {
	rw    *Rewriter
	w     io.Writer
	stack []*Element
	// replacedDepth counts open elements whose content span is being
	// replaced; output is suppressed while it is nonzero.
	replacedDepth int
}

// Run streams r through the handlers and writes the rewritten document
// to w. It returns the first handler, callback, write or tokenizer
// error. Elements left open at EOF are closed implicitly so end-tag
// callbacks always fire.
func (rw *Rewriter) Run(r io.Reader, w io.Writer) error {
	s := &run{rw: rw, w: w}
	z := html.NewTokenizer(r)
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			err := z.Err()
			if err != io.EOF {
				return err
			}
			return s.closeAll()
		case html.TextToken, html.CommentToken, html.DoctypeToken:
			if err := s.emit(z.Raw()); err != nil {
				return err
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			if err := s.openElement(z, tt == html.SelfClosingTagToken); err != nil {
				return err
			}
		case html.EndTagToken:
			if err := s.closeElement(z); err != nil {
				return err
			}
		}
	}
}

// emit writes token bytes unless a content replacement suppresses them.
func (s *run) emit(p []byte) error {
	if s.replacedDepth > 0 {
		return nil
	}
	_, err := s.w.Write(p)
	return err
}

func (s *run) emitString(str string) error {
	return s.emit([]byte(str))
}

// openElement handles a start tag: builds the Element, runs matching
// handlers, emits the (possibly rewritten) tag and pushes it onto the
// open stack unless it cannot have content.
func (s *run) openElement(z *html.Tokenizer, selfClosing bool) error {
	name, hasAttr := z.TagName()
	el := &Element{tag: string(name)}
	el.selfClosing = selfClosing || voidElement(el.tag)
	for hasAttr {
		var key, val []byte
		key, val, hasAttr = z.TagAttr()
		el.attrs = append(el.attrs, Attribute{Name: string(key), Value: string(val)})
	}

	ancestors := make([]cssselect.Elem, len(s.stack))
	for i, open := range s.stack {
		ancestors[i] = open
	}
	for _, h := range s.rw.handlers {
		if h.Match.Match(el, ancestors) {
			if err := h.OnEnter(el); err != nil {
				return err
			}
		}
	}

	var err error
	if el.mutated {
		err = s.emitString(serializeStartTag(el, selfClosing))
	} else {
		err = s.emit(z.Raw())
	}
	if err != nil {
		return err
	}

	if el.selfClosing {
		return s.runEndCallbacks(el)
	}
	s.stack = append(s.stack, el)
	if el.replaced {
		s.replacedDepth++
	}
	return nil
}

// closeElement handles an end tag. A stray end tag with no matching
// open element passes through untouched. Unclosed children above the
// matching element are closed implicitly first.
func (s *run) closeElement(z *html.Tokenizer) error {
	name, _ := z.TagName()
	tag := string(name)
	idx := -1
	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i].tag == tag {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s.emit(z.Raw())
	}
	for i := len(s.stack) - 1; i > idx; i-- {
		if err := s.closeImplicit(s.stack[i]); err != nil {
			return err
		}
	}
	el := s.stack[idx]
	s.stack = s.stack[:idx]

	if el.replaced {
		s.replacedDepth--
		if err := s.emitString(el.replacement); err != nil {
			return err
		}
	}
	if err := s.emit(z.Raw()); err != nil {
		return err
	}
	return s.runEndCallbacks(el)
}

// closeImplicit closes an element that never saw its end tag. A
// pending content replacement is still emitted so the rewrite is not
// silently lost.
func (s *run) closeImplicit(el *Element) error {
	if el.replaced {
		s.replacedDepth--
		if err := s.emitString(el.replacement); err != nil {
			return err
		}
	}
	return s.runEndCallbacks(el)
}

// closeAll implicitly closes everything left open at EOF, innermost
// first.
func (s *run) closeAll() error {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if err := s.closeImplicit(s.stack[i]); err != nil {
			return err
		}
	}
	s.stack = nil
	return nil
}

func (s *run) runEndCallbacks(el *Element) error {
	for _, fn := range el.onEnd {
		if err := fn(el.tag); err != nil {
			return err
		}
	}
	return nil
}

// serializeStartTag rebuilds a start tag after attribute mutation.
// Attribute order is preserved; values are quoted and escaped.
func serializeStartTag(el *Element, selfClosing bool) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(el.tag)
	for _, a := range el.attrs {
		b.WriteByte(' ')
		b.WriteString(a.Name)
		b.WriteString(`="`)
		b.WriteString(html.EscapeString(a.Value))
		b.WriteByte('"')
	}
	if selfClosing {
		b.WriteString(" /")
	}
	b.WriteByte('>')
	return b.String()
}
