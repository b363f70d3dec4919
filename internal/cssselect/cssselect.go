// Package cssselect compiles a subset of CSS selectors for streaming
// element matching.
//
// The supported grammar covers what selector-scoped stream edits need:
// universal (*), type (ul), id (#main), class (.menu), attribute
// presence and exact value ([href], [rel=nofollow]), compounds
// (ul.menu, a[href]), groups (a, area) and descendant/child combinators
// (nav a, ul > li). Pseudo-classes and sibling combinators are not
// supported; they require information a single forward scan does not
// have.
//
// Matching works against the element itself plus its stack of open
// ancestors, so a streaming tokenizer can evaluate combinators without
// a parse tree.
package cssselect

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for selector compilation.
var (
	ErrEmptySelector   = errors.New("empty selector")
	ErrSelectorSyntax  = errors.New("selector syntax error")
	ErrUnsupported     = errors.New("unsupported selector feature")
	ErrUnclosedBracket = errors.New("unclosed attribute bracket")
)

// Elem is the view of an element the matcher needs.
type Elem interface {
	// TagName returns the lowercase tag name.
	TagName() string
	// Attr returns the value of the named attribute and whether it is set.
	Attr(name string) (string, bool)
}

// combinator relates two compound selectors in a complex selector.
type combinator int

const (
	descendant combinator = iota
	child
)

// attrCond is one [name] or [name=value] condition.
type attrCond struct {
	name     string
	value    string
	hasValue bool
}

// compound is a single compound selector: optional tag plus id, class
// and attribute conditions, all of which must hold on one element.
type compound struct {
	tag     string // "" or "*" matches any tag
	id      string
	classes []string
	attrs   []attrCond
}

// match reports whether el satisfies every condition of the compound.
func (c compound) match(el Elem) bool {
	if c.tag != "" && c.tag != "*" && c.tag != el.TagName() {
		return false
	}
	if c.id != "" {
		id, ok := el.Attr("id")
		if !ok || id != c.id {
			return false
		}
	}
	if len(c.classes) > 0 {
		class, ok := el.Attr("class")
		if !ok {
			return false
		}
		have := strings.Fields(class)
		for _, want := range c.classes {
			if !containsString(have, want) {
				return false
			}
		}
	}
	for _, a := range c.attrs {
		val, ok := el.Attr(a.name)
		if !ok {
			return false
		}
		if a.hasValue && val != a.value {
			return false
		}
	}
	return true
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// complexSel is a chain of compounds joined by combinators.
// combs[i] relates compounds[i] to compounds[i+1]; len(combs) is
// len(compounds)-1.
type complexSel struct {
	compounds []compound
	combs     []combinator
}

// match reports whether el, with the given open-ancestor stack
// (outermost first), satisfies the chain.
func (c complexSel) match(el Elem, ancestors []Elem) bool {
	last := len(c.compounds) - 1
	if !c.compounds[last].match(el) {
		return false
	}
	return matchChain(c.compounds[:last], c.combs, ancestors)
}

// matchChain matches the remaining prefix of a complex selector against
// the ancestor stack. combs[len(compounds)-1] is the combinator between
// the deepest remaining compound and the element already matched below
// it.
func matchChain(compounds []compound, combs []combinator, ancestors []Elem) bool {
	n := len(compounds)
	if n == 0 {
		return true
	}
	if len(ancestors) == 0 {
		return false
	}
	if combs[n-1] == child {
		parent := ancestors[len(ancestors)-1]
		return compounds[n-1].match(parent) &&
			matchChain(compounds[:n-1], combs[:n-1], ancestors[:len(ancestors)-1])
	}
	for i := len(ancestors) - 1; i >= 0; i-- {
		if compounds[n-1].match(ancestors[i]) &&
			matchChain(compounds[:n-1], combs[:n-1], ancestors[:i]) {
			return true
		}
	}
	return false
}

// List is a compiled selector group. The zero value matches nothing.
type List struct {
	source    string
	selectors []complexSel
}

// Source returns the original selector expression.
func (l List) Source() string { return l.source }

// Match reports whether el matches any selector in the group.
// ancestors is the stack of open enclosing elements, outermost first.
func (l List) Match(el Elem, ancestors []Elem) bool {
	for _, sel := range l.selectors {
		if sel.match(el, ancestors) {
			return true
		}
	}
	return false
}

// Compile parses a selector group expression.
func Compile(expr string) (List, error) {
	p := &parser{input: expr}
	selectors, err := p.parseGroup()
	if err != nil {
		return List{}, fmt.Errorf("%q: %w", expr, err)
	}
	return List{source: expr, selectors: selectors}, nil
}

// parser is a single-pass scanner over a selector expression.
type parser struct {
	input string
	pos   int
}

func (p *parser) parseGroup() ([]complexSel, error) {
	var group []complexSel
	for {
		sel, err := p.parseComplex()
		if err != nil {
			return nil, err
		}
		group = append(group, sel)
		p.skipSpace()
		if p.pos >= len(p.input) {
			return group, nil
		}
		if p.input[p.pos] != ',' {
			return nil, fmt.Errorf("%w: unexpected %q at position %d", ErrSelectorSyntax, p.input[p.pos], p.pos)
		}
		p.pos++
	}
}

func (p *parser) parseComplex() (complexSel, error) {
	var sel complexSel
	p.skipSpace()
	first, err := p.parseCompound()
	if err != nil {
		return complexSel{}, err
	}
	sel.compounds = append(sel.compounds, first)
	for {
		comb, more := p.parseCombinator()
		if !more {
			return sel, nil
		}
		next, err := p.parseCompound()
		if err != nil {
			return complexSel{}, err
		}
		sel.combs = append(sel.combs, comb)
		sel.compounds = append(sel.compounds, next)
	}
}

// parseCombinator consumes whitespace and an optional '>' between two
// compounds. It reports more=false when the complex selector ends here
// (end of input or a ',' group separator).
func (p *parser) parseCombinator() (combinator, bool) {
	sawSpace := false
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		sawSpace = true
		p.pos++
	}
	if p.pos >= len(p.input) || p.input[p.pos] == ',' {
		return descendant, false
	}
	if p.input[p.pos] == '>' {
		p.pos++
		p.skipSpace()
		return child, true
	}
	if sawSpace {
		return descendant, true
	}
	return descendant, false
}

func (p *parser) parseCompound() (compound, error) {
	var c compound
	if p.pos >= len(p.input) {
		return c, ErrEmptySelector
	}
	if tag := p.scanIdent(); tag != "" {
		c.tag = strings.ToLower(tag)
	} else if p.input[p.pos] == '*' {
		c.tag = "*"
		p.pos++
	}
	empty := c.tag == ""
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '#':
			p.pos++
			id := p.scanIdent()
			if id == "" {
				return c, fmt.Errorf("%w: empty id at position %d", ErrSelectorSyntax, p.pos)
			}
			c.id = id
		case '.':
			p.pos++
			class := p.scanIdent()
			if class == "" {
				return c, fmt.Errorf("%w: empty class at position %d", ErrSelectorSyntax, p.pos)
			}
			c.classes = append(c.classes, class)
		case '[':
			attr, err := p.parseAttrCond()
			if err != nil {
				return c, err
			}
			c.attrs = append(c.attrs, attr)
		case ' ', '>', ',':
			if empty {
				return c, ErrEmptySelector
			}
			return c, nil
		case ':':
			return c, fmt.Errorf("%w: pseudo-classes", ErrUnsupported)
		case '+', '~':
			return c, fmt.Errorf("%w: sibling combinators", ErrUnsupported)
		default:
			return c, fmt.Errorf("%w: unexpected %q at position %d", ErrSelectorSyntax, p.input[p.pos], p.pos)
		}
		empty = false
	}
	if empty {
		return c, ErrEmptySelector
	}
	return c, nil
}

// parseAttrCond parses [name] or [name=value], with the value
// optionally quoted.
func (p *parser) parseAttrCond() (attrCond, error) {
	p.pos++ // consume '['
	name := p.scanIdent()
	if name == "" {
		return attrCond{}, fmt.Errorf("%w: empty attribute name at position %d", ErrSelectorSyntax, p.pos)
	}
	cond := attrCond{name: strings.ToLower(name)}
	if p.pos < len(p.input) && p.input[p.pos] == '=' {
		p.pos++
		val, err := p.scanAttrValue()
		if err != nil {
			return attrCond{}, err
		}
		cond.value = val
		cond.hasValue = true
	}
	if p.pos >= len(p.input) || p.input[p.pos] != ']' {
		return attrCond{}, ErrUnclosedBracket
	}
	p.pos++
	return cond, nil
}

func (p *parser) scanAttrValue() (string, error) {
	if p.pos < len(p.input) && (p.input[p.pos] == '"' || p.input[p.pos] == '\'') {
		quote := p.input[p.pos]
		p.pos++
		start := p.pos
		for p.pos < len(p.input) && p.input[p.pos] != quote {
			p.pos++
		}
		if p.pos >= len(p.input) {
			return "", fmt.Errorf("%w: unterminated quoted value", ErrSelectorSyntax)
		}
		val := p.input[start:p.pos]
		p.pos++
		return val, nil
	}
	start := p.pos
	for p.pos < len(p.input) && p.input[p.pos] != ']' {
		p.pos++
	}
	return p.input[start:p.pos], nil
}

func (p *parser) skipSpace() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

// scanIdent consumes an identifier (letters, digits, '-', '_') and
// returns it, or "" if none is present.
func (p *parser) scanIdent() string {
	start := p.pos
	for p.pos < len(p.input) && isIdentChar(p.input[p.pos]) {
		p.pos++
	}
	return p.input[start:p.pos]
}

func isIdentChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-', b == '_':
		return true
	}
	return false
}
