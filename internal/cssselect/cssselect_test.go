package cssselect

import (
	"errors"
	"testing"
)

// fakeElem is a minimal Elem for matcher tests.
type fakeElem struct {
	tag   string
	attrs map[string]string
}

func (f fakeElem) TagName() string { return f.tag }

func (f fakeElem) Attr(name string) (string, bool) {
	v, ok := f.attrs[name]
	return v, ok
}

func elem(tag string, kv ...string) fakeElem {
	attrs := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs[kv[i]] = kv[i+1]
	}
	return fakeElem{tag: tag, attrs: attrs}
}

func ancestors(elems ...fakeElem) []Elem {
	out := make([]Elem, len(elems))
	for i, e := range elems {
		out[i] = e
	}
	return out
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		wantErr error
	}{
		{name: "empty", expr: "", wantErr: ErrEmptySelector},
		{name: "only spaces", expr: "   ", wantErr: ErrEmptySelector},
		{name: "empty id", expr: "#", wantErr: ErrSelectorSyntax},
		{name: "empty class", expr: "ul.", wantErr: ErrSelectorSyntax},
		{name: "unclosed bracket", expr: "a[href", wantErr: ErrUnclosedBracket},
		{name: "empty attribute name", expr: "a[=x]", wantErr: ErrSelectorSyntax},
		{name: "unterminated quote", expr: `a[rel="nofollow]`, wantErr: ErrSelectorSyntax},
		{name: "pseudo-class", expr: "li:first-child", wantErr: ErrUnsupported},
		{name: "sibling combinator", expr: "h1 + p", wantErr: ErrUnsupported},
		{name: "dangling combinator", expr: "ul >", wantErr: ErrEmptySelector},
		{name: "empty group member", expr: "a, , b", wantErr: ErrEmptySelector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.expr)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Compile(%q) error = %v, want %v", tt.expr, err, tt.wantErr)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name      string
		expr      string
		el        fakeElem
		ancestors []Elem
		want      bool
	}{
		{
			name: "type selector",
			expr: "ul",
			el:   elem("ul"),
			want: true,
		},
		{
			name: "type selector wrong tag",
			expr: "ul",
			el:   elem("ol"),
			want: false,
		},
		{
			name: "universal",
			expr: "*",
			el:   elem("section"),
			want: true,
		},
		{
			name: "uppercase selector matches lowercase tag",
			expr: "UL",
			el:   elem("ul"),
			want: true,
		},
		{
			name: "class compound",
			expr: "ul.menu",
			el:   elem("ul", "class", "menu"),
			want: true,
		},
		{
			name: "class membership in class list",
			expr: ".menu",
			el:   elem("ul", "class", "nav menu wide"),
			want: true,
		},
		{
			name: "class absent",
			expr: "ul.menu",
			el:   elem("ul", "class", "nav"),
			want: false,
		},
		{
			name: "two classes both required",
			expr: ".nav.menu",
			el:   elem("ul", "class", "nav"),
			want: false,
		},
		{
			name: "id selector",
			expr: "#main",
			el:   elem("div", "id", "main"),
			want: true,
		},
		{
			name: "attribute presence",
			expr: "a[href]",
			el:   elem("a", "href", "http://x.com"),
			want: true,
		},
		{
			name: "attribute presence missing",
			expr: "a[href]",
			el:   elem("a"),
			want: false,
		},
		{
			name: "attribute exact value",
			expr: "[rel=nofollow]",
			el:   elem("a", "rel", "nofollow"),
			want: true,
		},
		{
			name: "attribute quoted value",
			expr: `a[rel="no follow"]`,
			el:   elem("a", "rel", "no follow"),
			want: true,
		},
		{
			name: "attribute value mismatch",
			expr: "[rel=nofollow]",
			el:   elem("a", "rel", "noopener"),
			want: false,
		},
		{
			name:      "descendant combinator",
			expr:      "ul a",
			el:        elem("a"),
			ancestors: ancestors(elem("ul"), elem("li")),
			want:      true,
		},
		{
			name:      "descendant combinator no such ancestor",
			expr:      "ol a",
			el:        elem("a"),
			ancestors: ancestors(elem("ul"), elem("li")),
			want:      false,
		},
		{
			name:      "child combinator direct parent",
			expr:      "li > a",
			el:        elem("a"),
			ancestors: ancestors(elem("ul"), elem("li")),
			want:      true,
		},
		{
			name:      "child combinator skips a level",
			expr:      "ul > a",
			el:        elem("a"),
			ancestors: ancestors(elem("ul"), elem("li")),
			want:      false,
		},
		{
			name:      "three-level chain",
			expr:      "nav ul > li",
			el:        elem("li"),
			ancestors: ancestors(elem("nav"), elem("div"), elem("ul")),
			want:      true,
		},
		{
			name: "group matches second member",
			expr: "area, a",
			el:   elem("a"),
			want: true,
		},
		{
			name: "group matches neither",
			expr: "area, map",
			el:   elem("a"),
			want: false,
		},
		{
			name: "descendant with no ancestors",
			expr: "ul a",
			el:   elem("a"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := Compile(tt.expr)
			if err != nil {
				t.Fatalf("Compile(%q) error: %v", tt.expr, err)
			}
			if got := list.Match(tt.el, tt.ancestors); got != tt.want {
				t.Errorf("Match(%q, %v) = %v, want %v", tt.expr, tt.el, got, tt.want)
			}
		})
	}
}

func TestZeroValueMatchesNothing(t *testing.T) {
	var list List
	if list.Match(elem("a"), nil) {
		t.Error("zero List matched an element")
	}
}
