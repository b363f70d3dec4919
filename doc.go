// Package hq applies selector-scoped edits to HTML documents as a
// stream. hq is like jq, but for HTML data: a pipeline of passes, each
// matching elements by CSS selector and applying actions, transforms
// the document without ever building a DOM.
//
// # Quick Start
//
// Declare passes, compile, run:
//
//	pipeline := hq.New()
//	pipeline.AddPass(func(p *hq.Pass) {
//	    p.Filter("ul.menu")
//	})
//	pipeline.AddPass(func(p *hq.Pass) {
//	    p.On("a[href]", func(s *hq.Selector) {
//	        s.RewriteAttribute("href", "^http:", "https:")
//	    })
//	})
//
//	exec, err := pipeline.Compile()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := exec.Run(ctx, input)
//
// # Passes, Selectors, Actions
//
// A Pass bundles selectors with a visibility stack. Three actions
// exist:
//
//   - Filter: the pass emits only the subtrees its filter selectors
//     match. A pass with no filter emits everything.
//   - RewriteAttribute: regexp find/replace on one attribute value.
//   - SetInnerContent: replace an element's content with a rendered
//     text/template; the template sees {{.tag}} and {{.attributes}}.
//
// Passes chain in declaration order: each pass's output is the next
// pass's input, and the last pass produces the final document.
//
// # Errors
//
// Compile reports construction problems (bad selectors, bad rewrite
// patterns) before anything runs. Run fails with a *RunError naming
// the pass, selector and action at fault; a failed run returns no
// partial output.
//
// # Concurrency
//
// A compiled Exec is immutable. Each Run allocates its own per-pass
// state and output buffer, so one Exec may serve concurrent runs.
package hq
