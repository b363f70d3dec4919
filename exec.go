package hq

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"text/template"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/alnah/go-hq/internal/rewrite"
)

// Exec is a compiled pipeline. It holds no run state; every Run
// allocates fresh per-pass visibility stacks and a fresh output
// buffer, so a single Exec can serve repeated and concurrent runs.
type Exec struct {
	passes []*Pass

	// templates caches parsed SetInnerContent templates by source.
	// Shared across runs, guarded by mu.
	mu        sync.Mutex
	templates map[string]*parsedTemplate
}

type parsedTemplate struct {
	tmpl *template.Template
	err  error
}

// Run feeds input through the pass chain and returns the transformed
// document. Passes run as pipe-connected stages: each pass's
// visibility-gated output streams into the next pass's tokenizer, and
// the terminal pass fills the output buffer. On any stage error the
// whole run fails and no partial output is returned.
func (e *Exec) Run(ctx context.Context, input []byte) (string, error) {
	es := &execState{exec: e}
	g, ctx := errgroup.WithContext(ctx)

	reader := io.Reader(bytes.NewReader(input))
	for i, pass := range e.passes {
		st := newPassState(pass.defaultOutput())
		rw := rewrite.New(pass.handlers(st, es)...)

		stageIn := reader
		var inPipe *io.PipeReader
		if pr, ok := stageIn.(*io.PipeReader); ok {
			inPipe = pr
		}
		var out io.Writer
		var outPipe *io.PipeWriter
		if i == len(e.passes)-1 {
			out = &es.out
		} else {
			pr, pw := io.Pipe()
			out = pw
			outPipe = pw
			reader = pr
		}

		sink := &chunkSink{ctx: ctx, state: st, w: out}
		g.Go(func() error {
			err := rw.Run(stageIn, sink)
			if outPipe != nil {
				// err == nil delivers EOF downstream.
				outPipe.CloseWithError(err)
			}
			if inPipe != nil {
				// Unblocks the upstream writer if this stage failed.
				inPipe.CloseWithError(err)
			}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}
	if !utf8.Valid(es.out.Bytes()) {
		return "", ErrInvalidUTF8
	}
	return es.out.String(), nil
}

// execState is the single-run mutable state: the final output buffer
// plus template rendering for action handlers. Exactly one run owns an
// execState; only the terminal stage writes to out.
type execState struct {
	exec *Exec
	out  bytes.Buffer
}

// renderTemplate renders a SetInnerContent template against its
// element context. Undefined references and syntax errors both report
// ErrTemplateRender.
func (es *execState) renderTemplate(source string, data any) (string, error) {
	tmpl, err := es.exec.template(source)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("%w: %v", ErrTemplateRender, err)
	}
	return buf.String(), nil
}

// template returns the cached parse of source, parsing it on first
// use. Parse results, including failures, are cached: templates are
// fixed at construction time, so a failure is permanent.
func (e *Exec) template(source string) (*template.Template, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if cached, ok := e.templates[source]; ok {
		return cached.tmpl, cached.err
	}
	tmpl, err := template.New("inner").Option("missingkey=error").Parse(source)
	e.templates[source] = &parsedTemplate{tmpl: tmpl, err: err}
	return tmpl, err
}

// chunkSink gates one pass's emitted chunks on its visibility stack
// and forwards the visible ones downstream. Every chunk checks the
// stack top at emission time, so filter state changes mid-element take
// effect immediately.
type chunkSink struct {
	ctx   context.Context
	state *passState
	w     io.Writer
}

func (s *chunkSink) Write(p []byte) (int, error) {
	if err := s.ctx.Err(); err != nil {
		return 0, err
	}
	if !s.state.visible() {
		return len(p), nil
	}
	if _, err := s.w.Write(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
