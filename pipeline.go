package hq

import "fmt"

// Pipeline is a declarative, ordered list of passes. Build it with
// AddPass, then Compile it into an immutable Exec. The zero value is
// an empty pipeline.
type Pipeline struct {
	passes []*Pass
}

// New creates an empty Pipeline.
func New() *Pipeline {
	return &Pipeline{}
}

// AddPass appends a pass and hands it to build for configuration.
// Passes execute in declaration order: raw input feeds the first
// declared pass and the last declared pass produces the final output.
// Returns the pipeline for chaining.
func (p *Pipeline) AddPass(build func(*Pass)) *Pipeline {
	pass := &Pass{idx: len(p.passes)}
	build(pass)
	p.passes = append(p.passes, pass)
	return p
}

// Compile validates the pipeline and returns an executable program.
// All construction errors (unparsable selectors, invalid rewrite
// patterns, empty passes) are reported here, before anything runs.
// The returned Exec is immutable and safe for concurrent use; later
// AddPass calls do not affect it.
func (p *Pipeline) Compile() (*Exec, error) {
	if len(p.passes) == 0 {
		return nil, ErrEmptyPipeline
	}
	for _, pass := range p.passes {
		if err := pass.check(); err != nil {
			return nil, fmt.Errorf("pass %d: %w", pass.idx, err)
		}
	}
	passes := make([]*Pass, len(p.passes))
	copy(passes, p.passes)
	return &Exec{
		passes:    passes,
		templates: make(map[string]*parsedTemplate),
	}, nil
}
