package hq

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

// compileOrFatal builds and compiles a pipeline, failing the test on
// construction errors.
func compileOrFatal(t *testing.T, build func(*Pipeline)) *Exec {
	t.Helper()
	pipeline := New()
	build(pipeline)
	exec, err := pipeline.Compile()
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	return exec
}

func runOrFatal(t *testing.T, exec *Exec, input string) string {
	t.Helper()
	out, err := exec.Run(context.Background(), []byte(input))
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	return out
}

func TestFilterSelectsMatchedSubtree(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.Filter("ul.menu")
		})
	})

	input := `<ul class="menu"><li><a href="http://x.com">x</a></li></ul><p>outside</p>`
	want := `<ul class="menu"><li><a href="http://x.com">x</a></li></ul>`

	got := runOrFatal(t, exec, input)
	if got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}
}

func TestFilterPassEmitsNothingWithoutMatch(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.Filter("ul.menu")
		})
	})

	got := runOrFatal(t, exec, `<p>a</p><div><span>b</span></div>`)
	if got != "" {
		t.Errorf("Run() = %q, want empty output", got)
	}
}

func TestNestedFiltersCompose(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.Filter("div.x")
		})
	})

	// Both divs match; the nested enter/leave pairs must stay balanced
	// and the whole outer subtree must be emitted exactly once.
	input := `a<div class="x">b<div class="x">c</div>d</div>e`
	want := `<div class="x">b<div class="x">c</div>d</div>`

	got := runOrFatal(t, exec, input)
	if got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}
}

func TestNonFilterPassEmitsEverything(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.On("a[href]", func(s *Selector) {
				s.RewriteAttribute("href", "^http:", "https:")
			})
		})
	})

	input := `<p>before</p><a href="http://x.com">x</a><p>after</p>`
	want := `<p>before</p><a href="https://x.com">x</a><p>after</p>`

	got := runOrFatal(t, exec, input)
	if got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}
}

func TestRewriteAttribute(t *testing.T) {
	tests := []struct {
		name        string
		pattern     string
		replacement string
		input       string
		want        string
	}{
		{
			name:        "http to https",
			pattern:     "^http:",
			replacement: "https:",
			input:       `<a href="http://example.com">x</a>`,
			want:        `<a href="https://example.com">x</a>`,
		},
		{
			name:        "non-matching pattern leaves value byte-identical",
			pattern:     "^ftp:",
			replacement: "sftp:",
			input:       `<a href="http://example.com">x</a>`,
			want:        `<a href="http://example.com">x</a>`,
		},
		{
			name:        "capture group reference",
			pattern:     `^http://([^/]+)$`,
			replacement: "https://$1/",
			input:       `<a href="http://example.com">x</a>`,
			want:        `<a href="https://example.com/">x</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := compileOrFatal(t, func(p *Pipeline) {
				p.AddPass(func(pass *Pass) {
					pass.On("a[href]", func(s *Selector) {
						s.RewriteAttribute("href", tt.pattern, tt.replacement)
					})
				})
			})
			got := runOrFatal(t, exec, tt.input)
			if got != tt.want {
				t.Errorf("Run() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRewriteAttributeCreatesAbsentAttribute(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.On("a", func(s *Selector) {
				s.RewriteAttribute("rel", "^$", "nofollow")
			})
		})
	})

	got := runOrFatal(t, exec, `<a href="/x">x</a>`)
	want := `<a href="/x" rel="nofollow">x</a>`
	if got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}
}

func TestSetInnerContentTemplateContext(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.On("a[href]", func(s *Selector) {
				s.SetInnerContent("{{.tag}}|{{.attributes.href}}")
			})
		})
	})

	got := runOrFatal(t, exec, `<a href="http://x.com">old</a>`)
	want := `<a href="http://x.com">a|http://x.com</a>`
	if got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}
}

func TestSetInnerContentEmitsMarkupUnescaped(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.On("div", func(s *Selector) {
				s.SetInnerContent("<strong>{{.tag}}</strong>")
			})
		})
	})

	got := runOrFatal(t, exec, `<div>old <em>content</em></div>`)
	want := `<div><strong>div</strong></div>`
	if got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}
}

func TestSetInnerContentSeesRewrittenAttributes(t *testing.T) {
	// Actions run in declaration order; the template must observe the
	// attribute value the preceding rewrite produced.
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.On("a[href]", func(s *Selector) {
				s.RewriteAttribute("href", "^http:", "https:")
				s.SetInnerContent("{{.attributes.href}}")
			})
		})
	})

	got := runOrFatal(t, exec, `<a href="http://x.com">old</a>`)
	want := `<a href="https://x.com">https://x.com</a>`
	if got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}
}

func TestChainOrderingIsDeclarationOrder(t *testing.T) {
	// Filter pass declared first, rewrite pass declared second: the
	// rewrite must apply to the filtered subtree, proving that raw
	// input enters the first declared pass.
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.Filter("ul.menu")
		})
		p.AddPass(func(pass *Pass) {
			pass.On("a[href]", func(s *Selector) {
				s.RewriteAttribute("href", "^http:", "https:")
			})
		})
	})

	input := `<ul class="menu"><li><a href="http://x.com">x</a></li></ul><a href="http://y.com">y</a>`
	want := `<ul class="menu"><li><a href="https://x.com">x</a></li></ul>`

	got := runOrFatal(t, exec, input)
	if got != want {
		t.Errorf("Run() = %q, want %q", got, want)
	}
}

func TestUnmatchedDocumentRoundTrips(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.On("article.missing", func(s *Selector) {
				s.RewriteAttribute("id", "x", "y")
			})
		})
	})

	input := "<!DOCTYPE html>\n<html>\n  <body>\n    <p>a &amp; b</p>\n    <!-- note -->\n    <img src=\"x.png\">\n  </body>\n</html>\n"
	got := runOrFatal(t, exec, input)
	if got != input {
		t.Errorf("Run() changed unmatched document:\ngot  %q\nwant %q", got, input)
	}
}

func TestRepeatedRunsAreIndependent(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.Filter("ul.menu")
		})
	})

	input := `<ul class="menu"><li>x</li></ul><p>drop</p>`
	first := runOrFatal(t, exec, input)
	second := runOrFatal(t, exec, input)
	if first != second {
		t.Errorf("second Run() = %q, want %q", second, first)
	}
}

func TestConcurrentRuns(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.Filter("ul.menu")
		})
		p.AddPass(func(pass *Pass) {
			pass.On("a[href]", func(s *Selector) {
				s.RewriteAttribute("href", "^http:", "https:")
				s.SetInnerContent("{{.attributes.href}}")
			})
		})
	})

	input := `<ul class="menu"><li><a href="http://x.com">x</a></li></ul><p>drop</p>`
	want := `<ul class="menu"><li><a href="https://x.com">https://x.com</a></li></ul>`

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := exec.Run(context.Background(), []byte(input))
			if err != nil {
				t.Errorf("Run() error: %v", err)
				return
			}
			if got != want {
				t.Errorf("Run() = %q, want %q", got, want)
			}
		}()
	}
	wg.Wait()
}

func TestTemplateRenderFailure(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.On("a", func(s *Selector) {
				s.SetInnerContent("{{.attributes.missing}}")
			})
		})
	})

	out, err := exec.Run(context.Background(), []byte(`<a href="/x">x</a>`))
	if err == nil {
		t.Fatal("Run() expected error, got nil")
	}
	if out != "" {
		t.Errorf("Run() returned partial output %q on failure", out)
	}
	if !errors.Is(err, ErrTemplateRender) {
		t.Errorf("Run() error = %v, want ErrTemplateRender", err)
	}

	var runErr *RunError
	if !errors.As(err, &runErr) {
		t.Fatalf("Run() error = %T, want *RunError", err)
	}
	if runErr.Pass != 0 {
		t.Errorf("RunError.Pass = %d, want 0", runErr.Pass)
	}
	if runErr.Selector != "a" {
		t.Errorf("RunError.Selector = %q, want %q", runErr.Selector, "a")
	}
	if runErr.Action != "setInnerContent" {
		t.Errorf("RunError.Action = %q, want %q", runErr.Action, "setInnerContent")
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	exec := compileOrFatal(t, func(p *Pipeline) {
		p.AddPass(func(pass *Pass) {
			pass.Filter("ul.menu")
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := exec.Run(ctx, []byte(strings.Repeat("<p>x</p>", 64)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}
