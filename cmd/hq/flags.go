package main

import (
	"io"

	flag "github.com/spf13/pflag"
)

// hqFlags holds all command-line options.
type hqFlags struct {
	filters      []string
	configPath   string
	output       string
	fromMarkdown bool
	verbose      bool
	version      bool
}

// parseFlags parses args (including the program name) and returns the
// flags plus remaining positional arguments.
func parseFlags(args []string) (hqFlags, []string, error) {
	fs := flag.NewFlagSet("hq", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var f hqFlags
	fs.StringArrayVarP(&f.filters, "filter", "f", nil,
		"CSS selector; each occurrence adds a pass keeping only matching subtrees (repeatable, runs before --config passes)")
	fs.StringVarP(&f.configPath, "config", "c", "",
		"YAML pipeline description file")
	fs.StringVarP(&f.output, "output", "o", "",
		"output file (default stdout)")
	fs.BoolVar(&f.fromMarkdown, "from-markdown", false,
		"treat input as Markdown and render it to HTML before running the pipeline")
	fs.BoolVarP(&f.verbose, "verbose", "v", false,
		"print diagnostics to stderr")
	fs.BoolVar(&f.version, "version", false,
		"print version and exit")

	if err := fs.Parse(args[1:]); err != nil {
		return f, nil, err
	}
	return f, fs.Args(), nil
}
