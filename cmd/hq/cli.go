package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// Sentinel errors for CLI operations.
var (
	ErrNoPipeline  = errors.New("nothing to do: provide --filter and/or --config")
	ErrTooManyArgs = errors.New("at most one input file may be given")
	ErrReadInput   = errors.New("failed to read input")
	ErrWriteOutput = errors.New("failed to write output")
)

// run reads the input, assembles and compiles the pipeline, executes
// it and writes the result. The input is the single positional
// argument, or stdin when none is given.
func run(flags hqFlags, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(flags.filters) == 0 && flags.configPath == "" {
		return ErrNoPipeline
	}
	if len(args) > 1 {
		return ErrTooManyArgs
	}

	var cfg *Config
	if flags.configPath != "" {
		var err error
		cfg, err = LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
	}

	input, err := readInput(args, stdin)
	if err != nil {
		return err
	}

	if flags.fromMarkdown {
		input, err = newMarkdownConverter().ToHTML(input)
		if err != nil {
			return err
		}
	}

	exec, err := buildPipeline(flags.filters, cfg).Compile()
	if err != nil {
		return err
	}

	if flags.verbose {
		fmt.Fprintf(os.Stderr, "hq: %d input bytes\n", len(input))
	}

	output, err := exec.Run(context.Background(), input)
	if err != nil {
		return err
	}

	return writeOutput(flags.output, output, stdout)
}

// readInput reads the positional input file, or stdin when no file is
// given.
func readInput(args []string, stdin io.Reader) ([]byte, error) {
	if len(args) == 0 {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrReadInput, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0]) // #nosec G304 -- path comes from the user's own argument
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReadInput, err)
	}
	return data, nil
}

// writeOutput writes to the -o file, or stdout when none is given.
func writeOutput(path, output string, stdout io.Writer) error {
	if path == "" {
		if _, err := io.WriteString(stdout, output); err != nil {
			return fmt.Errorf("%w: %v", ErrWriteOutput, err)
		}
		return nil
	}
	if err := os.WriteFile(path, []byte(output), 0o600); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteOutput, err)
	}
	return nil
}
