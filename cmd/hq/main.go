package main

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/automaxprocs/maxprocs"

	hq "github.com/alnah/go-hq"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	flags, args, err := parseFlags(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if flags.version {
		fmt.Println("hq " + Version)
		return
	}

	// Configure GOMAXPROCS with conditional logging.
	// Error ignored: maxprocs.Set only fails if the GOMAXPROCS env is
	// invalid, in which case Go runtime defaults apply.
	if flags.verbose {
		_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}))
	} else {
		_, _ = maxprocs.Set(maxprocs.Logger(func(string, ...interface{}) {}))
	}

	if err := run(flags, args, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var runErr *hq.RunError
		if errors.As(err, &runErr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
