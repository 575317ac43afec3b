package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"anchor-e2e/internal/config"
	"anchor-e2e/internal/scenario"
)

// testList collects scenario names from repeated or comma separated flags
type testList []string

func (l *testList) String() string { return strings.Join(*l, ",") }

func (l *testList) Set(value string) error {
	*l = append(*l, config.ParseStringList(value)...)
	return nil
}

// applyFlags overrides cfg with command line values. Positional arguments
// are added to the scenario list wherever they appear.
func applyFlags(cfg *config.Config, args []string, output io.Writer) error {
	fs := flag.NewFlagSet("anchor-e2e", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintf(output, "Usage: anchor-e2e [flags] [test ...]\n\nTests: %s (default %s)\n\nFlags:\n",
			strings.Join(scenario.Names(), ", "), scenario.All)
		fs.PrintDefaults()
	}

	var tests testList
	fs.Var(&tests, "tests", "comma separated tests to run")
	fs.Var(&tests, "t", "shorthand for --tests")

	domain := cfg.Anchor.Domain
	fs.StringVar(&domain, "domain", domain, "anchor domain, optionally with scheme")
	fs.StringVar(&domain, "d", domain, "shorthand for --domain")

	secret := cfg.Anchor.Secret
	fs.StringVar(&secret, "secret", secret, "Stellar secret key of the test account")
	fs.StringVar(&secret, "s", secret, "shorthand for --secret")

	delay := cfg.Run.Delay
	fs.Func("delay", "wait before starting, in seconds or as a duration", func(v string) error {
		d, err := config.ParseDuration(v)
		if err != nil {
			return err
		}
		if d < 0 {
			return fmt.Errorf("negative delay %s", v)
		}
		delay = d
		return nil
	})

	// flag stops at the first non-flag argument. Names may follow -t and be
	// followed by more flags, so parse again after each run of names.
	rest := args
	for len(rest) > 0 {
		if err := fs.Parse(rest); err != nil {
			return err
		}
		left := fs.Args()
		if n := len(rest) - len(left); n > 0 && rest[n-1] == "--" {
			tests = appendNames(tests, left)
			break
		}
		rest = left
		for len(rest) > 0 && !isFlag(rest[0]) {
			tests = appendNames(tests, rest[:1])
			rest = rest[1:]
		}
	}
	if len(tests) > 0 {
		cfg.Run.Tests = tests
	}
	cfg.Anchor.Domain = domain
	cfg.Anchor.Secret = secret
	cfg.Run.Delay = delay
	return nil
}

func isFlag(arg string) bool {
	return len(arg) > 1 && arg[0] == '-'
}

func appendNames(tests testList, args []string) testList {
	for _, arg := range args {
		tests = append(tests, config.ParseStringList(arg)...)
	}
	return tests
}

// waitDelay blocks for d unless the run is cancelled first
func waitDelay(done <-chan struct{}, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-done:
		return false
	}
}
