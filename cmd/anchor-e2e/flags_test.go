package main

import (
	"io"
	"reflect"
	"testing"
	"time"

	"anchor-e2e/internal/config"
)

func TestApplyFlags(t *testing.T) {
	cfg := &config.Config{
		Anchor: config.AnchorConfig{Domain: "localhost:8000", Secret: "SENV"},
		Run:    config.RunConfig{Tests: []string{"all"}},
	}

	err := applyFlags(cfg, []string{
		"-t", "sep31_flow,sep38_create_quote",
		"--domain", "anchor.example",
		"-s", "SFLAG",
		"--delay", "15",
		"omnibus_allowlist",
	}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"sep31_flow", "sep38_create_quote", "omnibus_allowlist"}
	if !reflect.DeepEqual(cfg.Run.Tests, want) {
		t.Errorf("tests = %v, want %v", cfg.Run.Tests, want)
	}
	if cfg.Anchor.Domain != "anchor.example" {
		t.Errorf("domain = %q", cfg.Anchor.Domain)
	}
	if cfg.Anchor.Secret != "SFLAG" {
		t.Errorf("secret = %q", cfg.Anchor.Secret)
	}
	if cfg.Run.Delay != 15*time.Second {
		t.Errorf("delay = %s", cfg.Run.Delay)
	}
}

func TestApplyFlagsKeepsEnvironmentValues(t *testing.T) {
	cfg := &config.Config{
		Anchor: config.AnchorConfig{Domain: "localhost:8000", Secret: "SENV"},
		Run:    config.RunConfig{Tests: []string{"sep31_flow"}, Delay: time.Second},
	}

	if err := applyFlags(cfg, nil, io.Discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reflect.DeepEqual(cfg.Run.Tests, []string{"sep31_flow"}) || cfg.Anchor.Secret != "SENV" || cfg.Run.Delay != time.Second {
		t.Errorf("environment values were overwritten: %+v", cfg)
	}
}

func TestApplyFlagsRejectsBadDelay(t *testing.T) {
	cfg := &config.Config{}
	if err := applyFlags(cfg, []string{"--delay", "-3"}, io.Discard); err == nil {
		t.Fatal("expected error for negative delay")
	}
	if err := applyFlags(cfg, []string{"--delay", "later"}, io.Discard); err == nil {
		t.Fatal("expected error for unparsable delay")
	}
}

func TestWaitDelayCancelled(t *testing.T) {
	done := make(chan struct{})
	close(done)
	if waitDelay(done, time.Hour) {
		t.Fatal("expected cancelled wait")
	}
	if !waitDelay(nil, 0) {
		t.Fatal("expected zero delay to return immediately")
	}
}

func TestApplyFlagsTestNamesBeforeOtherFlags(t *testing.T) {
	cfg := &config.Config{Run: config.RunConfig{Tests: []string{"all"}}}

	err := applyFlags(cfg, []string{
		"-t", "sep31_flow", "sep38_create_quote",
		"-d", "http://anchor:8080",
		"--tests", "omnibus_allowlist",
		"--delay", "2s",
	}, io.Discard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"sep31_flow", "sep38_create_quote", "omnibus_allowlist"}
	if !reflect.DeepEqual(cfg.Run.Tests, want) {
		t.Errorf("tests = %v, want %v", cfg.Run.Tests, want)
	}
	if cfg.Anchor.Domain != "http://anchor:8080" {
		t.Errorf("domain = %q", cfg.Anchor.Domain)
	}
	if cfg.Run.Delay != 2*time.Second {
		t.Errorf("delay = %s", cfg.Run.Delay)
	}
}

func TestApplyFlagsDoubleDashEndsFlags(t *testing.T) {
	cfg := &config.Config{Anchor: config.AnchorConfig{Domain: "localhost:8000"}}

	if err := applyFlags(cfg, []string{"-t", "sep31_flow", "--", "-d"}, io.Discard); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"sep31_flow", "-d"}; !reflect.DeepEqual(cfg.Run.Tests, want) {
		t.Errorf("tests = %v, want %v", cfg.Run.Tests, want)
	}
	if cfg.Anchor.Domain != "localhost:8000" {
		t.Errorf("domain = %q", cfg.Anchor.Domain)
	}
}

func TestApplyFlagsUnknownFlagAfterNames(t *testing.T) {
	cfg := &config.Config{}
	if err := applyFlags(cfg, []string{"-t", "sep31_flow", "extra", "--bogus"}, io.Discard); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}
