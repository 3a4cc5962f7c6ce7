package main

import (
	"strings"
	"testing"
)

func TestRoot_ShowsHelp(t *testing.T) {
	stdout, _, err := runCLI(t, "--config", missingConfig(t))
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	for _, want := range []string{"narravox", "edit", "preview", "overrides", "watch"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("help missing %q:\n%s", want, stdout)
		}
	}
}

func TestRoot_RejectsBadServerFlag(t *testing.T) {
	_, _, err := runCLI(t, "--config", missingConfig(t),
		"--server", "ftp://example.com", "mix", "fmt", "af_sky*1")
	if err == nil || !strings.Contains(err.Error(), "--server") {
		t.Fatalf("err = %v, want --server validation error", err)
	}
}

func TestRoot_RejectsUnknownConfigKeys(t *testing.T) {
	cfgPath := writeConfig(t, "bogus_section:\n  x: 1\n")
	_, _, err := runCLI(t, "--config", cfgPath, "mix", "fmt", "af_sky*1")
	if err == nil {
		t.Fatal("expected a strict-decode error for unknown config keys")
	}
}
