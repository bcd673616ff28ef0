package cliapp

import (
	"os"
	"strings"
	"testing"
)

func envLookup(values map[string]string) func(string) string {
	return func(k string) string { return values[k] }
}

func TestResolveModeDefaultsToMCP(t *testing.T) {
	m, err := ResolveMode(envLookup(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != ModeMCP {
		t.Fatalf("expected default mode mcp, got %v", m)
	}
}

func TestResolveModeCaseInsensitive(t *testing.T) {
	m, err := ResolveMode(envLookup(map[string]string{ModeEnvVar: "CLI"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m != ModeCLI {
		t.Fatalf("expected cli, got %v", m)
	}
}

func TestResolveModeInvalidValue(t *testing.T) {
	_, err := ResolveMode(envLookup(map[string]string{ModeEnvVar: "bogus"}))
	if err == nil {
		t.Fatal("expected error for invalid mode value")
	}
	if !strings.Contains(err.Error(), ModeEnvVar) {
		t.Fatalf("error must name the env var, got %q", err.Error())
	}
}

// TestModeDenialMessage covers spec.md §8 scenario 6: invoking a
// CLI-only command in default (mcp) mode exits 2 with a remediation
// stderr line naming the command, the alternate binary, and the
// AGENTMAIL_MODE=cli override, with no stack trace or source paths.
func TestModeDenialMessage(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer r.Close()

	commands := []Command{
		{Name: "reserve", AllowedIn: []Mode{ModeCLI}, AltBinary: "busctl", Run: func([]string) int { return 0 }},
	}

	code := Dispatch(commands, "reserve", nil, envLookup(nil), w)
	w.Close()

	if code != DenialExitCode {
		t.Fatalf("expected exit code %d, got %d", DenialExitCode, code)
	}

	buf := make([]byte, 4096)
	n, _ := r.Read(buf)
	out := string(buf[:n])

	for _, want := range []string{"reserve", "busctl", "AGENTMAIL_MODE=cli"} {
		if !strings.Contains(out, want) {
			t.Fatalf("denial message missing %q: %s", want, out)
		}
	}
	for _, bad := range []string{"goroutine", "panic", "/root/", ".go:"} {
		if strings.Contains(out, bad) {
			t.Fatalf("denial message must not leak internals, found %q in: %s", bad, out)
		}
	}
}

func TestModeAllowedCommandRuns(t *testing.T) {
	ran := false
	commands := []Command{
		{Name: "status", AllowedIn: []Mode{ModeCLI, ModeMCP}, Run: func([]string) int { ran = true; return 0 }},
	}
	r, w, _ := os.Pipe()
	defer r.Close()
	code := Dispatch(commands, "status", nil, envLookup(nil), w)
	w.Close()
	if code != 0 || !ran {
		t.Fatalf("expected allowed command to run, code=%d ran=%v", code, ran)
	}
}
