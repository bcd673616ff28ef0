// Package cliapp implements the operator CLI's mode gating: which
// subcommands are available depending on whether the running binary is
// in "cli" or "mcp" mode, and the denial message shown when a
// CLI-only command is invoked from the RPC daemon (or vice versa).
// Grounded on the teacher's cmd/cliaimonitor + cmd/dbctl split (two
// binaries gated by which one you ran) generalized into one mode-aware
// dispatcher per spec.md §6, so a single busctl binary can present
// both the interactive operator surface and a reduced set safe to run
// alongside the RPC daemon.
package cliapp

import (
	"fmt"
	"os"
	"strings"
)

// ModeEnvVar is the environment variable that selects the binary's mode.
const ModeEnvVar = "AGENTMAIL_MODE"

// Mode is which surface a running binary presents.
type Mode string

const (
	ModeCLI Mode = "cli"
	ModeMCP Mode = "mcp"
)

// DefaultMode is used when ModeEnvVar is unset, matching spec.md §6
// ("default mcp for the RPC binary").
const DefaultMode = ModeMCP

// ResolveMode reads ModeEnvVar, case-insensitively, defaulting to
// DefaultMode when unset. It returns an error naming the env var when
// the value is set but neither "cli" nor "mcp".
func ResolveMode(getenv func(string) string) (Mode, error) {
	raw := strings.TrimSpace(getenv(ModeEnvVar))
	if raw == "" {
		return DefaultMode, nil
	}
	switch strings.ToLower(raw) {
	case string(ModeCLI):
		return ModeCLI, nil
	case string(ModeMCP):
		return ModeMCP, nil
	default:
		return "", fmt.Errorf("invalid %s value %q: must be \"cli\" or \"mcp\"", ModeEnvVar, raw)
	}
}

// Command describes one operator-CLI subcommand and which mode(s) it is
// available in.
type Command struct {
	Name       string
	AllowedIn  []Mode
	AltBinary  string // remediation: suggest this binary instead, if non-empty
	Run        func(args []string) int
}

func (c Command) allowedIn(m Mode) bool {
	for _, am := range c.AllowedIn {
		if am == m {
			return true
		}
	}
	return false
}

// DenialExitCode is returned when a command is invoked in a mode that
// does not permit it, per spec.md §6.
const DenialExitCode = 2

// InvalidModeExitCode is returned when AGENTMAIL_MODE holds an
// unrecognised value.
const InvalidModeExitCode = 2

// Dispatch resolves the current mode and runs name with args if allowed,
// writing a remediation message to stderr and returning DenialExitCode
// if not. It never writes stack traces, panic text, or source paths to
// stderr — only the command name, the alternate binary (if any), and the
// mode-env-var override instruction, per spec.md §8 scenario 6.
func Dispatch(commands []Command, name string, args []string, getenv func(string) string, stderr *os.File) int {
	mode, err := ResolveMode(getenv)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return InvalidModeExitCode
	}

	var cmd *Command
	for i := range commands {
		if commands[i].Name == name {
			cmd = &commands[i]
			break
		}
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		return DenialExitCode
	}

	if !cmd.allowedIn(mode) {
		writeDenial(stderr, *cmd, mode)
		return DenialExitCode
	}

	return cmd.Run(args)
}

func writeDenial(stderr *os.File, cmd Command, mode Mode) {
	fmt.Fprintf(stderr, "command %q is not available in %s mode\n", cmd.Name, mode)
	if cmd.AltBinary != "" {
		fmt.Fprintf(stderr, "  run it from %s instead\n", cmd.AltBinary)
	}
	fmt.Fprintf(stderr, "  or override with %s=cli\n", ModeEnvVar)
}
