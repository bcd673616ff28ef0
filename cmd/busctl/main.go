// Command busctl is the operator CLI: reservation inspection/release,
// project/agent status, and the Bayesian-decision dashboard TUI, all
// reading the same SQLite-backed store the MCP daemon (cmd/busmcpd)
// writes to. Subcommand availability is gated by AGENTMAIL_MODE via
// internal/cliapp, matching spec.md §6's CLI/MCP mode split.
package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/agentmail/bus/internal/cliapp"
	"github.com/agentmail/bus/internal/evidence"
	"github.com/agentmail/bus/internal/metrics"
	"github.com/agentmail/bus/internal/store"
	"github.com/agentmail/bus/internal/tui"
	"github.com/agentmail/bus/internal/types"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: busctl <command> [args...]")
		fmt.Fprintln(os.Stderr, "commands: status, reservations, release, dashboard")
		os.Exit(2)
	}
	name := os.Args[1]
	args := os.Args[2:]

	commands := []cliapp.Command{
		{Name: "status", AllowedIn: []cliapp.Mode{cliapp.ModeCLI, cliapp.ModeMCP}, Run: runStatus},
		{Name: "reservations", AllowedIn: []cliapp.Mode{cliapp.ModeCLI, cliapp.ModeMCP}, Run: runReservations},
		{Name: "release", AllowedIn: []cliapp.Mode{cliapp.ModeCLI}, AltBinary: "busmcpd", Run: runRelease},
		{Name: "dashboard", AllowedIn: []cliapp.Mode{cliapp.ModeCLI}, AltBinary: "busmcpd", Run: runDashboard},
	}

	code := cliapp.Dispatch(commands, name, args, os.Getenv, os.Stderr)
	os.Exit(code)
}

func dbPathFlag(args []string) string {
	path := "data/bus.db"
	for i, a := range args {
		if a == "--db" && i+1 < len(args) {
			path = args[i+1]
		}
	}
	return path
}

func runStatus(args []string) int {
	st, err := store.Open(dbPathFlag(args))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return 1
	}
	defer st.Close()

	projectIDs, err := st.ListProjectIDs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list projects: %v\n", err)
		return 1
	}
	fmt.Printf("projects: %d\n", len(projectIDs))
	for _, pid := range projectIDs {
		reservations, err := st.ActiveReservationsForProject(pid)
		if err != nil {
			continue
		}
		fmt.Printf("  project %d: %d active reservation(s)\n", pid, len(reservations))
	}
	return 0
}

func runReservations(args []string) int {
	st, err := store.Open(dbPathFlag(args))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return 1
	}
	defer st.Close()

	projectIDs, err := st.ListProjectIDs()
	if err != nil {
		fmt.Fprintf(os.Stderr, "list projects: %v\n", err)
		return 1
	}
	for _, pid := range projectIDs {
		reservations, err := st.ActiveReservationsForProject(pid)
		if err != nil {
			fmt.Fprintf(os.Stderr, "project %d: %v\n", pid, err)
			continue
		}
		for _, r := range reservations {
			fmt.Printf("%d\tproject=%d\tagent=%d\tpattern=%s\texclusive=%v\texpires=%s\n",
				r.ID, r.ProjectID, r.AgentID, r.PathPattern, r.Exclusive, types.Time(r.ExpiresTS).Format(time.RFC3339))
		}
	}
	return 0
}

func runRelease(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: busctl release <reservation-id> [--db path]")
		return 1
	}
	var id int64
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		fmt.Fprintf(os.Stderr, "invalid reservation id %q\n", args[0])
		return 1
	}
	st, err := store.Open(dbPathFlag(args[1:]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		return 1
	}
	defer st.Close()
	if err := st.ReleaseReservation(id); err != nil {
		fmt.Fprintf(os.Stderr, "release: %v\n", err)
		return 1
	}
	fmt.Printf("released reservation %d\n", id)
	return 0
}

func runDashboard(args []string) int {
	home, _ := os.UserHomeDir()
	prefsPath := home + "/.config/agentmail-bus/tui.env"
	prefsStore := tui.NewStore(prefsPath, 2*time.Second)
	ledger := evidence.NewLedger(1024)

	health := func() (metrics.HealthLevel, metrics.HealthSignals) {
		return metrics.Green, metrics.HealthSignals{}
	}

	model := tui.NewDashboardModel(ledger, prefsStore, health)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "dashboard: %v\n", err)
		return 1
	}
	return 0
}
