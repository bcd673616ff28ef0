// Command busdbctl is a maintenance binary for probing the bus's SQLite
// file directly — independent of the MCP daemon process — for agent
// last-active timestamps, schema version, and active reservation
// counts. Adapted from the teacher's cmd/dbctl/main.go, which probed
// agent_control rows (heartbeat/shutdown-flag) against the captain's
// memory.db; here the table is agents and the signal is last_active_ts
// rather than a heartbeat column, since the bus has no per-agent
// shutdown flag of its own.
package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/agentmail/bus/internal/store"
)

func main() {
	dbPath := flag.String("db", "data/bus.db", "Path to the bus SQLite database")
	action := flag.String("action", "", "Action to perform: schema-version, agent-status, reservation-count")
	agentID := flag.Int64("agent", 0, "Agent id (for agent-status)")
	projectID := flag.Int64("project", 0, "Project id (for reservation-count)")
	jsonOutput := flag.Bool("json", false, "Output as JSON")
	flag.Parse()

	if *action == "" {
		fmt.Fprintf(os.Stderr, "Usage: busdbctl -db <path> -action <schema-version|agent-status|reservation-count> [-agent <id>] [-project <id>] [-json]\n")
		os.Exit(1)
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()
	db := st.DB()

	switch *action {
	case "schema-version":
		v, err := store.Version(db)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to read schema version: %v\n", err)
			os.Exit(1)
		}
		emit(*jsonOutput, map[string]interface{}{"schema_version": v}, fmt.Sprintf("schema_version=%d", v))

	case "agent-status":
		if *agentID == 0 {
			fmt.Fprintf(os.Stderr, "agent-status requires -agent\n")
			os.Exit(1)
		}
		lastActive, name, err := agentStatus(db, *agentID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to query agent: %v\n", err)
			os.Exit(1)
		}
		idleFor := time.Since(time.UnixMicro(lastActive)).Round(time.Second)
		emit(*jsonOutput, map[string]interface{}{
			"agent_id":         *agentID,
			"name":             name,
			"last_active_ts":   lastActive,
			"idle_for_seconds": idleFor.Seconds(),
		}, fmt.Sprintf("%s idle_for=%s", name, idleFor))

	case "reservation-count":
		if *projectID == 0 {
			fmt.Fprintf(os.Stderr, "reservation-count requires -project\n")
			os.Exit(1)
		}
		count, err := activeReservationCount(db, *projectID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to count reservations: %v\n", err)
			os.Exit(1)
		}
		emit(*jsonOutput, map[string]interface{}{"project_id": *projectID, "active_reservations": count},
			fmt.Sprintf("active_reservations=%d", count))

	default:
		fmt.Fprintf(os.Stderr, "unknown action: %s\n", *action)
		os.Exit(1)
	}
}

func emit(asJSON bool, payload map[string]interface{}, line string) {
	if asJSON {
		json.NewEncoder(os.Stdout).Encode(payload)
		return
	}
	fmt.Println(line)
}

func agentStatus(db *sql.DB, agentID int64) (int64, string, error) {
	var lastActive int64
	var name string
	err := db.QueryRow(`SELECT name, last_active_ts FROM agents WHERE id = ?`, agentID).Scan(&name, &lastActive)
	if err != nil {
		return 0, "", err
	}
	return lastActive, name, nil
}

func activeReservationCount(db *sql.DB, projectID int64) (int, error) {
	now := time.Now().UnixMicro()
	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM file_reservations WHERE project_id = ? AND released_ts IS NULL AND expires_ts > ?`,
		projectID, now,
	).Scan(&count)
	return count, err
}
