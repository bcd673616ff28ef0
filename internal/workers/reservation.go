package workers

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/agentmail/bus/internal/git"
	"github.com/agentmail/bus/internal/store"
	"github.com/agentmail/bus/internal/types"
)

// ReservationCleanupConfig controls the file-reservation cleanup worker.
// Grounded on
// _examples/original_source/crates/mcp-agent-mail-server/src/cleanup.rs's
// Config fields (file_reservations_cleanup_interval_seconds,
// file_reservation_inactivity_seconds,
// file_reservation_activity_grace_seconds).
type ReservationCleanupConfig struct {
	Interval           time.Duration
	InactivityDuration time.Duration
	ActivityGrace      time.Duration
}

// DefaultReservationCleanupConfig mirrors the original's floor values
// (interval clamped to >= 5s in the source; inactivity 1800s, grace 900s
// are its documented defaults).
func DefaultReservationCleanupConfig() ReservationCleanupConfig {
	return ReservationCleanupConfig{
		Interval:           60 * time.Second,
		InactivityDuration: 30 * time.Minute,
		ActivityGrace:      15 * time.Minute,
	}
}

// RunReservationCleanup loops until ctx is cancelled, releasing expired
// reservations (phase 1) then stale ones (phase 2) across every project.
func RunReservationCleanup(ctx context.Context, st *store.Store, cfg ReservationCleanupConfig) {
	logger := newLogger("file-res-cleanup")
	interval := cfg.Interval
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	logger.Infof("started interval=%s", interval)

	for {
		select {
		case <-ctx.Done():
			logger.Infof("shutting down")
			return
		default:
		}

		scanned, released, err := runCleanupCycle(st, cfg)
		if err != nil {
			logger.Warnf("cleanup cycle failed: %v", err)
		} else if released > 0 {
			logger.Infof("projects_scanned=%d stale_released=%d", scanned, released)
		}

		if !SleepChunked(ctx, interval) {
			return
		}
	}
}

func runCleanupCycle(st *store.Store, cfg ReservationCleanupConfig) (int, int, error) {
	projectIDs, err := st.ListProjectIDs()
	if err != nil {
		return 0, 0, err
	}

	totalReleased := 0
	for _, pid := range projectIDs {
		expired, _ := st.ExpiredReservations(pid)
		for _, r := range expired {
			if err := st.ReleaseReservation(r.ID); err == nil {
				totalReleased++
			}
		}

		staleReleased := detectAndReleaseStale(st, cfg, pid)
		totalReleased += staleReleased
	}
	return len(projectIDs), totalReleased, nil
}

// detectAndReleaseStale releases reservations whose holder agent is
// inactive, has no recent mail activity, no recent filesystem activity
// on the matched path, and no recent git commits — mirroring cleanup.rs's
// four-way stale heuristic.
func detectAndReleaseStale(st *store.Store, cfg ReservationCleanupConfig, projectID int64) int {
	active, err := st.ActiveReservationsForProject(projectID)
	if err != nil || len(active) == 0 {
		return 0
	}

	project, err := st.GetProjectByID(projectID)
	if err != nil {
		return 0
	}

	now := types.Micros(time.Now())
	inactivityUs := cfg.InactivityDuration.Microseconds()
	graceUs := cfg.ActivityGrace.Microseconds()
	released := 0

	for _, r := range active {
		agent, err := st.GetAgentByID(r.AgentID)
		if err != nil {
			continue
		}
		if now-agent.LastActiveTS <= inactivityUs {
			continue // recently active
		}

		lastMail, err := st.AgentLastMailActivity(r.AgentID, projectID)
		if err == nil && lastMail != nil && now-*lastMail <= graceUs {
			continue // recent mail activity
		}

		if checkFilesystemActivity(project.HumanKey, r.PathPattern, now, graceUs) {
			continue
		}
		if checkGitActivity(project.HumanKey, r.PathPattern, now, graceUs) {
			continue
		}

		if err := st.ReleaseReservation(r.ID); err == nil {
			released++
		}
	}
	return released
}

// checkFilesystemActivity reports whether any file matching pattern
// under workspace has an mtime within graceUs of now.
func checkFilesystemActivity(workspace, pattern string, nowMicros, graceUs int64) bool {
	if workspace == "" {
		return false
	}
	full := filepath.Join(workspace, pattern)
	matches, err := filepath.Glob(full)
	if err != nil {
		return false
	}
	cutoff := time.UnixMicro(nowMicros).Add(-time.Duration(graceUs) * time.Microsecond)
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			return true
		}
	}
	return false
}

// checkGitActivity reports whether workspace's last commit touching
// pathPattern is within graceUs of now. Scoping the git log with
// pathPattern (rather than checking any commit in the repo) is what
// keeps this in sync with checkFilesystemActivity above: a commit to an
// unrelated file must not count as activity on this reservation's path.
func checkGitActivity(workspace, pathPattern string, nowMicros, graceUs int64) bool {
	if workspace == "" {
		return false
	}
	g := git.New(workspace)
	commitUnix, err := g.LastCommitTime(pathPattern)
	if err != nil || commitUnix == 0 {
		return false
	}
	commitMicros := commitUnix * 1_000_000
	return nowMicros-commitMicros <= graceUs
}
