package workers

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentmail/bus/internal/types"
)

// runGit runs a git command against dir, failing the test on error.
func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %v: %v: %s", args, err, out)
	}
}

func TestRunCleanupCycleReleasesExpiredReservations(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.CreateProject("p1", "/p1")
	a, _ := s.CreateAgent(types.Agent{ProjectID: p.ID, Name: "A", Program: "x", Model: "y"})

	now := types.Micros(time.Now())
	_, err := s.CreateReservation(types.FileReservation{
		ProjectID: p.ID, AgentID: a.ID, PathPattern: "src/**", ExpiresTS: now - 1_000_000, CreatedTS: now - 2_000_000,
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	cfg := DefaultReservationCleanupConfig()
	scanned, released, err := runCleanupCycle(s, cfg)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if scanned != 1 || released != 1 {
		t.Fatalf("expected 1 scanned and 1 released, got scanned=%d released=%d", scanned, released)
	}

	active, err := s.ActiveReservationsForProject(p.ID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("expected no active reservations after release")
	}
}

func TestRunCleanupCycleKeepsActiveAgentReservations(t *testing.T) {
	s := newTestStore(t)
	p, _ := s.CreateProject("p1", "/p1")
	a, _ := s.CreateAgent(types.Agent{ProjectID: p.ID, Name: "A", Program: "x", Model: "y"})

	now := types.Micros(time.Now())
	_, err := s.CreateReservation(types.FileReservation{
		ProjectID: p.ID, AgentID: a.ID, PathPattern: "src/**", ExpiresTS: now + 1_000_000_000, CreatedTS: now,
	})
	if err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	cfg := DefaultReservationCleanupConfig()
	_, released, err := runCleanupCycle(s, cfg)
	if err != nil {
		t.Fatalf("run cycle: %v", err)
	}
	if released != 0 {
		t.Fatalf("expected 0 released for a recently active agent, got %d", released)
	}
}

func TestDetectAndReleaseStaleReleasesInactiveAgentReservation(t *testing.T) {
	s := newTestStore(t)
	p, err := s.CreateProject("p1", t.TempDir())
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	longAgo := types.Micros(time.Now().Add(-2 * time.Hour))
	stale, err := s.CreateAgent(types.Agent{
		ProjectID: p.ID, Name: "Stale", Program: "x", Model: "y",
		InceptionTS: longAgo, LastActiveTS: longAgo,
	})
	if err != nil {
		t.Fatalf("create stale agent: %v", err)
	}
	now := types.Micros(time.Now())
	if _, err := s.CreateReservation(types.FileReservation{
		ProjectID: p.ID, AgentID: stale.ID, PathPattern: "nonexistent/**", ExpiresTS: now + 1_000_000_000, CreatedTS: longAgo,
	}); err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	cfg := ReservationCleanupConfig{
		Interval:           time.Minute,
		InactivityDuration: 30 * time.Minute,
		ActivityGrace:      15 * time.Minute,
	}
	released := detectAndReleaseStale(s, cfg, p.ID)
	if released != 1 {
		t.Fatalf("expected 1 stale reservation released, got %d", released)
	}
}

// TestDetectAndReleaseStaleIgnoresUnrelatedGitActivity is the regression
// case for checkGitActivity scoping its git log by the reservation's own
// path_pattern: a recent commit that only touches an unrelated file must
// not be mistaken for activity on the reserved path, per spec.md §4.8.
func TestDetectAndReleaseStaleIgnoresUnrelatedGitActivity(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	workspace := t.TempDir()
	runGit(t, workspace, "init")
	runGit(t, workspace, "config", "user.email", "test@test.com")
	runGit(t, workspace, "config", "user.name", "Test")

	if err := os.MkdirAll(filepath.Join(workspace, "unrelated"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(workspace, "unrelated", "other.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	runGit(t, workspace, "add", "unrelated/other.txt")
	// Commit timestamped at "now" via GIT_AUTHOR/COMMITTER_DATE so it
	// unambiguously falls inside the activity grace window below.
	cmd := exec.Command("git", "commit", "-m", "touch unrelated file")
	cmd.Dir = workspace
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_DATE="+time.Now().Format(time.RFC3339),
		"GIT_COMMITTER_DATE="+time.Now().Format(time.RFC3339),
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git commit: %v: %s", err, out)
	}

	s := newTestStore(t)
	p, err := s.CreateProject("p1", workspace)
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	longAgo := types.Micros(time.Now().Add(-2 * time.Hour))
	stale, err := s.CreateAgent(types.Agent{
		ProjectID: p.ID, Name: "Stale", Program: "x", Model: "y",
		InceptionTS: longAgo, LastActiveTS: longAgo,
	})
	if err != nil {
		t.Fatalf("create stale agent: %v", err)
	}
	now := types.Micros(time.Now())
	if _, err := s.CreateReservation(types.FileReservation{
		ProjectID: p.ID, AgentID: stale.ID, PathPattern: "reserved/claim.txt", ExpiresTS: now + 1_000_000_000, CreatedTS: longAgo,
	}); err != nil {
		t.Fatalf("create reservation: %v", err)
	}

	cfg := ReservationCleanupConfig{
		Interval:           time.Minute,
		InactivityDuration: 30 * time.Minute,
		ActivityGrace:      15 * time.Minute,
	}
	released := detectAndReleaseStale(s, cfg, p.ID)
	if released != 1 {
		t.Fatalf("expected the reservation to be released despite the unrelated commit, got released=%d", released)
	}
}
