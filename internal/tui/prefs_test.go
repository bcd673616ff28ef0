package tui

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPreferencesEnvfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.env")
	store := NewStore(path, 2*time.Second)

	p := Preferences{
		Layout:        Layout{Dock: DockBottom, Ratio: 0.45, Visible: false},
		Accessibility: Accessibility{HighContrast: true, KeyHints: false},
	}
	store.Save(p)
	if err := store.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != p {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, p)
	}
}

func TestPreferencesLegacyFileMissingFieldDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.env")
	store := NewStore(path, 2*time.Second)

	store.writer.Set(keyDock, string(DockBottom))
	if err := store.writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := DefaultPreferences()
	want.Layout.Dock = DockBottom
	if got != want {
		t.Fatalf("legacy load mismatch: got %+v, want %+v", got, want)
	}
}

func TestPreferencesInvalidFieldRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prefs.env")
	store := NewStore(path, 2*time.Second)
	store.writer.Set(keyRatio, "not-a-float")
	if err := store.writer.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if _, err := store.Load(); err == nil {
		t.Fatal("expected invalid ratio to be rejected")
	}
}

func TestPreferencesJSONSidecarRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.json")
	p := Preferences{
		Layout:        Layout{Dock: DockHidden, Ratio: 0.2, Visible: true},
		Accessibility: Accessibility{HighContrast: true, KeyHints: true},
	}
	if err := ExportJSON(path, p); err != nil {
		t.Fatalf("export: %v", err)
	}
	got, err := ImportJSON(path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if got != p {
		t.Fatalf("sidecar round-trip mismatch: got %+v, want %+v", got, p)
	}
}

func TestPreferencesJSONSidecarUnknownFieldsIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.json")
	raw := `{"layout":{"dock":"right","ratio":0.3,"visible":true},"unknown_field":"whatever"}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	p, err := ImportJSON(path)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if p.Layout.Dock != DockRight {
		t.Fatalf("unexpected dock: %v", p.Layout.Dock)
	}
}

func TestPreferencesJSONSidecarMissingLayoutIsParseError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layout.json")
	if err := os.WriteFile(path, []byte(`{"accessibility":{"key_hints":true}}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ImportJSON(path); err == nil {
		t.Fatal("expected missing layout section to be a parse error")
	}
}
