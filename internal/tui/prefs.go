package tui

import (
	"encoding/json"
	"os"
	"strconv"
	"time"

	"github.com/agentmail/bus/internal/config"
	"github.com/agentmail/bus/internal/errs"
)

// DockPosition names where the detail panel docks in the dashboard layout.
type DockPosition string

const (
	DockRight  DockPosition = "right"
	DockBottom DockPosition = "bottom"
	DockHidden DockPosition = "hidden"
)

// Layout holds the persisted panel layout. Ratio is the fraction (0,1]
// of the terminal given to the primary pane.
type Layout struct {
	Dock    DockPosition `json:"dock"`
	Ratio   float64      `json:"ratio"`
	Visible bool         `json:"visible"`
}

// Accessibility holds persisted accessibility toggles.
type Accessibility struct {
	HighContrast bool `json:"high_contrast"`
	KeyHints     bool `json:"key_hints"`
}

// Preferences is the full set of operator-TUI settings persisted across
// sessions, grounded on spec.md §4.9 ("layout + accessibility persisted
// ... debounced writer ... import/export to a side-car JSON file").
type Preferences struct {
	Layout        Layout        `json:"layout"`
	Accessibility Accessibility `json:"accessibility"`
}

// DefaultPreferences mirrors the defaults a first-run operator sees.
func DefaultPreferences() Preferences {
	return Preferences{
		Layout:        Layout{Dock: DockRight, Ratio: 0.3, Visible: true},
		Accessibility: Accessibility{HighContrast: false, KeyHints: true},
	}
}

const (
	keyDock         = "TUI_DOCK"
	keyRatio        = "TUI_RATIO"
	keyVisible      = "TUI_VISIBLE"
	keyHighContrast = "TUI_HIGH_CONTRAST"
	keyKeyHints     = "TUI_KEY_HINTS"
)

var envfileKeyOrder = []string{keyDock, keyRatio, keyVisible, keyHighContrast, keyKeyHints}

// Store persists Preferences to a per-user envfile through a debounced
// writer (spec.md requires >= 2s between writes, skip when unchanged),
// built on internal/config.DebouncedWriter.
type Store struct {
	writer *config.DebouncedWriter
	path   string
}

// NewStore builds a preferences Store backed by the envfile at path,
// debouncing writes to at most one per minInterval (must be >= 2s per
// spec.md; callers should pass 2*time.Second or more).
func NewStore(path string, minInterval time.Duration) *Store {
	if minInterval < 2*time.Second {
		minInterval = 2 * time.Second
	}
	return &Store{writer: config.NewDebouncedWriter(path, minInterval), path: path}
}

// Load reads current preferences from the envfile, defaulting any field
// missing from a legacy file (spec.md §4.9: "legacy files missing a
// field default that field").
func (s *Store) Load() (Preferences, error) {
	values, err := config.ReadEnvfile(s.path)
	if err != nil {
		return Preferences{}, err
	}
	p := DefaultPreferences()
	if v, ok := values[keyDock]; ok {
		d := DockPosition(v)
		if d != DockRight && d != DockBottom && d != DockHidden {
			return Preferences{}, errs.New(errs.KindValidation, "invalid dock value: "+v)
		}
		p.Layout.Dock = d
	}
	if v, ok := values[keyRatio]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 || f > 1 {
			return Preferences{}, errs.New(errs.KindValidation, "invalid ratio value: "+v)
		}
		p.Layout.Ratio = f
	}
	if v, ok := values[keyVisible]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Preferences{}, errs.New(errs.KindValidation, "invalid visible value: "+v)
		}
		p.Layout.Visible = b
	}
	if v, ok := values[keyHighContrast]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Preferences{}, errs.New(errs.KindValidation, "invalid high_contrast value: "+v)
		}
		p.Accessibility.HighContrast = b
	}
	if v, ok := values[keyKeyHints]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Preferences{}, errs.New(errs.KindValidation, "invalid key_hints value: "+v)
		}
		p.Accessibility.KeyHints = b
	}
	return p, nil
}

// Save stages every field of p with the debounced writer; the actual
// file write happens asynchronously, coalesced with any other pending
// update, no sooner than minInterval after the previous flush.
func (s *Store) Save(p Preferences) {
	s.writer.Set(keyDock, string(p.Layout.Dock))
	s.writer.Set(keyRatio, strconv.FormatFloat(p.Layout.Ratio, 'f', -1, 64))
	s.writer.Set(keyVisible, strconv.FormatBool(p.Layout.Visible))
	s.writer.Set(keyHighContrast, strconv.FormatBool(p.Accessibility.HighContrast))
	s.writer.Set(keyKeyHints, strconv.FormatBool(p.Accessibility.KeyHints))
}

// Flush forces any pending debounced write out immediately; callers
// invoke this on shutdown so the last staged update isn't lost.
func (s *Store) Flush() error {
	return s.writer.Flush()
}

// ExportJSON writes Preferences as human-editable, pretty-printed JSON
// to a side-car file (spec.md §6 "layout.json").
func ExportJSON(path string, p Preferences) error {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// sidecarDoc mirrors Preferences but with every field optional, so
// ImportJSON can detect a missing required field versus an ignorable
// unknown one and apply spec.md §6's "missing optional field = default"
// rule field-by-field rather than relying on json.Unmarshal's zero
// values (which would be indistinguishable from an explicit zero).
type sidecarDoc struct {
	Layout *struct {
		Dock    *string  `json:"dock"`
		Ratio   *float64 `json:"ratio"`
		Visible *bool    `json:"visible"`
	} `json:"layout"`
	Accessibility *struct {
		HighContrast *bool `json:"high_contrast"`
		KeyHints     *bool `json:"key_hints"`
	} `json:"accessibility"`
}

// ImportJSON reads a side-car layout.json, unknown fields ignored,
// missing optional fields defaulted, and a missing Layout block treated
// as a parse error since layout is the side-car's required section.
func ImportJSON(path string) (Preferences, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Preferences{}, err
	}
	var doc sidecarDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return Preferences{}, errs.Wrap(errs.KindScrubParseError, "malformed layout.json", err)
	}
	if doc.Layout == nil {
		return Preferences{}, errs.New(errs.KindScrubParseError, "layout.json missing required \"layout\" section")
	}

	p := DefaultPreferences()
	if doc.Layout.Dock != nil {
		d := DockPosition(*doc.Layout.Dock)
		if d != DockRight && d != DockBottom && d != DockHidden {
			return Preferences{}, errs.New(errs.KindValidation, "invalid dock value: "+*doc.Layout.Dock)
		}
		p.Layout.Dock = d
	}
	if doc.Layout.Ratio != nil {
		if *doc.Layout.Ratio <= 0 || *doc.Layout.Ratio > 1 {
			return Preferences{}, errs.New(errs.KindValidation, "ratio out of range (0,1]")
		}
		p.Layout.Ratio = *doc.Layout.Ratio
	}
	if doc.Layout.Visible != nil {
		p.Layout.Visible = *doc.Layout.Visible
	}
	if doc.Accessibility != nil {
		if doc.Accessibility.HighContrast != nil {
			p.Accessibility.HighContrast = *doc.Accessibility.HighContrast
		}
		if doc.Accessibility.KeyHints != nil {
			p.Accessibility.KeyHints = *doc.Accessibility.KeyHints
		}
	}
	return p, nil
}
