// Package config implements the envfile format used to persist operator
// preferences and small runtime flags: lines of KEY=VALUE, updated in
// place with atomic replacement and order preserved where possible.
// Grounded on the teacher's debounced-save idiom
// (internal/persistence/store.go's scheduleSave pattern), generalized
// from "debounce one JSON blob" to "debounce a KEY=VALUE file" and
// adapted for the operator TUI's layout/accessibility persistence
// (spec.md §4.9) instead of session JSON.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ReadEnvfile parses a KEY=VALUE envfile. Blank lines and lines starting
// with '#' are ignored. Returns an empty map (not an error) if the file
// does not exist.
func ReadEnvfile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		eq := strings.IndexByte(trimmed, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(trimmed[:eq])
		val := strings.TrimSpace(trimmed[eq+1:])
		out[key] = val
	}
	return out, scanner.Err()
}

// WriteEnvfile replaces path atomically (write to temp + rename) with
// the given key/value pairs, writing keys in the order given by keys to
// preserve ordering across updates; any map key not present in keys is
// appended afterwards in map iteration order.
func WriteEnvfile(path string, values map[string]string, order []string) error {
	var b strings.Builder
	seen := make(map[string]bool, len(order))
	for _, k := range order {
		v, ok := values[k]
		if !ok {
			continue
		}
		seen[k] = true
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	for k, v := range values {
		if seen[k] {
			continue
		}
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".envfile-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

// SetKey updates a single key in the envfile at path, preserving the
// existing keys' relative order and appending new keys at the end.
func SetKey(path, key, value string) error {
	existing, err := ReadEnvfile(path)
	if err != nil {
		return err
	}
	order, err := keyOrder(path)
	if err != nil {
		return err
	}
	if _, ok := existing[key]; !ok {
		order = append(order, key)
	}
	existing[key] = value
	return WriteEnvfile(path, existing, order)
}

func keyOrder(path string) ([]string, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var order []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		trimmed := strings.TrimSpace(scanner.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		eq := strings.IndexByte(trimmed, '=')
		if eq < 0 {
			continue
		}
		order = append(order, strings.TrimSpace(trimmed[:eq]))
	}
	return order, scanner.Err()
}

// DebouncedWriter coalesces many SetKey-style writes into at most one
// file write per MinInterval, skipping the write entirely when the
// pending values are unchanged from what was last flushed. Grounded on
// the teacher's scheduleSave debounce timer.
type DebouncedWriter struct {
	mu           sync.Mutex
	path         string
	minInterval  time.Duration
	lastFlush    time.Time
	lastWritten  map[string]string
	pending      map[string]string
	order        []string
	timer        *time.Timer
}

// NewDebouncedWriter builds a writer that batches writes to path no more
// often than minInterval (spec.md §4.9 requires >= 2s).
func NewDebouncedWriter(path string, minInterval time.Duration) *DebouncedWriter {
	return &DebouncedWriter{path: path, minInterval: minInterval, pending: map[string]string{}}
}

// Set stages a key/value update and schedules a flush if one isn't
// already pending. Returns immediately; writes happen asynchronously.
func (d *DebouncedWriter) Set(key, value string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pending[key]; !ok {
		d.order = append(d.order, key)
	}
	d.pending[key] = value
	if d.timer != nil {
		return
	}
	delay := d.minInterval - time.Since(d.lastFlush)
	if delay < 0 {
		delay = 0
	}
	d.timer = time.AfterFunc(delay, d.flush)
}

func (d *DebouncedWriter) flush() {
	d.mu.Lock()
	d.timer = nil
	if d.unchangedLocked() {
		d.mu.Unlock()
		return
	}
	values := make(map[string]string, len(d.pending))
	for k, v := range d.pending {
		values[k] = v
	}
	order := append([]string(nil), d.order...)
	d.lastWritten = values
	d.lastFlush = time.Now()
	d.mu.Unlock()

	_ = WriteEnvfile(d.path, values, order)
}

func (d *DebouncedWriter) unchangedLocked() bool {
	if len(d.pending) != len(d.lastWritten) {
		return false
	}
	for k, v := range d.pending {
		if d.lastWritten[k] != v {
			return false
		}
	}
	return true
}

// Flush forces an immediate synchronous write, bypassing the debounce
// timer (used on shutdown to avoid losing the last staged update).
func (d *DebouncedWriter) Flush() error {
	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	values := make(map[string]string, len(d.pending))
	for k, v := range d.pending {
		values[k] = v
	}
	order := append([]string(nil), d.order...)
	d.lastWritten = values
	d.lastFlush = time.Now()
	d.mu.Unlock()
	return WriteEnvfile(d.path, values, order)
}
