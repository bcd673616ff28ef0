// Package bootstrap2 wires the bus's process singletons — the store,
// the read cache, the write-back queue, the evidence ledger, the
// metrics registry, the lock-order registry, and the background
// workers — into a single init/shutdown pair used by cmd/busmcpd.
// cmd/busctl does not use it; it opens the store and builds its TUI
// pieces directly. Named bootstrap2 to keep it distinct from the
// teacher's internal/bootstrap package, which is not part of this
// repository.
//
// Grounded on the teacher's cmd/cliaimonitor/main.go construction order
// (load config -> open store -> build components -> start server ->
// install signal handling) and internal/agents/config.go's
// gopkg.in/yaml.v3 loader for the static parts of configuration.
package bootstrap2

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentmail/bus/internal/workers"
)

// Config is the bus's static runtime configuration, loaded from a YAML
// file. LoadConfig reads no environment variables; the feature gate and
// the CLI mode are read from the environment by internal/product and
// internal/cliapp themselves.
type Config struct {
	DBPath      string `yaml:"db_path"`
	ArchiveRoot string `yaml:"archive_root"`
	HTTPAddr    string `yaml:"http_addr"`
	DiagAddr    string `yaml:"diag_addr"`

	WBQCapacity          int    `yaml:"wbq_capacity"`
	DiskCriticalFreeMB   uint64 `yaml:"disk_critical_free_mb"`
	EvidenceLedgerSize   int    `yaml:"evidence_ledger_size"`

	ReservationCleanupIntervalS    int `yaml:"reservation_cleanup_interval_s"`
	ReservationInactivityS         int `yaml:"reservation_inactivity_s"`
	ReservationActivityGraceS      int `yaml:"reservation_activity_grace_s"`

	AckTTLScanIntervalS   int    `yaml:"ack_ttl_scan_interval_s"`
	AckTTLSeconds         int    `yaml:"ack_ttl_seconds"`
	AckEscalationEnabled  bool   `yaml:"ack_escalation_enabled"`
	AckEscalationMode     string `yaml:"ack_escalation_mode"`
	AckEscalationHolder   string `yaml:"ack_escalation_holder"`
	AckEscalationTTLS     int    `yaml:"ack_escalation_ttl_s"`
}

// DefaultConfig returns the bus's out-of-the-box settings, grounded on
// spec.md §4.8's documented interval/threshold floors.
func DefaultConfig() Config {
	return Config{
		DBPath:      "data/bus.db",
		ArchiveRoot: "data/archive",
		HTTPAddr:    ":7890",
		DiagAddr:    ":7891",

		WBQCapacity:        4096,
		DiskCriticalFreeMB: 256,
		EvidenceLedgerSize: 4096,

		ReservationCleanupIntervalS: 60,
		ReservationInactivityS:      1800,
		ReservationActivityGraceS:   900,

		AckTTLScanIntervalS:  30,
		AckTTLSeconds:        1800,
		AckEscalationEnabled: false,
		AckEscalationMode:    string(workers.EscalationLog),
		AckEscalationTTLS:    3600,
	}
}

// LoadConfig reads a YAML config file at path, falling back to
// DefaultConfig entirely when path does not exist (a fresh deployment
// has no config file yet).
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) reservationCleanup() workers.ReservationCleanupConfig {
	return workers.ReservationCleanupConfig{
		Interval:           time.Duration(c.ReservationCleanupIntervalS) * time.Second,
		InactivityDuration: time.Duration(c.ReservationInactivityS) * time.Second,
		ActivityGrace:      time.Duration(c.ReservationActivityGraceS) * time.Second,
	}
}

func (c Config) ackTTL() workers.AckTTLConfig {
	return workers.AckTTLConfig{
		ScanInterval:        time.Duration(c.AckTTLScanIntervalS) * time.Second,
		TTL:                 time.Duration(c.AckTTLSeconds) * time.Second,
		EscalationEnabled:   c.AckEscalationEnabled,
		EscalationMode:      workers.EscalationMode(c.AckEscalationMode),
		EscalationHolder:    c.AckEscalationHolder,
		EscalationExclusive: true,
		EscalationTTL:       time.Duration(c.AckEscalationTTLS) * time.Second,
	}
}
