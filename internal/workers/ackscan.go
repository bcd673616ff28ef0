package workers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentmail/bus/internal/store"
	"github.com/agentmail/bus/internal/types"
)

// EscalationMode names how an overdue ack is escalated.
type EscalationMode string

const (
	EscalationLog             EscalationMode = "log"
	EscalationFileReservation EscalationMode = "file_reservation"
)

// AckTTLConfig controls the ACK-TTL scan worker, grounded on
// _examples/original_source/crates/mcp-agent-mail-server/src/ack_ttl.rs's
// Config fields.
type AckTTLConfig struct {
	ScanInterval        time.Duration
	TTL                 time.Duration
	EscalationEnabled   bool
	EscalationMode      EscalationMode
	EscalationHolder    string // empty => recipient is the holder
	EscalationExclusive bool
	EscalationTTL       time.Duration
}

// DefaultAckTTLConfig mirrors the original's documented defaults.
func DefaultAckTTLConfig() AckTTLConfig {
	return AckTTLConfig{
		ScanInterval:  30 * time.Second,
		TTL:           30 * time.Minute,
		EscalationMode: EscalationLog,
		EscalationTTL: time.Hour,
	}
}

// Notifier is notified when an ack escalation occurs; implementations
// may surface a desktop toast (see notify.go).
type Notifier interface {
	NotifyAckEscalation(agentName, pattern string)
}

// RunAckTTLScan loops until ctx is cancelled, scanning for overdue
// ack_required messages and escalating them per cfg.
func RunAckTTLScan(ctx context.Context, st *store.Store, cfg AckTTLConfig, notifier Notifier) {
	logger := newLogger("ack-ttl-scan")
	interval := cfg.ScanInterval
	if interval < 5*time.Second {
		interval = 5 * time.Second
	}
	logger.Infof("started interval=%s ttl=%s escalation_enabled=%v escalation_mode=%s", interval, cfg.TTL, cfg.EscalationEnabled, cfg.EscalationMode)

	for {
		select {
		case <-ctx.Done():
			logger.Infof("shutting down")
			return
		default:
		}

		scanned, overdue, err := runAckTTLCycle(st, cfg, notifier, logger)
		if err != nil {
			logger.Warnf("scan cycle failed: %v", err)
		} else if overdue > 0 {
			logger.Infof("scanned=%d overdue=%d", scanned, overdue)
		}

		if !SleepChunked(ctx, interval) {
			return
		}
	}
}

// runAckTTLCycle scans once and returns (scanned, overdue).
//
// Uses the >= boundary: a message exactly TTL old is already overdue,
// matching UnacknowledgedOverdue's semantics.
func runAckTTLCycle(st *store.Store, cfg AckTTLConfig, notifier Notifier, logger *namedLogger) (int, int, error) {
	now := types.Micros(time.Now())
	ttlUs := cfg.TTL.Microseconds()

	rows, err := st.UnacknowledgedOverdue(now, 0)
	if err != nil {
		return 0, 0, err
	}

	overdue := 0
	for _, row := range rows {
		if now-row.Message.CreatedTS < ttlUs {
			continue
		}
		overdue++
		ageSeconds := (now - row.Message.CreatedTS) / 1_000_000
		logger.Warnf("ack_overdue message_id=%d project_id=%d agent_id=%d age_s=%d ttl_s=%d",
			row.Message.ID, row.Message.ProjectID, row.RecipientAgentID, ageSeconds, int64(cfg.TTL.Seconds()))

		if cfg.EscalationEnabled {
			escalate(st, cfg, row, logger, notifier)
		}
	}
	return len(rows), overdue, nil
}

// escalate creates a file reservation over the overdue message's
// recipient inbox path when EscalationMode is file_reservation; "log"
// and any unrecognized mode are no-ops (logging already happened above).
// Mirrors ack_ttl.rs's escalate, including its case-insensitive mode
// match and wildcard-holder fallback.
func escalate(st *store.Store, cfg AckTTLConfig, row store.UnackedRow, logger *namedLogger, notifier Notifier) {
	mode := strings.ToLower(string(cfg.EscalationMode))
	if mode != string(EscalationFileReservation) {
		return
	}

	recipientName := "*"
	if agent, err := st.GetAgentByID(row.RecipientAgentID); err == nil {
		recipientName = agent.Name
	}

	ts := types.Time(row.Message.CreatedTS)
	pattern := fmt.Sprintf("agents/%s/inbox/%s/%s/*.md", recipientName, ts.Format("2006"), ts.Format("01"))

	holderAgentID := row.RecipientAgentID
	holderName := recipientName
	if cfg.EscalationHolder != "" {
		if agent, err := st.GetAgentByName(row.Message.ProjectID, cfg.EscalationHolder); err == nil {
			holderAgentID = agent.ID
			holderName = agent.Name
		} else if created, err := st.CreateAgent(types.Agent{
			ProjectID:     row.Message.ProjectID,
			Name:          cfg.EscalationHolder,
			Program:       "system",
			Model:         "ops-escalation",
			ContactPolicy: types.ContactOps,
		}); err == nil {
			holderAgentID = created.ID
			holderName = created.Name
		}
	}

	ttlSeconds := int64(cfg.EscalationTTL.Seconds())
	if ttlSeconds <= 0 {
		ttlSeconds = 3600
	}
	expiresTS := types.Micros(time.Now()) + ttlSeconds*1_000_000

	reservation, err := st.CreateReservation(types.FileReservation{
		ProjectID:   row.Message.ProjectID,
		AgentID:     holderAgentID,
		PathPattern: pattern,
		Exclusive:   cfg.EscalationExclusive,
		Reason:      "ack-overdue",
		ExpiresTS:   expiresTS,
	})
	if err != nil {
		// Conflict from an overlapping exclusive reservation is expected
		// under contention; never crash the worker over it.
		return
	}

	logger.Infof("ack_escalation message_id=%d project_id=%d holder_agent_id=%d pattern=%s reservation_id=%d",
		row.Message.ID, row.Message.ProjectID, holderAgentID, pattern, reservation.ID)

	if notifier != nil {
		notifier.NotifyAckEscalation(holderName, pattern)
	}
}
