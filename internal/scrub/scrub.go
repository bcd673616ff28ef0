// Package scrub implements the snapshot scrubber: preset-driven
// redaction of secrets, ack state, recipients, reservations, agent
// links and attachments, producing a deterministic ScrubSummary.
// Grounded on _examples/original_source/crates/mcp-agent-mail-share/src/scrub.rs,
// which supplies the exact secret-pattern set, the attachment redact-key
// list, and the per-preset configuration table; the regex compilation
// style (compiled once, package-level) follows the teacher's use of
// precompiled regexes in internal/memory's query helpers.
package scrub

import (
	"regexp"
	"strings"

	"github.com/agentmail/bus/internal/types"
)

// Preset names a scrub profile.
type Preset string

const (
	PresetStandard Preset = "standard"
	PresetStrict   Preset = "strict"
	PresetArchive  Preset = "archive"
)

// redactedToken replaces every detected secret.
const redactedToken = "[REDACTED]"

// bodyPlaceholder replaces a message body under the strict preset.
const bodyPlaceholder = "[Message body redacted]"

// attachmentRedactKeys names attachment-metadata keys removed outright
// under any preset that scrubs secrets, regardless of value shape.
var attachmentRedactKeys = map[string]bool{
	"download_url":  true,
	"headers":       true,
	"authorization": true,
	"signed_url":    true,
	"bearer_token":  true,
}

// secretPatterns are compiled once at package init, taken verbatim (in
// intent) from the original Rust SECRET_PATTERNS table.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ghp_[A-Za-z0-9]{36,}`),
	regexp.MustCompile(`(?i)github_pat_[A-Za-z0-9_]{20,}`),
	regexp.MustCompile(`(?i)xox[baprs]-[A-Za-z0-9\-]{10,}`),
	regexp.MustCompile(`(?i)sk-[A-Za-z0-9]{20,}`),
	regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9_\-./+=]{16,}`),
	regexp.MustCompile(`(?i)https?://[^/\s:@]+:[^@\s/]+@`),
	regexp.MustCompile(`(?i)\$[A-Z_][A-Z0-9_]*(?:SECRET|TOKEN|KEY|PASSWORD)[A-Z0-9_]*`),
	regexp.MustCompile(`eyJ[0-9A-Za-z_-]+\.[0-9A-Za-z_-]+\.[0-9A-Za-z_-]+`),
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	regexp.MustCompile(`(?s)-----BEGIN[A-Z ]* PRIVATE KEY-----.*?-----END[A-Z ]* PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)sk-ant-[A-Za-z0-9\-]{20,}`),
	regexp.MustCompile(`glpat-[A-Za-z0-9\-_]{20,}`),
}

// ScrubText replaces every secret-pattern match in input with
// redactedToken and reports how many replacements were made. Idempotent:
// scrubbing the returned text again makes zero further replacements.
func ScrubText(input string) (string, int64) {
	result := input
	var count int64
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllStringFunc(result, func(string) string {
			count++
			return redactedToken
		})
	}
	return result, count
}

// normalizeRedactKey strips whitespace and NUL characters and lowercases
// key, matching the original's normalize_redact_key: "Download_URL" and
// " Headers " normalize to listed keys, while hyphens and underscores are
// kept as they are, so "DOWNLOAD-URL" and "download url" do not.
func normalizeRedactKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		if r == 0 || (r == ' ' || r == '\t' || r == '\n' || r == '\r') {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// presetConfig is the per-preset behavior table, taken from scrub.rs's
// preset_config.
type presetConfig struct {
	redactBody            bool
	dropAttachments       bool
	scrubSecrets          bool
	clearAckState         bool
	clearRecipients       bool
	clearFileReservations bool
	clearAgentLinks       bool
}

func configFor(preset Preset) presetConfig {
	switch preset {
	case PresetStrict:
		return presetConfig{
			redactBody: true, dropAttachments: true, scrubSecrets: true,
			clearAckState: true, clearRecipients: true, clearFileReservations: true, clearAgentLinks: true,
		}
	case PresetArchive:
		return presetConfig{}
	default: // standard
		return presetConfig{
			scrubSecrets: true, clearAckState: true, clearRecipients: true,
			clearFileReservations: true, clearAgentLinks: true,
		}
	}
}

// Summary is the deterministic outcome of applying a preset to a
// snapshot, per spec.md §4.10.
type Summary struct {
	Preset                  string `json:"preset"`
	PseudonymSalt           string `json:"pseudonym_salt"`
	AgentsTotal             int64  `json:"agents_total"`
	AgentsPseudonymized     int64  `json:"agents_pseudonymized"`
	AckFlagsCleared         int64  `json:"ack_flags_cleared"`
	RecipientsCleared       int64  `json:"recipients_cleared"`
	FileReservationsRemoved int64  `json:"file_reservations_removed"`
	AgentLinksRemoved       int64  `json:"agent_links_removed"`
	SecretsReplaced         int64  `json:"secrets_replaced"`
	AttachmentsSanitized    int64  `json:"attachments_sanitized"`
	BodiesRedacted          int64  `json:"bodies_redacted"`
	AttachmentsCleared      int64  `json:"attachments_cleared"`
}

// Snapshot is the offline-editable subset of bus state a scrub pass
// mutates in place. It mirrors the relational rows the original
// operated on (messages + attachments, recipients, reservations, agent
// links), decoupled from *store.Store so the scrubber can run against an
// exported snapshot without a live DB handle.
type Snapshot struct {
	Agents       []*types.Agent
	Messages     []*types.Message
	Recipients   []*types.MessageRecipient
	Reservations []*types.FileReservation
	AgentLinks   []types.AgentLink
}

// Apply runs preset's redaction rules over snap in place and returns a
// deterministic summary. Calling Apply twice with the same preset is a
// no-op on the second pass (scrub-twice = scrub-once).
func Apply(snap *Snapshot, preset Preset) Summary {
	cfg := configFor(preset)
	summary := Summary{Preset: string(preset), PseudonymSalt: string(preset), AgentsTotal: int64(len(snap.Agents))}

	if cfg.scrubSecrets {
		for _, m := range snap.Messages {
			scrubbedBody, n := ScrubText(m.BodyMD)
			m.BodyMD = scrubbedBody
			summary.SecretsReplaced += n

			scrubbedSubject, n2 := ScrubText(m.Subject)
			m.Subject = scrubbedSubject
			summary.SecretsReplaced += n2
		}
	}

	if cfg.redactBody {
		for _, m := range snap.Messages {
			if m.BodyMD != bodyPlaceholder {
				m.BodyMD = bodyPlaceholder
				summary.BodiesRedacted++
			}
		}
	}

	if cfg.dropAttachments {
		for _, m := range snap.Messages {
			if len(m.Attachments) > 0 {
				summary.AttachmentsCleared += int64(len(m.Attachments))
				m.Attachments = nil
			}
		}
	} else if cfg.scrubSecrets {
		for _, m := range snap.Messages {
			for i := range m.Attachments {
				removed := sanitizeAttachmentMeta(m.Attachments[i].Meta)
				summary.AttachmentsSanitized += removed
			}
		}
	}

	if cfg.clearAckState {
		for _, m := range snap.Messages {
			if m.AckRequired {
				m.AckRequired = false
			}
		}
		for _, r := range snap.Recipients {
			if r.AckTS != nil {
				r.AckTS = nil
				summary.AckFlagsCleared++
			}
		}
	}

	if cfg.clearRecipients {
		summary.RecipientsCleared = int64(len(snap.Recipients))
		snap.Recipients = nil
	}

	if cfg.clearFileReservations {
		summary.FileReservationsRemoved = int64(len(snap.Reservations))
		snap.Reservations = nil
	}

	if cfg.clearAgentLinks {
		summary.AgentLinksRemoved = int64(len(snap.AgentLinks))
		snap.AgentLinks = nil
	}

	return summary
}

// sanitizeAttachmentMeta removes keys from meta whose normalized name is
// in attachmentRedactKeys, returning the count of non-empty removals.
func sanitizeAttachmentMeta(meta map[string]interface{}) int64 {
	if meta == nil {
		return 0
	}
	var removed int64
	for k, v := range meta {
		if !attachmentRedactKeys[normalizeRedactKey(k)] {
			continue
		}
		if isNonEmpty(v) {
			removed++
		}
		delete(meta, k)
	}
	return removed
}

func isNonEmpty(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	default:
		return true
	}
}
