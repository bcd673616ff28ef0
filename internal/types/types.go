// Package types holds the plain data-model structs shared across the
// coordination bus: projects, agents, messages, reservations, products,
// evidence entries and golden artifacts. Identifiers are monotonic int64;
// timestamps are int64 microseconds since the Unix epoch.
package types

import "time"

// Micros converts a time.Time to microseconds since the Unix epoch.
func Micros(t time.Time) int64 {
	return t.UnixMicro()
}

// Time converts microseconds since the Unix epoch back to a time.Time (UTC).
func Time(us int64) time.Time {
	return time.UnixMicro(us).UTC()
}

// AttachmentsPolicy controls whether an agent accepts message attachments.
type AttachmentsPolicy string

const (
	AttachmentsAuto  AttachmentsPolicy = "auto"
	AttachmentsAllow AttachmentsPolicy = "allow"
	AttachmentsDeny  AttachmentsPolicy = "deny"
)

// ContactPolicy controls who may open a new thread with an agent.
type ContactPolicy string

const (
	ContactOpen   ContactPolicy = "open"
	ContactOps    ContactPolicy = "ops"
	ContactClosed ContactPolicy = "closed"
)

// Importance is the message urgency band.
type Importance string

const (
	ImportanceUrgent Importance = "urgent"
	ImportanceHigh   Importance = "high"
	ImportanceNormal Importance = "normal"
	ImportanceLow    Importance = "low"
)

// RecipientKind distinguishes to/cc/bcc/broadcast recipients.
type RecipientKind string

const (
	RecipientTo        RecipientKind = "to"
	RecipientCC        RecipientKind = "cc"
	RecipientBCC       RecipientKind = "bcc"
	RecipientBroadcast RecipientKind = "broadcast"
)

// Project is immutable after creation; referenced by everything project-scoped.
type Project struct {
	ID        int64  `json:"id"`
	Slug      string `json:"slug"`
	HumanKey  string `json:"human_key"`
	CreatedAt int64  `json:"created_at"`
}

// Agent is a named participant within a project.
type Agent struct {
	ID                int64             `json:"id"`
	ProjectID         int64             `json:"project_id"`
	Name              string            `json:"name"`
	Program           string            `json:"program"`
	Model             string            `json:"model"`
	TaskDescription   string            `json:"task_description"`
	InceptionTS       int64             `json:"inception_ts"`
	LastActiveTS      int64             `json:"last_active_ts"`
	AttachmentsPolicy AttachmentsPolicy `json:"attachments_policy"`
	ContactPolicy     ContactPolicy     `json:"contact_policy"`
}

// Attachment is one element of a message's attachments array.
type Attachment struct {
	Type string                 `json:"type"`
	Path string                 `json:"path"`
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// Message is one piece of mail sent by an agent within a project.
type Message struct {
	ID          int64        `json:"id"`
	ProjectID   int64        `json:"project_id"`
	SenderID    int64        `json:"sender_id"`
	ThreadID    *int64       `json:"thread_id,omitempty"`
	Subject     string       `json:"subject"`
	BodyMD      string       `json:"body_md"`
	Importance  Importance   `json:"importance"`
	AckRequired bool         `json:"ack_required"`
	CreatedTS   int64        `json:"created_ts"`
	Attachments []Attachment `json:"attachments"`
}

// MessageRecipient links a message to a recipient agent. Invariant:
// AckTS set implies the message's AckRequired is true.
type MessageRecipient struct {
	MessageID int64         `json:"message_id"`
	AgentID   int64         `json:"agent_id"`
	Kind      RecipientKind `json:"kind"`
	ReadTS    *int64        `json:"read_ts,omitempty"`
	AckTS     *int64        `json:"ack_ts,omitempty"`
}

// FileReservation claims exclusive or shared access to a path pattern.
// Active iff ReleasedTS is nil and ExpiresTS is in the future.
type FileReservation struct {
	ID          int64  `json:"id"`
	ProjectID   int64  `json:"project_id"`
	AgentID     int64  `json:"agent_id"`
	PathPattern string `json:"path_pattern"`
	Exclusive   bool   `json:"exclusive"`
	Reason      string `json:"reason"`
	CreatedTS   int64  `json:"created_ts"`
	ExpiresTS   int64  `json:"expires_ts"`
	ReleasedTS  *int64 `json:"released_ts,omitempty"`
}

// Active reports whether the reservation currently holds, given now (micros).
func (r FileReservation) Active(nowMicros int64) bool {
	return r.ReleasedTS == nil && r.ExpiresTS > nowMicros
}

// Product is a cross-project grouping, feature-gated.
type Product struct {
	ID         int64  `json:"id"`
	ProductUID string `json:"product_uid"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"created_at"`
}

// ProductProject links a product to one of its member projects.
type ProductProject struct {
	ProductID int64 `json:"product_id"`
	ProjectID int64 `json:"project_id"`
}

// AgentLink associates an agent identity across projects within a product.
type AgentLink struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"product_id"`
	ProjectID int64 `json:"project_id"`
	AgentID   int64 `json:"agent_id"`
}

// EvidenceEntry is one record in the bounded evidence ring buffer.
type EvidenceEntry struct {
	DecisionPoint string                 `json:"decision_point"`
	Action        string                 `json:"action"`
	InputFeatures map[string]interface{} `json:"input_features"`
	Rationale     string                 `json:"rationale"`
	Confidence    float64                `json:"confidence"`
	PolicyVersion string                 `json:"policy_version"`
	TS            int64                  `json:"ts"`
}

// GoldenStream names which stream(s) a golden artifact captures.
type GoldenStream string

const (
	StreamStdout   GoldenStream = "stdout"
	StreamStderr   GoldenStream = "stderr"
	StreamCombined GoldenStream = "combined"
)

// GoldenArtifact is a captured, normalised command-output fixture.
type GoldenArtifact struct {
	Filename         string            `json:"filename"`
	Command          []string          `json:"command"`
	ExpectedExitCode int               `json:"expected_exit_code"`
	Stream           GoldenStream      `json:"stream"`
	Stdin            *string           `json:"stdin,omitempty"`
	Env              map[string]string `json:"env,omitempty"`
}
