// Package errs defines the typed error-kind taxonomy used across the bus
// so that the RPC glue in internal/rpcproto can map any error returned by
// the coordination engine to a stable {error_code, message, retryable,
// details} envelope without inspecting error strings.
package errs

import "errors"

// Kind is the taxonomy of error categories a coordination-engine call can
// fail with. It deliberately names kinds, not specific error values.
type Kind int

const (
	KindValidation Kind = iota
	KindNotFound
	KindConflict
	KindFeatureDisabled
	KindBackpressure
	KindScrubParseError
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindFeatureDisabled:
		return "feature_disabled"
	case KindBackpressure:
		return "backpressure"
	case KindScrubParseError:
		return "scrub_parse_error"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// typed wraps an underlying error with a Kind and optional structured details.
type typed struct {
	kind    Kind
	msg     string
	details map[string]interface{}
	cause   error
}

func (e *typed) Error() string {
	if e.cause != nil {
		return e.msg + ": " + e.cause.Error()
	}
	return e.msg
}

func (e *typed) Unwrap() error { return e.cause }

// New builds a typed error of the given kind with a message.
func New(kind Kind, msg string) error {
	return &typed{kind: kind, msg: msg}
}

// WithDetails is like New but also carries structured details for the RPC envelope.
func WithDetails(kind Kind, msg string, details map[string]interface{}) error {
	return &typed{kind: kind, msg: msg, details: details}
}

// Wrap attaches a kind to an existing error, preserving it as the cause.
func Wrap(kind Kind, msg string, cause error) error {
	return &typed{kind: kind, msg: msg, cause: cause}
}

// KindOf extracts the Kind from err, defaulting to KindInternal when err does
// not carry one (including nil, which callers should avoid passing).
func KindOf(err error) Kind {
	var t *typed
	if errors.As(err, &t) {
		return t.kind
	}
	return KindInternal
}

// Details extracts structured details from err, or nil if none are set.
func Details(err error) map[string]interface{} {
	var t *typed
	if errors.As(err, &t) {
		return t.details
	}
	return nil
}

// Is reports whether err (or something it wraps) carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

var (
	ErrNotFound         = New(KindNotFound, "not found")
	ErrFeatureDisabled  = New(KindFeatureDisabled, "feature disabled")
	ErrLockOrderViolation = New(KindInternal, "lock order violation")
)
