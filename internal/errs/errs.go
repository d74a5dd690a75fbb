package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the user should see it.
type Kind uint8

const (
	KindNone Kind = iota
	KindValidation
	KindProtocol
	KindConnectivity
	KindIntegrity
)

var kindNames = map[Kind]string{
	KindNone:         "",
	KindValidation:   "validation",
	KindProtocol:     "protocol",
	KindConnectivity: "connectivity",
	KindIntegrity:    "integrity",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Codes shared across packages.
const (
	CodeNoReveals          = "no_reveals"
	CodeInsufficientFunds  = "insufficient_funds"
	CodeInvalidWager       = "invalid_wager"
	CodeInvalidConfig      = "invalid_configuration"
	CodeInvalidCell        = "invalid_cell"
	CodeCellRevealed       = "cell_already_revealed"
	CodeWrongState         = "wrong_state"
	CodeInFlight           = "intent_in_flight"
	CodeRateLimited        = "rate_limited"
	CodeStaleSession       = "stale_session"
	CodeDuplicateMismatch  = "duplicate_mismatch"
	CodeNonMonotonic       = "non_monotonic"
	CodeRevealedMismatch   = "revealed_mismatch"
	CodeSessionEnded       = "session_ended"
	CodeTerminal           = "terminal_state"
	CodeServerRejected     = "server_rejected"
	CodeUnexpectedEvent    = "unexpected_event"
	CodeTimeout            = "timeout"
	CodeNotConnected       = "not_connected"
	CodeCommitmentMismatch = "commitment_mismatch"
	CodeLayoutInvalid      = "hazard_layout_invalid"
	CodeMissingSeed        = "missing_seed"
	CodeNotFound           = "not_found"
	CodeStickyNotice       = "sticky_notice"
	CodeUnknownPreset      = "unknown_preset"
)

// E is the error type carried through the session core.
type E struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error
}

func (e *E) Error() string {
	base := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Code != "" {
		base = fmt.Sprintf("%s [%s]: %s", e.Kind, e.Code, e.Message)
	}
	if e.Cause != nil {
		base += fmt.Sprintf(" (cause: %v)", e.Cause)
	}
	return base
}

// Unwrap lets errors.Is / errors.As see the cause.
func (e *E) Unwrap() error { return e.Cause }

// Is matches another *E by kind and code, so sentinel values work with errors.Is.
func (e *E) Is(target error) bool {
	t, ok := target.(*E)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
}

func New(kind Kind, code, msg string) *E {
	return &E{Kind: kind, Code: code, Message: msg}
}

func Validation(code, msg string) *E   { return New(KindValidation, code, msg) }
func Protocol(code, msg string) *E     { return New(KindProtocol, code, msg) }
func Connectivity(code, msg string) *E { return New(KindConnectivity, code, msg) }
func Integrity(code, msg string) *E    { return New(KindIntegrity, code, msg) }

// Protocolf formats the message.
func Protocolf(code, format string, args ...any) *E {
	return New(KindProtocol, code, fmt.Sprintf(format, args...))
}

// Validationf formats the message.
func Validationf(code, format string, args ...any) *E {
	return New(KindValidation, code, fmt.Sprintf(format, args...))
}

// Wrap attaches a cause.
func (e *E) Wrap(cause error) *E {
	cp := *e
	cp.Cause = cause
	return &cp
}

// KindOf returns the kind of the first *E in err's chain, or KindNone.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindNone
}

// CodeOf returns the code of the first *E in err's chain.
func CodeOf(err error) string {
	var e *E
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
