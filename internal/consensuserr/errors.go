// Package consensuserr defines the typed error taxonomy surfaced on
// Result.Error at the Submit boundary (spec §7). Leaf-level transient
// failures (a single evidence-source timeout, one model-tier error) are
// recovered locally by the components that see them and never become a
// consensuserr.Error; only outcomes that cross the Submit boundary are.
package consensuserr

import "fmt"

// Kind enumerates the recognized error categories from spec §7.
type Kind string

const (
	// InputInvalid marks an empty/overlong claim or an unsupported hint.
	InputInvalid Kind = "INPUT_INVALID"
	// NoCapableAgent marks a registry query that returned no matching agents.
	NoCapableAgent Kind = "NO_CAPABLE_AGENT"
	// Overloaded marks a pool whose bounded work queue is full.
	Overloaded Kind = "OVERLOADED"
	// EvidenceShortage marks a bundle with overall_quality below 0.1. Not
	// treated as an error by the pool manager (a degraded UNCERTAIN verdict
	// is produced instead); the Kind exists so components can log/tag it
	// consistently.
	EvidenceShortage Kind = "EVIDENCE_SHORTAGE"
	// ModelUnavailable marks exhaustion of every model tier.
	ModelUnavailable Kind = "MODEL_UNAVAILABLE"
	// PartialTimeout marks a multi/adversarial run where at least ⌈K/2⌉
	// agents responded before the deadline. Not an error on its own.
	PartialTimeout Kind = "PARTIAL_TIMEOUT"
	// Incomplete marks a multi/adversarial run where fewer than ⌈K/2⌉
	// agents responded before the deadline.
	Incomplete Kind = "INCOMPLETE"
	// Cancelled marks a request cancelled by the caller.
	Cancelled Kind = "CANCELLED"
	// Internal marks an unexpected invariant violation.
	Internal Kind = "INTERNAL"
)

// Error is the typed error returned across the Submit boundary. It wraps an
// optional underlying cause so callers can still use errors.Is/errors.As
// against it.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// New constructs an Error of the given kind with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs an Error of the given kind wrapping cause.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is a consensuserr.Error with the same Kind,
// supporting errors.Is(err, consensuserr.New(consensuserr.Overloaded, "")).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf extracts the Kind from err if it is (or wraps) a *Error, returning
// Internal and false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if as(err, &e) {
		return e.Kind, true
	}
	return Internal, false
}

// as walks err's single-error Unwrap chain looking for a *Error, without
// using the errors package; unlike errors.As it does not follow
// Unwrap() []error trees or call As methods.
func as(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
