// Package e3errors defines the typed error kinds surfaced by the client.
//
// Every operation that can fail against the remote service or against a
// malformed envelope returns one of these kinds wrapped around the
// underlying cause, so callers can branch with errors.Is/errors.As without
// parsing strings.
package e3errors

import "fmt"

// Kind identifies the category of failure.
type Kind string

const (
	ConfigInvalid           Kind = "config_invalid"
	TransportError          Kind = "transport_error"
	AuthFailure             Kind = "auth_failure"
	NoAccess                Kind = "no_access"
	Conflict                Kind = "conflict"
	MalformedEnvelope       Kind = "malformed_envelope"
	DecryptionFailure       Kind = "decryption_failure"
	SignatureInvalid        Kind = "signature_invalid"
	SignatureUnavailable    Kind = "signature_unavailable"
	EmailLookupUnsupported  Kind = "email_lookup_unsupported"
	RegistrationFailed      Kind = "registration_failed"
)

// Error is the concrete error type returned by every exported operation
// that can fail for a reason this package names.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "Client.Write"
	Err  error  // wrapped cause, may be nil
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, e3errors.New(e3errors.Conflict, "", nil)) or, more
// idiomatically, use Kind for comparison via AsKind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New builds an *Error. err may be nil for conditions with no underlying
// cause (e.g. a missing required field).
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// AsKind reports whether err (or something it wraps) is an *Error of kind k.
func AsKind(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Kind == k
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
