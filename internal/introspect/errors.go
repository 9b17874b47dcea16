// Package introspect implements the token introspection and access-control
// resolution engine: verified claims plus a requested resource id in,
// authorized context or a stable failure reason out.
package introspect

import (
	"errors"
	"fmt"
)

// Reason is a stable, enumerable failure code. The HTTP layer translates
// reasons to responses; the engine never deals in status codes.
type Reason string

// The failure taxonomy. Every member is terminal for the current request and
// none is fatal to the process.
const (
	ReasonInvalidSignature    Reason = "InvalidSignature"
	ReasonAudienceMismatch    Reason = "AudienceMismatch"
	ReasonIssuerMismatch      Reason = "IssuerMismatch"
	ReasonMalformedResourceID Reason = "MalformedResourceId"
	ReasonResourceNotFound    Reason = "ResourceNotFound"
	ReasonUpstreamUnavailable Reason = "UpstreamUnavailable"
	ReasonRoleNotPermitted    Reason = "RoleNotPermitted"
	ReasonIdentityMismatch    Reason = "IdentityMismatch"
	ReasonAccessDenied        Reason = "AccessDenied"
)

// Error carries a taxonomy reason and, optionally, the underlying cause.
type Error struct {
	Reason Reason
	cause  error
}

// NewError wraps cause under reason. A nil cause is allowed.
func NewError(reason Reason, cause error) *Error {
	return &Error{Reason: reason, cause: cause}
}

func (e *Error) Error() string {
	if e.cause == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.cause)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// ReasonOf extracts the taxonomy reason from err, or "" when err does not
// originate from the engine.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
