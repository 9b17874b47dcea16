// Package auth provides bearer token verification for the GIS resource
// server. Signature and structural checks are delegated to the JWT library;
// audience and issuer are re-checked against the server configuration.
package auth

import "strings"

// Role classifies the token owner. Only consumer tokens may reach data
// endpoints in the current rule set; new roles become new authorization
// strategy variants.
type Role string

// RoleConsumer is the only role currently granted data access.
const RoleConsumer Role = "consumer"

// Claims are the verified fields carried by a bearer token. They are
// immutable once decoded and live for a single request.
type Claims struct {
	// Sub is the id of the token owner.
	Sub string

	// Iss is the token issuer. A token whose subject equals its issuer is a
	// service token and bypasses per-resource checks.
	Iss string

	// Aud is the intended audience (this resource server).
	Aud string

	// Exp is the expiry as epoch seconds.
	Exp int64

	// Role is the owner's role.
	Role Role

	// IID is the colon-delimited instance identifier; its second segment is
	// the caller's resource-scope id.
	IID string
}

// InstanceID returns the caller's resource-scope id, the second
// colon-delimited segment of the iid claim, or "" when absent.
func (c *Claims) InstanceID() string {
	parts := strings.SplitN(c.IID, ":", 3)
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// IsServiceToken reports whether the token is self-issued (subject equals
// issuer), which classifies every resource as open for this request.
func (c *Claims) IsServiceToken() bool {
	return c.Sub == c.Iss
}
