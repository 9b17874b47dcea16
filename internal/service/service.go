// Package service defines the collaborator boundaries of the introspection
// engine: the database that executes entity queries and holds admin server
// metadata, and the metering sink that records successful data access.
package service

import (
	"context"
	"errors"
)

// ErrNotFound indicates the queried resource has no stored records.
var ErrNotFound = errors.New("no records found for resource")

// ServerInfo is the admin-managed GIS server metadata attached to a
// resource.
type ServerInfo struct {
	ResourceID string `json:"id"`
	ServerURL  string `json:"server-url"`
	ServerPort int    `json:"server-port"`
	Secure     bool   `json:"isSecure"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
}

// AuditRecord is written after every successful data query.
type AuditRecord struct {
	UserID     string `json:"userid"`
	ResourceID string `json:"id"`
	Endpoint   string `json:"api"`
}

// Database executes entity search queries and the admin CRUD operations.
// Implementations own their error mapping; the API layer only distinguishes
// ErrNotFound.
type Database interface {
	// SearchQuery returns the server info records for a resource id.
	SearchQuery(ctx context.Context, resourceID string) ([]ServerInfo, error)

	// InsertAdminDetails stores metadata for a new resource.
	InsertAdminDetails(ctx context.Context, info ServerInfo) error

	// UpdateAdminDetails replaces metadata for an existing resource.
	UpdateAdminDetails(ctx context.Context, info ServerInfo) error

	// DeleteAdminDetails removes metadata for a resource.
	DeleteAdminDetails(ctx context.Context, resourceID string) error
}

// Metering records audit entries for successful data access. Failures are
// logged by callers and never surfaced to the client.
type Metering interface {
	WriteAudit(ctx context.Context, record AuditRecord) error
}
