// Package inmemory provides map-backed implementations of the service
// boundaries, used by tests and single-node deployments without an external
// database.
package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/datumgrid/gis-resource-server/internal/service"
)

// Database is an in-memory service.Database.
type Database struct {
	mu      sync.RWMutex
	records map[string]service.ServerInfo
}

var _ service.Database = (*Database)(nil)

// NewDatabase creates an empty in-memory database.
func NewDatabase() *Database {
	return &Database{records: make(map[string]service.ServerInfo)}
}

// SearchQuery returns the server info stored for resourceID.
func (d *Database) SearchQuery(_ context.Context, resourceID string) ([]service.ServerInfo, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	info, ok := d.records[resourceID]
	if !ok {
		return nil, service.ErrNotFound
	}
	return []service.ServerInfo{info}, nil
}

// InsertAdminDetails stores metadata for a new resource.
func (d *Database) InsertAdminDetails(_ context.Context, info service.ServerInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.records[info.ResourceID]; ok {
		return fmt.Errorf("resource already exists: %s", info.ResourceID)
	}
	d.records[info.ResourceID] = info
	return nil
}

// UpdateAdminDetails replaces metadata for an existing resource.
func (d *Database) UpdateAdminDetails(_ context.Context, info service.ServerInfo) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.records[info.ResourceID]; !ok {
		return service.ErrNotFound
	}
	d.records[info.ResourceID] = info
	return nil
}

// DeleteAdminDetails removes metadata for a resource.
func (d *Database) DeleteAdminDetails(_ context.Context, resourceID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.records[resourceID]; !ok {
		return service.ErrNotFound
	}
	delete(d.records, resourceID)
	return nil
}

// Metering is an in-memory service.Metering that retains written records.
type Metering struct {
	mu      sync.Mutex
	records []service.AuditRecord
}

var _ service.Metering = (*Metering)(nil)

// NewMetering creates an empty in-memory metering sink.
func NewMetering() *Metering {
	return &Metering{}
}

// WriteAudit appends the record.
func (m *Metering) WriteAudit(_ context.Context, record service.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

// Records returns a copy of everything written so far.
func (m *Metering) Records() []service.AuditRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]service.AuditRecord, len(m.records))
	copy(out, m.records)
	return out
}
