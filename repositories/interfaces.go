package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/upb/arp-template-pdp/models"
)

// DefaultListLimit is used when an AuditFilter carries no limit
const DefaultListLimit = 50

// MaxListLimit caps a single page of audit entries
const MaxListLimit = 500

// AuditFilter narrows a ListRecent query. Zero values match everything.
type AuditFilter struct {
	Action   string
	Decision models.PolicyDecisionOutcome
	RunID    string
	Since    time.Time
	Limit    int
	Offset   int
}

// PageLimit returns the effective page size
func (f AuditFilter) PageLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	}
	return f.Limit
}

// DecisionAuditRepository handles decision audit log persistence
type DecisionAuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.DecisionAuditLog) error

	// GetByID retrieves an audit log by ID
	GetByID(ctx context.Context, id uuid.UUID) (*models.DecisionAuditLog, error)

	// ListRecent returns entries newest first
	ListRecent(ctx context.Context, filter AuditFilter) ([]*models.DecisionAuditLog, error)

	// HealthCheck verifies the backing store is reachable
	HealthCheck(ctx context.Context) error
}
