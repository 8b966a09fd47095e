package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/arp-template-pdp/models"
	"github.com/upb/arp-template-pdp/repositories"
	"github.com/upb/arp-template-pdp/services"
	"go.uber.org/zap"
)

const auditColumns = `id, request_id, action, run_id, node_run_id, subject,
		       decision, reason_code, message, policy_mode, latency_ms, timestamp`

// AuditRepository implements repositories.DecisionAuditRepository
type AuditRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

var _ repositories.DecisionAuditRepository = (*AuditRepository)(nil)

// Insert inserts a new audit log entry
func (r *AuditRepository) Insert(ctx context.Context, log *models.DecisionAuditLog) error {
	query := r.db.Rebind(`
		INSERT INTO decision_audit_logs (` + auditColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	_, err := r.db.ExecContext(ctx, query,
		log.ID.String(),
		log.RequestID,
		log.Action,
		log.RunID,
		log.NodeRunID,
		log.Subject,
		string(log.Decision),
		log.ReasonCode,
		log.Message,
		log.PolicyMode,
		log.LatencyMs,
		log.Timestamp,
	)
	if err != nil {
		return services.ErrDatabaseError.Wrap(fmt.Errorf("insert audit log: %w", err))
	}

	r.logger.Debug("audit log inserted",
		zap.String("id", log.ID.String()),
		zap.String("decision", string(log.Decision)))
	return nil
}

// GetByID retrieves an audit log by ID
func (r *AuditRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.DecisionAuditLog, error) {
	query := r.db.Rebind(`SELECT ` + auditColumns + ` FROM decision_audit_logs WHERE id = ?`)

	log, err := scanAuditLog(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.ErrAuditEntryNotFound.WithDetail("id", id.String())
		}
		return nil, services.ErrDatabaseError.Wrap(fmt.Errorf("get audit log: %w", err))
	}
	return log, nil
}

// ListRecent returns entries matching filter, newest first
func (r *AuditRepository) ListRecent(ctx context.Context, filter repositories.AuditFilter) ([]*models.DecisionAuditLog, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Action != "" {
		where = append(where, "action = ?")
		args = append(args, filter.Action)
	}
	if filter.Decision != "" {
		where = append(where, "decision = ?")
		args = append(args, string(filter.Decision))
	}
	if filter.RunID != "" {
		where = append(where, "run_id = ?")
		args = append(args, filter.RunID)
	}
	if !filter.Since.IsZero() {
		where = append(where, "timestamp >= ?")
		args = append(args, filter.Since)
	}

	query := `SELECT ` + auditColumns + ` FROM decision_audit_logs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, filter.PageLimit(), max(filter.Offset, 0))

	rows, err := r.db.QueryContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return nil, services.ErrDatabaseError.Wrap(fmt.Errorf("list audit logs: %w", err))
	}
	defer rows.Close()

	var logs []*models.DecisionAuditLog
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, services.ErrDatabaseError.Wrap(fmt.Errorf("scan audit log: %w", err))
		}
		logs = append(logs, log)
	}
	if err := rows.Err(); err != nil {
		return nil, services.ErrDatabaseError.Wrap(fmt.Errorf("iterate audit logs: %w", err))
	}

	return logs, nil
}

// HealthCheck verifies the audit database is reachable
func (r *AuditRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAuditLog(row rowScanner) (*models.DecisionAuditLog, error) {
	var (
		log      models.DecisionAuditLog
		id       string
		decision string
	)
	err := row.Scan(
		&id,
		&log.RequestID,
		&log.Action,
		&log.RunID,
		&log.NodeRunID,
		&log.Subject,
		&decision,
		&log.ReasonCode,
		&log.Message,
		&log.PolicyMode,
		&log.LatencyMs,
		&log.Timestamp,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid audit id %q: %w", id, err)
	}
	log.ID = parsed
	log.Decision = models.PolicyDecisionOutcome(decision)
	log.Timestamp = log.Timestamp.UTC()
	return &log, nil
}
