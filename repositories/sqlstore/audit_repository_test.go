package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/arp-template-pdp/config"
	"github.com/upb/arp-template-pdp/models"
	"github.com/upb/arp-template-pdp/repositories"
	"github.com/upb/arp-template-pdp/services"
	"go.uber.org/zap"
)

var auditRowColumns = []string{
	"id", "request_id", "action", "run_id", "node_run_id", "subject",
	"decision", "reason_code", "message", "policy_mode", "latency_ms", "timestamp",
}

func sampleLog() *models.DecisionAuditLog {
	req := models.PolicyDecisionRequest{Action: "db.drop", RunID: "run-1"}
	decision := models.NewPolicyDecision(models.OutcomeDeny, models.ReasonDenyAction, "db.drop")
	return models.NewDecisionAuditLog(req, decision, "file").
		WithRequest("req-1", "orchestrator").
		WithLatency(3 * time.Millisecond)
}

func TestAuditRepository_Insert(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		db, mock := newMockDB(t, DriverPostgres)
		repo := NewAuditRepository(db, zap.NewNop())
		log := sampleLog()

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO decision_audit_logs")).
			WithArgs(log.ID.String(), "req-1", "db.drop", "run-1", nil, "orchestrator",
				"deny", "deny_action", "db.drop", "file", 3, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		require.NoError(t, repo.Insert(context.Background(), log))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error", func(t *testing.T) {
		db, mock := newMockDB(t, DriverPostgres)
		repo := NewAuditRepository(db, zap.NewNop())

		mock.ExpectExec("INSERT INTO decision_audit_logs").WillReturnError(errors.New("connection reset"))

		err := repo.Insert(context.Background(), sampleLog())
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrDatabaseError)
		assert.True(t, services.IsInternalError(err))
	})
}

func TestAuditRepository_GetByID(t *testing.T) {
	id := uuid.New()
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		db, mock := newMockDB(t, DriverPostgres)
		repo := NewAuditRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("FROM decision_audit_logs WHERE id = $1")).
			WithArgs(id.String()).
			WillReturnRows(sqlmock.NewRows(auditRowColumns).
				AddRow(id.String(), "req-1", "deploy", nil, nil, nil,
					"require_approval", "require_approval_action", "deploy", "file", 1, ts))

		log, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, log.ID)
		assert.Equal(t, models.OutcomeRequireApproval, log.Decision)
		assert.Nil(t, log.RunID)
		require.NotNil(t, log.Message)
		assert.Equal(t, "deploy", *log.Message)
		assert.Equal(t, ts, log.Timestamp)
	})

	t.Run("not found", func(t *testing.T) {
		db, mock := newMockDB(t, DriverPostgres)
		repo := NewAuditRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM decision_audit_logs").WillReturnRows(sqlmock.NewRows(auditRowColumns))

		_, err := repo.GetByID(context.Background(), id)
		require.Error(t, err)
		assert.True(t, services.IsNotFoundError(err))
		assert.Equal(t, id.String(), services.GetErrorDetails(err)["id"])
	})

	t.Run("query error", func(t *testing.T) {
		db, mock := newMockDB(t, DriverPostgres)
		repo := NewAuditRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM decision_audit_logs").WillReturnError(errors.New("timeout"))

		_, err := repo.GetByID(context.Background(), id)
		assert.ErrorIs(t, err, services.ErrDatabaseError)
	})
}

func TestAuditRepository_ListRecent(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("filters are bound in order", func(t *testing.T) {
		db, mock := newMockDB(t, DriverPostgres)
		repo := NewAuditRepository(db, zap.NewNop())
		since := ts.Add(-time.Hour)

		mock.ExpectQuery(regexp.QuoteMeta("WHERE action = $1 AND decision = $2 AND timestamp >= $3 ORDER BY timestamp DESC LIMIT $4 OFFSET $5")).
			WithArgs("deploy", "deny", since, 10, 20).
			WillReturnRows(sqlmock.NewRows(auditRowColumns).
				AddRow(uuid.NewString(), "r1", "deploy", "run-1", nil, "svc", "deny", "deny_action", "deploy", "file", 0, ts).
				AddRow(uuid.NewString(), "r2", "deploy", nil, nil, nil, "deny", "deny_action", "deploy", "file", 2, ts.Add(-time.Minute)))

		logs, err := repo.ListRecent(context.Background(), repositories.AuditFilter{
			Action:   "deploy",
			Decision: models.OutcomeDeny,
			Since:    since,
			Limit:    10,
			Offset:   20,
		})
		require.NoError(t, err)
		require.Len(t, logs, 2)
		assert.Equal(t, "r1", logs[0].RequestID)
		require.NotNil(t, logs[0].Subject)
		assert.Equal(t, "svc", *logs[0].Subject)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("defaults without filters", func(t *testing.T) {
		db, mock := newMockDB(t, DriverPostgres)
		repo := NewAuditRepository(db, zap.NewNop())

		mock.ExpectQuery(regexp.QuoteMeta("FROM decision_audit_logs ORDER BY timestamp DESC LIMIT $1 OFFSET $2")).
			WithArgs(repositories.DefaultListLimit, 0).
			WillReturnRows(sqlmock.NewRows(auditRowColumns))

		logs, err := repo.ListRecent(context.Background(), repositories.AuditFilter{Offset: -5})
		require.NoError(t, err)
		assert.Empty(t, logs)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("bad id in row", func(t *testing.T) {
		db, mock := newMockDB(t, DriverPostgres)
		repo := NewAuditRepository(db, zap.NewNop())

		mock.ExpectQuery("FROM decision_audit_logs").
			WillReturnRows(sqlmock.NewRows(auditRowColumns).
				AddRow("not-a-uuid", "r1", "a", nil, nil, nil, "allow", "allow_all", nil, "allow_all", 0, ts))

		_, err := repo.ListRecent(context.Background(), repositories.AuditFilter{})
		assert.ErrorIs(t, err, services.ErrDatabaseError)
	})
}

func TestAuditRepository_SQLiteRoundTrip(t *testing.T) {
	db, err := NewDB(config.AuditConfig{
		Driver:      DriverSQLite,
		DatabaseURL: filepath.Join(t.TempDir(), "audit.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.InitSchema(context.Background()))

	repo := NewAuditRepository(db, zap.NewNop())
	ctx := context.Background()

	older := sampleLog()
	older.Timestamp = time.Now().UTC().Add(-time.Minute).Truncate(time.Millisecond)
	newer := models.NewDecisionAuditLog(
		models.PolicyDecisionRequest{Action: "run.start"},
		models.NewPolicyDecision(models.OutcomeAllow, models.ReasonAllowAll, ""),
		"allow_all")
	newer.Timestamp = newer.Timestamp.Truncate(time.Millisecond)

	require.NoError(t, repo.Insert(ctx, older))
	require.NoError(t, repo.Insert(ctx, newer))

	got, err := repo.GetByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Equal(t, older.Action, got.Action)
	assert.Equal(t, older.Decision, got.Decision)
	assert.Equal(t, *older.RunID, *got.RunID)
	assert.Nil(t, got.NodeRunID)
	assert.True(t, older.Timestamp.Equal(got.Timestamp))

	all, err := repo.ListRecent(ctx, repositories.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, newer.ID, all[0].ID)

	denied, err := repo.ListRecent(ctx, repositories.AuditFilter{Decision: models.OutcomeDeny})
	require.NoError(t, err)
	require.Len(t, denied, 1)
	assert.Equal(t, older.ID, denied[0].ID)

	_, err = repo.GetByID(ctx, uuid.New())
	assert.True(t, services.IsNotFoundError(err))

	assert.NoError(t, repo.HealthCheck(ctx))
}
