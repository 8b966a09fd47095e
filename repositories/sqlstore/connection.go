package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/upb/arp-template-pdp/config"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

// Supported drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DB wraps the sql.DB connection pool
type DB struct {
	*sql.DB
	driver string
	logger *zap.Logger
}

// NewDB opens and verifies a connection pool for the audit store
func NewDB(cfg config.AuditConfig, logger *zap.Logger) (*DB, error) {
	driver := strings.ToLower(cfg.Driver)
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported audit driver: %q", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if driver == DriverSQLite {
		// SQLite allows a single writer
		db.SetMaxOpenConns(1)
	}

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("audit database connection established",
		zap.String("driver", driver),
		zap.String("connection", cfg.LogString()))

	return Wrap(db, driver, logger), nil
}

// Wrap adopts an already open pool
func Wrap(db *sql.DB, driver string, logger *zap.Logger) *DB {
	return &DB{
		DB:     db,
		driver: driver,
		logger: logger,
	}
}

// Driver returns the SQL dialect in use
func (db *DB) Driver() string {
	return db.driver
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("closing audit database connection")
	return db.DB.Close()
}

// HealthCheck performs a health check on the database
func (db *DB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("database query check failed: %w", err)
	}

	return nil
}

// Rebind rewrites ? placeholders into the driver's positional form
func (db *DB) Rebind(query string) string {
	if db.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InitSchema creates the decision audit table and its indexes
func (db *DB) InitSchema(ctx context.Context) error {
	idType, tsType := "UUID", "TIMESTAMPTZ"
	if db.driver == DriverSQLite {
		idType, tsType = "TEXT", "TIMESTAMP"
	}

	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS decision_audit_logs (
			id %s PRIMARY KEY,
			request_id TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			run_id TEXT,
			node_run_id TEXT,
			subject TEXT,
			decision VARCHAR(32) NOT NULL,
			reason_code VARCHAR(64) NOT NULL,
			message TEXT,
			policy_mode TEXT NOT NULL,
			latency_ms INTEGER NOT NULL DEFAULT 0,
			timestamp %s NOT NULL
		)`, idType, tsType),
		`CREATE INDEX IF NOT EXISTS idx_decision_audit_logs_timestamp ON decision_audit_logs(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_decision_audit_logs_action ON decision_audit_logs(action)`,
		`CREATE INDEX IF NOT EXISTS idx_decision_audit_logs_run_id ON decision_audit_logs(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize audit schema: %w", err)
		}
	}

	db.logger.Info("audit schema initialized", zap.String("driver", db.driver))
	return nil
}
