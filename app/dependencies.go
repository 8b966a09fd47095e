package app

import (
	"context"
	"fmt"
	"time"

	"github.com/upb/arp-template-pdp/auth"
	"github.com/upb/arp-template-pdp/config"
	"github.com/upb/arp-template-pdp/internal/observability"
	"github.com/upb/arp-template-pdp/middleware"
	"github.com/upb/arp-template-pdp/repositories"
	"github.com/upb/arp-template-pdp/repositories/sqlstore"
	"github.com/upb/arp-template-pdp/services/audit"
	"github.com/upb/arp-template-pdp/services/pdp"
	"go.uber.org/zap"
)

// auditStopTimeout bounds how long Close waits for queued audit entries
const auditStopTimeout = 10 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Decisions
	Evaluator *pdp.Evaluator
	Metrics   *observability.DecisionMetrics
	PDP       *pdp.Service

	// Audit trail; nil when AUDIT_ENABLED=false
	AuditDB   *sqlstore.DB
	AuditRepo repositories.DecisionAuditRepository
	Audit     *audit.AuditService

	// Auth; nil when ARP_AUTH_MODE=disabled
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:    cfg,
		Logger:    logger,
		Evaluator: pdp.NewEvaluator(cfg.Policy),
	}

	metrics, err := observability.NewDecisionMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	deps.Metrics = metrics

	if err := deps.initAudit(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize audit: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		_ = deps.closeAudit()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	opts := []pdp.Option{pdp.WithMetrics(deps.Metrics)}
	if deps.Audit != nil {
		opts = append(opts, pdp.WithAuditor(deps.Audit))
	}
	deps.PDP = pdp.NewService(deps.Evaluator, cfg.Service, logger, opts...)

	logger.Info("all dependencies initialized successfully",
		zap.String("policy_mode", deps.Evaluator.Mode()),
		zap.Bool("auth_required", cfg.Auth.Enabled()),
		zap.Bool("audit_enabled", cfg.Audit.Enabled))
	return deps, nil
}

// initAudit opens the audit store, ensures its schema and starts the workers
func (d *Dependencies) initAudit(ctx context.Context, cfg *config.Config) error {
	if !cfg.Audit.Enabled {
		d.Logger.Info("decision audit trail disabled")
		return nil
	}

	db, err := sqlstore.NewDB(cfg.Audit, d.Logger)
	if err != nil {
		return err
	}

	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize audit schema: %w", err)
	}

	repo := sqlstore.NewAuditRepository(db, d.Logger)
	service := audit.NewAuditService(repo, d.Logger, audit.Config{
		BufferSize:  cfg.Audit.BufferSize,
		WorkerCount: cfg.Audit.WorkerCount,
	})
	if err := service.Start(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to start audit service: %w", err)
	}

	d.AuditDB = db
	d.AuditRepo = repo
	d.Audit = service
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	if !cfg.Auth.Enabled() {
		d.Logger.Warn("bearer auth disabled, decide endpoint is public")
		return nil
	}

	validator, err := auth.NewHMACValidator(auth.Config{
		Secret:   cfg.Auth.HMACSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   30 * time.Second,
	})
	if err != nil {
		return err
	}

	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("bearer auth enabled",
		zap.String("issuer", cfg.Auth.Issuer),
		zap.String("required_scope", cfg.Auth.RequiredScope))
	return nil
}

func (d *Dependencies) closeAudit() error {
	var errs []error

	if d.Audit != nil {
		if err := d.Audit.Stop(auditStopTimeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
		d.Audit = nil
	}

	if d.AuditDB != nil {
		if err := d.AuditDB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close audit database: %w", err))
		} else {
			d.Logger.Info("audit database connection closed")
		}
		d.AuditDB = nil
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during audit shutdown: %v", errs)
	}
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	err := d.closeAudit()

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return err
}
