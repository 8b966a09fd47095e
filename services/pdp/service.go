package pdp

import (
	"context"
	"strings"
	"time"

	"github.com/upb/arp-template-pdp/config"
	"github.com/upb/arp-template-pdp/internal/observability"
	"github.com/upb/arp-template-pdp/internal/version"
	"github.com/upb/arp-template-pdp/middleware"
	"github.com/upb/arp-template-pdp/models"
	"github.com/upb/arp-template-pdp/services"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// PDP is the policy decision surface served over HTTP and the CLI
type PDP interface {
	Health(ctx context.Context) models.Health
	Version(ctx context.Context) models.VersionInfo
	DecidePolicy(ctx context.Context, req models.PolicyDecisionRequest) (models.PolicyDecision, error)
}

// Auditor receives one entry per decision. Implementations must not block.
type Auditor interface {
	Record(entry *models.DecisionAuditLog) error
}

// Service implements PDP over an Evaluator
type Service struct {
	evaluator *Evaluator
	identity  config.ServiceConfig
	logger    *zap.Logger
	metrics   *observability.DecisionMetrics
	tracer    trace.Tracer
	auditor   Auditor
	now       func() time.Time
}

// Option configures a Service
type Option func(*Service)

// WithMetrics records decision counters and latencies
func WithMetrics(m *observability.DecisionMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor submits every successful decision to the given Auditor
func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithClock overrides the time source used for health timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new policy decision service
func NewService(evaluator *Evaluator, identity config.ServiceConfig, logger *zap.Logger, opts ...Option) *Service {
	if identity.Name == "" {
		identity.Name = "arp-template-pdp"
	}
	if identity.Version == "" {
		identity.Version = version.Version
	}

	s := &Service{
		evaluator: evaluator,
		identity:  identity,
		logger:    logger,
		tracer:    observability.Tracer(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Health reports liveness of the decision surface
func (s *Service) Health(_ context.Context) models.Health {
	return models.Health{
		Status: models.StatusOK,
		Time:   s.now().UTC(),
	}
}

// Version reports service identity and supported API versions
func (s *Service) Version(_ context.Context) models.VersionInfo {
	info := models.VersionInfo{
		ServiceName:          s.identity.Name,
		ServiceVersion:       s.identity.Version,
		SupportedAPIVersions: append([]string(nil), models.SupportedAPIVersions...),
	}
	if version.Commit != "" {
		info.Build = map[string]string{"commit": version.Commit}
	}
	return info
}

// DecidePolicy evaluates a single decision request
func (s *Service) DecidePolicy(ctx context.Context, req models.PolicyDecisionRequest) (models.PolicyDecision, error) {
	if strings.TrimSpace(req.Action) == "" {
		return models.PolicyDecision{}, services.ErrMissingAction
	}

	mode := s.evaluator.Mode()
	requestID := middleware.GetRequestIDFromContext(ctx)

	ctx, span := s.tracer.Start(ctx, "pdp.DecidePolicy", trace.WithAttributes(
		attribute.String("arp.action", req.Action),
		attribute.String("arp.policy.mode", mode),
	))

	start := time.Now()
	decision, err := s.evaluator.Decide(ctx, req.Action)
	elapsed := time.Since(start)

	if err != nil {
		errType := string(services.GetErrorType(err))
		if errType == "" {
			errType = string(services.ErrorTypeInternal)
		}
		s.metrics.RecordError(ctx, mode, errType)
		observability.EndSpan(span, err)

		s.logger.Error("policy evaluation failed",
			zap.String("request_id", requestID),
			zap.String("action", req.Action),
			zap.String("mode", mode),
			zap.String("error_type", errType),
			zap.Error(err))
		return models.PolicyDecision{}, err
	}

	span.SetAttributes(
		attribute.String("arp.decision", string(decision.Decision)),
		attribute.String("arp.reason_code", decision.ReasonCode),
	)
	observability.EndSpan(span, nil)

	s.metrics.RecordDecision(ctx, observability.DecisionLabels{
		Mode:       mode,
		Outcome:    string(decision.Decision),
		ReasonCode: decision.ReasonCode,
	}, elapsed)

	s.logger.Debug("policy decision",
		zap.String("request_id", requestID),
		zap.String("action", req.Action),
		zap.String("decision", string(decision.Decision)),
		zap.String("reason_code", decision.ReasonCode),
		zap.Duration("latency", elapsed))

	s.audit(ctx, req, decision, mode, requestID, elapsed)

	return decision, nil
}

// audit never affects the decision; failures are logged and dropped
func (s *Service) audit(ctx context.Context, req models.PolicyDecisionRequest, decision models.PolicyDecision, mode, requestID string, elapsed time.Duration) {
	if s.auditor == nil {
		return
	}

	subject := ""
	if claims := middleware.GetClaimsFromContext(ctx); claims != nil {
		subject = claims.Sub
	}

	entry := models.NewDecisionAuditLog(req, decision, mode).
		WithRequest(requestID, subject).
		WithLatency(elapsed)

	if err := s.auditor.Record(entry); err != nil {
		s.logger.Warn("failed to submit decision audit entry",
			zap.String("request_id", requestID),
			zap.Error(err))
	}
}
