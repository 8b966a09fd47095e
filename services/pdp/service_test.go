package pdp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/arp-template-pdp/config"
	"github.com/upb/arp-template-pdp/internal/observability"
	"github.com/upb/arp-template-pdp/middleware"
	"github.com/upb/arp-template-pdp/models"
	"github.com/upb/arp-template-pdp/services"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"
)

// MockAuditor is a mock implementation of Auditor
type MockAuditor struct {
	mock.Mock
}

func (m *MockAuditor) Record(entry *models.DecisionAuditLog) error {
	args := m.Called(entry)
	return args.Error(0)
}

func newTestService(t *testing.T, cfg config.PolicyConfig, opts ...Option) *Service {
	t.Helper()
	metrics, err := observability.NewDecisionMetrics(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)
	opts = append([]Option{WithMetrics(metrics)}, opts...)
	return NewService(NewEvaluator(cfg), config.ServiceConfig{Name: "pdp-test", Version: "1.2.3"}, zap.NewNop(), opts...)
}

func TestService_Health(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	svc := newTestService(t, config.PolicyConfig{}, WithClock(func() time.Time { return fixed }))

	health := svc.Health(context.Background())
	assert.Equal(t, models.StatusOK, health.Status)
	assert.Equal(t, fixed.UTC(), health.Time)
	assert.Equal(t, time.UTC, health.Time.Location())
}

func TestService_Version(t *testing.T) {
	svc := newTestService(t, config.PolicyConfig{})

	info := svc.Version(context.Background())
	assert.Equal(t, "pdp-test", info.ServiceName)
	assert.Equal(t, "1.2.3", info.ServiceVersion)
	assert.Equal(t, []string{"v1"}, info.SupportedAPIVersions)

	info.SupportedAPIVersions[0] = "mutated"
	assert.Equal(t, []string{"v1"}, models.SupportedAPIVersions)
}

func TestService_VersionDefaults(t *testing.T) {
	svc := NewService(NewEvaluator(config.PolicyConfig{}), config.ServiceConfig{}, zap.NewNop())

	info := svc.Version(context.Background())
	assert.Equal(t, "arp-template-pdp", info.ServiceName)
	assert.NotEmpty(t, info.ServiceVersion)
}

func TestService_DecidePolicy(t *testing.T) {
	t.Run("allow all by default", func(t *testing.T) {
		svc := newTestService(t, config.PolicyConfig{})

		decision, err := svc.DecidePolicy(context.Background(), models.PolicyDecisionRequest{Action: "run.start"})
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeAllow, decision.Decision)
		assert.Equal(t, models.ReasonAllowAll, decision.ReasonCode)
	})

	t.Run("blank action rejected", func(t *testing.T) {
		svc := newTestService(t, config.PolicyConfig{})

		_, err := svc.DecidePolicy(context.Background(), models.PolicyDecisionRequest{Action: "  "})
		require.Error(t, err)
		assert.ErrorIs(t, err, services.ErrMissingAction)
		assert.True(t, services.IsValidationError(err))
	})

	t.Run("data format error surfaces", func(t *testing.T) {
		path := writePolicy(t, "policy.json", `"nope"`)
		svc := newTestService(t, config.PolicyConfig{Mode: "file", Path: path})

		_, err := svc.DecidePolicy(context.Background(), models.PolicyDecisionRequest{Action: "x"})
		require.Error(t, err)
		assert.True(t, services.IsDataFormatError(err))
	})

	t.Run("nil metrics tolerated", func(t *testing.T) {
		svc := NewService(NewEvaluator(config.PolicyConfig{Mode: "bogus"}), config.ServiceConfig{}, zap.NewNop())

		decision, err := svc.DecidePolicy(context.Background(), models.PolicyDecisionRequest{Action: "x"})
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeDeny, decision.Decision)
	})
}

func TestService_DecidePolicyAudits(t *testing.T) {
	path := writePolicy(t, "policy.json", `{"deny_actions":["drop"]}`)
	auditor := new(MockAuditor)
	svc := newTestService(t, config.PolicyConfig{Mode: "file", Path: path}, WithAuditor(auditor))

	auditor.On("Record", mock.MatchedBy(func(entry *models.DecisionAuditLog) bool {
		return entry.Action == "drop" &&
			entry.Decision == models.OutcomeDeny &&
			entry.ReasonCode == models.ReasonDenyAction &&
			entry.PolicyMode == "file" &&
			entry.RequestID == "req-1" &&
			entry.Subject != nil && *entry.Subject == "svc-a" &&
			entry.RunID != nil && *entry.RunID == "run-9"
	})).Return(nil).Once()

	ctx := middleware.WithRequestID(context.Background(), "req-1")
	ctx = middleware.WithClaims(ctx, &middleware.Claims{Sub: "svc-a"})

	decision, err := svc.DecidePolicy(ctx, models.PolicyDecisionRequest{Action: "drop", RunID: "run-9"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDeny, decision.Decision)
	auditor.AssertExpectations(t)
}

func TestService_AuditFailureDoesNotChangeDecision(t *testing.T) {
	auditor := new(MockAuditor)
	auditor.On("Record", mock.Anything).Return(errors.New("buffer full"))
	svc := newTestService(t, config.PolicyConfig{}, WithAuditor(auditor))

	decision, err := svc.DecidePolicy(context.Background(), models.PolicyDecisionRequest{Action: "x"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAllow, decision.Decision)
	auditor.AssertNumberOfCalls(t, "Record", 1)
}

func TestService_ErrorsAreNotAudited(t *testing.T) {
	auditor := new(MockAuditor)
	svc := newTestService(t, config.PolicyConfig{Mode: "file", Path: "/nonexistent.json"}, WithAuditor(auditor))

	_, err := svc.DecidePolicy(context.Background(), models.PolicyDecisionRequest{Action: "x"})
	require.Error(t, err)
	auditor.AssertNotCalled(t, "Record", mock.Anything)
}

var _ PDP = (*Service)(nil)
