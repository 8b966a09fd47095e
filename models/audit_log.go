package models

import (
	"time"

	"github.com/google/uuid"
)

// DecisionAuditLog records a single policy decision
type DecisionAuditLog struct {
	ID         uuid.UUID             `json:"id" db:"id"`
	RequestID  string                `json:"request_id" db:"request_id"`
	Action     string                `json:"action" db:"action"`
	RunID      *string               `json:"run_id,omitempty" db:"run_id"`
	NodeRunID  *string               `json:"node_run_id,omitempty" db:"node_run_id"`
	Subject    *string               `json:"subject,omitempty" db:"subject"`
	Decision   PolicyDecisionOutcome `json:"decision" db:"decision"`
	ReasonCode string                `json:"reason_code" db:"reason_code"`
	Message    *string               `json:"message,omitempty" db:"message"`
	PolicyMode string                `json:"policy_mode" db:"policy_mode"`
	LatencyMs  int                   `json:"latency_ms" db:"latency_ms"`
	Timestamp  time.Time             `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the DecisionAuditLog model
func (DecisionAuditLog) TableName() string {
	return "decision_audit_logs"
}

// NewDecisionAuditLog creates an audit entry for a request/decision pair
func NewDecisionAuditLog(req PolicyDecisionRequest, decision PolicyDecision, policyMode string) *DecisionAuditLog {
	log := &DecisionAuditLog{
		ID:         uuid.New(),
		Action:     req.Action,
		Decision:   decision.Decision,
		ReasonCode: decision.ReasonCode,
		PolicyMode: policyMode,
		Timestamp:  time.Now().UTC(),
	}
	if req.RunID != "" {
		log.RunID = &req.RunID
	}
	if req.NodeRunID != "" {
		log.NodeRunID = &req.NodeRunID
	}
	if decision.Message != "" {
		msg := decision.Message
		log.Message = &msg
	}
	return log
}

// WithRequest sets request metadata
func (a *DecisionAuditLog) WithRequest(requestID, subject string) *DecisionAuditLog {
	a.RequestID = requestID
	if subject != "" {
		a.Subject = &subject
	}
	return a
}

// WithLatency sets the evaluation latency
func (a *DecisionAuditLog) WithLatency(d time.Duration) *DecisionAuditLog {
	a.LatencyMs = int(d.Milliseconds())
	return a
}
