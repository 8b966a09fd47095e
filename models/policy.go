package models

import (
	"encoding/json"
)

// PolicyDecisionOutcome is the verdict of a policy decision
type PolicyDecisionOutcome string

const (
	OutcomeAllow           PolicyDecisionOutcome = "allow"
	OutcomeDeny            PolicyDecisionOutcome = "deny"
	OutcomeRequireApproval PolicyDecisionOutcome = "require_approval"
)

// Valid reports whether the outcome is one of the enumerated values
func (o PolicyDecisionOutcome) Valid() bool {
	switch o {
	case OutcomeAllow, OutcomeDeny, OutcomeRequireApproval:
		return true
	}
	return false
}

// Reason codes returned by the built-in evaluator
const (
	ReasonAllowAll              = "allow_all"
	ReasonAllowDefault          = "allow_default"
	ReasonDenyAction            = "deny_action"
	ReasonRequireApprovalAction = "require_approval_action"
	ReasonMissingPolicyPath     = "missing_policy_path"
	ReasonInvalidPolicyMode     = "invalid_policy_mode"
)

// PolicyDecisionRequest asks whether an action may proceed
type PolicyDecisionRequest struct {
	Action      string                     `json:"action" validate:"required,notblank"`
	RunID       string                     `json:"run_id,omitempty"`
	NodeRunID   string                     `json:"node_run_id,omitempty"`
	NodeTypeRef string                     `json:"node_type_ref,omitempty"`
	Context     map[string]json.RawMessage `json:"context,omitempty"`
	Extensions  map[string]json.RawMessage `json:"extensions,omitempty"`
}

// PolicyDecision is the answer to a PolicyDecisionRequest
type PolicyDecision struct {
	Decision   PolicyDecisionOutcome      `json:"decision"`
	ReasonCode string                     `json:"reason_code"`
	Message    string                     `json:"message,omitempty"`
	Extensions map[string]json.RawMessage `json:"extensions,omitempty"`
}

// NewPolicyDecision creates a decision with the given outcome, reason and message
func NewPolicyDecision(outcome PolicyDecisionOutcome, reasonCode, message string) PolicyDecision {
	return PolicyDecision{
		Decision:   outcome,
		ReasonCode: reasonCode,
		Message:    message,
	}
}

// IsAllowed returns true when the decision lets the action proceed without approval
func (d PolicyDecision) IsAllowed() bool {
	return d.Decision == OutcomeAllow
}

// PolicyFile is the on-disk policy document used in file mode.
// Absent or null lists are treated as empty sets.
type PolicyFile struct {
	DenyActions            []string `json:"deny_actions,omitempty" yaml:"deny_actions,omitempty"`
	RequireApprovalActions []string `json:"require_approval_actions,omitempty" yaml:"require_approval_actions,omitempty"`
}

// ActionSet is a set of action names
type ActionSet map[string]struct{}

// NewActionSet builds a set from a list of action names
func NewActionSet(actions []string) ActionSet {
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

// Contains reports membership
func (s ActionSet) Contains(action string) bool {
	_, ok := s[action]
	return ok
}

// DenySet returns the deny-list as a set
func (p *PolicyFile) DenySet() ActionSet {
	return NewActionSet(p.DenyActions)
}

// RequireApprovalSet returns the require-approval list as a set
func (p *PolicyFile) RequireApprovalSet() ActionSet {
	return NewActionSet(p.RequireApprovalActions)
}
