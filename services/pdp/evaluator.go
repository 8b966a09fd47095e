package pdp

import (
	"context"
	"fmt"

	"github.com/upb/arp-template-pdp/config"
	"github.com/upb/arp-template-pdp/models"
)

// PolicyLoader loads the policy document for file mode
type PolicyLoader func(path string) (*models.PolicyFile, error)

// Evaluator produces exactly one decision per action.
// It holds no mutable state and is safe for concurrent use.
type Evaluator struct {
	cfg    config.PolicyConfig
	loader PolicyLoader
}

// NewEvaluator creates an evaluator over the given policy configuration
func NewEvaluator(cfg config.PolicyConfig) *Evaluator {
	return &Evaluator{
		cfg:    cfg,
		loader: LoadPolicyFile,
	}
}

// WithLoader returns a copy of the evaluator that reads policies through loader
func (e *Evaluator) WithLoader(loader PolicyLoader) *Evaluator {
	return &Evaluator{cfg: e.cfg, loader: loader}
}

// Mode returns the normalised policy mode
func (e *Evaluator) Mode() string {
	return e.cfg.NormalizedMode()
}

// Decide evaluates action against the configured policy.
// Policy file errors are returned to the caller and never turned into a decision.
func (e *Evaluator) Decide(_ context.Context, action string) (models.PolicyDecision, error) {
	mode := e.cfg.NormalizedMode()

	switch mode {
	case config.PolicyModeAllowAll:
		return models.NewPolicyDecision(models.OutcomeAllow, models.ReasonAllowAll, ""), nil

	case config.PolicyModeFile:
		path := e.cfg.NormalizedPath()
		if path == "" {
			return models.NewPolicyDecision(models.OutcomeDeny, models.ReasonMissingPolicyPath,
				"ARP_POLICY_PATH is required when ARP_POLICY_MODE=file"), nil
		}

		policy, err := e.loader(path)
		if err != nil {
			return models.PolicyDecision{}, err
		}
		return decideFromFile(policy, action), nil
	}

	return models.NewPolicyDecision(models.OutcomeDeny, models.ReasonInvalidPolicyMode,
		fmt.Sprintf("Unsupported ARP_POLICY_MODE: %s", mode)), nil
}

// decideFromFile applies the deny > require_approval > allow precedence
func decideFromFile(policy *models.PolicyFile, action string) models.PolicyDecision {
	if policy.DenySet().Contains(action) {
		return models.NewPolicyDecision(models.OutcomeDeny, models.ReasonDenyAction, action)
	}
	if policy.RequireApprovalSet().Contains(action) {
		return models.NewPolicyDecision(models.OutcomeRequireApproval, models.ReasonRequireApprovalAction, action)
	}
	return models.NewPolicyDecision(models.OutcomeAllow, models.ReasonAllowDefault, "")
}
