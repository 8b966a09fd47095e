package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/upb/arp-template-pdp/models"
	"github.com/upb/arp-template-pdp/services/pdp"
	"github.com/upb/arp-template-pdp/utils"
)

func newDecideCmd(st *state) *cobra.Command {
	var (
		req        models.PolicyDecisionRequest
		policyMode string
		policyPath string
	)

	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Evaluate one action locally and print the decision as JSON",
		Example: `  ARP_POLICY_MODE=file ARP_POLICY_PATH=policy.json arp-pdp decide --action db.drop
  arp-pdp decide --policy-mode file --policy-path policy.yaml --action deploy --run-id r-1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			policy := st.cfg.Policy
			if cmd.Flags().Changed("policy-mode") {
				policy.Mode = policyMode
			}
			if cmd.Flags().Changed("policy-path") {
				policy.Path = policyPath
			}

			if err := utils.ValidateStruct(req); err != nil {
				return fmt.Errorf("invalid request: %s", describeValidation(err))
			}

			service := pdp.NewService(pdp.NewEvaluator(policy), st.cfg.Service, st.logger)
			decision, err := service.DecidePolicy(cmd.Context(), req)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(decision)
		},
	}

	cmd.Flags().StringVar(&req.Action, "action", "", "Action to evaluate")
	cmd.Flags().StringVar(&req.RunID, "run-id", "", "Run id for logs")
	cmd.Flags().StringVar(&req.NodeRunID, "node-run-id", "", "Node run id for logs")
	cmd.Flags().StringVar(&req.NodeTypeRef, "node-type-ref", "", "Node type reference for logs")
	cmd.Flags().StringVar(&policyMode, "policy-mode", "", "Override ARP_POLICY_MODE")
	cmd.Flags().StringVar(&policyPath, "policy-path", "", "Override ARP_POLICY_PATH")
	_ = cmd.MarkFlagRequired("action")

	return cmd
}

func describeValidation(err error) string {
	fields := utils.GetValidationFields(err)
	if len(fields) == 0 {
		return err.Error()
	}
	msgs := make([]string, 0, len(fields))
	for _, msg := range fields {
		msgs = append(msgs, msg)
	}
	return strings.Join(msgs, "; ")
}
