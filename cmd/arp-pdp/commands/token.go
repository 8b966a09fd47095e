package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/upb/arp-template-pdp/auth"
)

func newTokenCmd(st *state) *cobra.Command {
	var (
		subject string
		scopes  []string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for the decide endpoint with ARP_AUTH_HMAC_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ttl <= 0 {
				return fmt.Errorf("--ttl must be positive")
			}
			if len(scopes) == 0 && st.cfg.Auth.RequiredScope != "" {
				scopes = []string{st.cfg.Auth.RequiredScope}
			}

			token, err := auth.IssueToken(auth.Config{
				Secret:   st.cfg.Auth.HMACSecret,
				Issuer:   st.cfg.Auth.Issuer,
				Audience: st.cfg.Auth.Audience,
			}, subject, scopes, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Token subject")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scope to grant (repeatable); defaults to ARP_AUTH_REQUIRED_SCOPE")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
