package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/upb/arp-template-pdp/config"
	"github.com/upb/arp-template-pdp/internal/observability"
	"go.uber.org/zap"
)

// state is shared by the subcommands of one root command
type state struct {
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	st := &state{}

	cmd := &cobra.Command{
		Use:   "arp-pdp",
		Short: "ARP template Policy Decision Point",
		Long: `arp-pdp answers "may this action proceed?" for ARP runs.
Decisions come from ARP_POLICY_MODE (allow_all or file) and ARP_POLICY_PATH.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return st.load(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if st.logger != nil {
				_ = st.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&st.logLevel, "log-level", "", "Override LOG_LEVEL (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&st.logFormat, "log-format", "", "Override LOG_FORMAT (json|text)")

	cmd.AddCommand(
		newServeCmd(st),
		newDecideCmd(st),
		newTokenCmd(st),
		NewVersionCmd(),
	)

	return cmd
}

func (st *state) load(cmd *cobra.Command) error {
	cfg, err := config.New(cmd.Context())
	if err != nil {
		return err
	}
	if st.logLevel != "" {
		cfg.Observability.LogLevel = st.logLevel
	}
	if st.logFormat != "" {
		cfg.Observability.LogFormat = st.logFormat
	}

	logger, err := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	st.cfg = cfg
	st.logger = logger.With(zap.String("service", cfg.Service.Name))
	return nil
}
