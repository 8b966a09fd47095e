package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"github.com/upb/arp-template-pdp/internal/version"
)

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of arp-pdp",
		Run: func(cmd *cobra.Command, args []string) {
			line := fmt.Sprintf("arp-pdp %s %s/%s", version.Version, runtime.GOOS, runtime.GOARCH)
			if version.Commit != "" {
				line += " (" + version.Commit + ")"
			}
			fmt.Fprintln(cmd.OutOrStdout(), line)
		},
	}
}
