package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jobwatch/upwork-fetcher/pkg/system"
)

// NewVersionCommand prints build version information.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "upwork-fetcher %s", system.Version)
			if system.Commit != "" {
				fmt.Fprintf(out, " (%s)", system.Commit)
			}
			fmt.Fprintln(out)
		},
	}
}
