package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/clasp/internal/output"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the project's detected configuration state",
		Long: `Status detects what is already configured in the project: matched
permission profile, bootstrapped resources per category, and any problems
found while reading the project's configuration files.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			w, err := newOutputWriter()
			if err != nil {
				return err
			}
			return w.Write(output.BuildStatusReport(cs))
		},
	}
}
