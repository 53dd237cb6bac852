package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/clasp/internal/output"
)

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff",
		Short: "Preview the changes apply would make",
		Long: `Diff compares the current selection against the project's detected state
and prints what apply would add, remove, and change. A fresh session selects
exactly what exists, so diff on an untouched project prints no changes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			w, err := newOutputWriter()
			if err != nil {
				return err
			}
			return w.Write(output.BuildDiffReport(cs.Diff()))
		},
	}
}
