package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/clasp/internal/output"
)

func newEffectiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "effective",
		Short: "Show resolved settings with their winning scope",
		Long: `Effective resolves every known setting through the scope chain
(enterprise > project > user > directive > default) and shows which scope
supplied each winning value.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			w, err := newOutputWriter()
			if err != nil {
				return err
			}
			return w.Write(output.BuildEffectiveReport(cs))
		},
	}
}
