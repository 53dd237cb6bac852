package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/clasp/internal/types"
)

func newAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <category> <name>...",
		Short: "Select resources and apply",
		Long: `Add selects one or more resources from the repository and commits the
resulting change. Categories: command, agent, skill, plugin, mcp, hook.

Examples:
  clasp add command deploy
  clasp add skill code-review pr-summary
  clasp add mcp github`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := types.ParseCategory(args[0])
			if err != nil {
				return err
			}
			cs, err := newSession(cmd.Context())
			if err != nil {
				return err
			}

			available := map[string]bool{}
			for _, r := range cs.Available(cat) {
				available[r.Name] = true
			}
			for _, name := range args[1:] {
				if !available[name] {
					return fmt.Errorf("%s %q is not available in the repository", cat, name)
				}
				cs.Select(cat, name)
			}
			return applyChanges(cs)
		},
	}
}
