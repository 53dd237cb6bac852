package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/adamancini/clasp/internal/types"
)

func newRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <category> <name>...",
		Short: "Deselect resources and apply",
		Long: `Remove deselects one or more configured resources and commits the
resulting change. Repository-managed symlinks are unlinked; local resources
are deleted from the project.

Examples:
  clasp remove command deploy
  clasp remove hook format-on-save`,
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

			selected := cs.Selected(cat)
			for _, name := range args[1:] {
				if !selected[name] {
					return fmt.Errorf("%s %q is not configured in this project", cat, name)
				}
				cs.Deselect(cat, name)
			}
			return applyChanges(cs)
		},
	}
}
