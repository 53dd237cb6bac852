package cmd

import (
	"github.com/spf13/cobra"

	"github.com/adamancini/clasp/internal/audit"
	"github.com/adamancini/clasp/internal/output"
)

func newAuditCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Find cross-scope configuration problems",
		Long: `Audit reads every configuration layer visible from the project, including
the per-project user directory and the legacy ~/.claude.json, and reports
duplicated values, shadowed overrides, contradictory permission rules, and
MCP servers declared in the wrong document.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := resolveProjectDir()
			if err != nil {
				return err
			}
			w, err := newOutputWriter()
			if err != nil {
				return err
			}
			return w.Write(&output.AuditReport{
				Warnings: audit.Run(projectDir, audit.Options{}),
			})
		},
	}
}
