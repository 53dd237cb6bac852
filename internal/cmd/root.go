// Package cmd wires the clasp command tree.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	outputFormat string
	repoPath     string
	projectPath  string
	assumeYes    bool
	verbose      bool
)

func Execute(version, commit, date string) error {
	rootCmd := &cobra.Command{
		Use:   "clasp",
		Short: "Bootstrap Claude Code project configuration from a resource repository",
		Long: `clasp reconciles a project's Claude Code configuration against a curated
resource repository: commands, agents, skills, plugins, MCP servers, hooks,
permission profiles, and project-scope settings.

Point it at a repository with --repo or the CLAUDE_REPO environment variable,
inspect the current state with status, preview changes with diff, and commit
them with apply.`,
		Version:      version,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&repoPath, "repo", "", "Resource repository root (default $CLAUDE_REPO)")
	rootCmd.PersistentFlags().StringVarP(&projectPath, "project", "p", ".", "Project directory to reconcile")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "Output format: text, json, yaml")
	rootCmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "Skip confirmation prompts")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newDiffCmd())
	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newEffectiveCmd())
	rootCmd.AddCommand(newAuditCmd())
	rootCmd.AddCommand(newPresetCmd())
	rootCmd.AddCommand(newBackupCmd())
	rootCmd.AddCommand(newVersionCmd(version, commit, date))
	rootCmd.AddCommand(newCompletionCmd())

	// Register completion function for output flag
	_ = rootCmd.RegisterFlagCompletionFunc("output", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return rootCmd.Execute()
}
