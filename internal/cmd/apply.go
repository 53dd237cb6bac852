package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/adamancini/clasp/internal/backup"
	"github.com/adamancini/clasp/internal/git"
	"github.com/adamancini/clasp/internal/interactive"
	"github.com/adamancini/clasp/internal/output"
	"github.com/adamancini/clasp/internal/persist"
	"github.com/adamancini/clasp/internal/session"
)

var noBackup bool

func newApplyCmd() *cobra.Command {
	var (
		profileName string
		setPairs    []string
		unsetKeys   []string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Commit the selection to the project",
		Long: `Apply stages the selected configuration into .claude/.tmp, validates it,
and commits it file by file: project settings, the MCP manifest, resource
symlinks, hook scripts, and the managed blocks in CLAUDE.md and .gitignore.

Validation failure rolls everything back; a failure mid-commit leaves the
already-committed artifacts in place and re-running apply converges.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			if profileName != "" {
				cs.SelectProfile(profileName)
			}
			for _, pair := range setPairs {
				key, value, err := parseSetPair(pair)
				if err != nil {
					return err
				}
				cs.SetOverride(key, value)
			}
			for _, key := range unsetKeys {
				cs.ClearOverride(key)
			}
			return applyChanges(cs)
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "", "Select a permission profile")
	cmd.Flags().StringArrayVar(&setPairs, "set", nil, "Set a project-scope setting (key=value, repeatable)")
	cmd.Flags().StringArrayVar(&unsetKeys, "unset", nil, "Clear a project-scope setting (repeatable)")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip the pre-commit snapshot")

	return cmd
}

// parseSetPair splits key=value and parses the value as a YAML scalar, so
// --set cleanupPeriodDays=30 arrives as a number and --set foo=true as a bool.
func parseSetPair(pair string) (string, any, error) {
	key, raw, found := strings.Cut(pair, "=")
	if !found || key == "" {
		return "", nil, fmt.Errorf("invalid --set %q (expected key=value)", pair)
	}
	var value any
	if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}
	return key, value, nil
}

// applyChanges confirms and commits the session's pending diff. Shared by
// apply, add, remove, and preset load.
func applyChanges(cs *session.ConfigState) error {
	report := output.BuildDiffReport(cs.Diff())
	if report.Empty() {
		fmt.Println("No changes. Project matches the current selection.")
		return nil
	}

	if !assumeYes {
		if !interactive.IsTerminal() {
			return fmt.Errorf("confirmation required: re-run with --yes")
		}
		if !interactive.NewPrompter().ConfirmApply(report) {
			fmt.Println("Aborted.")
			return nil
		}
	} else {
		fmt.Println(report.String())
		fmt.Println()
	}

	checker := git.NewChecker()
	if dirty, err := checker.HasUncommitted(cs.Catalog().RepoRoot()); err == nil && dirty {
		fmt.Fprintln(os.Stderr, "warning: resource repository has uncommitted changes")
	}

	engine := persist.New(cs.ProjectDir()).WithGit(checker)
	if !noBackup {
		if mgr, err := backup.NewManager(); err == nil {
			engine = engine.WithBackups(mgr)
		} else {
			warnVerbose("backups disabled: %v", err)
		}
	}

	result, err := engine.Apply(cs)
	if result != nil {
		for _, warning := range result.Warnings {
			fmt.Fprintln(os.Stderr, "warning: "+warning)
		}
	}
	if err != nil {
		return err
	}

	fmt.Printf("Applied %d change(s):\n", len(result.Changed))
	for _, path := range result.Changed {
		fmt.Printf("  %s\n", path)
	}
	return nil
}
