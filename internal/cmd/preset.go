package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adamancini/clasp/internal/preset"
)

func newPresetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Save and load named configuration snapshots",
		Long: `Preset manages named snapshots of a complete selection, stored under the
repository's configs/ directory. Save one from a configured project and load
it into another to reproduce the same setup.`,
	}

	cmd.AddCommand(newPresetListCmd())
	cmd.AddCommand(newPresetSaveCmd())
	cmd.AddCommand(newPresetLoadCmd())

	return cmd
}

// presetListReport shapes the preset listing for all output formats.
type presetListReport struct {
	Presets []presetSummary `json:"presets" yaml:"presets"`
}

type presetSummary struct {
	Slug        string `json:"slug" yaml:"slug"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
}

func (r *presetListReport) String() string {
	if len(r.Presets) == 0 {
		return "No presets found."
	}
	var b strings.Builder
	for _, p := range r.Presets {
		fmt.Fprintf(&b, "%-24s %s", p.Slug, p.Name)
		if p.Description != "" {
			fmt.Fprintf(&b, " - %s", p.Description)
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func newPresetListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List presets in the repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRepoRoot()
			if err != nil {
				return err
			}
			report := &presetListReport{}
			for _, p := range preset.List(root) {
				report.Presets = append(report.Presets, presetSummary{
					Slug:        p.Slug,
					Name:        p.Name,
					Description: p.Description,
					CreatedAt:   p.CreatedAt,
				})
			}
			w, err := newOutputWriter()
			if err != nil {
				return err
			}
			return w.Write(report)
		},
	}
}

func newPresetSaveCmd() *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "save <name>",
		Short: "Save the project's current configuration as a preset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := newSession(cmd.Context())
			if err != nil {
				return err
			}
			path, err := preset.Save(cs.Catalog().RepoRoot(), args[0], description, cs)
			if err != nil {
				return err
			}
			fmt.Printf("Saved preset to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "Describe what this preset is for")

	return cmd
}

func newPresetLoadCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "load <slug>",
		Short: "Load a preset into the project and apply",
		Long: `Load replaces the selection with a preset's contents and commits the
result. A preset referencing unknown profiles, resources, or settings is
refused unless --force skips the unknown entries.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := newSession(cmd.Context())
			if err != nil {
				return err
			}

			var found *preset.Preset
			for _, p := range preset.List(cs.Catalog().RepoRoot()) {
				if p.Slug == args[0] {
					found = &p
					break
				}
			}
			if found == nil {
				return fmt.Errorf("preset %q not found", args[0])
			}

			issues := preset.Validate(found, cs)
			skip := map[preset.SkipKey]bool{}
			if len(issues) > 0 {
				if !force {
					var lines []string
					for _, issue := range issues {
						lines = append(lines, fmt.Sprintf("%s: %s", issue.Domain, issue.Message))
					}
					return fmt.Errorf("preset %q has problems (re-run with --force to skip them):\n  %s",
						args[0], strings.Join(lines, "\n  "))
				}
				for _, issue := range issues {
					skip[preset.SkipKey{Domain: issue.Domain, Key: issue.Key}] = true
					fmt.Printf("skipping %s %s\n", issue.Domain, issue.Key)
				}
			}

			preset.LoadInto(found, cs, skip)
			return applyChanges(cs)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip entries the repository no longer offers")

	return cmd
}
