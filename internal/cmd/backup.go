package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/adamancini/clasp/internal/backup"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage pre-apply configuration snapshots",
		Long: `Backup manages the snapshots apply takes before replacing project files.

Snapshots are stored in ~/.cache/clasp/backups/ and cover:
  - .claude/settings.json
  - .mcp.json
  - CLAUDE.md
  - .gitignore

Use 'clasp backup restore' to put a snapshot's files back into the project.`,
	}

	cmd.AddCommand(newBackupCreateCmd())
	cmd.AddCommand(newBackupListCmd())
	cmd.AddCommand(newBackupRestoreCmd())
	cmd.AddCommand(newBackupDeleteCmd())
	cmd.AddCommand(newBackupPruneCmd())

	return cmd
}

// backupTargets are the files apply may replace.
var backupTargets = []string{".claude/settings.json", ".mcp.json", "CLAUDE.md", ".gitignore"}

func newBackupCreateCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Snapshot the project's configuration files now",
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := resolveProjectDir()
			if err != nil {
				return err
			}
			mgr, err := backup.NewManager()
			if err != nil {
				return err
			}
			snap, err := mgr.Create(projectDir, backupTargets, note)
			if err != nil {
				return err
			}
			fmt.Printf("Created backup %s (%d file(s))\n", snap.ID, len(snap.Files))
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Add a note to describe this backup")

	return cmd
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := backup.NewManager()
			if err != nil {
				return err
			}
			infos, err := mgr.List()
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				fmt.Println("No backups found.")
				return nil
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tCREATED\tFILES\tNOTE")
			for _, info := range infos {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
					info.ID, info.CreatedAt.Format("2006-01-02 15:04:05"), info.Files, info.Note)
			}
			return w.Flush()
		},
	}
}

func newBackupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id>",
		Short: "Copy a snapshot's files back into the project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectDir, err := resolveProjectDir()
			if err != nil {
				return err
			}
			mgr, err := backup.NewManager()
			if err != nil {
				return err
			}
			restored, err := mgr.Restore(args[0], projectDir)
			if err != nil {
				return err
			}
			fmt.Printf("Restored %d file(s):\n", len(restored))
			for _, rel := range restored {
				fmt.Printf("  %s\n", rel)
			}
			return nil
		},
	}
}

func newBackupDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := backup.NewManager()
			if err != nil {
				return err
			}
			if err := mgr.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted backup %s\n", args[0])
			return nil
		},
	}
}

func newBackupPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old snapshots, keeping the most recent",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := backup.NewManager()
			if err != nil {
				return err
			}
			result, err := mgr.Prune(keep)
			if err != nil {
				return err
			}
			fmt.Printf("Pruned %d backup(s), kept %d\n", len(result.Deleted), result.Kept)
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", backup.DefaultKeepCount, "Number of snapshots to keep")

	return cmd
}
