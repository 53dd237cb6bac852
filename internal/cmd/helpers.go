package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adamancini/clasp/internal/catalog"
	"github.com/adamancini/clasp/internal/output"
	"github.com/adamancini/clasp/internal/schema"
	"github.com/adamancini/clasp/internal/session"
)

// resolveRepoRoot returns the resource repository root from --repo or the
// CLAUDE_REPO environment variable.
func resolveRepoRoot() (string, error) {
	root := repoPath
	if root == "" {
		root = os.Getenv("CLAUDE_REPO")
	}
	if root == "" {
		return "", fmt.Errorf("no resource repository: pass --repo or set CLAUDE_REPO")
	}
	return filepath.Abs(root)
}

// resolveProjectDir returns the absolute project directory.
func resolveProjectDir() (string, error) {
	return filepath.Abs(projectPath)
}

// newSession constructs a ConfigState for the configured repository and
// project: catalog scan, state detection, scope chain, schema defs.
func newSession(ctx context.Context) (*session.ConfigState, error) {
	root, err := resolveRepoRoot()
	if err != nil {
		return nil, err
	}
	projectDir, err := resolveProjectDir()
	if err != nil {
		return nil, err
	}

	cat, err := catalog.New(root)
	if err != nil {
		return nil, err
	}

	return session.New(cat, projectDir, session.Options{
		SettingDefs: loadSettingDefs(ctx, cat),
	})
}

// loadSettingDefs loads editor setting definitions from the schema cache.
// Schema unavailability degrades to an empty definition list; settings
// editing is then limited but everything else still works.
func loadSettingDefs(ctx context.Context, cat *catalog.Catalog) []schema.SettingDef {
	cache, err := schema.NewCache()
	if err != nil {
		warnVerbose("schema cache unavailable: %v", err)
		return nil
	}
	doc, err := cache.Load(ctx)
	if err != nil {
		warnVerbose("schema unavailable: %v", err)
		return nil
	}
	return schema.EditorDefs(schema.ParseProperties(doc), cat.OutputStyles())
}

// newOutputWriter builds the writer for the configured --output format.
func newOutputWriter() (*output.Writer, error) {
	format, err := output.ParseFormat(outputFormat)
	if err != nil {
		return nil, err
	}
	return output.NewWriter(os.Stdout, format), nil
}

func warnVerbose(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, "clasp: "+format+"\n", args...)
	}
}
