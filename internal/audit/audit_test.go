package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// opts builds Options pointing every layer at temp directories so the real
// home and managed locations never leak into a test.
func testOpts(t *testing.T) Options {
	t.Helper()
	return Options{
		UserClaudeDir: t.TempDir(),
		UserHomeDir:   t.TempDir(),
		ManagedDir:    t.TempDir(),
	}
}

func findWarning(warnings []Warning, kind, key string) *Warning {
	for i := range warnings {
		if warnings[i].Kind == kind && warnings[i].Key == key {
			return &warnings[i]
		}
	}
	return nil
}

func TestRunCleanProject(t *testing.T) {
	if warnings := Run(t.TempDir(), testOpts(t)); len(warnings) != 0 {
		t.Errorf("Run() = %v, want none", warnings)
	}
}

func TestRunSingleScopeNeverConflicts(t *testing.T) {
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".claude", "settings.json"), `{"model": "opus"}`)
	if warnings := Run(project, testOpts(t)); len(warnings) != 0 {
		t.Errorf("Run() = %v, want none for a single scope", warnings)
	}
}

func TestScalarDupe(t *testing.T) {
	project := t.TempDir()
	opts := testOpts(t)
	writeFile(t, filepath.Join(project, ".claude", "settings.json"), `{"model": "opus"}`)
	writeFile(t, filepath.Join(opts.UserClaudeDir, "settings.json"), `{"model": "opus"}`)

	warnings := Run(project, opts)
	w := findWarning(warnings, KindDupe, "model")
	if w == nil {
		t.Fatalf("Run() = %v, want a DUPE for model", warnings)
	}
	// The losing scope is reported.
	if w.Scope != "user-global" {
		t.Errorf("Scope = %s, want user-global", w.Scope)
	}
}

func TestScalarOverride(t *testing.T) {
	project := t.TempDir()
	opts := testOpts(t)
	writeFile(t, filepath.Join(project, ".claude", "settings.local.json"), `{"model": "haiku"}`)
	writeFile(t, filepath.Join(project, ".claude", "settings.json"), `{"model": "opus"}`)

	warnings := Run(project, opts)
	w := findWarning(warnings, KindOverride, "model")
	if w == nil {
		t.Fatalf("Run() = %v, want an OVERRIDE for model", warnings)
	}
	if w.Scope != "project" {
		t.Errorf("Scope = %s, want the shadowed scope project", w.Scope)
	}
	if !strings.Contains(w.Message, "local") || !strings.Contains(w.Message, "haiku") {
		t.Errorf("Message = %q", w.Message)
	}
}

func TestStructuralKeysNotAudited(t *testing.T) {
	project := t.TempDir()
	opts := testOpts(t)
	writeFile(t, filepath.Join(project, ".claude", "settings.json"),
		`{"$schema": "x", "hooks": {"a": []}}`)
	writeFile(t, filepath.Join(opts.UserClaudeDir, "settings.json"),
		`{"$schema": "y", "hooks": {"b": []}}`)

	for _, w := range Run(project, opts) {
		if w.Key == "$schema" || w.Key == "hooks" {
			t.Errorf("structural key audited: %+v", w)
		}
	}
}

func TestPermissionConflict(t *testing.T) {
	project := t.TempDir()
	opts := testOpts(t)
	writeFile(t, filepath.Join(project, ".claude", "settings.json"),
		`{"permissions": {"allow": ["Bash(rm *)"]}}`)
	writeFile(t, filepath.Join(opts.ManagedDir, "managed-settings.json"),
		`{"permissions": {"deny": ["Bash(rm *)"]}}`)

	warnings := Run(project, opts)
	w := findWarning(warnings, KindConflict, "Bash(rm *)")
	if w == nil {
		t.Fatalf("Run() = %v, want a CONFLICT for the rule", warnings)
	}
	if w.Scope != "multi" {
		t.Errorf("Scope = %s, want multi", w.Scope)
	}
	if !strings.Contains(w.Message, "managed=deny") || !strings.Contains(w.Message, "project=allow") {
		t.Errorf("Message = %q", w.Message)
	}
}

func TestPermissionSameTypeNoConflict(t *testing.T) {
	project := t.TempDir()
	opts := testOpts(t)
	writeFile(t, filepath.Join(project, ".claude", "settings.json"),
		`{"permissions": {"allow": ["Read"]}}`)
	writeFile(t, filepath.Join(opts.UserClaudeDir, "settings.json"),
		`{"permissions": {"allow": ["Read"]}}`)

	if w := findWarning(Run(project, opts), KindConflict, "Read"); w != nil {
		t.Errorf("same rule type in two scopes is not a conflict: %+v", w)
	}
}

func TestOrphanedMCPServers(t *testing.T) {
	project := t.TempDir()
	writeFile(t, filepath.Join(project, ".claude", "settings.local.json"),
		`{"mcpServers": {"github": {"command": "gh-mcp"}, "jira": {"command": "jira-mcp"}}}`)

	warnings := Run(project, testOpts(t))
	w := findWarning(warnings, KindOverride, "mcpServers")
	if w == nil {
		t.Fatalf("Run() = %v, want an mcpServers warning", warnings)
	}
	if !strings.Contains(w.Message, "github, jira") {
		t.Errorf("Message = %q, want sorted server names", w.Message)
	}
}

func TestLegacyUserGlobalFallback(t *testing.T) {
	project := t.TempDir()
	opts := testOpts(t)
	// No ~/.claude/settings.json; the legacy ~/.claude.json is read instead.
	writeFile(t, filepath.Join(opts.UserHomeDir, ".claude.json"), `{"model": "opus"}`)
	writeFile(t, filepath.Join(project, ".claude", "settings.json"), `{"model": "sonnet"}`)

	warnings := Run(project, opts)
	w := findWarning(warnings, KindOverride, "model")
	if w == nil || w.Scope != "user-global" {
		t.Fatalf("Run() = %v, want an OVERRIDE sourced from the legacy file", warnings)
	}
}

func TestUserProjectLayer(t *testing.T) {
	project := t.TempDir()
	opts := testOpts(t)
	writeFile(t, filepath.Join(opts.UserClaudeDir, "projects", encodeProjectPath(project), "settings.json"),
		`{"model": "haiku"}`)
	writeFile(t, filepath.Join(project, ".claude", "settings.json"), `{"model": "opus"}`)

	warnings := Run(project, opts)
	w := findWarning(warnings, KindOverride, "model")
	if w == nil {
		t.Fatalf("Run() = %v, want an OVERRIDE", warnings)
	}
	if w.Scope != "user-project" {
		t.Errorf("Scope = %s, want user-project", w.Scope)
	}
}

func TestEncodeProjectPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/home/dev/app", "home-dev-app"},
		{"/srv/a-b", "srv-a-b"},
	}
	for _, tt := range tests {
		if got := encodeProjectPath(tt.path); got != tt.want {
			t.Errorf("encodeProjectPath(%s) = %s, want %s", tt.path, got, tt.want)
		}
	}
}
