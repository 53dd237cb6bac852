package e2e

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const binaryName = "clasp"

var binaryPath string

// TestMain builds the binary before running tests
func TestMain(m *testing.M) {
	cmd := exec.Command("go", "build", "-o", binaryName, "../../cmd/clasp")
	if out, err := cmd.CombinedOutput(); err != nil {
		panic("failed to build binary: " + err.Error() + "\n" + string(out))
	}
	binaryPath, _ = filepath.Abs(binaryName)

	code := m.Run()

	os.Remove(binaryName)
	os.Exit(code)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// env holds the isolated directories one test run works against.
type env struct {
	repo    string
	project string
	home    string
	cache   string
}

// setupEnv creates a resource repository fixture plus isolated project,
// home, and cache directories, and pre-seeds the schema cache so no test
// ever reaches the network.
func setupEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		repo:    t.TempDir(),
		project: t.TempDir(),
		home:    t.TempDir(),
		cache:   t.TempDir(),
	}

	writeFile(t, filepath.Join(e.repo, "commands", "deploy.md"), "# deploy\n")
	writeFile(t, filepath.Join(e.repo, "commands", "release.md"), "# release\n")
	writeFile(t, filepath.Join(e.repo, "agents", "reviewer.md"), "# reviewer\n")
	writeFile(t, filepath.Join(e.repo, "skills", "code-review", "SKILL.md"), "# skill\n")
	writeFile(t, filepath.Join(e.repo, "profiles", "standard.json"),
		`{"description": "Everyday defaults", "$schema": "https://json.schemastore.org/claude-code-settings.json", "permissions": {"allow": ["Read", "Edit"]}, "model": "sonnet"}`)
	writeFile(t, filepath.Join(e.repo, "mcps", "github", "config.json"), `{"command": "gh-mcp"}`)

	// Fresh schema cache: Load serves it without any network access.
	writeFile(t, filepath.Join(e.cache, "clasp", "schema.json"),
		`{"properties": {"model": {"type": "string"}, "effortLevel": {"type": "string"}, "cleanupPeriodDays": {"type": "integer"}}}`)
	writeFile(t, filepath.Join(e.cache, "clasp", "schema-meta.json"),
		fmt.Sprintf(`{"fetched_at": %d}`, time.Now().Unix()))

	return e
}

// run executes the binary with the test environment and returns combined
// stdout and stderr.
func (e *env) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	cmd.Dir = e.project

	var environ []string
	for _, kv := range os.Environ() {
		switch {
		case strings.HasPrefix(kv, "HOME="),
			strings.HasPrefix(kv, "XDG_CACHE_HOME="),
			strings.HasPrefix(kv, "CLAUDE_REPO="):
		default:
			environ = append(environ, kv)
		}
	}
	cmd.Env = append(environ,
		"HOME="+e.home,
		"XDG_CACHE_HOME="+e.cache,
		"CLAUDE_REPO="+e.repo,
	)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func TestStatusFreshProject(t *testing.T) {
	e := setupEnv(t)

	stdout, stderr, err := e.run(t, "status", "--project", e.project)
	if err != nil {
		t.Fatalf("status failed: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "(none)") {
		t.Errorf("fresh project should have no profile:\n%s", stdout)
	}
	if !strings.Contains(stdout, "command (0/2)") {
		t.Errorf("status should count available commands:\n%s", stdout)
	}
}

func TestStatusJSON(t *testing.T) {
	e := setupEnv(t)

	stdout, stderr, err := e.run(t, "status", "--project", e.project, "-o", "json")
	if err != nil {
		t.Fatalf("status failed: %v\n%s", err, stderr)
	}

	var report struct {
		Project    string `json:"project"`
		Repository string `json:"repository"`
		Profile    string `json:"profile"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("status -o json is not valid JSON: %v\n%s", err, stdout)
	}
	if report.Repository != e.repo {
		t.Errorf("repository = %q, want %q", report.Repository, e.repo)
	}
	if report.Profile != "" {
		t.Errorf("profile = %q, want empty", report.Profile)
	}
}

func TestAddDiffRemoveFlow(t *testing.T) {
	e := setupEnv(t)

	stdout, stderr, err := e.run(t, "add", "command", "deploy", "--project", e.project, "--yes")
	if err != nil {
		t.Fatalf("add failed: %v\n%s%s", err, stdout, stderr)
	}

	linkPath := filepath.Join(e.project, ".claude", "commands", "deploy.md")
	info, err := os.Lstat(linkPath)
	if err != nil {
		t.Fatalf("deploy.md not installed: %v", err)
	}
	if info.Mode()&os.ModeSymlink == 0 {
		t.Error("deploy.md should be a symlink")
	}
	if _, err := os.Stat(filepath.Join(e.project, "CLAUDE.md")); err != nil {
		t.Error("CLAUDE.md not created")
	}

	// The applied state matches the selection: diff is clean.
	stdout, stderr, err = e.run(t, "diff", "--project", e.project)
	if err != nil {
		t.Fatalf("diff failed: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "No changes") {
		t.Errorf("diff after apply should be clean:\n%s", stdout)
	}

	stdout, stderr, err = e.run(t, "remove", "command", "deploy", "--project", e.project, "--yes")
	if err != nil {
		t.Fatalf("remove failed: %v\n%s%s", err, stdout, stderr)
	}
	if _, err := os.Lstat(linkPath); !os.IsNotExist(err) {
		t.Error("deploy.md not removed")
	}
}

func TestApplyProfileAndSettings(t *testing.T) {
	e := setupEnv(t)

	stdout, stderr, err := e.run(t, "apply",
		"--project", e.project, "--profile", "standard", "--set", "effortLevel=low", "--yes")
	if err != nil {
		t.Fatalf("apply failed: %v\n%s%s", err, stdout, stderr)
	}

	content, err := os.ReadFile(filepath.Join(e.project, ".claude", "settings.json"))
	if err != nil {
		t.Fatalf("settings.json not written: %v", err)
	}
	var settings map[string]any
	if err := json.Unmarshal(content, &settings); err != nil {
		t.Fatalf("settings.json is not valid JSON: %v", err)
	}
	if settings["model"] != "sonnet" {
		t.Errorf("model = %v, want sonnet from the profile base", settings["model"])
	}
	if settings["effortLevel"] != "low" {
		t.Errorf("effortLevel = %v, want low", settings["effortLevel"])
	}
	if _, ok := settings["$schema"]; !ok {
		t.Error("settings.json missing $schema")
	}

	// Re-running is a no-op.
	stdout, stderr, err = e.run(t, "apply", "--project", e.project, "--yes")
	if err != nil {
		t.Fatalf("second apply failed: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "No changes") {
		t.Errorf("second apply should be a no-op:\n%s", stdout)
	}
}

func TestApplyRequiresConfirmationWithoutTTY(t *testing.T) {
	e := setupEnv(t)

	stdout, stderr, err := e.run(t, "apply", "--project", e.project, "--profile", "standard")
	if err == nil {
		t.Fatalf("apply without --yes and without a TTY should fail:\n%s", stdout)
	}
	if !strings.Contains(stderr, "confirmation required") {
		t.Errorf("stderr = %q, want a confirmation-required error", stderr)
	}
	if _, err := os.Stat(filepath.Join(e.project, ".claude", "settings.json")); !os.IsNotExist(err) {
		t.Error("nothing should be written without confirmation")
	}
}

func TestPresetSaveAndList(t *testing.T) {
	e := setupEnv(t)

	if _, stderr, err := e.run(t, "add", "command", "deploy", "--project", e.project, "--yes"); err != nil {
		t.Fatalf("add failed: %v\n%s", err, stderr)
	}
	stdout, stderr, err := e.run(t, "preset", "save", "CI Setup",
		"--project", e.project, "--description", "pipeline defaults")
	if err != nil {
		t.Fatalf("preset save failed: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "ci-setup.json") {
		t.Errorf("save output = %q", stdout)
	}
	if _, err := os.Stat(filepath.Join(e.repo, "configs", "ci-setup.json")); err != nil {
		t.Errorf("preset file not written: %v", err)
	}

	stdout, stderr, err = e.run(t, "preset", "list")
	if err != nil {
		t.Fatalf("preset list failed: %v\n%s", err, stderr)
	}
	if !strings.Contains(stdout, "ci-setup") || !strings.Contains(stdout, "CI Setup") {
		t.Errorf("preset list output = %q", stdout)
	}
}

func TestAuditReportsOverride(t *testing.T) {
	e := setupEnv(t)
	writeFile(t, filepath.Join(e.project, ".claude", "settings.json"), `{"model": "opus"}`)
	writeFile(t, filepath.Join(e.project, ".claude", "settings.local.json"), `{"model": "haiku"}`)

	stdout, stderr, err := e.run(t, "audit", "--project", e.project, "-o", "json")
	if err != nil {
		t.Fatalf("audit failed: %v\n%s", err, stderr)
	}

	var report struct {
		Warnings []struct {
			Kind string `json:"kind"`
			Key  string `json:"key"`
		} `json:"warnings"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("audit -o json is not valid JSON: %v\n%s", err, stdout)
	}
	found := false
	for _, w := range report.Warnings {
		if w.Kind == "OVERRIDE" && w.Key == "model" {
			found = true
		}
	}
	if !found {
		t.Errorf("audit = %+v, want an OVERRIDE for model", report.Warnings)
	}
}

func TestEffectiveResolution(t *testing.T) {
	e := setupEnv(t)
	writeFile(t, filepath.Join(e.project, ".claude", "settings.json"), `{"effortLevel": "low"}`)
	writeFile(t, filepath.Join(e.home, ".claude", "settings.json"), `{"model": "opus"}`)

	stdout, stderr, err := e.run(t, "effective", "--project", e.project, "-o", "json")
	if err != nil {
		t.Fatalf("effective failed: %v\n%s", err, stderr)
	}

	var report struct {
		Settings []struct {
			Key    string `json:"key"`
			Value  any    `json:"value"`
			Origin string `json:"origin"`
		} `json:"settings"`
	}
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("effective -o json is not valid JSON: %v\n%s", err, stdout)
	}
	origins := map[string]string{}
	for _, s := range report.Settings {
		origins[s.Key] = s.Origin
	}
	if origins["effortLevel"] != "project" {
		t.Errorf("effortLevel origin = %q, want project", origins["effortLevel"])
	}
	if origins["model"] != "user" {
		t.Errorf("model origin = %q, want user", origins["model"])
	}
}

func TestUnknownResourceFails(t *testing.T) {
	e := setupEnv(t)
	_, stderr, err := e.run(t, "add", "command", "nonexistent", "--project", e.project, "--yes")
	if err == nil {
		t.Fatal("add of an unknown resource should fail")
	}
	if !strings.Contains(stderr, "nonexistent") {
		t.Errorf("stderr = %q, want the unknown name reported", stderr)
	}
}

func TestMissingRepoFails(t *testing.T) {
	e := setupEnv(t)
	e.repo = "" // no --repo, no CLAUDE_REPO
	_, stderr, err := e.run(t, "status", "--project", e.project)
	if err == nil {
		t.Fatal("status without a repository should fail")
	}
	if !strings.Contains(stderr, "CLAUDE_REPO") {
		t.Errorf("stderr = %q, want a hint about CLAUDE_REPO", stderr)
	}
}
