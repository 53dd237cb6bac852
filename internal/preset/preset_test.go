package preset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adamancini/clasp/internal/catalog"
	"github.com/adamancini/clasp/internal/schema"
	"github.com/adamancini/clasp/internal/session"
	"github.com/adamancini/clasp/internal/types"
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

func makeRepo(t *testing.T) string {
	t.Helper()
	repo := t.TempDir()
	writeFile(t, filepath.Join(repo, "commands", "deploy.md"), "# deploy\n")
	writeFile(t, filepath.Join(repo, "commands", "release.md"), "# release\n")
	writeFile(t, filepath.Join(repo, "agents", "reviewer.md"), "# reviewer\n")
	writeFile(t, filepath.Join(repo, "skills", "code-review", "SKILL.md"), "# skill\n")
	writeFile(t, filepath.Join(repo, "profiles", "standard.json"),
		`{"description": "d", "permissions": {"allow": ["Read"]}}`)
	writeFile(t, filepath.Join(repo, "plugins", "registry.json"),
		`{"plugins": [{"id": "formatter@core", "name": "Formatter"}]}`)
	writeFile(t, filepath.Join(repo, "mcps", "github", "config.json"), `{"command": "gh-mcp"}`)
	return repo
}

func newSession(t *testing.T, repo string, defs []schema.SettingDef) *session.ConfigState {
	t.Helper()
	cat, err := catalog.New(repo)
	if err != nil {
		t.Fatalf("catalog.New() error = %v", err)
	}
	cs, err := session.New(cat, t.TempDir(), session.Options{
		UserClaudeDir: t.TempDir(),
		EnterpriseDir: t.TempDir(),
		SettingDefs:   defs,
	})
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}
	return cs
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"simple", "go-service", "go-service", false},
		{"mixed case and spaces", "My Go Service", "my-go-service", false},
		{"punctuation collapsed", "ops!! / daily", "ops-daily", false},
		{"leading and trailing junk", "  --web--  ", "web", false},
		{"nothing survives", "!!!", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Slugify(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Slugify(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestListSkipsUnusableFiles(t *testing.T) {
	repo := t.TempDir()
	configs := Dir(repo)

	writeFile(t, filepath.Join(configs, "good.json"), `{"meta": {"name": "Good"}, "profile": "standard"}`)
	writeFile(t, filepath.Join(configs, "also-good.yaml"), "meta:\n  name: Also Good\nprofile: standard\n")
	writeFile(t, filepath.Join(configs, "broken.json"), "{nope")
	writeFile(t, filepath.Join(configs, "no-profile.json"), `{"meta": {"name": "X"}}`)
	writeFile(t, filepath.Join(configs, "ignored.txt"), "not a preset")
	writeFile(t, filepath.Join(configs, "oversize.json"),
		`{"profile": "standard", "settings": {"pad": "`+strings.Repeat("x", MaxFileSize)+`"}}`)
	if err := os.Mkdir(filepath.Join(configs, "subdir.json"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(filepath.Join(configs, "good.json"), filepath.Join(configs, "link.json")); err != nil {
		t.Fatal(err)
	}

	presets := List(repo)
	if len(presets) != 2 {
		t.Fatalf("List() returned %d presets, want 2: %+v", len(presets), presets)
	}
	// Sorted by display name.
	if presets[0].Name != "Also Good" || presets[1].Name != "Good" {
		t.Errorf("List() order = %s, %s", presets[0].Name, presets[1].Name)
	}
	if presets[1].Slug != "good" {
		t.Errorf("Slug = %q, want good", presets[1].Slug)
	}
}

func TestListMissingConfigsDir(t *testing.T) {
	if presets := List(t.TempDir()); len(presets) != 0 {
		t.Errorf("List() = %v, want empty", presets)
	}
}

func TestValidate(t *testing.T) {
	cs := newSession(t, makeRepo(t), []schema.SettingDef{{Key: "model", Type: "string"}})

	p := &Preset{
		Profile: "nonexistent",
		Resources: map[types.Category][]string{
			types.CategoryCommand: {"deploy", "missing-cmd"},
			types.CategoryPlugin:  {"formatter@core"},
			types.CategoryMCP:     {"gitlab"},
		},
		Settings: map[string]any{"model": "opus", "bogusKey": 1},
	}

	issues := Validate(p, cs)
	if len(issues) != 4 {
		t.Fatalf("Validate() returned %d issues, want 4: %+v", len(issues), issues)
	}
	// Sorted by domain then key.
	wantDomains := []string{"command", "mcp", "profile", "settings"}
	for i, want := range wantDomains {
		if issues[i].Domain != want {
			t.Errorf("issues[%d].Domain = %s, want %s", i, issues[i].Domain, want)
		}
	}
	if issues[0].Key != "missing-cmd" || issues[3].Key != "bogusKey" {
		t.Errorf("issues = %+v", issues)
	}
}

func TestValidateClean(t *testing.T) {
	cs := newSession(t, makeRepo(t), nil)
	p := &Preset{
		Profile: "standard",
		Resources: map[types.Category][]string{
			types.CategoryCommand: {"deploy"},
		},
	}
	if issues := Validate(p, cs); len(issues) != 0 {
		t.Errorf("Validate() = %+v, want none", issues)
	}
}

func TestLoadIntoReplacesWholesale(t *testing.T) {
	cs := newSession(t, makeRepo(t), nil)
	cs.SelectProfile("standard")
	cs.Select(types.CategoryCommand, "release")
	cs.SetOverride("model", "haiku")

	p := &Preset{
		Profile: "standard",
		Resources: map[types.Category][]string{
			types.CategoryCommand: {"deploy"},
			types.CategorySkill:   {"code-review"},
		},
		Settings: map[string]any{"model": "opus", "verbose": true},
	}
	LoadInto(p, cs, map[SkipKey]bool{
		{Domain: "settings", Key: "verbose"}: true,
	})

	commands := cs.Selected(types.CategoryCommand)
	if !commands["deploy"] || commands["release"] {
		t.Errorf("commands = %v, want only deploy", commands)
	}
	if !cs.Selected(types.CategorySkill)["code-review"] {
		t.Error("code-review not selected")
	}
	overrides := cs.Overrides()
	if overrides["model"] != "opus" {
		t.Errorf("model = %v, want opus", overrides["model"])
	}
	if _, ok := overrides["verbose"]; ok {
		t.Error("skipped setting should not be applied")
	}
}

func TestSaveListRoundTrip(t *testing.T) {
	repo := makeRepo(t)
	cs := newSession(t, repo, nil)
	cs.SelectProfile("standard")
	cs.Select(types.CategoryCommand, "deploy")
	cs.Select(types.CategoryCommand, "release")
	cs.Select(types.CategoryMCP, "github")
	cs.SetOverride("model", "opus")

	path, err := Save(repo, "Go Service", "daily driver", cs)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if filepath.Base(path) != "go-service.json" {
		t.Errorf("Save() path = %s", path)
	}

	presets := List(repo)
	if len(presets) != 1 {
		t.Fatalf("List() = %+v, want one preset", presets)
	}
	p := presets[0]
	if p.Name != "Go Service" || p.Description != "daily driver" || p.Profile != "standard" {
		t.Errorf("preset = %+v", p)
	}
	if p.CreatedAt == "" {
		t.Error("CreatedAt not recorded")
	}
	commands := p.Resources[types.CategoryCommand]
	if len(commands) != 2 || commands[0] != "deploy" || commands[1] != "release" {
		t.Errorf("commands = %v, want sorted [deploy release]", commands)
	}
	if p.Resources[types.CategoryMCP][0] != "github" {
		t.Errorf("mcps = %v", p.Resources[types.CategoryMCP])
	}
	if p.Settings["model"] != "opus" {
		t.Errorf("settings = %v", p.Settings)
	}
}

func TestSaveRefusesSymlinkTarget(t *testing.T) {
	repo := makeRepo(t)
	configs := Dir(repo)
	writeFile(t, filepath.Join(configs, "real.json"), "{}")
	if err := os.Symlink(filepath.Join(configs, "real.json"), filepath.Join(configs, "evil.json")); err != nil {
		t.Fatal(err)
	}

	cs := newSession(t, repo, nil)
	if _, err := Save(repo, "Evil", "", cs); err == nil {
		t.Error("Save() over a symlink should fail")
	}
}
