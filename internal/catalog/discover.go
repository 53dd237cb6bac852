package catalog

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Profiles discovers permission profiles from profiles/*.json.
func (c *Catalog) Profiles() []Profile {
	dir := filepath.Join(c.repoRoot, "profiles")
	paths, _ := filepath.Glob(filepath.Join(dir, "*.json"))
	sort.Strings(paths)

	var result []Profile
	for _, p := range paths {
		var data map[string]any
		if err := readJSON(p, &data); err != nil {
			continue
		}
		desc, _ := data["description"].(string)
		result = append(result, Profile{
			Name:        strings.TrimSuffix(filepath.Base(p), ".json"),
			Description: desc,
			Path:        p,
		})
	}
	return result
}

// ProfileDocument returns the profile's base settings document with the
// description metadata key removed. Used both for detection comparison and
// as the base of a staged settings document.
func (c *Catalog) ProfileDocument(name string) (map[string]any, error) {
	var data map[string]any
	path := filepath.Join(c.repoRoot, "profiles", name+".json")
	if err := readJSON(path, &data); err != nil {
		return nil, err
	}
	delete(data, "description")
	return data, nil
}

// registryFile is the shape of plugins/registry.json.
type registryFile struct {
	Plugins []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
	} `json:"plugins"`
}

// Plugins discovers plugins from plugins/registry.json.
func (c *Catalog) Plugins() []Plugin {
	var reg registryFile
	if err := readJSON(filepath.Join(c.repoRoot, "plugins", "registry.json"), &reg); err != nil {
		return nil
	}
	var result []Plugin
	for _, p := range reg.Plugins {
		if p.ID == "" {
			continue
		}
		name := p.Name
		if name == "" {
			name = p.ID
		}
		result = append(result, Plugin{ID: p.ID, Name: name, Description: p.Description})
	}
	return result
}

// MCPs discovers MCP servers from mcps/*/config.json. Description and binary
// come from the server's README.md frontmatter; the binary is checked
// against PATH so the UI can flag servers that cannot start.
func (c *Catalog) MCPs() []MCP {
	paths, _ := filepath.Glob(filepath.Join(c.repoRoot, "mcps", "*", "config.json"))
	sort.Strings(paths)

	var result []MCP
	for _, configPath := range paths {
		var config map[string]any
		if err := readJSON(configPath, &config); err != nil {
			continue
		}
		mcp := MCP{
			Name:        filepath.Base(filepath.Dir(configPath)),
			Config:      config,
			BinaryFound: true,
		}
		fm := readFrontmatter(filepath.Join(filepath.Dir(configPath), "README.md"))
		mcp.Description = fm["description"]
		mcp.Binary = fm["command"]
		if mcp.Binary != "" {
			_, err := exec.LookPath(mcp.Binary)
			mcp.BinaryFound = err == nil
		}
		result = append(result, mcp)
	}
	return result
}

// hookFile is the shape of hooks/available/<name>/hook.json.
type hookFile struct {
	Event           string `json:"event"`
	Matcher         string `json:"matcher"`
	Description     string `json:"description"`
	CommandTemplate string `json:"command_template"`
}

// Hooks discovers hooks from hooks/available/*/hook.json.
func (c *Catalog) Hooks() []Hook {
	paths, _ := filepath.Glob(filepath.Join(c.repoRoot, "hooks", "available", "*", "hook.json"))
	sort.Strings(paths)

	var result []Hook
	for _, hookPath := range paths {
		var hf hookFile
		if err := readJSON(hookPath, &hf); err != nil {
			continue
		}
		result = append(result, Hook{
			Name:            filepath.Base(filepath.Dir(hookPath)),
			Event:           hf.Event,
			Matcher:         hf.Matcher,
			Description:     hf.Description,
			CommandTemplate: hf.CommandTemplate,
			ScriptFiles:     hookScripts(filepath.Dir(hookPath)),
		})
	}
	return result
}

// HookDir returns the repository directory for a hook.
func (c *Catalog) HookDir(name string) string {
	return filepath.Join(c.repoRoot, "hooks", "available", name)
}

// IsHookScript reports whether a file name is an installable hook script.
func IsHookScript(name string) bool {
	return strings.HasSuffix(name, ".sh") || strings.HasSuffix(name, ".js")
}

func hookScripts(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var scripts []string
	for _, e := range entries {
		if !e.IsDir() && IsHookScript(e.Name()) {
			scripts = append(scripts, e.Name())
		}
	}
	return scripts
}

// OutputStyles discovers output style names from output-styles/*.md.
func (c *Catalog) OutputStyles() []string {
	paths, _ := filepath.Glob(filepath.Join(c.repoRoot, "output-styles", "*.md"))
	var styles []string
	for _, p := range paths {
		styles = append(styles, strings.TrimSuffix(filepath.Base(p), ".md"))
	}
	sort.Strings(styles)
	return styles
}

func readJSON(path string, v any) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(content, v)
}

// readFrontmatter extracts the YAML frontmatter block of a markdown file as
// flat string pairs. Returns an empty map when no frontmatter is present.
func readFrontmatter(path string) map[string]string {
	result := map[string]string{}
	content, err := os.ReadFile(path)
	if err != nil {
		return result
	}
	text := string(content)
	if !strings.HasPrefix(text, "---\n") {
		return result
	}
	end := strings.Index(text[4:], "\n---")
	if end < 0 {
		return result
	}
	var raw map[string]any
	if err := yaml.Unmarshal([]byte(text[4:4+end]), &raw); err != nil {
		return result
	}
	for k, v := range raw {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}
	return result
}
