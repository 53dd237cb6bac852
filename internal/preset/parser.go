package preset

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/adamancini/clasp/internal/types"
)

// Format represents the file format of a preset file.
type Format int

const (
	FormatUnknown Format = iota
	FormatJSON
	FormatYAML
	FormatTOML
)

// detectFormat determines the file format based on extension or content.
func detectFormat(path string, content []byte) Format {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	}

	// Content sniffing for extensionless files
	return sniffFormat(content)
}

// sniffFormat attempts to detect format from content.
func sniffFormat(content []byte) Format {
	trimmed := strings.TrimSpace(string(content))

	// JSON starts with { or [
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return FormatJSON
	}

	// TOML has key = value or [sections]; YAML uses key: value
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.Contains(line, " = ") || strings.HasPrefix(line, "[") {
			return FormatTOML
		}
		if strings.Contains(line, ":") && !strings.Contains(line, "=") {
			return FormatYAML
		}
	}

	if strings.Contains(trimmed, ":") {
		return FormatYAML
	}

	return FormatUnknown
}

// rawPreset is the intermediate representation shared by all three formats.
type rawPreset struct {
	Meta     rawMeta        `yaml:"meta" toml:"meta" json:"meta"`
	Profile  *string        `yaml:"profile" toml:"profile" json:"profile"`
	Commands []any          `yaml:"commands" toml:"commands" json:"commands"`
	Agents   []any          `yaml:"agents" toml:"agents" json:"agents"`
	Skills   []any          `yaml:"skills" toml:"skills" json:"skills"`
	Plugins  []any          `yaml:"plugins" toml:"plugins" json:"plugins"`
	MCPs     []any          `yaml:"mcps" toml:"mcps" json:"mcps"`
	Hooks    []any          `yaml:"hooks" toml:"hooks" json:"hooks"`
	Settings map[string]any `yaml:"settings" toml:"settings" json:"settings"`
}

type rawMeta struct {
	Name        string `yaml:"name" toml:"name" json:"name"`
	Description string `yaml:"description" toml:"description" json:"description"`
	CreatedAt   string `yaml:"created_at" toml:"created_at" json:"created_at"`
}

// parse decodes content in the given format and validates it strictly.
// A preset missing a string profile, containing non-string resource names,
// or carrying non-scalar setting values is rejected whole.
func parse(slug string, content []byte, format Format) (*Preset, error) {
	var raw rawPreset

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("JSON parse error: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("YAML parse error: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(content, &raw); err != nil {
			return nil, fmt.Errorf("TOML parse error: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown file format")
	}

	if raw.Profile == nil {
		return nil, fmt.Errorf("missing required 'profile' field")
	}

	p := &Preset{
		Slug:        slug,
		Name:        raw.Meta.Name,
		Description: raw.Meta.Description,
		CreatedAt:   raw.Meta.CreatedAt,
		Profile:     *raw.Profile,
		Resources:   make(map[types.Category][]string, len(types.AllCategories())),
		Settings:    map[string]any{},
	}
	if p.Name == "" {
		p.Name = slug
	}

	lists := []struct {
		cat   types.Category
		items []any
	}{
		{types.CategoryCommand, raw.Commands},
		{types.CategoryAgent, raw.Agents},
		{types.CategorySkill, raw.Skills},
		{types.CategoryPlugin, raw.Plugins},
		{types.CategoryMCP, raw.MCPs},
		{types.CategoryHook, raw.Hooks},
	}
	for _, list := range lists {
		names, err := stringList(list.items)
		if err != nil {
			return nil, fmt.Errorf("%ss: %w", list.cat, err)
		}
		p.Resources[list.cat] = names
	}

	for key, value := range raw.Settings {
		if !isScalar(value) {
			return nil, fmt.Errorf("settings.%s: value must be a scalar", key)
		}
		p.Settings[key] = value
	}

	return p, nil
}

func stringList(items []any) ([]string, error) {
	names := make([]string, 0, len(items))
	for i, item := range items {
		name, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("entry %d is not a string", i)
		}
		names = append(names, name)
	}
	return names, nil
}

func isScalar(value any) bool {
	switch value.(type) {
	case nil, string, bool, int, int64, uint64, float64:
		return true
	}
	return false
}
