package preset

import (
	"reflect"
	"strings"
	"testing"

	"github.com/adamancini/clasp/internal/types"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		content string
		want    Format
	}{
		{"json extension", "p.json", "", FormatJSON},
		{"yaml extension", "p.yaml", "", FormatYAML},
		{"yml extension", "p.yml", "", FormatYAML},
		{"toml extension", "p.toml", "", FormatTOML},
		{"uppercase extension", "p.JSON", "", FormatJSON},
		{"sniffed json object", "p", `{"profile": "x"}`, FormatJSON},
		{"sniffed json array", "p", `[1]`, FormatJSON},
		{"sniffed toml assignment", "p", `profile = "x"`, FormatTOML},
		{"sniffed toml section", "p", "[meta]\nname = \"x\"", FormatTOML},
		{"sniffed yaml mapping", "p", "profile: x", FormatYAML},
		{"sniffed yaml after comment", "p", "# note\nprofile: x", FormatYAML},
		{"unknown content", "p", "just words", FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectFormat(tt.path, []byte(tt.content)); got != tt.want {
				t.Errorf("detectFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseAllFormats(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		content string
	}{
		{
			"json", FormatJSON,
			`{"meta": {"name": "Go Service", "description": "d"}, "profile": "standard",
			  "commands": ["deploy"], "skills": ["code-review"], "settings": {"model": "sonnet"}}`,
		},
		{
			"yaml", FormatYAML,
			"meta:\n  name: Go Service\n  description: d\nprofile: standard\ncommands:\n  - deploy\nskills:\n  - code-review\nsettings:\n  model: sonnet\n",
		},
		{
			"toml", FormatTOML,
			"profile = \"standard\"\ncommands = [\"deploy\"]\nskills = [\"code-review\"]\n\n[meta]\nname = \"Go Service\"\ndescription = \"d\"\n\n[settings]\nmodel = \"sonnet\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := parse("go-service", []byte(tt.content), tt.format)
			if err != nil {
				t.Fatalf("parse() error = %v", err)
			}
			if p.Name != "Go Service" || p.Profile != "standard" {
				t.Errorf("parse() = %+v", p)
			}
			if !reflect.DeepEqual(p.Resources[types.CategoryCommand], []string{"deploy"}) {
				t.Errorf("commands = %v", p.Resources[types.CategoryCommand])
			}
			if !reflect.DeepEqual(p.Resources[types.CategorySkill], []string{"code-review"}) {
				t.Errorf("skills = %v", p.Resources[types.CategorySkill])
			}
			if p.Settings["model"] != "sonnet" {
				t.Errorf("settings = %v", p.Settings)
			}
		})
	}
}

func TestParseStrictness(t *testing.T) {
	tests := []struct {
		name    string
		content string
		format  Format
		wantErr string
	}{
		{"missing profile", `{"commands": ["deploy"]}`, FormatJSON, "profile"},
		{"non-string resource entry", `{"profile": "p", "commands": [1]}`, FormatJSON, "not a string"},
		{"non-scalar setting", `{"profile": "p", "settings": {"hooks": {"a": 1}}}`, FormatJSON, "scalar"},
		{"malformed document", `{nope`, FormatJSON, "parse error"},
		{"unknown format", "whatever", FormatUnknown, "unknown file format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parse("slug", []byte(tt.content), tt.format)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseNameFallsBackToSlug(t *testing.T) {
	p, err := parse("bare", []byte(`{"profile": ""}`), FormatJSON)
	if err != nil {
		t.Fatalf("parse() error = %v", err)
	}
	if p.Name != "bare" {
		t.Errorf("Name = %q, want slug fallback", p.Name)
	}
}
