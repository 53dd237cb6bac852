package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/adamancini/clasp/internal/session"
	"github.com/adamancini/clasp/internal/types"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"text", FormatText, false},
		{"", FormatText, false},
		{"json", FormatJSON, false},
		{"yaml", FormatYAML, false},
		{"yml", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func sampleDiff() *session.Diff {
	return &session.Diff{
		Profile: &session.ProfileChange{Before: "", After: "standard"},
		Categories: map[types.Category]session.CategoryDiff{
			types.CategoryCommand: {ToAdd: []string{"deploy"}, ToRemove: []string{"old-cmd"}},
			types.CategorySkill:   {},
		},
		Settings: []session.SettingChange{
			{Key: "model", After: "opus"},
			{Key: "effortLevel", Before: "high", BeforeScope: types.ScopeUser, After: "low"},
			{Key: "verbose", Before: true, BeforeScope: types.ScopeProject},
		},
	}
}

func TestBuildDiffReport(t *testing.T) {
	report := BuildDiffReport(sampleDiff())

	if report.Profile == nil || report.Profile.After != "standard" {
		t.Errorf("Profile = %+v", report.Profile)
	}
	if len(report.Categories) != 1 {
		t.Fatalf("Categories = %+v, empty categories should be dropped", report.Categories)
	}
	cc := report.Categories[0]
	if cc.Category != "command" || cc.Add[0] != "deploy" || cc.Remove[0] != "old-cmd" {
		t.Errorf("Categories[0] = %+v", cc)
	}
	if len(report.Settings) != 3 {
		t.Fatalf("Settings = %+v", report.Settings)
	}
	if report.Settings[1].BeforeScope != "user" {
		t.Errorf("BeforeScope = %q, want user", report.Settings[1].BeforeScope)
	}
	// A new key carries no before scope.
	if report.Settings[0].BeforeScope != "" {
		t.Errorf("new key BeforeScope = %q", report.Settings[0].BeforeScope)
	}
}

func TestDiffReportString(t *testing.T) {
	got := BuildDiffReport(sampleDiff()).String()

	for _, want := range []string{
		"Pending changes:",
		"profile: (none) -> standard",
		"+ deploy",
		"- old-cmd",
		"+ model = opus",
		"~ effortLevel: high (user) -> low",
		"- verbose (was true)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("String() missing %q:\n%s", want, got)
		}
	}
}

func TestDiffReportEmpty(t *testing.T) {
	report := BuildDiffReport(&session.Diff{Categories: map[types.Category]session.CategoryDiff{}})
	if !report.Empty() {
		t.Error("Empty() = false for an empty diff")
	}
	if got := report.String(); !strings.Contains(got, "No changes") {
		t.Errorf("String() = %q", got)
	}
}

func TestWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	report := BuildDiffReport(sampleDiff())
	if err := NewWriter(&buf, FormatJSON).Write(report); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var decoded DiffReport
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Profile == nil || decoded.Profile.After != "standard" {
		t.Errorf("decoded = %+v", decoded)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("JSON output should be indented")
	}
}

func TestWriterYAML(t *testing.T) {
	var buf bytes.Buffer
	report := BuildDiffReport(sampleDiff())
	if err := NewWriter(&buf, FormatYAML).Write(report); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	var decoded DiffReport
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid YAML: %v\n%s", err, buf.String())
	}
	if len(decoded.Categories) != 1 || decoded.Categories[0].Category != "command" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriterTextUsesStringer(t *testing.T) {
	var buf bytes.Buffer
	report := BuildDiffReport(sampleDiff())
	if err := NewWriter(&buf, FormatText).Write(report); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.HasPrefix(buf.String(), "Pending changes:") {
		t.Errorf("text output = %q", buf.String())
	}
}

func TestAuditReportString(t *testing.T) {
	empty := &AuditReport{}
	if got := empty.String(); !strings.Contains(got, "No cross-scope problems") {
		t.Errorf("String() = %q", got)
	}
}

func TestEffectiveReportString(t *testing.T) {
	report := &EffectiveReport{Settings: []EffectiveEntry{
		{Key: "model", Value: "opus", Origin: "project"},
	}}
	got := report.String()
	if !strings.Contains(got, "model") || !strings.Contains(got, "[project]") {
		t.Errorf("String() = %q", got)
	}
	if got := (&EffectiveReport{}).String(); !strings.Contains(got, "No settings") {
		t.Errorf("empty String() = %q", got)
	}
}
