package translator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "entities.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadRules_MissingFileIsEmpty(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "entities.toml"))
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	if len(rules.Entities) != 0 {
		t.Errorf("expected empty rules, got %d", len(rules.Entities))
	}
	if rule := rules.For("update.anything"); rule.Ignore {
		t.Error("zero rule should not ignore")
	}
}

func TestLoadRules_ParsesEntities(t *testing.T) {
	path := writeRules(t, `
[entities."update.firmware_gateway"]
ignore = true

[entities."update.widget"]
source_attribute = "changelog"

[entities."update.gadget"]
notes_url = "https://example.com/releases.json"
parser = "json"
path = "latest.body"
`)

	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}

	if !rules.For("update.firmware_gateway").Ignore {
		t.Error("ignore rule not loaded")
	}
	if got := rules.For("update.widget").SourceAttribute; got != "changelog" {
		t.Errorf("SourceAttribute = %q", got)
	}

	gadget := rules.For("update.gadget")
	if gadget.NotesURL != "https://example.com/releases.json" || gadget.Parser != "json" || gadget.Path != "latest.body" {
		t.Errorf("gadget rule = %+v", gadget)
	}
}

func TestLoadRules_InvalidTOML(t *testing.T) {
	path := writeRules(t, "entities = not toml")
	if _, err := LoadRules(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestRulesValidate(t *testing.T) {
	tests := []struct {
		name    string
		rules   Rules
		wantErr string
	}{
		{
			name: "valid rules",
			rules: Rules{Entities: map[string]Rule{
				"update.a": {Ignore: true},
				"update.b": {NotesURL: "https://example.com", Parser: "regex", Pattern: `v\d+`},
			}},
		},
		{
			name:    "non-update entity",
			rules:   Rules{Entities: map[string]Rule{"sensor.temp": {Ignore: true}}},
			wantErr: "not an update entity",
		},
		{
			name:    "unknown parser",
			rules:   Rules{Entities: map[string]Rule{"update.a": {NotesURL: "https://x", Parser: "yaml"}}},
			wantErr: "unknown parser",
		},
		{
			name:    "parser without notes_url",
			rules:   Rules{Entities: map[string]Rule{"update.a": {Parser: "json", Path: "body"}}},
			wantErr: "parser set without notes_url",
		},
		{
			name:    "json without path",
			rules:   Rules{Entities: map[string]Rule{"update.a": {NotesURL: "https://x", Parser: "json"}}},
			wantErr: "json parser requires path",
		},
		{
			name:    "regex without pattern",
			rules:   Rules{Entities: map[string]Rule{"update.a": {NotesURL: "https://x", Parser: "regex"}}},
			wantErr: "regex parser requires pattern",
		},
		{
			name:    "css without selector",
			rules:   Rules{Entities: map[string]Rule{"update.a": {NotesURL: "https://x", Parser: "css"}}},
			wantErr: "css parser requires selector",
		},
		{
			name:    "xpath without expression",
			rules:   Rules{Entities: map[string]Rule{"update.a": {NotesURL: "https://x", Parser: "xpath"}}},
			wantErr: "xpath parser requires xpath",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rules.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
