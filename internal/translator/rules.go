package translator

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Rule customizes how one update entity is handled.
type Rule struct {
	// Ignore excludes the entity from translation entirely.
	Ignore bool `toml:"ignore"`
	// SourceAttribute names the attribute to read notes from instead of
	// scanning the default candidates.
	SourceAttribute string `toml:"source_attribute"`
	// NotesURL is fetched when the entity itself carries no notes text.
	NotesURL string `toml:"notes_url"`
	// Parser selects how the NotesURL body is interpreted: "json",
	// "regex", "css" or "xpath". Empty means the raw body is used.
	Parser string `toml:"parser"`
	// Path is the dotted field path for the json parser.
	Path string `toml:"path"`
	// Pattern is the regular expression for the regex parser. The first
	// capture group, when present, is the extracted text.
	Pattern string `toml:"pattern"`
	// Selector is the goquery selector for the css parser.
	Selector string `toml:"selector"`
	// XPath is the expression for the xpath parser.
	XPath string `toml:"xpath"`
}

// Rules holds per-entity overrides loaded from entities.toml.
type Rules struct {
	Entities map[string]Rule `toml:"entities"`
}

// For returns the rule for an entity, or a zero rule when none is set.
func (r *Rules) For(entityID string) Rule {
	if r == nil || r.Entities == nil {
		return Rule{}
	}
	return r.Entities[entityID]
}

// LoadRules reads entity rules from path. A missing file yields empty
// rules, not an error.
func LoadRules(path string) (*Rules, error) {
	rules := &Rules{Entities: make(map[string]Rule)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return rules, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading rules %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("parsing rules %s: %w", path, err)
	}
	if rules.Entities == nil {
		rules.Entities = make(map[string]Rule)
	}

	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules %s: %w", path, err)
	}
	return rules, nil
}

// Validate checks every rule for internal consistency.
func (r *Rules) Validate() error {
	var problems []string

	for entityID, rule := range r.Entities {
		if !strings.HasPrefix(entityID, "update.") {
			problems = append(problems, fmt.Sprintf("%s: not an update entity", entityID))
		}
		switch rule.Parser {
		case "", "json", "regex", "css", "xpath":
		default:
			problems = append(problems, fmt.Sprintf("%s: unknown parser %q", entityID, rule.Parser))
			continue
		}
		if rule.Parser != "" && rule.NotesURL == "" {
			problems = append(problems, fmt.Sprintf("%s: parser set without notes_url", entityID))
		}
		if rule.Parser == "json" && rule.Path == "" {
			problems = append(problems, fmt.Sprintf("%s: json parser requires path", entityID))
		}
		if rule.Parser == "regex" && rule.Pattern == "" {
			problems = append(problems, fmt.Sprintf("%s: regex parser requires pattern", entityID))
		}
		if rule.Parser == "css" && rule.Selector == "" {
			problems = append(problems, fmt.Sprintf("%s: css parser requires selector", entityID))
		}
		if rule.Parser == "xpath" && rule.XPath == "" {
			problems = append(problems, fmt.Sprintf("%s: xpath parser requires xpath", entityID))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}
