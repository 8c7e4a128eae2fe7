package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Parser errors.
var (
	ErrPathNotFound = errors.New("path not found in document")
	ErrNoMatch      = errors.New("pattern did not match")
	ErrEmptyResult  = errors.New("extracted text is empty")
)

// NotesParser extracts release-note text from a fetched document.
type NotesParser interface {
	Parse(data []byte) (string, error)
}

// NewParserForRule builds the parser a rule asks for. A rule without a
// parser gets RawParser, which passes the body through unchanged.
func NewParserForRule(rule Rule) (NotesParser, error) {
	switch rule.Parser {
	case "":
		return RawParser{}, nil
	case "json":
		return NewJSONParser(rule.Path)
	case "regex":
		return NewRegexParser(rule.Pattern)
	case "css":
		return NewCSSParser(rule.Selector)
	case "xpath":
		return NewXPathParser(rule.XPath)
	default:
		return nil, fmt.Errorf("unknown parser %q", rule.Parser)
	}
}

// RawParser returns the whole body, trimmed.
type RawParser struct{}

// Parse implements NotesParser.
func (RawParser) Parse(data []byte) (string, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

// JSONParser extracts a string field from a JSON document by dotted path,
// e.g. "body" or "release.notes" or "entries.0.text".
type JSONParser struct {
	path []string
}

// NewJSONParser creates a parser for the given dotted path.
func NewJSONParser(path string) (*JSONParser, error) {
	if path == "" {
		return nil, errors.New("json parser requires a path")
	}
	return &JSONParser{path: strings.Split(path, ".")}, nil
}

// Parse implements NotesParser.
func (p *JSONParser) Parse(data []byte) (string, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parsing JSON: %w", err)
	}

	current := doc
	for _, segment := range p.path {
		switch node := current.(type) {
		case map[string]interface{}:
			next, ok := node[segment]
			if !ok {
				return "", fmt.Errorf("%w: %s", ErrPathNotFound, segment)
			}
			current = next
		case []interface{}:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return "", fmt.Errorf("%w: %s", ErrPathNotFound, segment)
			}
			current = node[idx]
		default:
			return "", fmt.Errorf("%w: %s", ErrPathNotFound, segment)
		}
	}

	text, ok := current.(string)
	if !ok {
		return "", fmt.Errorf("value at path is not a string")
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}

// RegexParser extracts text with a regular expression. The first capture
// group, when present, is returned; otherwise the whole match.
type RegexParser struct {
	pattern *regexp.Regexp
}

// NewRegexParser compiles the pattern.
func NewRegexParser(pattern string) (*RegexParser, error) {
	if pattern == "" {
		return nil, errors.New("regex parser requires a pattern")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling pattern: %w", err)
	}
	return &RegexParser{pattern: re}, nil
}

// Parse implements NotesParser.
func (p *RegexParser) Parse(data []byte) (string, error) {
	match := p.pattern.FindSubmatch(data)
	if match == nil {
		return "", ErrNoMatch
	}

	var text string
	if len(match) > 1 {
		text = string(match[1])
	} else {
		text = string(match[0])
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResult
	}
	return text, nil
}
