package translator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hatrans/hatrans/internal/hass"
)

// ErrNoNotes means no release-note text could be found for an entity.
var ErrNoNotes = errors.New("no release notes available")

// candidateAttributes is the scan order for note-bearing attributes.
var candidateAttributes = []string{
	"summary",
	"release_summary",
	"release_notes",
	"latest_version_notes",
	"changelog",
	"body",
	"notes",
}

// Notes is resolved release-note text plus where it came from.
type Notes struct {
	Text string
	// Source is "attribute:<name>", "github:<owner>/<repo>" or
	// "url:<notes_url>".
	Source    string
	FromCache bool
}

// Resolver finds release-note text for an update entity. Attribute text is
// preferred; a bare GitHub release URL (in an attribute or in release_url)
// is expanded to the release body; a rule-configured notes URL is fetched
// and run through the rule's parser. Fetched results are cached by URL.
type Resolver struct {
	releases   *ReleaseClient
	httpClient *RetryableHTTPClient
	cache      *NotesCache
	limiter    *RateLimiter
}

// NewResolver creates a resolver. cache and limiter may be nil, which
// disables caching and rate limiting.
func NewResolver(releases *ReleaseClient, httpClient *RetryableHTTPClient, cache *NotesCache, limiter *RateLimiter) *Resolver {
	return &Resolver{
		releases:   releases,
		httpClient: httpClient,
		cache:      cache,
		limiter:    limiter,
	}
}

// Resolve returns the release notes for the entity, honoring the rule's
// source_attribute and notes_url overrides. bypassCache forces a refetch
// even when a fresh cached body exists.
func (r *Resolver) Resolve(ctx context.Context, state *hass.State, rule Rule, bypassCache bool) (Notes, error) {
	text, attr := r.attributeText(state, rule)

	if text != "" {
		if ref, ok := ParseReleaseURL(text); ok {
			return r.fromGitHub(ctx, text, ref, bypassCache)
		}
		return Notes{Text: text, Source: "attribute:" + attr}, nil
	}

	if rule.NotesURL != "" {
		return r.fromRuleURL(ctx, rule, bypassCache)
	}

	if releaseURL := state.StringAttr("release_url"); releaseURL != "" {
		if ref, ok := ParseReleaseURL(releaseURL); ok {
			return r.fromGitHub(ctx, releaseURL, ref, bypassCache)
		}
	}

	return Notes{}, fmt.Errorf("%w: %s", ErrNoNotes, state.EntityID)
}

// attributeText scans the entity for note text, returning the text and the
// attribute it came from.
func (r *Resolver) attributeText(state *hass.State, rule Rule) (string, string) {
	attrs := candidateAttributes
	if rule.SourceAttribute != "" {
		attrs = []string{rule.SourceAttribute}
	}
	for _, attr := range attrs {
		if text := strings.TrimSpace(state.StringAttr(attr)); text != "" {
			return text, attr
		}
	}
	return "", ""
}

func (r *Resolver) fromGitHub(ctx context.Context, cacheKey string, ref ReleaseRef, bypassCache bool) (Notes, error) {
	source := fmt.Sprintf("github:%s/%s", ref.Owner, ref.Repo)

	if r.cache != nil && !bypassCache {
		if entry, ok := r.cache.Get(cacheKey); ok {
			return Notes{Text: entry.Body, Source: entry.Source, FromCache: true}, nil
		}
	}
	if r.limiter != nil {
		if err := r.limiter.WaitHTTP(ctx, "https://api.github.com"); err != nil {
			return Notes{}, err
		}
	}

	body, err := r.releases.ReleaseNotes(ctx, ref)
	if err != nil {
		return Notes{}, err
	}

	if r.cache != nil {
		if err := r.cache.Set(cacheKey, body, source); err != nil {
			return Notes{}, fmt.Errorf("caching release notes: %w", err)
		}
	}
	return Notes{Text: body, Source: source}, nil
}

func (r *Resolver) fromRuleURL(ctx context.Context, rule Rule, bypassCache bool) (Notes, error) {
	source := "url:" + rule.NotesURL

	if r.cache != nil && !bypassCache {
		if entry, ok := r.cache.Get(rule.NotesURL); ok {
			return Notes{Text: entry.Body, Source: entry.Source, FromCache: true}, nil
		}
	}

	parser, err := NewParserForRule(rule)
	if err != nil {
		return Notes{}, err
	}

	if r.limiter != nil {
		if err := r.limiter.WaitHTTP(ctx, rule.NotesURL); err != nil {
			return Notes{}, err
		}
	}

	resp, err := r.httpClient.Get(ctx, rule.NotesURL)
	if err != nil {
		return Notes{}, fmt.Errorf("fetching notes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return Notes{}, fmt.Errorf("fetching notes: status %d from %s", resp.StatusCode, rule.NotesURL)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Notes{}, fmt.Errorf("reading notes response: %w", err)
	}

	text, err := parser.Parse(data)
	if err != nil {
		return Notes{}, fmt.Errorf("extracting notes from %s: %w", rule.NotesURL, err)
	}

	if r.cache != nil {
		if err := r.cache.Set(rule.NotesURL, text, source); err != nil {
			return Notes{}, fmt.Errorf("caching notes: %w", err)
		}
	}
	return Notes{Text: text, Source: source}, nil
}
