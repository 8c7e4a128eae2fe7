package translator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// GitHub fetch errors.
var (
	ErrReleaseNotFound = errors.New("release not found")
	ErrGitHubRateLimit = errors.New("GitHub API rate limit exceeded")
	ErrGitHubAPI       = errors.New("GitHub API error")
)

var releaseURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/releases(?:/(?:tag/)?([^/?#\s]+))?/?$`)

// ReleaseRef identifies one GitHub release.
type ReleaseRef struct {
	Owner string
	Repo  string
	// Tag is empty for the latest release.
	Tag string
}

// ParseReleaseURL recognizes GitHub release page URLs like
// https://github.com/owner/repo/releases/tag/v1.2.3. A URL without a tag,
// or with the pseudo-tag "latest", refers to the latest release.
func ParseReleaseURL(rawURL string) (ReleaseRef, bool) {
	match := releaseURLPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if match == nil {
		return ReleaseRef{}, false
	}
	ref := ReleaseRef{Owner: match[1], Repo: match[2], Tag: match[3]}
	if ref.Tag == "latest" {
		ref.Tag = ""
	}
	return ref, true
}

// ReleaseClient fetches release bodies from the GitHub API.
type ReleaseClient struct {
	httpClient *RetryableHTTPClient
	baseURL    string
}

// NewReleaseClient creates a client on top of the shared retrying HTTP
// client. A non-empty token raises the unauthenticated rate limit.
func NewReleaseClient(httpClient *RetryableHTTPClient, token string) *ReleaseClient {
	if token != "" {
		httpClient.SetGitHubToken(token)
	}
	return &ReleaseClient{
		httpClient: httpClient,
		baseURL:    "https://api.github.com",
	}
}

// SetBaseURL overrides the API endpoint. Intended for tests.
func (c *ReleaseClient) SetBaseURL(base string) {
	c.baseURL = strings.TrimSuffix(base, "/")
}

type releaseResponse struct {
	TagName string `json:"tag_name"`
	Name    string `json:"name"`
	Body    string `json:"body"`
}

// ReleaseNotes fetches the body of the release the ref points at.
func (c *ReleaseClient) ReleaseNotes(ctx context.Context, ref ReleaseRef) (string, error) {
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases/latest", c.baseURL, ref.Owner, ref.Repo)
	if ref.Tag != "" {
		endpoint = fmt.Sprintf("%s/repos/%s/%s/releases/tags/%s", c.baseURL, ref.Owner, ref.Repo, url.PathEscape(ref.Tag))
	}

	resp, err := c.httpClient.GetWithHeaders(ctx, endpoint, map[string]string{
		"Accept": "application/vnd.github+json",
	})
	if err != nil {
		return "", fmt.Errorf("fetching release: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: %s/%s %s", ErrReleaseNotFound, ref.Owner, ref.Repo, ref.Tag)
	case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
		return "", ErrGitHubRateLimit
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("%w: status %d", ErrGitHubAPI, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading release response: %w", err)
	}

	var release releaseResponse
	if err := json.Unmarshal(data, &release); err != nil {
		return "", fmt.Errorf("parsing release response: %w", err)
	}

	body := strings.TrimSpace(release.Body)
	if body == "" {
		return "", fmt.Errorf("%w: release has no notes", ErrReleaseNotFound)
	}
	return body, nil
}
