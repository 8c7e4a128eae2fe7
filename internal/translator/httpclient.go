package translator

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"
)

// RetryConfig controls retry behavior for release-note fetches.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Timeout      time.Duration
}

// DefaultRetryConfig returns sensible retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     4 * time.Second,
		Timeout:      30 * time.Second,
	}
}

// RetryableHTTPClient wraps http.Client with exponential backoff on
// transient failures (network errors, 5xx responses and 429 rate limits).
type RetryableHTTPClient struct {
	client      *http.Client
	config      RetryConfig
	githubToken string

	// delayFunc lets tests observe and skip backoff sleeps.
	delayFunc      func(time.Duration)
	recordedDelays []time.Duration
}

// NewRetryableHTTPClient creates a client with the given retry configuration.
func NewRetryableHTTPClient(config RetryConfig) *RetryableHTTPClient {
	return &RetryableHTTPClient{
		client: &http.Client{
			Timeout: config.Timeout,
		},
		config:    config,
		delayFunc: time.Sleep,
	}
}

// SetGitHubToken sets a token to attach to api.github.com requests. The
// token may reference an environment variable as ${VAR}.
func (c *RetryableHTTPClient) SetGitHubToken(token string) {
	c.githubToken = SubstituteEnvVars(token)
}

// SetDelayFunc replaces the backoff sleep. Intended for tests.
func (c *RetryableHTTPClient) SetDelayFunc(f func(time.Duration)) {
	c.delayFunc = f
}

// RecordedDelays returns the backoff delays applied so far.
func (c *RetryableHTTPClient) RecordedDelays() []time.Duration {
	return c.recordedDelays
}

// SetTransport replaces the underlying transport. Intended for tests.
func (c *RetryableHTTPClient) SetTransport(t http.RoundTripper) {
	c.client.Transport = t
}

// Get performs a GET request with retries.
func (c *RetryableHTTPClient) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.GetWithHeaders(ctx, rawURL, nil)
}

// GetWithHeaders performs a GET request with custom headers and retries.
// Header values may reference environment variables as ${VAR}.
func (c *RetryableHTTPClient) GetWithHeaders(ctx context.Context, rawURL string, headers map[string]string) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoffDelay(attempt)
			c.recordedDelays = append(c.recordedDelays, delay)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			c.delayFunc(delay)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request for %s: %w", rawURL, err)
		}
		req.Header.Set("User-Agent", "hatrans")
		for k, v := range headers {
			req.Header.Set(k, SubstituteEnvVars(v))
		}
		if c.githubToken != "" && isGitHubAPIURL(rawURL) {
			req.Header.Set("Authorization", "Bearer "+c.githubToken)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if !isRetryableStatus(resp.StatusCode) {
			return resp, nil
		}
		lastErr = fmt.Errorf("server returned %s", resp.Status)
		resp.Body.Close()
	}

	return nil, fmt.Errorf("request to %s failed after %d attempts: %w", rawURL, c.config.MaxRetries+1, lastErr)
}

func (c *RetryableHTTPClient) backoffDelay(attempt int) time.Duration {
	delay := time.Duration(float64(c.config.InitialDelay) * math.Pow(2, float64(attempt-1)))
	if delay > c.config.MaxDelay {
		delay = c.config.MaxDelay
	}
	return delay
}

func isRetryableStatus(code int) bool {
	return code >= 500 || code == http.StatusTooManyRequests
}

func isGitHubAPIURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Host == "api.github.com"
}

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// SubstituteEnvVars replaces ${VAR} references with environment values.
// Unset variables expand to the empty string.
func SubstituteEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}
