// Package hass is a minimal client for the Home Assistant REST API.
package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrUnauthorized indicates the access token was rejected
	ErrUnauthorized = errors.New("home assistant rejected the access token")
	// ErrEntityNotFound indicates the requested entity does not exist
	ErrEntityNotFound = errors.New("entity not found")
	// ErrAPIError indicates a general Home Assistant API error
	ErrAPIError = errors.New("home assistant API error")
	// ErrEmptySpeech indicates the conversation agent returned no speech text
	ErrEmptySpeech = errors.New("conversation agent returned empty speech")
)

// State represents an entity state as returned by /api/states
type State struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastUpdated time.Time              `json:"last_updated"`
}

// Domain returns the entity domain (the part before the first dot)
func (s *State) Domain() string {
	if i := strings.Index(s.EntityID, "."); i > 0 {
		return s.EntityID[:i]
	}
	return ""
}

// StringAttr returns a string attribute, or "" when the attribute is
// missing or not a string.
func (s *State) StringAttr(name string) string {
	v, ok := s.Attributes[name]
	if !ok {
		return ""
	}
	str, ok := v.(string)
	if !ok {
		return ""
	}
	return str
}

// FriendlyName returns the friendly_name attribute, falling back to the entity ID
func (s *State) FriendlyName() string {
	if name := s.StringAttr("friendly_name"); name != "" {
		return name
	}
	return s.EntityID
}

// Client handles communication with the Home Assistant REST API
type Client struct {
	BaseURL    string
	Token      string
	UserAgent  string
	HTTPClient *http.Client
}

// NewClient creates a new Home Assistant API client.
// baseURL is the server root, e.g. http://homeassistant.local:8123.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Token:     token,
		UserAgent: "hatrans/1.0",
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do executes a request against the API and decodes the JSON response into out.
// out may be nil when the response body is not needed.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return err
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Authorization", "Bearer "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrEntityNotFound
	case resp.StatusCode >= 300:
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrAPIError, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// CheckAPI verifies the API is reachable and the token is accepted
func (c *Client) CheckAPI(ctx context.Context) error {
	var resp struct {
		Message string `json:"message"`
	}
	return c.do(ctx, http.MethodGet, "/api/", nil, &resp)
}

// States returns the state of every entity
func (c *Client) States(ctx context.Context) ([]State, error) {
	var states []State
	if err := c.do(ctx, http.MethodGet, "/api/states", nil, &states); err != nil {
		return nil, err
	}
	return states, nil
}

// StatesByDomain returns the state of every entity in the given domain
func (c *Client) StatesByDomain(ctx context.Context, domain string) ([]State, error) {
	states, err := c.States(ctx)
	if err != nil {
		return nil, err
	}

	filtered := states[:0]
	for _, s := range states {
		if s.Domain() == domain {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

// State returns the state of a single entity
func (c *Client) State(ctx context.Context, entityID string) (*State, error) {
	var state State
	if err := c.do(ctx, http.MethodGet, "/api/states/"+entityID, nil, &state); err != nil {
		if errors.Is(err, ErrEntityNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEntityNotFound, entityID)
		}
		return nil, err
	}
	return &state, nil
}

// SetState writes an entity state and attribute set back to Home Assistant.
// The attributes map replaces the entity's attributes wholesale, so callers
// must pass the full merged set.
func (c *Client) SetState(ctx context.Context, entityID, state string, attributes map[string]interface{}) error {
	body := map[string]interface{}{
		"state":      state,
		"attributes": attributes,
	}
	return c.do(ctx, http.MethodPost, "/api/states/"+entityID, body, nil)
}

// conversationResponse mirrors the /api/conversation/process payload
type conversationResponse struct {
	Response struct {
		ResponseType string `json:"response_type"`
		Speech       struct {
			Plain struct {
				Speech string `json:"speech"`
			} `json:"plain"`
		} `json:"speech"`
	} `json:"response"`
	ConversationID string `json:"conversation_id"`
}

// Converse sends text to a conversation agent and returns the plain speech reply
func (c *Client) Converse(ctx context.Context, agentID, text string) (string, error) {
	body := map[string]interface{}{
		"text":     text,
		"agent_id": agentID,
	}

	var resp conversationResponse
	if err := c.do(ctx, http.MethodPost, "/api/conversation/process", body, &resp); err != nil {
		return "", err
	}

	if resp.Response.ResponseType == "error" {
		return "", fmt.Errorf("%w: agent %s reported an error", ErrAPIError, agentID)
	}

	speech := strings.TrimSpace(resp.Response.Speech.Plain.Speech)
	if speech == "" {
		return "", fmt.Errorf("%w: agent %s", ErrEmptySpeech, agentID)
	}
	return speech, nil
}
