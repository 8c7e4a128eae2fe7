package hass

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestClient wires a client to a mock server
func newTestClient(server *httptest.Server) *Client {
	return NewClient(server.URL, "test-token")
}

// TestStatesReturnsAllEntities tests fetching /api/states
func TestStatesReturnsAllEntities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/states" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		json.NewEncoder(w).Encode([]State{
			{EntityID: "update.core", State: "on"},
			{EntityID: "sensor.kitchen", State: "21.5"},
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	states, err := client.States(context.Background())
	if err != nil {
		t.Fatalf("States failed: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 states, got %d", len(states))
	}
}

// TestStatesByDomainFilters tests domain filtering
func TestStatesByDomainFilters(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]State{
			{EntityID: "update.core", State: "on"},
			{EntityID: "update.hacs", State: "off"},
			{EntityID: "sensor.kitchen", State: "21.5"},
			{EntityID: "conversation.chatgpt", State: "unknown"},
		})
	}))
	defer server.Close()

	client := newTestClient(server)
	states, err := client.StatesByDomain(context.Background(), "update")
	if err != nil {
		t.Fatalf("StatesByDomain failed: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 update entities, got %d", len(states))
	}
	for _, s := range states {
		if s.Domain() != "update" {
			t.Errorf("entity %s leaked through the domain filter", s.EntityID)
		}
	}
}

// TestStateNotFound tests the 404 sentinel error
func TestStateNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.State(context.Background(), "update.missing")
	if !errors.Is(err, ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}

// TestUnauthorized tests the 401 sentinel error
func TestUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server)
	if err := client.CheckAPI(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

// TestSetStatePostsMergedAttributes tests the state write path
func TestSetStatePostsMergedAttributes(t *testing.T) {
	var received map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/api/states/update.core" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("{}"))
	}))
	defer server.Close()

	client := newTestClient(server)
	attrs := map[string]interface{}{
		"release_summary": "translated text",
		"friendly_name":   "Home Assistant Core",
	}
	if err := client.SetState(context.Background(), "update.core", "on", attrs); err != nil {
		t.Fatalf("SetState failed: %v", err)
	}

	if received["state"] != "on" {
		t.Errorf("state = %v, want on", received["state"])
	}
	gotAttrs, ok := received["attributes"].(map[string]interface{})
	if !ok {
		t.Fatal("attributes missing from request body")
	}
	if gotAttrs["release_summary"] != "translated text" {
		t.Errorf("release_summary = %v, want translated text", gotAttrs["release_summary"])
	}
}

// TestConverseExtractsPlainSpeech tests the conversation agent call
func TestConverseExtractsPlainSpeech(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/conversation/process" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		if body["agent_id"] != "conversation.chatgpt" {
			t.Errorf("agent_id = %v", body["agent_id"])
		}
		if body["text"] == "" {
			t.Error("text must not be empty")
		}
		w.Write([]byte(`{
			"response": {
				"response_type": "action_done",
				"speech": {"plain": {"speech": "  Übersetzter Text  "}}
			},
			"conversation_id": "abc"
		}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	speech, err := client.Converse(context.Background(), "conversation.chatgpt", "translate this")
	if err != nil {
		t.Fatalf("Converse failed: %v", err)
	}
	if speech != "Übersetzter Text" {
		t.Errorf("speech = %q, want trimmed translation", speech)
	}
}

// TestConverseEmptySpeech tests the empty-reply sentinel
func TestConverseEmptySpeech(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": {"response_type": "action_done", "speech": {"plain": {"speech": ""}}}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Converse(context.Background(), "conversation.chatgpt", "translate this")
	if !errors.Is(err, ErrEmptySpeech) {
		t.Errorf("expected ErrEmptySpeech, got %v", err)
	}
}

// TestConverseAgentError tests agent-reported errors
func TestConverseAgentError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response": {"response_type": "error", "speech": {"plain": {"speech": "boom"}}}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	_, err := client.Converse(context.Background(), "conversation.chatgpt", "translate this")
	if !errors.Is(err, ErrAPIError) {
		t.Errorf("expected ErrAPIError, got %v", err)
	}
}

// TestStateHelpers tests the State convenience accessors
func TestStateHelpers(t *testing.T) {
	s := &State{
		EntityID: "update.core",
		Attributes: map[string]interface{}{
			"friendly_name":   "Core",
			"release_summary": "notes",
			"in_progress":     false,
		},
	}

	if s.Domain() != "update" {
		t.Errorf("Domain = %q, want update", s.Domain())
	}
	if s.StringAttr("release_summary") != "notes" {
		t.Error("StringAttr should return string attributes")
	}
	if s.StringAttr("in_progress") != "" {
		t.Error("StringAttr should return empty for non-string attributes")
	}
	if s.StringAttr("missing") != "" {
		t.Error("StringAttr should return empty for missing attributes")
	}
	if s.FriendlyName() != "Core" {
		t.Errorf("FriendlyName = %q, want Core", s.FriendlyName())
	}

	bare := &State{EntityID: "update.bare"}
	if bare.FriendlyName() != "update.bare" {
		t.Error("FriendlyName should fall back to the entity ID")
	}
}
