package translator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/hatrans/hatrans/internal/hass"
)

// fakeHome is an in-memory stand-in for the Home Assistant states API.
type fakeHome struct {
	mu       sync.Mutex
	states   map[string]*hass.State
	setCalls int
	failSet  bool
}

func newFakeHome(states ...*hass.State) *fakeHome {
	home := &fakeHome{states: make(map[string]*hass.State)}
	for _, s := range states {
		home.states[s.EntityID] = s
	}
	return home
}

func (h *fakeHome) State(ctx context.Context, entityID string) (*hass.State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s, ok := h.states[entityID]
	if !ok {
		return nil, hass.ErrEntityNotFound
	}
	copied := *s
	copied.Attributes = make(map[string]interface{}, len(s.Attributes))
	for k, v := range s.Attributes {
		copied.Attributes[k] = v
	}
	return &copied, nil
}

func (h *fakeHome) SetState(ctx context.Context, entityID, state string, attributes map[string]interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.setCalls++
	if h.failSet {
		return errors.New("write rejected")
	}
	h.states[entityID] = &hass.State{
		EntityID:   entityID,
		State:      state,
		Attributes: attributes,
	}
	return nil
}

func (h *fakeHome) StatesByDomain(ctx context.Context, domain string) ([]hass.State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []hass.State
	for _, s := range h.states {
		if strings.HasPrefix(s.EntityID, domain+".") {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out, nil
}

func (h *fakeHome) attr(entityID, name string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok := h.states[entityID]; ok {
		if v, ok := s.Attributes[name].(string); ok {
			return v
		}
	}
	return ""
}

func TestWriter_Apply(t *testing.T) {
	home := newFakeHome(&hass.State{
		EntityID: "update.widget",
		State:    "on",
		Attributes: map[string]interface{}{
			"friendly_name":     "Widget",
			"installed_version": "1.0.0",
			"latest_version":    "1.1.0",
			"release_summary":   "Bug fixes",
		},
	})

	writer := NewWriter(home, false)
	if err := writer.Apply(context.Background(), "update.widget", "修复了一些问题"); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if got := home.attr("update.widget", "release_summary"); got != "修复了一些问题" {
		t.Errorf("release_summary = %q", got)
	}
	// Everything else must survive the write.
	if got := home.attr("update.widget", "friendly_name"); got != "Widget" {
		t.Errorf("friendly_name = %q", got)
	}
	if got := home.attr("update.widget", "latest_version"); got != "1.1.0" {
		t.Errorf("latest_version = %q", got)
	}
	if home.states["update.widget"].State != "on" {
		t.Errorf("state = %q, must be preserved", home.states["update.widget"].State)
	}
}

func TestWriter_MirrorMode(t *testing.T) {
	home := newFakeHome(&hass.State{
		EntityID: "update.widget",
		State:    "on",
		Attributes: map[string]interface{}{
			"release_summary": "Bug fixes",
			"summary":         "Bug fixes",
		},
	})

	writer := NewWriter(home, true)
	if err := writer.Apply(context.Background(), "update.widget", "译文"); err != nil {
		t.Fatal(err)
	}

	for _, attr := range []string{"release_summary", "summary", "release_notes", "latest_version_notes"} {
		if got := home.attr("update.widget", attr); got != "译文" {
			t.Errorf("%s = %q, want mirrored translation", attr, got)
		}
	}
}

func TestWriter_NoMirrorByDefault(t *testing.T) {
	home := newFakeHome(&hass.State{
		EntityID: "update.widget",
		State:    "on",
		Attributes: map[string]interface{}{
			"release_summary": "Bug fixes",
			"summary":         "original summary",
		},
	})

	writer := NewWriter(home, false)
	if err := writer.Apply(context.Background(), "update.widget", "译文"); err != nil {
		t.Fatal(err)
	}

	if got := home.attr("update.widget", "summary"); got != "original summary" {
		t.Errorf("summary = %q, only release_summary may change", got)
	}
}

func TestWriter_EmptyTranslation(t *testing.T) {
	home := newFakeHome()
	writer := NewWriter(home, false)

	if err := writer.Apply(context.Background(), "update.widget", ""); !errors.Is(err, ErrEmptyTranslation) {
		t.Errorf("expected ErrEmptyTranslation, got %v", err)
	}
	if home.setCalls != 0 {
		t.Error("no write may happen for an empty translation")
	}
}

func TestWriter_MissingEntity(t *testing.T) {
	writer := NewWriter(newFakeHome(), false)

	err := writer.Apply(context.Background(), "update.gone", "text")
	if !errors.Is(err, hass.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestWriter_WriteFailure(t *testing.T) {
	home := newFakeHome(&hass.State{
		EntityID:   "update.widget",
		State:      "on",
		Attributes: map[string]interface{}{"release_summary": "original"},
	})
	home.failSet = true

	writer := NewWriter(home, false)
	err := writer.Apply(context.Background(), "update.widget", "译文")
	if err == nil {
		t.Fatal("expected write error")
	}
	if !strings.Contains(err.Error(), "update.widget") {
		t.Errorf("error should name the entity: %v", err)
	}
	if got := home.attr("update.widget", "release_summary"); got != "original" {
		t.Errorf("failed write must leave the summary alone, got %q", got)
	}
}

func ExampleWriter_Apply() {
	home := newFakeHome(&hass.State{
		EntityID:   "update.widget",
		State:      "on",
		Attributes: map[string]interface{}{"release_summary": "Bug fixes"},
	})

	writer := NewWriter(home, false)
	writer.Apply(context.Background(), "update.widget", "修复了一些问题")

	fmt.Println(home.attr("update.widget", "release_summary"))
	// Output: 修复了一些问题
}
