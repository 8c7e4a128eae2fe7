package translator

import (
	"context"
	"errors"
	"fmt"

	"github.com/hatrans/hatrans/internal/hass"
)

// ErrEmptyTranslation is returned when asked to write an empty summary.
var ErrEmptyTranslation = errors.New("refusing to write empty translation")

// mirroredAttributes are additionally overwritten in mirror mode.
var mirroredAttributes = []string{
	"summary",
	"release_notes",
	"latest_version_notes",
}

// StateStore is the slice of the Home Assistant API the writer needs.
// *hass.Client satisfies it.
type StateStore interface {
	State(ctx context.Context, entityID string) (*hass.State, error)
	SetState(ctx context.Context, entityID, state string, attributes map[string]interface{}) error
}

// Writer pushes translated summaries back into update entities. Only
// release_summary is replaced; state and every other attribute are
// re-posted unchanged. Mirror mode additionally overwrites the summary,
// release_notes and latest_version_notes attributes for dashboards that
// read those instead.
type Writer struct {
	store  StateStore
	mirror bool
}

// NewWriter creates a Writer. mirror enables mirror mode.
func NewWriter(store StateStore, mirror bool) *Writer {
	return &Writer{store: store, mirror: mirror}
}

// Apply writes the translation into the entity, reading the current state
// first so concurrent attribute changes by the owning integration are
// preserved.
func (w *Writer) Apply(ctx context.Context, entityID, translated string) error {
	if translated == "" {
		return ErrEmptyTranslation
	}

	current, err := w.store.State(ctx, entityID)
	if err != nil {
		return fmt.Errorf("reading %s before write: %w", entityID, err)
	}

	attrs := make(map[string]interface{}, len(current.Attributes)+1)
	for k, v := range current.Attributes {
		attrs[k] = v
	}
	attrs["release_summary"] = translated
	if w.mirror {
		for _, name := range mirroredAttributes {
			attrs[name] = translated
		}
	}

	if err := w.store.SetState(ctx, entityID, current.State, attrs); err != nil {
		return fmt.Errorf("writing translation to %s: %w", entityID, err)
	}
	return nil
}
