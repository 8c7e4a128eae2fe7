package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hatrans/hatrans/internal/hass"
)

// Action says what the watcher did with an entity.
type Action string

// Watcher actions.
const (
	// ActionTranslated means a new translation was produced and applied.
	ActionTranslated Action = "translated"
	// ActionReapplied means a saved translation was written again after
	// the owning integration reverted the attribute.
	ActionReapplied Action = "reapplied"
	// ActionSkipped means nothing needed doing.
	ActionSkipped Action = "skipped"
	// ActionFailed means the attempt failed; the entity is untouched
	// unless a partial write succeeded earlier.
	ActionFailed Action = "failed"
)

// Result is the outcome of processing one entity.
type Result struct {
	EntityID   string
	Version    string
	Action     Action
	Reason     string
	Notes      Notes
	Translated string
	Err        error
}

// EntityStore is the slice of the Home Assistant API the watcher reads
// from. *hass.Client satisfies it.
type EntityStore interface {
	StatesByDomain(ctx context.Context, domain string) ([]hass.State, error)
	State(ctx context.Context, entityID string) (*hass.State, error)
}

// DefaultConcurrency bounds parallel entity processing in ProcessAll.
const DefaultConcurrency = 3

// Watcher drives the translation pipeline over update entities. The
// ledger guarantees each (entity, version) pair is sent to the agent at
// most once; failed pairs are not retried unless forced.
type Watcher struct {
	store    EntityStore
	resolver *Resolver
	agent    *Agent
	writer   *Writer
	ledger   *Ledger

	rules       *Rules
	reapply     bool
	concurrency int
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithRules sets per-entity overrides.
func WithRules(rules *Rules) WatcherOption {
	return func(w *Watcher) {
		w.rules = rules
	}
}

// WithReapply makes the watcher rewrite saved translations when the
// owning integration reverts the release summary.
func WithReapply(enabled bool) WatcherOption {
	return func(w *Watcher) {
		w.reapply = enabled
	}
}

// WithConcurrency bounds parallel processing in ProcessAll.
func WithConcurrency(n int) WatcherOption {
	return func(w *Watcher) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// NewWatcher wires the pipeline stages together.
func NewWatcher(store EntityStore, resolver *Resolver, agent *Agent, writer *Writer, ledger *Ledger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		store:       store,
		resolver:    resolver,
		agent:       agent,
		writer:      writer,
		ledger:      ledger,
		rules:       &Rules{},
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ProcessEntity fetches one entity by ID and processes it.
func (w *Watcher) ProcessEntity(ctx context.Context, entityID string, force bool) Result {
	state, err := w.store.State(ctx, entityID)
	if err != nil {
		return Result{
			EntityID: entityID,
			Action:   ActionFailed,
			Reason:   "fetching entity state",
			Err:      err,
		}
	}
	return w.ProcessState(ctx, state, force)
}

// ProcessState runs the pipeline for one already-fetched entity state.
// force bypasses the ledger and translates again.
func (w *Watcher) ProcessState(ctx context.Context, state *hass.State, force bool) Result {
	result := Result{EntityID: state.EntityID}

	version := strings.TrimSpace(state.StringAttr("latest_version"))
	result.Version = version

	switch state.State {
	case "off", "unavailable", "unknown":
		return skip(result, "entity is "+state.State)
	}
	if version == "" {
		return skip(result, "no latest_version attribute")
	}

	rule := w.rules.For(state.EntityID)
	if rule.Ignore {
		return skip(result, "ignored by rule")
	}

	if !force && w.ledger.Has(state.EntityID, version) {
		return w.handleSeen(ctx, state, version, result)
	}

	notes, err := w.resolver.Resolve(ctx, state, rule, force)
	if err != nil {
		if errors.Is(err, ErrNoNotes) {
			return skip(result, "no release notes found")
		}
		w.recordFailure(state.EntityID, version, "", err)
		return fail(result, "resolving release notes", err)
	}
	result.Notes = notes

	// The summary may already hold our own output, either for this pair
	// after a forced rerun or carried over from a previous version.
	if prev, err := w.ledger.Latest(state.EntityID); err == nil && prev.Translated != "" && prev.Translated == notes.Text {
		return skip(result, "summary already holds translation")
	}

	translated, err := w.agent.Translate(ctx, notes.Text)
	if err != nil {
		w.recordFailure(state.EntityID, version, notes.Text, err)
		return fail(result, "translating release notes", err)
	}
	result.Translated = translated

	if err := w.writer.Apply(ctx, state.EntityID, translated); err != nil {
		// Keep the translation so the next pass can apply it without
		// another agent call.
		w.putRecord(TranslationRecord{
			EntityID:   state.EntityID,
			Version:    version,
			Original:   notes.Text,
			Translated: translated,
			Status:     StatusTranslated,
			Error:      err.Error(),
		})
		return fail(result, "writing translation", err)
	}

	w.putRecord(TranslationRecord{
		EntityID:   state.EntityID,
		Version:    version,
		Original:   notes.Text,
		Translated: translated,
		Status:     StatusApplied,
	})
	result.Action = ActionTranslated
	return result
}

// handleSeen deals with pairs that already have a ledger record: either
// the pair is done, it failed before, or a saved translation needs to be
// written (again).
func (w *Watcher) handleSeen(ctx context.Context, state *hass.State, version string, result Result) Result {
	record, err := w.ledger.Get(state.EntityID, version)
	if err != nil {
		return skip(result, "already processed")
	}

	switch record.Status {
	case StatusFailed:
		return skip(result, "previous attempt failed, not retrying")
	case StatusApplied:
		if !w.reapply {
			return skip(result, "already translated")
		}
	case StatusTranslated:
		// Write-back failed last time; always retry the write.
	}

	if record.Translated == "" || state.StringAttr("release_summary") == record.Translated {
		return skip(result, "already translated")
	}

	result.Translated = record.Translated
	if err := w.writer.Apply(ctx, state.EntityID, record.Translated); err != nil {
		return fail(result, "reapplying translation", err)
	}

	record.Status = StatusApplied
	w.putRecord(record)
	result.Action = ActionReapplied
	result.Reason = "summary was reverted"
	return result
}

// Preview runs the pipeline for one entity without calling the agent or
// writing anything. The returned result says what ProcessState would do.
func (w *Watcher) Preview(ctx context.Context, state *hass.State, force bool) (Result, error) {
	result := Result{EntityID: state.EntityID}

	version := strings.TrimSpace(state.StringAttr("latest_version"))
	result.Version = version

	switch state.State {
	case "off", "unavailable", "unknown":
		return skip(result, "entity is "+state.State), nil
	}
	if version == "" {
		return skip(result, "no latest_version attribute"), nil
	}
	if w.rules.For(state.EntityID).Ignore {
		return skip(result, "ignored by rule"), nil
	}
	if !force && w.ledger.Has(state.EntityID, version) {
		return skip(result, "already processed"), nil
	}

	notes, err := w.resolver.Resolve(ctx, state, w.rules.For(state.EntityID), force)
	if err != nil {
		if errors.Is(err, ErrNoNotes) {
			return skip(result, "no release notes found"), nil
		}
		return result, err
	}
	result.Notes = notes

	if prev, err := w.ledger.Latest(state.EntityID); err == nil && prev.Translated != "" && prev.Translated == notes.Text {
		return skip(result, "summary already holds translation"), nil
	}

	result.Action = ActionTranslated
	return result, nil
}

// ProcessAll processes every update entity, a few at a time. Results keep
// entity order.
func (w *Watcher) ProcessAll(ctx context.Context, force bool) ([]Result, error) {
	states, err := w.store.StatesByDomain(ctx, "update")
	if err != nil {
		return nil, fmt.Errorf("listing update entities: %w", err)
	}

	results := make([]Result, len(states))
	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup

	for i := range states {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = w.ProcessState(ctx, &states[i], force)
		}(i)
	}
	wg.Wait()

	return results, nil
}

// Run polls until the context is canceled, passing every non-skip result
// to onResult. The first pass runs immediately.
func (w *Watcher) Run(ctx context.Context, interval time.Duration, onResult func(Result)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		results, err := w.ProcessAll(ctx, false)
		if err != nil && onResult != nil {
			onResult(Result{Action: ActionFailed, Reason: "polling entities", Err: err})
		}
		for _, r := range results {
			if r.Action == ActionSkipped {
				continue
			}
			if onResult != nil {
				onResult(r)
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (w *Watcher) recordFailure(entityID, version, original string, err error) {
	w.putRecord(TranslationRecord{
		EntityID: entityID,
		Version:  version,
		Original: original,
		Status:   StatusFailed,
		Error:    err.Error(),
	})
}

// putRecord persists a record; ledger write failures must not abort the
// pipeline, the record just will not survive a restart.
func (w *Watcher) putRecord(record TranslationRecord) {
	_ = w.ledger.Put(record)
}

func skip(r Result, reason string) Result {
	r.Action = ActionSkipped
	r.Reason = reason
	return r
}

func fail(r Result, reason string, err error) Result {
	r.Action = ActionFailed
	r.Reason = reason
	r.Err = err
	return r
}
