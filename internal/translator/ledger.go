package translator

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Translation statuses recorded in the ledger.
const (
	// StatusApplied means the translation was written to the entity.
	StatusApplied = "applied"
	// StatusTranslated means the agent produced a translation but the
	// write-back failed. The saved text can be reapplied without a new
	// agent call.
	StatusTranslated = "translated"
	// StatusFailed means the attempt failed before a translation existed.
	StatusFailed = "failed"
)

// ErrRecordNotFound is returned when a ledger record does not exist.
var ErrRecordNotFound = errors.New("record not found")

// TranslationRecord is one processed (entity, version) pair.
type TranslationRecord struct {
	EntityID    string    `json:"entity_id"`
	Version     string    `json:"version"`
	Original    string    `json:"original,omitempty"`
	Translated  string    `json:"translated,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Key returns the ledger key for the record.
func (r TranslationRecord) Key() string {
	return LedgerKey(r.EntityID, r.Version)
}

// LedgerKey builds the key for an (entity, version) pair.
func LedgerKey(entityID, version string) string {
	return entityID + "@" + version
}

// Ledger persists which (entity, version) pairs have already been handled.
// Each pair is translated at most once; failed pairs are kept so they are
// not retried automatically.
type Ledger struct {
	mu      sync.Mutex
	path    string
	records map[string]TranslationRecord
	nowFunc func() time.Time
}

// LedgerOption configures a Ledger.
type LedgerOption func(*Ledger)

// WithLedgerNowFunc overrides the clock. Intended for tests.
func WithLedgerNowFunc(f func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.nowFunc = f
	}
}

// NewLedger loads the ledger at path, creating an empty one if the file
// does not exist.
func NewLedger(path string, opts ...LedgerOption) (*Ledger, error) {
	l := &Ledger{
		path:    path,
		records: make(map[string]TranslationRecord),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ledger %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &l.records); err != nil {
		// Corrupt ledger just means a cold start.
		l.records = make(map[string]TranslationRecord)
	}
	return l, nil
}

// Has reports whether the pair has a record of any status.
func (l *Ledger) Has(entityID, version string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.records[LedgerKey(entityID, version)]
	return ok
}

// Get returns the record for the pair.
func (l *Ledger) Get(entityID, version string) (TranslationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.records[LedgerKey(entityID, version)]
	if !ok {
		return TranslationRecord{}, ErrRecordNotFound
	}
	return record, nil
}

// Put stores a record, stamping ProcessedAt, and persists the ledger.
func (l *Ledger) Put(record TranslationRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	record.ProcessedAt = l.nowFunc()
	l.records[record.Key()] = record
	return l.save()
}

// Delete removes the record for the pair so it can be processed again.
func (l *Ledger) Delete(entityID, version string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := LedgerKey(entityID, version)
	if _, ok := l.records[key]; !ok {
		return ErrRecordNotFound
	}
	delete(l.records, key)
	return l.save()
}

// List returns all records ordered by entity then version.
func (l *Ledger) List() []TranslationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]TranslationRecord, 0, len(l.records))
	for _, r := range l.records {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].EntityID != records[j].EntityID {
			return records[i].EntityID < records[j].EntityID
		}
		return records[i].Version < records[j].Version
	})
	return records
}

// ListByStatus returns all records with the given status, ordered as List.
func (l *Ledger) ListByStatus(status string) []TranslationRecord {
	all := l.List()
	filtered := all[:0]
	for _, r := range all {
		if r.Status == status {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// Latest returns the newest record for an entity across versions.
func (l *Ledger) Latest(entityID string) (TranslationRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var latest TranslationRecord
	found := false
	for _, r := range l.records {
		if r.EntityID != entityID {
			continue
		}
		if !found || r.ProcessedAt.After(latest.ProcessedAt) {
			latest = r
			found = true
		}
	}
	if !found {
		return TranslationRecord{}, ErrRecordNotFound
	}
	return latest, nil
}

// Clear removes all records and persists the empty ledger.
func (l *Ledger) Clear() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[string]TranslationRecord)
	return l.save()
}

// Len returns the number of records.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// save writes the ledger atomically. Callers must hold the mutex.
func (l *Ledger) save() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("creating ledger directory: %w", err)
	}

	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing ledger: %w", err)
	}
	if err := os.Rename(tmp, l.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing ledger: %w", err)
	}
	return nil
}
