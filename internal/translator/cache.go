package translator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// NotesEntry is a cached release-note body for one URL.
type NotesEntry struct {
	Body      string    `json:"body"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// NotesCache stores fetched release-note bodies on disk so repeated polls
// do not refetch the same URL. Entries expire after a TTL.
type NotesCache struct {
	mu      sync.Mutex
	path    string
	ttl     time.Duration
	entries map[string]NotesEntry
	nowFunc func() time.Time
}

// NotesCacheOption configures a NotesCache.
type NotesCacheOption func(*NotesCache)

// WithTTL overrides the default cache TTL.
func WithTTL(ttl time.Duration) NotesCacheOption {
	return func(c *NotesCache) {
		c.ttl = ttl
	}
}

// WithNowFunc overrides the clock. Intended for tests.
func WithNowFunc(f func() time.Time) NotesCacheOption {
	return func(c *NotesCache) {
		c.nowFunc = f
	}
}

// DefaultNotesTTL is how long fetched bodies stay fresh.
const DefaultNotesTTL = 1 * time.Hour

// NewNotesCache loads the cache at path, creating an empty one if the file
// does not exist. A corrupt cache file is discarded, not fatal.
func NewNotesCache(path string, opts ...NotesCacheOption) (*NotesCache, error) {
	c := &NotesCache{
		path:    path,
		ttl:     DefaultNotesTTL,
		entries: make(map[string]NotesEntry),
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading notes cache %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		// Corrupt cache just means a cold start.
		c.entries = make(map[string]NotesEntry)
	}
	return c, nil
}

// Get returns the cached body for url if present and fresh.
func (c *NotesCache) Get(url string) (NotesEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[url]
	if !ok {
		return NotesEntry{}, false
	}
	if c.nowFunc().Sub(entry.FetchedAt) > c.ttl {
		return NotesEntry{}, false
	}
	return entry, true
}

// Set stores a fetched body and persists the cache.
func (c *NotesCache) Set(url, body, source string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[url] = NotesEntry{
		Body:      body,
		Source:    source,
		FetchedAt: c.nowFunc(),
	}
	return c.save()
}

// Prune drops expired entries and persists the cache.
func (c *NotesCache) Prune() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFunc()
	for url, entry := range c.entries {
		if now.Sub(entry.FetchedAt) > c.ttl {
			delete(c.entries, url)
		}
	}
	return c.save()
}

// Len returns the number of entries, expired or not.
func (c *NotesCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// save writes the cache atomically. Callers must hold the mutex.
func (c *NotesCache) save() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling notes cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating cache directory: %w", err)
	}

	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing notes cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing notes cache: %w", err)
	}
	return nil
}
