package memory

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/t3rn/pkg/model"
)

// Key returns the canonical cache key of a tool call. encoding/json writes map keys in sorted
// order at every depth, so parameter maps that are equal as sets always give the same key.
func Key(toolName string, params map[string]any) string {
	if params == nil {
		params = map[string]any{}
	}

	var canonical string
	if data, err := json.Marshal(params); err == nil {
		canonical = string(data)
	} else {
		// fmt also prints maps in key order
		canonical = fmt.Sprintf("%v", params)
	}

	sum := md5.Sum([]byte(toolName + ":" + canonical))
	return hex.EncodeToString(sum[:])
}

// CachedTool is a live cache entry as handed out to callers
type CachedTool struct {
	Key      string
	CallID   string
	ToolName string
	Params   map[string]any
	Result   *model.ToolResult
}

type cacheEntry struct {
	CachedTool
	remaining int
	original  int
	cachedAt  time.Time
}

// ToolCache maps canonical tool call keys to results. Lifetimes count completed exchanges,
// not wall-clock time.
type ToolCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	now     func() time.Time
}

// NewToolCache creates an empty cache
func NewToolCache() *ToolCache {
	return &ToolCache{
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
}

// Lookup returns the cached result and resets its lifetime to the original duration
func (c *ToolCache) Lookup(toolName string, params map[string]any) (*model.ToolResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[Key(toolName, params)]
	if !ok {
		return nil, false
	}
	entry.remaining = entry.original
	return entry.Result, true
}

// Store inserts or overwrites an entry. duration <= 0 is a no-op. params is copied so later
// changes by the caller cannot drift away from the key.
func (c *ToolCache) Store(toolName string, params map[string]any, result *model.ToolResult, duration int) {
	if duration <= 0 || result == nil {
		return
	}

	key := Key(toolName, params)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{
		CachedTool: CachedTool{
			Key:      key,
			CallID:   "call_cached_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8],
			ToolName: toolName,
			Params:   maps.Clone(params),
			Result:   result,
		},
		remaining: duration,
		original:  duration,
		cachedAt:  c.now(),
	}
}

// Invalidate removes one entry
func (c *ToolCache) Invalidate(toolName string, params map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, Key(toolName, params))
}

// Age counts one completed exchange against every entry and drops the expired ones
func (c *ToolCache) Age() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		entry.remaining--
		if entry.remaining <= 0 {
			delete(c.entries, key)
		}
	}
}

// Len returns the number of live entries
func (c *ToolCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns live entries ordered by insertion time
func (c *ToolCache) Entries() []CachedTool {
	c.mu.Lock()
	defer c.mu.Unlock()

	sorted := c.sortedLocked()
	out := make([]CachedTool, len(sorted))
	for i, e := range sorted {
		out[i] = e.CachedTool
		out[i].Params = maps.Clone(e.Params)
	}
	return out
}

// Snapshot returns a diagnostic view of the cache without refreshing anything
func (c *ToolCache) Snapshot() []model.CacheEntrySnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	sorted := c.sortedLocked()
	out := make([]model.CacheEntrySnapshot, len(sorted))
	for i, e := range sorted {
		out[i] = model.CacheEntrySnapshot{
			Key:              e.Key,
			ToolName:         e.ToolName,
			Parameters:       maps.Clone(e.Params),
			CallID:           e.CallID,
			Remaining:        e.remaining,
			OriginalDuration: e.original,
			CachedAt:         e.cachedAt,
		}
	}
	return out
}

func (c *ToolCache) sortedLocked() []*cacheEntry {
	sorted := make([]*cacheEntry, 0, len(c.entries))
	for _, e := range c.entries {
		sorted = append(sorted, e)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].cachedAt.Equal(sorted[j].cachedAt) {
			return sorted[i].cachedAt.Before(sorted[j].cachedAt)
		}
		return sorted[i].Key < sorted[j].Key
	})
	return sorted
}
