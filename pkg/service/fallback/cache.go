package fallback

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"sync"

	"github.com/m-mizutani/komainu/pkg/domain/model/completion"
	"github.com/m-mizutani/komainu/pkg/domain/types"
)

const defaultCacheCapacity = 256

// ResultCache stores successful completion results keyed by a hash of
// prompt identifier plus normalized input. Capacity-bounded; the oldest
// entry is evicted first.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*completion.Result
	order    []string
}

// NewResultCache creates a cache with the given capacity. Zero or
// negative capacity falls back to the default.
func NewResultCache(capacity int) *ResultCache {
	if capacity <= 0 {
		capacity = defaultCacheCapacity
	}

	return &ResultCache{
		capacity: capacity,
		entries:  make(map[string]*completion.Result),
	}
}

// CacheKey derives the lookup key from a prompt ID and its input.
// Input pairs are sorted by key so map iteration order cannot produce
// distinct keys for the same call.
func CacheKey(promptID types.PromptID, input map[string]string) string {
	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(promptID.String())
	for _, k := range keys {
		b.WriteByte(0)
		b.WriteString(k)
		b.WriteByte(0)
		b.WriteString(strings.TrimSpace(input[k]))
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Put stores a result, evicting the oldest entry at capacity
func (c *ResultCache) Put(key string, result *completion.Result) {
	if result == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.capacity {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}

	stored := *result
	c.entries[key] = &stored
}

// Get returns the cached result for a key, if any
func (c *ResultCache) Get(key string) (*completion.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	result, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	copied := *result
	return &copied, true
}

// Len returns the number of cached entries
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
