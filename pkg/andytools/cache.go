package andytools

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// CacheKeyContext supplies the axes mixed into a fingerprint beyond the
// tool id and parameters.
type CacheKeyContext struct {
	UserID                 string
	Environment            string
	Version                string
	IncludeParameterTypes  bool
	ExcludedParameters     []string
	AdditionalContext      map[string]string
}

// Fingerprint computes the deterministic cache key for one tool
// invocation, per spec.md §4.6: sorted, case-insensitive parameter keys,
// optional value-type tagging, excluded keys dropped, then the context
// axes mixed in sorted by key, hashed as canonical JSON.
func Fingerprint(toolID string, parameters map[string]interface{}, keyContext CacheKeyContext) string {
	excluded := make(map[string]bool, len(keyContext.ExcludedParameters))
	for _, k := range keyContext.ExcludedParameters {
		excluded[strings.ToLower(k)] = true
	}

	paramKeys := make([]string, 0, len(parameters))
	for k := range parameters {
		if excluded[strings.ToLower(k)] {
			continue
		}
		paramKeys = append(paramKeys, k)
	}
	sort.Slice(paramKeys, func(i, j int) bool {
		return strings.ToLower(paramKeys[i]) < strings.ToLower(paramKeys[j])
	})

	normalizedParams := make(map[string]interface{}, len(paramKeys))
	for _, k := range paramKeys {
		v := parameters[k]
		if keyContext.IncludeParameterTypes {
			normalizedParams[strings.ToLower(k)] = map[string]interface{}{
				"value": v,
				"type":  goTypeName(v),
			}
		} else {
			normalizedParams[strings.ToLower(k)] = v
		}
	}

	additionalKeys := make([]string, 0, len(keyContext.AdditionalContext))
	for k := range keyContext.AdditionalContext {
		additionalKeys = append(additionalKeys, k)
	}
	sort.Strings(additionalKeys)
	additional := make([]string, 0, len(additionalKeys))
	for _, k := range additionalKeys {
		additional = append(additional, k+"="+keyContext.AdditionalContext[k])
	}

	canonical := struct {
		ToolID      string                 `json:"toolId"`
		Parameters  map[string]interface{} `json:"parameters"`
		UserID      string                 `json:"userId"`
		Environment string                 `json:"environment"`
		Version     string                 `json:"version"`
		Additional  []string               `json:"additional"`
	}{
		ToolID:      strings.ToLower(toolID),
		Parameters:  normalizedParams,
		UserID:      keyContext.UserID,
		Environment: keyContext.Environment,
		Version:     keyContext.Version,
		Additional:  additional,
	}

	data, _ := json.Marshal(canonical)
	hash := sha256.Sum256(data)
	return toolID + ":" + hex.EncodeToString(hash[:])
}

func goTypeName(v interface{}) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "bool"
	case float64, int, int64:
		return "number"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "unknown"
	}
}

// EvictionReason explains why a post-eviction callback fired.
type EvictionReason string

const (
	EvictionRemoved  EvictionReason = "Removed"
	EvictionReplaced EvictionReason = "Replaced"
	EvictionExpired  EvictionReason = "Expired"
	EvictionCapacity EvictionReason = "Capacity"
)

// EvictionCallback is notified whenever an entry leaves the cache.
type EvictionCallback func(key string, reason EvictionReason)

// CacheSetOptions parameterizes one Set call.
type CacheSetOptions struct {
	TimeToLive    time.Duration
	Priority      CachePriority
	CacheFailures bool
	Dependencies  []string
}

// CacheStatistics summarizes current cache occupancy and hit behavior.
type CacheStatistics struct {
	EntryCount   int
	TotalBytes   int64
	HitCount     int64
	MissCount    int64
	EvictionCount int64
}

type cacheEntry struct {
	entry               CachedToolResult
	options             CacheSetOptions
	useSlidingExpiration bool
}

// ExecutionCache memoizes ToolExecutionResults by fingerprint, with TTL
// and/or sliding expiration, priority-ordered LRU eviction under a byte
// budget, and a periodic sweep that reaps expired entries.
type ExecutionCache struct {
	maxSizeBytes         int64
	useSlidingExpiration bool
	onEvict              EvictionCallback

	mu        sync.Mutex
	entries   map[string]*cacheEntry
	totalBytes int64
	hitCount  int64
	missCount int64
	evictions int64
}

// NewExecutionCache constructs an empty cache bounded to maxSizeBytes.
func NewExecutionCache(maxSizeBytes int64, useSlidingExpiration bool, onEvict EvictionCallback) *ExecutionCache {
	return &ExecutionCache{
		maxSizeBytes:         maxSizeBytes,
		useSlidingExpiration: useSlidingExpiration,
		onEvict:              onEvict,
		entries:              make(map[string]*cacheEntry),
	}
}

// Get returns the cached result for key, resetting sliding expiration when
// configured, and bumping hitCount/lastAccessedAt/HitCount.
func (c *ExecutionCache) Get(key string) (CachedToolResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ce, ok := c.entries[key]
	if !ok {
		c.missCount++
		return CachedToolResult{}, false
	}
	if !ce.entry.ExpiresAt.IsZero() && time.Now().After(ce.entry.ExpiresAt) {
		c.removeLocked(key, EvictionExpired)
		c.missCount++
		return CachedToolResult{}, false
	}

	ce.entry.HitCount++
	ce.entry.LastAccessedAt = time.Now()
	if c.useSlidingExpiration && ce.useSlidingExpiration && ce.options.TimeToLive > 0 {
		ce.entry.ExpiresAt = time.Now().Add(ce.options.TimeToLive)
	}
	c.hitCount++
	return ce.entry, true
}

// Set stores result under key, evicting lower-priority/older entries if the
// byte budget would otherwise be exceeded.
func (c *ExecutionCache) Set(key, toolID string, result ToolExecutionResult, opts CacheSetOptions) {
	size := estimateResultBytes(result)
	now := time.Now()
	var expiresAt time.Time
	if opts.TimeToLive != 0 {
		expiresAt = now.Add(opts.TimeToLive)
	}

	entry := CachedToolResult{
		CacheKey:       key,
		ToolID:         toolID,
		Result:         result,
		CachedAt:       now,
		ExpiresAt:      expiresAt,
		LastAccessedAt: now,
		Priority:       opts.Priority,
		SizeBytes:      size,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.totalBytes -= existing.entry.SizeBytes
		delete(c.entries, key)
		c.fireEvictAsync(key, EvictionReplaced)
	}

	c.evictToFitLocked(size)

	c.entries[key] = &cacheEntry{entry: entry, options: opts, useSlidingExpiration: c.useSlidingExpiration}
	c.totalBytes += size
}

func (c *ExecutionCache) evictToFitLocked(incoming int64) {
	if c.maxSizeBytes <= 0 {
		return
	}
	for c.totalBytes+incoming > c.maxSizeBytes {
		victim := c.pickEvictionVictimLocked()
		if victim == "" {
			return
		}
		c.removeLocked(victim, EvictionCapacity)
	}
}

func (c *ExecutionCache) pickEvictionVictimLocked() string {
	var victimKey string
	var victim *cacheEntry
	for k, ce := range c.entries {
		if ce.entry.Priority == CachePriorityNeverEvict {
			continue
		}
		if victim == nil {
			victimKey, victim = k, ce
			continue
		}
		if ce.entry.Priority < victim.entry.Priority {
			victimKey, victim = k, ce
			continue
		}
		if ce.entry.Priority == victim.entry.Priority && ce.entry.LastAccessedAt.Before(victim.entry.LastAccessedAt) {
			victimKey, victim = k, ce
		}
	}
	return victimKey
}

func (c *ExecutionCache) removeLocked(key string, reason EvictionReason) {
	ce, ok := c.entries[key]
	if !ok {
		return
	}
	c.totalBytes -= ce.entry.SizeBytes
	delete(c.entries, key)
	c.evictions++
	c.fireEvictAsync(key, reason)
}

func (c *ExecutionCache) fireEvictAsync(key string, reason EvictionReason) {
	if c.onEvict == nil {
		return
	}
	cb, r := c.onEvict, reason
	go safeCall(func() { cb(key, r) })
}

// Invalidate removes a single entry.
func (c *ExecutionCache) Invalidate(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return false
	}
	c.removeLocked(key, EvictionRemoved)
	return true
}

// InvalidateByPattern removes every key matching a shell glob pattern.
func (c *ExecutionCache) InvalidateByPattern(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for k := range c.entries {
		if matched, _ := filepath.Match(pattern, k); matched {
			c.removeLocked(k, EvictionRemoved)
			count++
		}
	}
	return count
}

// InvalidateByTool removes every entry cached for the given tool id.
func (c *ExecutionCache) InvalidateByTool(toolID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for k, ce := range c.entries {
		if strings.EqualFold(ce.entry.ToolID, toolID) {
			c.removeLocked(k, EvictionRemoved)
			count++
		}
	}
	return count
}

// Clear empties the cache.
func (c *ExecutionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		c.removeLocked(k, EvictionRemoved)
	}
}

// Sweep reaps every expired entry; intended to run on a periodic schedule.
func (c *ExecutionCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	count := 0
	for k, ce := range c.entries {
		if !ce.entry.ExpiresAt.IsZero() && now.After(ce.entry.ExpiresAt) {
			c.removeLocked(k, EvictionExpired)
			count++
		}
	}
	return count
}

// GenerateKey is a convenience wrapper over the package-level Fingerprint
// function, exposed on ExecutionCache so callers need only hold the cache.
func (c *ExecutionCache) GenerateKey(toolID string, parameters map[string]interface{}, keyContext CacheKeyContext) string {
	return Fingerprint(toolID, parameters, keyContext)
}

// GetStatistics returns a snapshot of occupancy and hit/miss counters.
func (c *ExecutionCache) GetStatistics() CacheStatistics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStatistics{
		EntryCount:    len(c.entries),
		TotalBytes:    c.totalBytes,
		HitCount:      c.hitCount,
		MissCount:     c.missCount,
		EvictionCount: c.evictions,
	}
}

func estimateResultBytes(result ToolExecutionResult) int64 {
	b, err := json.Marshal(result)
	if err != nil {
		return 0
	}
	return int64(len(b))
}

// MaterializeCacheHit builds the ToolExecutionResult returned on a cache
// hit: zero duration, start/end pinned to cachedAt, and cache metadata
// merged in.
func MaterializeCacheHit(cached CachedToolResult) ToolExecutionResult {
	result := cached.Result
	result.StartTime = cached.CachedAt
	result.EndTime = cached.CachedAt
	result.DurationMs = 0
	if result.Metadata == nil {
		result.Metadata = make(map[string]interface{})
	} else {
		merged := make(map[string]interface{}, len(result.Metadata)+3)
		for k, v := range result.Metadata {
			merged[k] = v
		}
		result.Metadata = merged
	}
	result.Metadata["cache_hit"] = true
	result.Metadata["cached_at"] = cached.CachedAt
	result.Metadata["hit_count"] = cached.HitCount
	return result
}
