package andytools

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_IsOrderAndCaseInsensitive(t *testing.T) {
	a := Fingerprint("add", map[string]interface{}{"A": 1, "b": 2}, CacheKeyContext{})
	b := Fingerprint("add", map[string]interface{}{"b": 2, "a": 1}, CacheKeyContext{})
	assert.Equal(t, a, b)
}

func TestFingerprint_ExcludedParametersDoNotAffectKey(t *testing.T) {
	base := Fingerprint("add", map[string]interface{}{"a": 1, "b": 2}, CacheKeyContext{})
	withNoise := Fingerprint("add", map[string]interface{}{"a": 1, "b": 2, "traceId": "xyz"}, CacheKeyContext{ExcludedParameters: []string{"traceId"}})
	assert.Equal(t, base, withNoise)
}

func TestFingerprint_DifferentContextProducesDifferentKey(t *testing.T) {
	a := Fingerprint("add", map[string]interface{}{"a": 1}, CacheKeyContext{UserID: "alice"})
	b := Fingerprint("add", map[string]interface{}{"a": 1}, CacheKeyContext{UserID: "bob"})
	assert.NotEqual(t, a, b)
}

func TestExecutionCache_SetGetRoundTrip(t *testing.T) {
	cache := NewExecutionCache(1024*1024, false, nil)
	key := cache.GenerateKey("add", map[string]interface{}{"a": 2, "b": 2}, CacheKeyContext{})
	result := ToolExecutionResult{ToolID: "add", ToolResult: ToolResult{IsSuccessful: true, Data: 4.0}}

	cache.Set(key, "add", result, CacheSetOptions{TimeToLive: time.Minute})

	cached, ok := cache.Get(key)
	require.True(t, ok)
	assert.Equal(t, "add", cached.ToolID)
	assert.Equal(t, int64(1), cached.HitCount)

	stats := cache.GetStatistics()
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, 1, stats.EntryCount)
}

func TestExecutionCache_GetMissIncrementsMissCount(t *testing.T) {
	cache := NewExecutionCache(1024, false, nil)
	_, ok := cache.Get("nonexistent")
	assert.False(t, ok)
	assert.Equal(t, int64(1), cache.GetStatistics().MissCount)
}

func TestExecutionCache_ExpiredEntryIsMissOnGet(t *testing.T) {
	cache := NewExecutionCache(1024, false, nil)
	result := ToolExecutionResult{ToolID: "add"}
	cache.Set("k", "add", result, CacheSetOptions{TimeToLive: -time.Second})

	_, ok := cache.Get("k")
	assert.False(t, ok)
}

func TestExecutionCache_SweepReapsExpiredEntries(t *testing.T) {
	cache := NewExecutionCache(1024, false, nil)
	cache.Set("expired", "add", ToolExecutionResult{ToolID: "add"}, CacheSetOptions{TimeToLive: -time.Second})
	cache.Set("fresh", "add", ToolExecutionResult{ToolID: "add"}, CacheSetOptions{TimeToLive: time.Hour})

	reaped := cache.Sweep()
	assert.Equal(t, 1, reaped)
	assert.Equal(t, 1, cache.GetStatistics().EntryCount)
}

func TestExecutionCache_EvictionUnderByteBudget(t *testing.T) {
	var evicted []string
	cache := NewExecutionCache(1, true, func(key string, reason EvictionReason) {
		evicted = append(evicted, string(reason))
	})

	cache.Set("a", "add", ToolExecutionResult{ToolID: "add", ToolResult: ToolResult{Data: "some moderately long payload"}}, CacheSetOptions{Priority: CachePriorityNormal})
	cache.Set("b", "add", ToolExecutionResult{ToolID: "add", ToolResult: ToolResult{Data: "another moderately long payload"}}, CacheSetOptions{Priority: CachePriorityNormal})

	assert.LessOrEqual(t, cache.GetStatistics().EntryCount, 1)
}

func TestExecutionCache_InvalidateByToolAndPattern(t *testing.T) {
	cache := NewExecutionCache(1024*1024, false, nil)
	cache.Set("add:1", "add", ToolExecutionResult{ToolID: "add"}, CacheSetOptions{TimeToLive: time.Minute})
	cache.Set("add:2", "add", ToolExecutionResult{ToolID: "add"}, CacheSetOptions{TimeToLive: time.Minute})
	cache.Set("echo:1", "echo", ToolExecutionResult{ToolID: "echo"}, CacheSetOptions{TimeToLive: time.Minute})

	removed := cache.InvalidateByTool("add")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, cache.GetStatistics().EntryCount)

	removed = cache.InvalidateByPattern("echo:*")
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, cache.GetStatistics().EntryCount)
}

func TestMaterializeCacheHit_SetsZeroDurationAndMetadata(t *testing.T) {
	cachedAt := time.Now().Add(-time.Minute)
	cached := CachedToolResult{
		CachedAt: cachedAt,
		HitCount: 3,
		Result: ToolExecutionResult{
			ToolID:     "add",
			ToolResult: ToolResult{IsSuccessful: true, Data: 4.0, DurationMs: 500},
		},
	}

	materialized := MaterializeCacheHit(cached)
	assert.Equal(t, int64(0), materialized.DurationMs)
	assert.Equal(t, cachedAt, materialized.StartTime)
	assert.Equal(t, true, materialized.Metadata["cache_hit"])
	assert.Equal(t, int64(3), materialized.Metadata["hit_count"])
}
