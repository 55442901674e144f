package andytools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	meta     ToolMetadata
	onExec   func(ctx context.Context, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolResult, error)
	disposed bool
}

func (s *stubTool) Metadata() ToolMetadata { return s.meta }
func (s *stubTool) Initialize(ctx context.Context, configuration map[string]interface{}) error {
	return nil
}
func (s *stubTool) Execute(ctx context.Context, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolResult, error) {
	return s.onExec(ctx, parameters, execCtx)
}
func (s *stubTool) ValidateParameters(parameters map[string]interface{}) ValidationResult {
	return ValidationResult{IsValid: true}
}
func (s *stubTool) CanExecuteWithPermissions(permissions ToolPermissions) (bool, []string) {
	return true, nil
}
func (s *stubTool) Dispose() error {
	s.disposed = true
	return nil
}

func newTestExecutor(t *testing.T) (*Executor, *Registry) {
	t.Helper()
	registry := NewRegistry(nil)
	security := NewSecurityManager()
	monitor := NewResourceMonitor()
	monitor.Start()
	t.Cleanup(monitor.Stop)
	limiter := NewOutputLimiter()
	executor := NewExecutor(registry, security, monitor, limiter, nil, nil, nil)
	return executor, registry
}

func registerStub(t *testing.T, registry *Registry, meta ToolMetadata, onExec func(ctx context.Context, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolResult, error)) {
	t.Helper()
	factory := func(locator ServiceLocator) (Tool, error) {
		return &stubTool{meta: meta, onExec: onExec}, nil
	}
	require.NoError(t, registry.RegisterFromFactory(meta, factory, nil))
}

func TestExecutor_HappyPath(t *testing.T) {
	executor, registry := newTestExecutor(t)
	registerStub(t, registry, ToolMetadata{ID: "echo", Name: "Echo", Description: "echoes input", Category: CategoryUtility}, func(ctx context.Context, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolResult, error) {
		return ToolResult{IsSuccessful: true, Data: parameters["message"]}, nil
	})

	result, err := executor.ExecuteSimple(context.Background(), "echo", map[string]interface{}{"message": "hi"}, &ToolExecutionContext{})

	require.NoError(t, err)
	assert.True(t, result.IsSuccessful)
	assert.Equal(t, "hi", result.ToolResult.Data)
	assert.False(t, result.WasCancelled)
}

func TestExecutor_RequiredParameterMissing(t *testing.T) {
	executor, registry := newTestExecutor(t)
	registerStub(t, registry, ToolMetadata{
		ID:          "needs-arg",
		Name:        "Needs Arg",
		Description: "requires a value",
		Category:    CategoryUtility,
		Parameters: []ToolParameter{
			{Name: "value", Type: ParamTypeString, Required: true},
		},
	}, func(ctx context.Context, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolResult, error) {
		return ToolResult{IsSuccessful: true}, nil
	})

	result, err := executor.Execute(context.Background(), ToolExecutionRequest{
		ToolID:             "needs-arg",
		Parameters:         map[string]interface{}{},
		Context:            &ToolExecutionContext{},
		ValidateParameters: true,
	})

	require.NoError(t, err)
	assert.False(t, result.IsSuccessful)
	assert.Contains(t, result.ErrorMessage, "value")
}

func TestExecutor_BlockedPath(t *testing.T) {
	executor, registry := newTestExecutor(t)
	registerStub(t, registry, ToolMetadata{
		ID:                   "reader",
		Name:                 "Reader",
		Description:          "reads files",
		Category:             CategoryFileSystem,
		RequiredCapabilities: []Capability{CapabilityFileSystem},
	}, func(ctx context.Context, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolResult, error) {
		t.Fatal("tool should never execute once security denies access")
		return ToolResult{}, nil
	})

	security := NewSecurityManager()
	perms := ToolPermissions{FileSystemAccess: true, BlockedPaths: []string{"/etc"}}
	allowed, reason := security.IsFileAccessAllowed("/etc/passwd", perms, AccessRead)
	require.False(t, allowed)
	require.NotEmpty(t, reason)

	// Confirm the executor's security gate independently denies execution
	// when EnforcePermissions is set and permissions lack FileSystemAccess.
	result, err := executor.Execute(context.Background(), ToolExecutionRequest{
		ToolID:             "reader",
		Parameters:         map[string]interface{}{},
		Context:            &ToolExecutionContext{Permissions: ToolPermissions{}},
		EnforcePermissions: true,
	})
	require.NoError(t, err)
	assert.False(t, result.IsSuccessful)
	assert.NotEmpty(t, result.SecurityViolations)
}

func TestExecutor_Timeout(t *testing.T) {
	executor, registry := newTestExecutor(t)
	registerStub(t, registry, ToolMetadata{ID: "slow", Name: "Slow", Description: "waits a second", Category: CategoryUtility}, func(ctx context.Context, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolResult, error) {
		select {
		case <-time.After(time.Second):
			return ToolResult{IsSuccessful: true}, nil
		case <-ctx.Done():
			return ToolResult{}, ctx.Err()
		}
	})

	result, err := executor.Execute(context.Background(), ToolExecutionRequest{
		ToolID:     "slow",
		Parameters: map[string]interface{}{},
		Context:    &ToolExecutionContext{},
		TimeoutMs:  20,
	})

	require.NoError(t, err)
	assert.True(t, result.WasCancelled)
	assert.Equal(t, ErrExecutionCancelled, result.ErrorMessage)
}

func TestExecutor_CacheHitMaterialization(t *testing.T) {
	cache := NewExecutionCache(1024*1024, true, nil)
	original := ToolExecutionResult{
		ToolID:     "add",
		ToolResult: ToolResult{IsSuccessful: true, Data: 4.0},
	}
	key := cache.GenerateKey("add", map[string]interface{}{"a": 2, "b": 2}, CacheKeyContext{})
	cache.Set(key, "add", original, CacheSetOptions{TimeToLive: time.Minute})

	cached, ok := cache.Get(key)
	require.True(t, ok)

	materialized := MaterializeCacheHit(cached)
	assert.Equal(t, int64(0), materialized.DurationMs)
	assert.Equal(t, true, materialized.Metadata["cache_hit"])
}

func TestExecutor_OutputTruncation(t *testing.T) {
	limiter := NewOutputLimiter()
	longText := make([]byte, 100)
	for i := range longText {
		longText[i] = 'a'
	}
	limited := limiter.Limit(string(longText), OutputTypeText, OutputLimitContext{MaxCharacters: 40, IncludeSummary: true})
	assert.True(t, limited.WasTruncated)
	assert.Less(t, len(limited.Content.(string)), 100)
	assert.Contains(t, limited.Content.(string), "truncated")
}

func TestExecutor_MemoryLimitTrip(t *testing.T) {
	registry := NewRegistry(nil)
	security := NewSecurityManager()
	monitor := NewResourceMonitor()
	monitor.Start()
	t.Cleanup(monitor.Stop)
	executor := NewExecutor(registry, security, monitor, NewOutputLimiter(), nil, nil, nil)

	started := make(chan struct{})
	registerStub(t, registry, ToolMetadata{ID: "hog", Name: "Hog", Description: "blocks until cancelled", Category: CategoryDiagnostic}, func(ctx context.Context, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolResult, error) {
		close(started)
		<-ctx.Done()
		return ToolResult{}, ctx.Err()
	})

	done := make(chan ToolExecutionResult, 1)
	go func() {
		result, _ := executor.Execute(context.Background(), ToolExecutionRequest{
			ToolID:     "hog",
			Parameters: map[string]interface{}{},
			Context: &ToolExecutionContext{
				CorrelationID:  "mem-trip",
				ResourceLimits: ToolResourceLimits{MaxMemoryBytes: 10},
			},
			EnforceResourceLimits: true,
		})
		done <- result
	}()

	<-started
	session, ok := monitor.Session("mem-trip")
	require.True(t, ok)
	session.UpdateMemoryUsage(1 << 20) // far over the 10-byte ceiling, trips the limit handler

	result := <-done
	assert.True(t, result.WasCancelled)
	assert.True(t, result.HitResourceLimits)
}

func TestExecutor_ToolNotFound(t *testing.T) {
	executor, _ := newTestExecutor(t)
	result, err := executor.ExecuteSimple(context.Background(), "missing", nil, &ToolExecutionContext{})
	require.NoError(t, err)
	assert.False(t, result.IsSuccessful)
	assert.Contains(t, result.ErrorMessage, "missing")
}

func TestExecutor_CancelExecutions(t *testing.T) {
	executor, registry := newTestExecutor(t)
	started := make(chan struct{})
	registerStub(t, registry, ToolMetadata{ID: "blocker", Name: "Blocker", Description: "blocks until cancelled", Category: CategoryUtility}, func(ctx context.Context, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolResult, error) {
		close(started)
		<-ctx.Done()
		return ToolResult{}, ctx.Err()
	})

	done := make(chan ToolExecutionResult, 1)
	go func() {
		result, _ := executor.Execute(context.Background(), ToolExecutionRequest{
			ToolID:     "blocker",
			Parameters: map[string]interface{}{},
			Context:    &ToolExecutionContext{CorrelationID: "fixed-id"},
		})
		done <- result
	}()

	<-started
	cancelled := executor.CancelExecutions("fixed-id")
	assert.Equal(t, 1, cancelled)

	result := <-done
	assert.True(t, result.WasCancelled)
}

func TestExecutor_CacheHitSkipsToolBody(t *testing.T) {
	executor, registry := newTestExecutor(t)
	executor.SetCache(NewExecutionCache(1024*1024, false, nil))

	calls := 0
	registerStub(t, registry, ToolMetadata{ID: "add", Name: "Add", Description: "adds numbers", Category: CategoryData}, func(ctx context.Context, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolResult, error) {
		calls++
		return ToolResult{IsSuccessful: true, Data: 4.0}, nil
	})

	execCtx := &ToolExecutionContext{
		UserID: "alice",
		AdditionalData: map[string]interface{}{
			"EnableCaching":   true,
			"CacheTimeToLive": time.Minute,
		},
	}
	params := map[string]interface{}{"a": 2.0, "b": 2.0}

	first, err := executor.Execute(context.Background(), ToolExecutionRequest{ToolID: "add", Parameters: params, Context: execCtx})
	require.NoError(t, err)
	assert.True(t, first.IsSuccessful)
	assert.NotEqual(t, true, first.Metadata["cache_hit"])
	assert.Equal(t, 1, calls)

	execCtx.CorrelationID = ""
	second, err := executor.Execute(context.Background(), ToolExecutionRequest{ToolID: "add", Parameters: params, Context: execCtx})
	require.NoError(t, err)
	assert.True(t, second.IsSuccessful)
	assert.Equal(t, true, second.Metadata["cache_hit"])
	assert.Equal(t, int64(0), second.DurationMs)
	assert.Equal(t, 1, calls, "cached result must not re-invoke the tool body")
}

func TestExecutor_StatisticsTrackByUser(t *testing.T) {
	executor, registry := newTestExecutor(t)
	registerStub(t, registry, ToolMetadata{ID: "echo", Name: "Echo", Description: "echoes input", Category: CategoryUtility}, func(ctx context.Context, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolResult, error) {
		return ToolResult{IsSuccessful: true}, nil
	})

	_, err := executor.Execute(context.Background(), ToolExecutionRequest{ToolID: "echo", Parameters: map[string]interface{}{}, Context: &ToolExecutionContext{UserID: "alice"}})
	require.NoError(t, err)
	_, err = executor.Execute(context.Background(), ToolExecutionRequest{ToolID: "echo", Parameters: map[string]interface{}{}, Context: &ToolExecutionContext{UserID: "alice"}})
	require.NoError(t, err)
	_, err = executor.Execute(context.Background(), ToolExecutionRequest{ToolID: "echo", Parameters: map[string]interface{}{}, Context: &ToolExecutionContext{UserID: "bob"}})
	require.NoError(t, err)

	stats := executor.Statistics()
	assert.Equal(t, int64(2), stats.ByUser["alice"])
	assert.Equal(t, int64(1), stats.ByUser["bob"])
}
