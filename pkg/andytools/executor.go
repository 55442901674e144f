package andytools

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/rivoli-ai/andy-tools-sub003/internal/obslog"
)

// ExecutorStatistics is the running tally the Executor keeps under a single
// lock, per spec.md §4.8.
type ExecutorStatistics struct {
	Total                   int64
	Successful              int64
	Failed                  int64
	Cancelled               int64
	AvgDurationMs           float64
	ResourceLimitViolations int64
	SecurityViolations      int64
	ByTool                  map[string]int64
	ByUser                  map[string]int64
}

type runningExecution struct {
	cancel         context.CancelFunc
	span           trace.Span
	mu             sync.Mutex
	hitLimits      bool
	exceededLimits []string
}

// Executor is the central pipeline orchestrator (C8): it wires the
// Registry, Validator, Security Manager, Resource Monitor, Output Limiter
// and Observability together into the single Execute call.
type Executor struct {
	registry        *Registry
	validator       *Validator
	security        *SecurityManager
	resourceMonitor *ResourceMonitor
	outputLimiter   *OutputLimiter
	observability   *Observability
	locator         ServiceLocator
	broadcaster     *broadcaster

	cacheMu sync.RWMutex
	cache   *ExecutionCache

	runningMu sync.Mutex
	running   map[string]*runningExecution

	statsMu sync.Mutex
	stats   ExecutorStatistics

	disposedMu sync.Mutex
	disposed   bool
}

// NewExecutor wires the nine-component pipeline. locator may be nil, in
// which case a no-op locator is substituted.
func NewExecutor(registry *Registry, security *SecurityManager, resourceMonitor *ResourceMonitor, outputLimiter *OutputLimiter, observability *Observability, locator ServiceLocator, b *broadcaster) *Executor {
	if locator == nil {
		locator = noopLocator{}
	}
	if b == nil {
		b = newBroadcaster()
	}
	return &Executor{
		registry:        registry,
		validator:       NewValidator(),
		security:        security,
		resourceMonitor: resourceMonitor,
		outputLimiter:   outputLimiter,
		observability:   observability,
		locator:         locator,
		broadcaster:     b,
		running:         make(map[string]*runningExecution),
		stats:           ExecutorStatistics{ByTool: make(map[string]int64), ByUser: make(map[string]int64)},
	}
}

// SetCache wires the Execution Cache decorator (C6) into the pipeline.
// A nil cache (the default) leaves caching disabled.
func (e *Executor) SetCache(cache *ExecutionCache) {
	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()
	e.cache = cache
}

func generateCorrelationID() string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "00000000"
	}
	return hex.EncodeToString(buf)
}

// Execute runs the full Accepted→Validated→Authorized→Monitoring→Running→
// Finalizing pipeline for one request.
func (e *Executor) Execute(ctx context.Context, req ToolExecutionRequest) (ToolExecutionResult, error) {
	e.disposedMu.Lock()
	disposed := e.disposed
	e.disposedMu.Unlock()
	if disposed {
		return ToolExecutionResult{}, errors.New(ErrExecutorDisposed)
	}

	if req.Context == nil {
		req.Context = &ToolExecutionContext{}
	}
	if req.Context.CorrelationID == "" {
		req.Context.CorrelationID = generateCorrelationID()
	}
	correlationID := req.Context.CorrelationID
	startTime := time.Now()

	result := ToolExecutionResult{
		ToolID:        req.ToolID,
		CorrelationID: correlationID,
		UserID:        req.Context.UserID,
		StartTime:     startTime,
	}

	// Cache check: the Execution Cache (C6) decorator is activated per-call
	// via Context.AdditionalData["EnableCaching"], per spec.md §4.6.
	e.cacheMu.RLock()
	cache := e.cache
	e.cacheMu.RUnlock()
	cachingEnabled := cache != nil && req.Context.additionalBool("EnableCaching")
	var cacheKey string
	if cachingEnabled {
		cacheKey = Fingerprint(req.ToolID, req.Parameters, CacheKeyContext{
			UserID:             req.Context.UserID,
			ExcludedParameters: req.Context.additionalStringSlice("CacheExcludedParameters"),
		})
		if cached, ok := cache.Get(cacheKey); ok {
			materialized := MaterializeCacheHit(cached)
			materialized.CorrelationID = correlationID
			materialized.UserID = req.Context.UserID
			e.updateStatistics(materialized)
			e.broadcaster.fireCompleted(materialized)
			return materialized, nil
		}
	}

	// 1. Lookup
	reg, found := e.registry.Get(req.ToolID)
	if !found {
		return e.finalizeWithoutMonitor(result, false, (&ToolNotFoundError{ToolID: req.ToolID}).Error()), nil
	}
	if !reg.Enabled {
		return e.finalizeWithoutMonitor(result, false, (&ToolDisabledError{ToolID: req.ToolID}).Error()), nil
	}

	e.broadcaster.fireStarted(req.ToolID, correlationID, req.Context)

	// 2. Validate
	if req.ValidateParameters || req.EnforcePermissions {
		v := e.validator.ValidateParameters(reg.Metadata.Parameters, req.Parameters)
		if !v.IsValid {
			return e.finalizeWithoutMonitor(result, false, (&ValidationFailedError{Messages: v.Messages()}).Error()), nil
		}
	}

	// 3. Authorize
	if req.EnforcePermissions {
		reasons := e.security.ValidateExecution(reg.Metadata, req.Context.Permissions)
		if len(reasons) > 0 {
			violations := make([]SecurityViolation, 0, len(reasons))
			for _, reason := range reasons {
				v := SecurityViolation{
					ToolID:        req.ToolID,
					CorrelationID: correlationID,
					Description:   reason,
					Severity:      SeverityHigh,
					Timestamp:     time.Now(),
				}
				e.security.RecordViolation(v)
				violations = append(violations, v)
				e.broadcaster.fireSecurityViolation(req.ToolID, correlationID, reason, SeverityHigh)
			}

			result.IsSuccessful = false
			result.ErrorMessage = (&SecurityValidationError{Reasons: reasons}).Error()
			result.SecurityViolations = violations
			return e.finalize(result), nil
		}
	}

	// 4. Monitor start
	var session *ResourceSession
	run := &runningExecution{}
	if req.EnforceResourceLimits {
		session = e.resourceMonitor.StartSession(correlationID, req.Context.ResourceLimits, func(evt LimitExceededEvent) {
			run.mu.Lock()
			run.hitLimits = true
			run.exceededLimits = append(run.exceededLimits, evt.LimitType)
			cancel := run.cancel
			run.mu.Unlock()
			if cancel != nil {
				cancel()
			}
		})
	}

	// 5. Cancellation composition
	timeoutMs := req.TimeoutMs
	if timeoutMs <= 0 {
		timeoutMs = req.Context.ResourceLimits.MaxExecutionTimeMs
	}
	execCtx := ctx
	var cancel context.CancelFunc
	if timeoutMs > 0 {
		execCtx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMs)*time.Millisecond)
	} else {
		execCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	run.mu.Lock()
	run.cancel = cancel
	run.mu.Unlock()

	e.runningMu.Lock()
	e.running[strings.ToLower(correlationID)] = run
	e.runningMu.Unlock()

	if e.observability != nil {
		spanCtx, span := e.observability.StartSpan(execCtx, req.ToolID, correlationID, req.Context, req.Parameters)
		execCtx = spanCtx
		run.mu.Lock()
		run.span = span
		run.mu.Unlock()
	}

	// 6. Instantiate
	toolInstance, err := e.registry.CreateInstance(req.ToolID, e.locator)
	if err != nil {
		result.ErrorMessage = err.Error()
		return e.teardown(result, session, run, correlationID, req.ToolID, req.Context), nil
	}
	if err := toolInstance.Initialize(execCtx, reg.Configuration); err != nil {
		result.ErrorMessage = fmt.Sprintf("tool initialization failed: %v", err)
		return e.teardown(result, session, run, correlationID, req.ToolID, req.Context), nil
	}

	// 7. Execute
	toolResult, execErr := toolInstance.Execute(execCtx, req.Parameters, req.Context)

	if execCtx.Err() != nil {
		run.mu.Lock()
		hit := run.hitLimits
		run.mu.Unlock()
		result.WasCancelled = true
		result.IsSuccessful = false
		result.ErrorMessage = ErrExecutionCancelled
		result.HitResourceLimits = hit
	} else if execErr != nil {
		result.IsSuccessful = false
		result.ErrorMessage = execErr.Error()
	} else {
		result.ToolResult = toolResult
		result.IsSuccessful = toolResult.IsSuccessful
		if !toolResult.IsSuccessful && result.ErrorMessage == "" {
			result.ErrorMessage = toolResult.ErrorMessage
		}
	}

	// 8. Limit output
	if result.IsSuccessful && result.Data != nil && e.outputLimiter != nil {
		outputType := ClassifyOutputType(req.ToolID, reg.Metadata.Category)
		limitCtx := defaultOutputLimitContext(req.Context)
		limited := e.outputLimiter.Limit(result.Data, outputType, limitCtx)
		if limited.WasTruncated {
			result.Data = limited.Content
			if result.Metadata == nil {
				result.Metadata = make(map[string]interface{})
			}
			result.Metadata["output_truncated"] = true
			result.Metadata["truncation_info"] = limited
		}
	}

	if err := toolInstance.Dispose(); err != nil {
		obslogDisposeWarn(req.ToolID, err)
	}

	finalResult := e.teardown(result, session, run, correlationID, req.ToolID, req.Context)

	if cachingEnabled {
		cacheFailures := req.Context.additionalBool("CacheFailures")
		if finalResult.IsSuccessful || cacheFailures {
			ttl := req.Context.additionalDuration("CacheTimeToLive")
			cache.Set(cacheKey, req.ToolID, finalResult, CacheSetOptions{
				TimeToLive:    ttl,
				Priority:      req.Context.additionalCachePriority("CachePriority"),
				CacheFailures: cacheFailures,
			})
		}
	}

	return finalResult, nil
}

func defaultOutputLimitContext(execCtx *ToolExecutionContext) OutputLimitContext {
	ctx := OutputLimitContext{
		MaxCharacters:      50_000,
		MaxItems:           1000,
		MaxLines:           1000,
		IncludeSummary:     true,
		ProvideSuggestions: true,
	}
	if execCtx != nil {
		ctx.ToolContext = execCtx.CorrelationID
	}
	return ctx
}

// teardown performs step 9 (Finalize): stop the monitor, collect security
// violations recorded during the call, remove from the running map, emit
// observability completion and the ExecutionCompleted event.
func (e *Executor) teardown(result ToolExecutionResult, session *ResourceSession, run *runningExecution, correlationID, toolID string, execCtx *ToolExecutionContext) ToolExecutionResult {
	if session != nil {
		result.ResourceUsage = e.resourceMonitor.StopSession(correlationID)
		if len(result.ResourceUsage.ExceededLimits) > 0 {
			result.HitResourceLimits = true
		}
	}

	run.mu.Lock()
	if run.hitLimits {
		result.HitResourceLimits = true
		if result.Metadata == nil {
			result.Metadata = make(map[string]interface{})
		}
		result.Metadata["exceeded_limits"] = run.exceededLimits
	}
	run.mu.Unlock()

	for _, v := range e.security.ViolationsSince(result.StartTime) {
		if v.CorrelationID == correlationID {
			result.SecurityViolations = append(result.SecurityViolations, v)
		}
	}

	e.runningMu.Lock()
	delete(e.running, strings.ToLower(correlationID))
	e.runningMu.Unlock()

	result = e.finalize(result)

	run.mu.Lock()
	span := run.span
	run.mu.Unlock()
	if span != nil && e.observability != nil {
		e.observability.EndSpan(context.Background(), span, result)
	}

	return result
}

func (e *Executor) finalizeWithoutMonitor(result ToolExecutionResult, success bool, errMsg string) ToolExecutionResult {
	result.IsSuccessful = success
	result.ErrorMessage = errMsg
	return e.finalize(result)
}

func (e *Executor) finalize(result ToolExecutionResult) ToolExecutionResult {
	result.EndTime = time.Now()
	result.DurationMs = result.Duration().Milliseconds()

	e.updateStatistics(result)
	e.broadcaster.fireCompleted(result)
	return result
}

func (e *Executor) updateStatistics(result ToolExecutionResult) {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()

	e.stats.Total++
	switch {
	case result.WasCancelled:
		e.stats.Cancelled++
	case result.IsSuccessful:
		e.stats.Successful++
	default:
		e.stats.Failed++
	}
	if result.HitResourceLimits {
		e.stats.ResourceLimitViolations++
	}
	e.stats.SecurityViolations += int64(len(result.SecurityViolations))

	n := float64(e.stats.Total)
	e.stats.AvgDurationMs = (e.stats.AvgDurationMs*(n-1) + float64(result.DurationMs)) / n

	if result.ToolID != "" {
		e.stats.ByTool[result.ToolID]++
	}
	if result.UserID != "" {
		e.stats.ByUser[result.UserID]++
	}
}

// Statistics returns a snapshot of the current counters.
func (e *Executor) Statistics() ExecutorStatistics {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	byTool := make(map[string]int64, len(e.stats.ByTool))
	for k, v := range e.stats.ByTool {
		byTool[k] = v
	}
	byUser := make(map[string]int64, len(e.stats.ByUser))
	for k, v := range e.stats.ByUser {
		byUser[k] = v
	}
	stats := e.stats
	stats.ByTool = byTool
	stats.ByUser = byUser
	return stats
}

// CancelExecutions cancels every running execution whose correlation id
// matches (case-insensitive), returning the number of handles cancelled.
func (e *Executor) CancelExecutions(correlationID string) int {
	key := strings.ToLower(correlationID)
	e.runningMu.Lock()
	defer e.runningMu.Unlock()
	count := 0
	for k, run := range e.running {
		if k == key {
			run.mu.Lock()
			cancel := run.cancel
			run.mu.Unlock()
			if cancel != nil {
				cancel()
				count++
			}
		}
	}
	return count
}

// ExecuteSimple is the three-argument convenience overload over Execute.
func (e *Executor) ExecuteSimple(ctx context.Context, toolID string, parameters map[string]interface{}, execCtx *ToolExecutionContext) (ToolExecutionResult, error) {
	return e.Execute(ctx, ToolExecutionRequest{
		ToolID:                toolID,
		Parameters:            parameters,
		Context:               execCtx,
		ValidateParameters:    true,
		EnforcePermissions:    true,
		EnforceResourceLimits: true,
	})
}

// EstimateResourceUsage returns the resource ceiling a registered tool
// would run under: its per-registration configured limits if present,
// otherwise the framework defaults. Callers use this to size timeouts and
// budgets before calling Execute.
func (e *Executor) EstimateResourceUsage(toolID string) (ToolResourceLimits, error) {
	reg, found := e.registry.Get(toolID)
	if !found {
		return ToolResourceLimits{}, &ToolNotFoundError{ToolID: toolID}
	}
	if reg.Configuration != nil {
		if limits, ok := reg.Configuration["resourceLimits"].(ToolResourceLimits); ok {
			return limits, nil
		}
	}
	return DefaultResourceLimits(), nil
}

// ValidateRequest runs parameter and permission validation without
// executing the tool, returning every human-readable issue found.
func (e *Executor) ValidateRequest(req ToolExecutionRequest) []string {
	reg, found := e.registry.Get(req.ToolID)
	if !found {
		return []string{(&ToolNotFoundError{ToolID: req.ToolID}).Error()}
	}
	var messages []string
	v := e.validator.ValidateParameters(reg.Metadata.Parameters, req.Parameters)
	messages = append(messages, v.Messages()...)
	if req.Context != nil {
		messages = append(messages, e.security.ValidateExecution(reg.Metadata, req.Context.Permissions)...)
	}
	return messages
}

// RunningExecutionInfo is a snapshot of one in-flight execution.
type RunningExecutionInfo struct {
	CorrelationID string
	CurrentUsage  ResourceUsageSnapshot
}

// RunningExecutions lists every execution currently in flight.
func (e *Executor) RunningExecutions() []RunningExecutionInfo {
	e.runningMu.Lock()
	ids := make([]string, 0, len(e.running))
	for id := range e.running {
		ids = append(ids, id)
	}
	e.runningMu.Unlock()

	out := make([]RunningExecutionInfo, 0, len(ids))
	for _, id := range ids {
		info := RunningExecutionInfo{CorrelationID: id}
		if session, ok := e.resourceMonitor.Session(id); ok {
			info.CurrentUsage = session.Snapshot()
		}
		out = append(out, info)
	}
	return out
}

// Dispose cancels every outstanding execution and marks the Executor
// unusable for further Execute calls.
func (e *Executor) Dispose() {
	e.disposedMu.Lock()
	e.disposed = true
	e.disposedMu.Unlock()

	e.runningMu.Lock()
	defer e.runningMu.Unlock()
	for _, run := range e.running {
		run.mu.Lock()
		cancel := run.cancel
		run.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
}

func obslogDisposeWarn(toolID string, err error) {
	if err == nil {
		return
	}
	// Dispose errors are surfaced but never fail the execution that already
	// completed.
	obslog.Warn("tool '%s' dispose failed: %v", toolID, err)
}
