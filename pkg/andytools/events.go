package andytools

import "sync"

// ExecutionStartedHandler is notified when a pipeline run begins.
type ExecutionStartedHandler func(toolID, correlationID string, execCtx *ToolExecutionContext)

// ExecutionCompletedHandler is notified once, exactly once, when a pipeline
// run reaches a terminal state.
type ExecutionCompletedHandler func(result ToolExecutionResult)

// SecurityViolationHandler is notified for every denial the security
// manager records.
type SecurityViolationHandler func(toolID, correlationID, description string, severity SeverityLevel)

// ToolRegisteredHandler is notified after a registration commits.
type ToolRegisteredHandler func(metadata ToolMetadata)

// ToolUnregisteredHandler is notified after a registration is removed.
type ToolUnregisteredHandler func(toolID string)

// broadcaster is a minimal multi-listener event bus. Listener panics are
// recovered so one bad subscriber can never abort the pipeline that raised
// the event.
type broadcaster struct {
	mu                  sync.RWMutex
	onStarted           []ExecutionStartedHandler
	onCompleted         []ExecutionCompletedHandler
	onSecurityViolation []SecurityViolationHandler
	onRegistered        []ToolRegisteredHandler
	onUnregistered      []ToolUnregisteredHandler
}

func newBroadcaster() *broadcaster {
	return &broadcaster{}
}

func (b *broadcaster) OnExecutionStarted(h ExecutionStartedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStarted = append(b.onStarted, h)
}

func (b *broadcaster) OnExecutionCompleted(h ExecutionCompletedHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onCompleted = append(b.onCompleted, h)
}

func (b *broadcaster) OnSecurityViolation(h SecurityViolationHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onSecurityViolation = append(b.onSecurityViolation, h)
}

func (b *broadcaster) OnToolRegistered(h ToolRegisteredHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onRegistered = append(b.onRegistered, h)
}

func (b *broadcaster) OnToolUnregistered(h ToolUnregisteredHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onUnregistered = append(b.onUnregistered, h)
}

func (b *broadcaster) fireStarted(toolID, correlationID string, execCtx *ToolExecutionContext) {
	b.mu.RLock()
	handlers := append([]ExecutionStartedHandler(nil), b.onStarted...)
	b.mu.RUnlock()
	for _, h := range handlers {
		safeCall(func() { h(toolID, correlationID, execCtx) })
	}
}

func (b *broadcaster) fireCompleted(result ToolExecutionResult) {
	b.mu.RLock()
	handlers := append([]ExecutionCompletedHandler(nil), b.onCompleted...)
	b.mu.RUnlock()
	for _, h := range handlers {
		safeCall(func() { h(result) })
	}
}

func (b *broadcaster) fireSecurityViolation(toolID, correlationID, description string, severity SeverityLevel) {
	b.mu.RLock()
	handlers := append([]SecurityViolationHandler(nil), b.onSecurityViolation...)
	b.mu.RUnlock()
	for _, h := range handlers {
		safeCall(func() { h(toolID, correlationID, description, severity) })
	}
}

func (b *broadcaster) fireRegistered(metadata ToolMetadata) {
	b.mu.RLock()
	handlers := append([]ToolRegisteredHandler(nil), b.onRegistered...)
	b.mu.RUnlock()
	for _, h := range handlers {
		safeCall(func() { h(metadata) })
	}
}

func (b *broadcaster) fireUnregistered(toolID string) {
	b.mu.RLock()
	handlers := append([]ToolUnregisteredHandler(nil), b.onUnregistered...)
	b.mu.RUnlock()
	for _, h := range handlers {
		safeCall(func() { h(toolID) })
	}
}

func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			// A listener's panic must never unwind into the pipeline that
			// raised the event.
		}
	}()
	fn()
}
