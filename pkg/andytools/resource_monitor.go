package andytools

import (
	"runtime"
	"sync"
	"time"
)

// LimitExceededEvent is emitted the first time a session crosses one of its
// configured ceilings.
type LimitExceededEvent struct {
	CorrelationID string
	LimitType     string
	CurrentValue  int64
	LimitValue    int64
}

// LimitExceededHandler reacts to a LimitExceededEvent; the Executor uses
// this to cancel the offending execution.
type LimitExceededHandler func(LimitExceededEvent)

// ResourceSession is the per-execution accounting envelope created by the
// monitor and disposed at the end of the pipeline. All mutation methods on a
// single session are mutually exclusive.
type ResourceSession struct {
	correlationID string
	limits        ToolResourceLimits
	onExceeded    LimitExceededHandler

	mu              sync.Mutex
	startedAt       time.Time
	seconds         int64
	peakMemory      int64
	avgMemory       float64
	uniqueFiles     map[string]bool
	bytesRead       int64
	bytesWritten    int64
	networkRequests int
	netBytesSent    int64
	netBytesRecv    int64
	processesStarted int
	exceeded        map[string]bool
	disposed        bool
}

func newResourceSession(correlationID string, limits ToolResourceLimits, onExceeded LimitExceededHandler) *ResourceSession {
	return &ResourceSession{
		correlationID: correlationID,
		limits:        limits,
		onExceeded:    onExceeded,
		startedAt:     time.Now(),
		uniqueFiles:   make(map[string]bool),
		exceeded:      make(map[string]bool),
	}
}

func (s *ResourceSession) markExceeded(limitType string, current, limit int64) {
	if s.exceeded[limitType] {
		return
	}
	s.exceeded[limitType] = true
	if s.onExceeded != nil {
		s.onExceeded(LimitExceededEvent{
			CorrelationID: s.correlationID,
			LimitType:     limitType,
			CurrentValue:  current,
			LimitValue:    limit,
		})
	}
}

// RecordFileAccess updates the unique-path count and cumulative byte
// counters, checking maxFileCount and maxFileSizeBytes.
func (s *ResourceSession) RecordFileAccess(path string, accessType FileAccessType, bytesRead, bytesWritten int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.uniqueFiles[path] = true
	s.bytesRead += bytesRead
	s.bytesWritten += bytesWritten

	if s.limits.MaxFileCount > 0 && len(s.uniqueFiles) > s.limits.MaxFileCount {
		s.markExceeded("files", int64(len(s.uniqueFiles)), int64(s.limits.MaxFileCount))
	}
	if s.limits.MaxFileSizeBytes > 0 {
		if bytesRead > s.limits.MaxFileSizeBytes || bytesWritten > s.limits.MaxFileSizeBytes {
			s.markExceeded("file_size", maxInt64(bytesRead, bytesWritten), s.limits.MaxFileSizeBytes)
		}
	}
}

// RecordNetworkAccess tracks one outbound network call.
func (s *ResourceSession) RecordNetworkAccess(host string, bytesSent, bytesReceived int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.networkRequests++
	s.netBytesSent += bytesSent
	s.netBytesRecv += bytesReceived
}

// RecordProcessExecution tracks one spawned process.
func (s *ResourceSession) RecordProcessExecution(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.processesStarted++
}

// UpdateMemoryUsage folds in a new memory sample using the running-average
// formula from spec.md §4.3: with k the number of samples folded in so far
// (about one per second from the background sampler),
// avg' = (avg*(k-1) + sample) / k.
func (s *ResourceSession) UpdateMemoryUsage(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	if bytes > s.peakMemory {
		s.peakMemory = bytes
	}
	s.seconds++
	k := float64(s.seconds)
	s.avgMemory = (s.avgMemory*(k-1) + float64(bytes)) / k

	if s.limits.MaxMemoryBytes > 0 && bytes > s.limits.MaxMemoryBytes {
		s.markExceeded("memory", bytes, s.limits.MaxMemoryBytes)
	}
}

// Snapshot returns the current, monotonic-safe usage view.
func (s *ResourceSession) Snapshot() ResourceUsageSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	exceeded := make([]string, 0, len(s.exceeded))
	for k := range s.exceeded {
		exceeded = append(exceeded, k)
	}
	return ResourceUsageSnapshot{
		PeakMemoryBytes:      s.peakMemory,
		AverageMemoryBytes:   s.avgMemory,
		CPUTimeMs:            time.Since(s.startedAt).Milliseconds(),
		FilesAccessed:        len(s.uniqueFiles),
		BytesRead:            s.bytesRead,
		BytesWritten:         s.bytesWritten,
		NetworkRequests:      s.networkRequests,
		NetworkBytesSent:     s.netBytesSent,
		NetworkBytesReceived: s.netBytesRecv,
		ProcessesStarted:     s.processesStarted,
		ExceededLimits:       exceeded,
	}
}

func (s *ResourceSession) dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

// ResourceMonitor runs a single background ticker that samples the host
// process's working set and fans the sample out to every active session
// non-blockingly, per spec.md §4.3.
type ResourceMonitor struct {
	mu       sync.Mutex
	sessions map[string]*ResourceSession
	ticker   *time.Ticker
	stopCh   chan struct{}
	started  bool
}

// NewResourceMonitor constructs a monitor; call Start to begin sampling.
func NewResourceMonitor() *ResourceMonitor {
	return &ResourceMonitor{
		sessions: make(map[string]*ResourceSession),
	}
}

// Start begins the ~1s sampling loop. Safe to call once.
func (m *ResourceMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.ticker = time.NewTicker(time.Second)
	m.stopCh = make(chan struct{})
	go m.sampleLoop(m.ticker, m.stopCh)
}

func (m *ResourceMonitor) sampleLoop(ticker *time.Ticker, stop chan struct{}) {
	for {
		select {
		case <-ticker.C:
			m.broadcastSample()
		case <-stop:
			return
		}
	}
}

func (m *ResourceMonitor) broadcastSample() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	sample := int64(stats.Alloc)

	m.mu.Lock()
	sessions := make([]*ResourceSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		go s.UpdateMemoryUsage(sample)
	}
}

// StartSession creates and registers a new per-execution session.
func (m *ResourceMonitor) StartSession(correlationID string, limits ToolResourceLimits, onExceeded LimitExceededHandler) *ResourceSession {
	session := newResourceSession(correlationID, limits, onExceeded)
	m.mu.Lock()
	m.sessions[correlationID] = session
	m.mu.Unlock()
	return session
}

// Session returns the active session for a correlation id, if any.
func (m *ResourceMonitor) Session(correlationID string) (*ResourceSession, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[correlationID]
	return s, ok
}

// StopSession disposes and unregisters a session, returning its final
// usage snapshot.
func (m *ResourceMonitor) StopSession(correlationID string) ResourceUsageSnapshot {
	m.mu.Lock()
	session, ok := m.sessions[correlationID]
	delete(m.sessions, correlationID)
	m.mu.Unlock()

	if !ok {
		return ResourceUsageSnapshot{}
	}
	snapshot := session.Snapshot()
	session.dispose()
	return snapshot
}

// Stop halts the background sampling loop.
func (m *ResourceMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.started = false
	if m.ticker != nil {
		m.ticker.Stop()
	}
	if m.stopCh != nil {
		close(m.stopCh)
	}
}
