package andytools

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceSession_RecordFileAccessTripsMaxFileCount(t *testing.T) {
	var mu sync.Mutex
	var events []LimitExceededEvent
	session := newResourceSession("corr-1", ToolResourceLimits{MaxFileCount: 2}, func(e LimitExceededEvent) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	session.RecordFileAccess("/a", AccessRead, 10, 0)
	session.RecordFileAccess("/b", AccessRead, 10, 0)
	session.RecordFileAccess("/c", AccessRead, 10, 0)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, "files", events[0].LimitType)
	assert.Equal(t, int64(3), events[0].CurrentValue)
}

func TestResourceSession_RecordFileAccessTripsMaxFileSize(t *testing.T) {
	var events []LimitExceededEvent
	session := newResourceSession("corr-1", ToolResourceLimits{MaxFileSizeBytes: 100}, func(e LimitExceededEvent) {
		events = append(events, e)
	})

	session.RecordFileAccess("/big", AccessRead, 500, 0)

	require.Len(t, events, 1)
	assert.Equal(t, "file_size", events[0].LimitType)
}

func TestResourceSession_MarkExceededFiresOnce(t *testing.T) {
	count := 0
	session := newResourceSession("corr-1", ToolResourceLimits{MaxMemoryBytes: 10}, func(e LimitExceededEvent) {
		count++
	})

	session.UpdateMemoryUsage(100)
	session.UpdateMemoryUsage(200)

	assert.Equal(t, 1, count, "the same limit type should only fire once per session")
}

func TestResourceSession_SnapshotAggregatesUsage(t *testing.T) {
	session := newResourceSession("corr-1", ToolResourceLimits{}, nil)
	session.RecordFileAccess("/a", AccessRead, 10, 5)
	session.RecordNetworkAccess("example.com", 20, 30)
	session.RecordProcessExecution("ls")
	session.UpdateMemoryUsage(1024)

	snap := session.Snapshot()
	assert.Equal(t, 1, snap.FilesAccessed)
	assert.Equal(t, int64(10), snap.BytesRead)
	assert.Equal(t, int64(5), snap.BytesWritten)
	assert.Equal(t, 1, snap.NetworkRequests)
	assert.Equal(t, int64(1024), snap.PeakMemoryBytes)
	assert.Equal(t, 1, snap.ProcessesStarted)
}

func TestResourceSession_DisposeStopsRecording(t *testing.T) {
	session := newResourceSession("corr-1", ToolResourceLimits{}, nil)
	session.dispose()
	session.RecordFileAccess("/a", AccessRead, 10, 0)

	snap := session.Snapshot()
	assert.Equal(t, 0, snap.FilesAccessed)
}

func TestResourceMonitor_StartStopSessionLifecycle(t *testing.T) {
	monitor := NewResourceMonitor()
	monitor.Start()
	t.Cleanup(monitor.Stop)

	session := monitor.StartSession("corr-1", ToolResourceLimits{}, nil)
	require.NotNil(t, session)

	found, ok := monitor.Session("corr-1")
	require.True(t, ok)
	assert.Same(t, session, found)

	snap := monitor.StopSession("corr-1")
	assert.NotNil(t, snap)

	_, ok = monitor.Session("corr-1")
	assert.False(t, ok)
}

func TestResourceMonitor_StopSessionUnknownReturnsZeroValue(t *testing.T) {
	monitor := NewResourceMonitor()
	snap := monitor.StopSession("never-started")
	assert.Equal(t, ResourceUsageSnapshot{}, snap)
}
