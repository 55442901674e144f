package andytools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObservability_StartAndEndSpanAppendsRecord(t *testing.T) {
	obs := NewObservability(ObservabilityOptions{ServiceName: "test", RingCapacity: 10})

	ctx, span := obs.StartSpan(context.Background(), "echo", "corr-1", &ToolExecutionContext{UserID: "alice"}, map[string]interface{}{"message": "hi"})
	require.NotNil(t, span)

	start := time.Now()
	result := ToolExecutionResult{
		ToolID:        "echo",
		CorrelationID: "corr-1",
		StartTime:     start,
		EndTime:       start.Add(50 * time.Millisecond),
		ToolResult:    ToolResult{IsSuccessful: true, DurationMs: 50},
	}
	obs.EndSpan(ctx, span, result)

	records := obs.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "echo", records[0].ToolID)
	assert.Equal(t, "corr-1", records[0].CorrelationID)
	assert.NotEmpty(t, records[0].ID)
	assert.True(t, records[0].Successful)
}

func TestObservability_RingBufferWrapsAtCapacity(t *testing.T) {
	obs := NewObservability(ObservabilityOptions{RingCapacity: 3})

	for i := 0; i < 5; i++ {
		obs.appendRecord(ExecutionRecord{ToolID: "tool", EndTime: time.Now()})
	}

	records := obs.Records()
	assert.Len(t, records, 3)
}

func TestObservability_RecordsOlderThanBoundsByAge(t *testing.T) {
	obs := NewObservability(ObservabilityOptions{RingCapacity: 10})

	old := time.Now().Add(-2 * time.Hour)
	obs.appendRecord(ExecutionRecord{ToolID: "old-tool", EndTime: old})

	recent := time.Now()
	obs.appendRecord(ExecutionRecord{ToolID: "recent-tool", EndTime: recent})

	stale := obs.RecordsOlderThan(time.Now().Add(-time.Hour))
	require.Len(t, stale, 1)
	assert.Equal(t, "old-tool", stale[0].ToolID)
}

func TestObservability_EndSpanClassifiesErrorCategory(t *testing.T) {
	obs := NewObservability(ObservabilityOptions{RingCapacity: 10})
	ctx, span := obs.StartSpan(context.Background(), "failing", "corr-2", nil, nil)

	result := ToolExecutionResult{
		ToolID:        "failing",
		CorrelationID: "corr-2",
		StartTime:     time.Now(),
		EndTime:       time.Now(),
		ToolResult:    ToolResult{IsSuccessful: false, ErrorMessage: "permission denied: blocked path"},
	}
	obs.EndSpan(ctx, span, result)

	records := obs.Records()
	require.Len(t, records, 1)
	assert.False(t, records[0].Successful)
	assert.NotEmpty(t, records[0].ErrorCategory)
}

func TestObservability_Close(t *testing.T) {
	obs := NewObservability(ObservabilityOptions{RingCapacity: 1})
	assert.NotPanics(t, obs.Close)
}
