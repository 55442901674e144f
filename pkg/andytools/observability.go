package andytools

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/posthog/posthog-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/rivoli-ai/andy-tools-sub003/internal/obslog"
)

const instrumentationName = "github.com/rivoli-ai/andy-tools-sub003/pkg/andytools"

// ExecutionRecord is one completed pipeline run retained for on-demand
// aggregation and analytics. ID is a time-sortable ULID so a future
// time-bounded reaper could scan the ring for age without a separate
// timestamp index.
type ExecutionRecord struct {
	ID            string
	ToolID        string
	CorrelationID string
	UserID        string
	StartTime     time.Time
	EndTime       time.Time
	DurationMs    int64
	Successful    bool
	Cancelled     bool
	ErrorCategory string
	ResourceUsage ResourceUsageSnapshot
}

// Observability owns the tracer, metric instruments and the bounded ring
// buffer of execution records per spec.md §4.7.
type Observability struct {
	tracer trace.Tracer
	meter  metric.Meter

	executionCounter  metric.Int64Counter
	durationHistogram metric.Float64Histogram
	errorCounter      metric.Int64Counter
	memoryHistogram   metric.Float64Histogram
	cpuPercentHist    metric.Float64Histogram
	activeGauge       metric.Int64UpDownCounter

	posthogClient posthog.Client
	anonymousID   string

	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	ring    []ExecutionRecord
	ringCap int
	ringPos int
	ringLen int
}

// ObservabilityOptions controls optional collaborators.
type ObservabilityOptions struct {
	ServiceName    string
	RingCapacity   int
	EnablePosthog  bool
	PosthogAPIKey  string
	PosthogEndpoint string
}

// NewObservability wires tracer/meter instruments under instrumentationName
// and, when requested, an anonymous posthog beacon.
func NewObservability(opts ObservabilityOptions) *Observability {
	if opts.RingCapacity <= 0 {
		opts.RingCapacity = 1000
	}

	tracer := otel.Tracer(instrumentationName)
	meter := otel.Meter(instrumentationName)

	o := &Observability{
		tracer:  tracer,
		meter:   meter,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0),
		ringCap: opts.RingCapacity,
		ring:    make([]ExecutionRecord, opts.RingCapacity),
	}

	var err error
	o.executionCounter, err = meter.Int64Counter("andy_tools.executions",
		metric.WithDescription("Count of tool executions by tool id and outcome"))
	if err != nil {
		obslog.Warn("failed to create execution counter: %v", err)
	}
	o.durationHistogram, err = meter.Float64Histogram("andy_tools.execution_duration_ms",
		metric.WithDescription("Execution duration in milliseconds"))
	if err != nil {
		obslog.Warn("failed to create duration histogram: %v", err)
	}
	o.errorCounter, err = meter.Int64Counter("andy_tools.errors",
		metric.WithDescription("Count of execution errors by tool id and category"))
	if err != nil {
		obslog.Warn("failed to create error counter: %v", err)
	}
	o.memoryHistogram, err = meter.Float64Histogram("andy_tools.memory_bytes",
		metric.WithDescription("Peak memory usage per execution"))
	if err != nil {
		obslog.Warn("failed to create memory histogram: %v", err)
	}
	o.cpuPercentHist, err = meter.Float64Histogram("andy_tools.cpu_percent",
		metric.WithDescription("CPU time as a percentage of wall-clock duration"))
	if err != nil {
		obslog.Warn("failed to create cpu percent histogram: %v", err)
	}
	o.activeGauge, err = meter.Int64UpDownCounter("andy_tools.active_executions",
		metric.WithDescription("Currently running executions"))
	if err != nil {
		obslog.Warn("failed to create active executions gauge: %v", err)
	}

	if opts.EnablePosthog && opts.PosthogAPIKey != "" {
		endpoint := opts.PosthogEndpoint
		if endpoint == "" {
			endpoint = "https://us.i.posthog.com"
		}
		client, err := posthog.NewWithConfig(opts.PosthogAPIKey, posthog.Config{Endpoint: endpoint})
		if err != nil {
			obslog.Warn("failed to initialize posthog client: %v", err)
		} else {
			o.posthogClient = client
			o.anonymousID = anonymousBeaconID()
		}
	}

	return o
}

func anonymousBeaconID() string {
	hostname, _ := os.Hostname()
	data := fmt.Sprintf("%s-%s-%s", hostname, runtime.GOOS, runtime.GOARCH)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("anon_%x", hash[:8])
}

// StartSpan opens "ToolExecution.<toolId>" with the standard tag set:
// toolId, userId, sessionId, and up to 10 simple-typed sampled parameters.
func (o *Observability) StartSpan(ctx context.Context, toolID, correlationID string, execCtx *ToolExecutionContext, parameters map[string]interface{}) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("tool_id", toolID),
		attribute.String("correlation_id", correlationID),
	}
	if execCtx != nil {
		attrs = append(attrs, attribute.String("user_id", execCtx.UserID), attribute.String("session_id", execCtx.SessionID))
	}

	sampled, truncated := sampleSimpleParameters(parameters, 10)
	for k, v := range sampled {
		attrs = append(attrs, attribute.String("param."+k, fmt.Sprint(v)))
	}
	if truncated {
		attrs = append(attrs, attribute.Bool("truncated", true))
	}

	o.activeGauge.Add(ctx, 1)
	return o.tracer.Start(ctx, "ToolExecution."+toolID, trace.WithAttributes(attrs...))
}

func sampleSimpleParameters(parameters map[string]interface{}, limit int) (map[string]interface{}, bool) {
	out := make(map[string]interface{}, limit)
	count := 0
	truncated := false
	for k, v := range parameters {
		if !isSimpleType(v) {
			continue
		}
		if count >= limit {
			truncated = true
			break
		}
		out[k] = v
		count++
	}
	return out, truncated
}

func isSimpleType(v interface{}) bool {
	switch v.(type) {
	case string, bool, int, int64, float64:
		return true
	default:
		return false
	}
}

// EndSpan finalizes the span with status, resource-usage tags and feeds the
// metric instruments, then appends the run to the ring buffer.
func (o *Observability) EndSpan(ctx context.Context, span trace.Span, result ToolExecutionResult) {
	o.activeGauge.Add(ctx, -1)

	if result.IsSuccessful {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, result.ErrorMessage)
	}
	span.SetAttributes(
		attribute.Int64("peak_memory_bytes", result.ResourceUsage.PeakMemoryBytes),
		attribute.Int64("cpu_time_ms", result.ResourceUsage.CPUTimeMs),
		attribute.Int("files_accessed", result.ResourceUsage.FilesAccessed),
	)
	span.End()

	durationMs := float64(result.Duration().Milliseconds())
	successAttr := attribute.Bool("success", result.IsSuccessful)
	toolAttr := attribute.String("tool_id", result.ToolID)

	o.executionCounter.Add(ctx, 1, metric.WithAttributes(toolAttr, successAttr))
	o.durationHistogram.Record(ctx, durationMs, metric.WithAttributes(toolAttr))
	o.memoryHistogram.Record(ctx, float64(result.ResourceUsage.PeakMemoryBytes), metric.WithAttributes(toolAttr))

	if durationMs > 0 {
		cpuPercent := float64(result.ResourceUsage.CPUTimeMs) / durationMs * 100
		o.cpuPercentHist.Record(ctx, cpuPercent, metric.WithAttributes(toolAttr))
	}

	category := ""
	if !result.IsSuccessful && !result.WasCancelled {
		category = classifyErrorMessage(result.ErrorMessage)
		o.errorCounter.Add(ctx, 1, metric.WithAttributes(toolAttr, attribute.String("error_type", category)))
	}

	o.appendRecord(ExecutionRecord{
		ToolID:        result.ToolID,
		CorrelationID: result.CorrelationID,
		UserID:        result.UserID,
		StartTime:     result.StartTime,
		EndTime:       result.EndTime,
		DurationMs:    result.DurationMs,
		Successful:    result.IsSuccessful,
		Cancelled:     result.WasCancelled,
		ErrorCategory: category,
		ResourceUsage: result.ResourceUsage,
	})

	if o.posthogClient != nil {
		o.trackAnonymousCompletion(result)
	}
}

func (o *Observability) trackAnonymousCompletion(result ToolExecutionResult) {
	properties := map[string]interface{}{
		"tool_id":                  result.ToolID,
		"success":                  result.IsSuccessful,
		"duration_ms":              result.DurationMs,
		"$process_person_profile": false,
	}
	err := o.posthogClient.Enqueue(posthog.Capture{
		DistinctId: o.anonymousID,
		Event:      "tool_execution_completed",
		Properties: properties,
	})
	if err != nil {
		obslog.Warn("failed to enqueue posthog event: %v", err)
	}
}

func (o *Observability) appendRecord(rec ExecutionRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	id, err := ulid.New(ulid.Timestamp(rec.EndTime), o.entropy)
	if err != nil {
		id = ulid.MustNew(ulid.Timestamp(time.Now()), o.entropy)
	}
	rec.ID = id.String()
	o.ring[o.ringPos] = rec
	o.ringPos = (o.ringPos + 1) % o.ringCap
	if o.ringLen < o.ringCap {
		o.ringLen++
	}
}

// Records returns a snapshot copy of every retained execution record.
func (o *Observability) Records() []ExecutionRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]ExecutionRecord, 0, o.ringLen)
	if o.ringLen < o.ringCap {
		out = append(out, o.ring[:o.ringLen]...)
		return out
	}
	out = append(out, o.ring[o.ringPos:]...)
	out = append(out, o.ring[:o.ringPos]...)
	return out
}

// RecordsOlderThan returns every retained record whose ID sorts before the
// given cutoff, letting a maintenance sweep bound its scan by age without
// re-deriving timestamps from each record.
func (o *Observability) RecordsOlderThan(cutoff time.Time) []ExecutionRecord {
	threshold := ulid.MustNew(ulid.Timestamp(cutoff), nil).String()
	records := o.Records()
	out := make([]ExecutionRecord, 0)
	for _, r := range records {
		if r.ID != "" && r.ID < threshold {
			out = append(out, r)
		}
	}
	return out
}

// Close releases the posthog client, if any.
func (o *Observability) Close() {
	if o.posthogClient != nil {
		o.posthogClient.Close()
	}
}
