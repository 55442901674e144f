// Package metricsexport renders an Observability snapshot into one of a
// fixed set of external formats, per spec.md §6's "Metrics export formats".
package metricsexport

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/rivoli-ai/andy-tools-sub003/pkg/andytools"
)

// Format is the closed set of supported export encodings.
type Format string

const (
	FormatJSON       Format = "json"
	FormatCSV        Format = "csv"
	FormatPrometheus Format = "prometheus"
	FormatOTel       Format = "otel"
)

// NotSupportedError reports a requested format outside the closed set.
type NotSupportedError struct{ Format Format }

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("metrics export format %q is not supported", e.Format)
}

// Export renders the given records and per-tool aggregates in the
// requested format.
func Export(format Format, records []andytools.ExecutionRecord, aggregates map[string]andytools.AggregateStats) ([]byte, error) {
	switch format {
	case FormatJSON:
		return exportJSON(records, aggregates)
	case FormatCSV:
		return exportCSV(records, aggregates)
	case FormatPrometheus:
		return exportPrometheus(aggregates)
	case FormatOTel:
		return exportOTelEnvelope(aggregates)
	default:
		return nil, &NotSupportedError{Format: format}
	}
}

func exportJSON(records []andytools.ExecutionRecord, aggregates map[string]andytools.AggregateStats) ([]byte, error) {
	payload := struct {
		Records    []andytools.ExecutionRecord           `json:"records"`
		Aggregates map[string]andytools.AggregateStats   `json:"aggregates"`
	}{Records: records, Aggregates: aggregates}
	return json.MarshalIndent(payload, "", "  ")
}

func exportCSV(records []andytools.ExecutionRecord, aggregates map[string]andytools.AggregateStats) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"section", "tool_id", "correlation_id", "start_time", "duration_ms", "successful", "cancelled", "error_category"}); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			"record", r.ToolID, r.CorrelationID,
			r.StartTime.Format(time.RFC3339Nano),
			strconv.FormatInt(r.DurationMs, 10),
			strconv.FormatBool(r.Successful),
			strconv.FormatBool(r.Cancelled),
			r.ErrorCategory,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	toolIDs := make([]string, 0, len(aggregates))
	for id := range aggregates {
		toolIDs = append(toolIDs, id)
	}
	sort.Strings(toolIDs)

	if err := w.Write([]string{}); err != nil {
		return nil, err
	}
	if err := w.Write([]string{"tool_id", "total", "success_rate", "avg_duration_ms", "p50_ms", "p90_ms", "p99_ms"}); err != nil {
		return nil, err
	}
	for _, id := range toolIDs {
		a := aggregates[id]
		row := []string{
			id,
			strconv.Itoa(a.Total),
			strconv.FormatFloat(a.SuccessRate, 'f', 2, 64),
			strconv.FormatFloat(a.AvgDurationMs, 'f', 2, 64),
			strconv.FormatInt(a.P50DurationMs, 10),
			strconv.FormatInt(a.P90DurationMs, 10),
			strconv.FormatInt(a.P99DurationMs, 10),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func exportPrometheus(aggregates map[string]andytools.AggregateStats) ([]byte, error) {
	var buf bytes.Buffer

	toolIDs := make([]string, 0, len(aggregates))
	for id := range aggregates {
		toolIDs = append(toolIDs, id)
	}
	sort.Strings(toolIDs)

	fmt.Fprintln(&buf, "# HELP andy_tools_executions_total Total tool executions")
	fmt.Fprintln(&buf, "# TYPE andy_tools_executions_total counter")
	for _, id := range toolIDs {
		a := aggregates[id]
		fmt.Fprintf(&buf, "andy_tools_executions_total{tool_id=%q} %d\n", id, a.Total)
	}

	fmt.Fprintln(&buf, "# HELP andy_tools_success_rate Success rate percentage per tool")
	fmt.Fprintln(&buf, "# TYPE andy_tools_success_rate gauge")
	for _, id := range toolIDs {
		a := aggregates[id]
		fmt.Fprintf(&buf, "andy_tools_success_rate{tool_id=%q} %f\n", id, a.SuccessRate)
	}

	fmt.Fprintln(&buf, "# HELP andy_tools_duration_ms_avg Average execution duration in milliseconds")
	fmt.Fprintln(&buf, "# TYPE andy_tools_duration_ms_avg gauge")
	for _, id := range toolIDs {
		a := aggregates[id]
		fmt.Fprintf(&buf, "andy_tools_duration_ms_avg{tool_id=%q} %f\n", id, a.AvgDurationMs)
	}

	fmt.Fprintln(&buf, "# HELP andy_tools_peak_memory_bytes Peak memory usage per tool")
	fmt.Fprintln(&buf, "# TYPE andy_tools_peak_memory_bytes gauge")
	for _, id := range toolIDs {
		a := aggregates[id]
		fmt.Fprintf(&buf, "andy_tools_peak_memory_bytes{tool_id=%q} %d\n", id, a.PeakMemoryBytes)
	}

	return buf.Bytes(), nil
}

// otelEnvelope mirrors the shape of an OTLP metrics export, scoped down to
// what spec.md §6 asks for: a service-tagged resource with one data point
// per tool per metric.
type otelEnvelope struct {
	ResourceMetrics struct {
		Resource struct {
			Attributes []otelAttr `json:"attributes"`
		} `json:"resource"`
		ScopeMetrics []otelScopeMetrics `json:"scopeMetrics"`
	} `json:"resourceMetrics"`
}

type otelAttr struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

type otelScopeMetrics struct {
	Metrics []otelMetric `json:"metrics"`
}

type otelMetric struct {
	Name       string          `json:"name"`
	DataPoints []otelDataPoint `json:"dataPoints"`
}

type otelDataPoint struct {
	Attributes []otelAttr `json:"attributes"`
	AsDouble   float64    `json:"asDouble"`
	TimeUnix   int64      `json:"timeUnixNano"`
}

func exportOTelEnvelope(aggregates map[string]andytools.AggregateStats) ([]byte, error) {
	now := time.Now().UnixNano()

	toolIDs := make([]string, 0, len(aggregates))
	for id := range aggregates {
		toolIDs = append(toolIDs, id)
	}
	sort.Strings(toolIDs)

	var env otelEnvelope
	env.ResourceMetrics.Resource.Attributes = []otelAttr{
		{Key: "service.name", Value: "andy-tools"},
	}

	metrics := []otelMetric{
		{Name: "andy_tools.executions"},
		{Name: "andy_tools.success_rate"},
		{Name: "andy_tools.duration_ms.avg"},
	}
	for i := range metrics {
		for _, id := range toolIDs {
			a := aggregates[id]
			var value float64
			switch metrics[i].Name {
			case "andy_tools.executions":
				value = float64(a.Total)
			case "andy_tools.success_rate":
				value = a.SuccessRate
			case "andy_tools.duration_ms.avg":
				value = a.AvgDurationMs
			}
			metrics[i].DataPoints = append(metrics[i].DataPoints, otelDataPoint{
				Attributes: []otelAttr{{Key: "tool_id", Value: id}},
				AsDouble:   value,
				TimeUnix:   now,
			})
		}
	}

	env.ResourceMetrics.ScopeMetrics = []otelScopeMetrics{{Metrics: metrics}}
	return json.MarshalIndent(env, "", "  ")
}
