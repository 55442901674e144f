package andytools

import (
	"sort"
	"strings"
	"time"
)

// AggregateStats is the on-demand rollup computed over the retained
// execution records for one tool, or globally when ToolID is empty.
type AggregateStats struct {
	ToolID             string
	Total              int
	SuccessCount       int
	FailureCount       int
	CancelledCount     int
	SuccessRate        float64
	MinDurationMs      int64
	AvgDurationMs      float64
	MaxDurationMs      int64
	P50DurationMs      int64
	P90DurationMs      int64
	P99DurationMs      int64
	AvgPeakMemoryBytes float64
	PeakMemoryBytes    int64
	ErrorDistribution  map[string]int
}

// Aggregate computes AggregateStats over every retained record, or only
// those matching toolID when non-empty.
func (o *Observability) Aggregate(toolID string) AggregateStats {
	records := o.Records()
	stats := AggregateStats{ToolID: toolID, ErrorDistribution: make(map[string]int)}

	durations := make([]int64, 0, len(records))
	var memSum float64
	var peakMem int64

	for _, r := range records {
		if toolID != "" && !strings.EqualFold(r.ToolID, toolID) {
			continue
		}
		stats.Total++
		switch {
		case r.Cancelled:
			stats.CancelledCount++
		case r.Successful:
			stats.SuccessCount++
		default:
			stats.FailureCount++
			if r.ErrorCategory != "" {
				stats.ErrorDistribution[r.ErrorCategory]++
			}
		}
		durations = append(durations, r.DurationMs)
		memSum += float64(r.ResourceUsage.PeakMemoryBytes)
		if r.ResourceUsage.PeakMemoryBytes > peakMem {
			peakMem = r.ResourceUsage.PeakMemoryBytes
		}
	}

	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.SuccessCount) / float64(stats.Total) * 100
		stats.AvgPeakMemoryBytes = memSum / float64(stats.Total)
		stats.PeakMemoryBytes = peakMem
	}

	if len(durations) > 0 {
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		stats.MinDurationMs = durations[0]
		stats.MaxDurationMs = durations[len(durations)-1]
		var sum int64
		for _, d := range durations {
			sum += d
		}
		stats.AvgDurationMs = float64(sum) / float64(len(durations))
		stats.P50DurationMs = percentile(durations, 50)
		stats.P90DurationMs = percentile(durations, 90)
		stats.P99DurationMs = percentile(durations, 99)
	}

	return stats
}

func percentile(sorted []int64, p int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (p * len(sorted)) / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// UsageByTool counts executions per tool id.
func (o *Observability) UsageByTool() map[string]int {
	records := o.Records()
	out := make(map[string]int)
	for _, r := range records {
		out[r.ToolID]++
	}
	return out
}

// UniqueUserCount counts distinct user ids across the retained window.
// Records from executions whose context never set a UserID are excluded.
func (o *Observability) UniqueUserCount() int {
	seen := make(map[string]bool)
	records := o.Records()
	for _, r := range records {
		if r.UserID != "" {
			seen[r.UserID] = true
		}
	}
	return len(seen)
}

// HourlyPeak is the maximum number of concurrently running executions
// observed within one hourly bucket.
type HourlyPeak struct {
	HourStart    time.Time
	MaxConcurrent int
}

// HourlyPeaks buckets records by the hour their execution started in and
// computes max-concurrency within each bucket via a sweepline over
// start/end events.
func (o *Observability) HourlyPeaks() []HourlyPeak {
	records := o.Records()
	byHour := make(map[time.Time][]ExecutionRecord)
	for _, r := range records {
		hour := r.StartTime.Truncate(time.Hour)
		byHour[hour] = append(byHour[hour], r)
	}

	hours := make([]time.Time, 0, len(byHour))
	for h := range byHour {
		hours = append(hours, h)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	out := make([]HourlyPeak, 0, len(hours))
	for _, h := range hours {
		out = append(out, HourlyPeak{HourStart: h, MaxConcurrent: maxConcurrent(byHour[h])})
	}
	return out
}

type sweepEvent struct {
	at    time.Time
	delta int
}

func maxConcurrent(records []ExecutionRecord) int {
	events := make([]sweepEvent, 0, len(records)*2)
	for _, r := range records {
		events = append(events, sweepEvent{at: r.StartTime, delta: 1})
		events = append(events, sweepEvent{at: r.EndTime, delta: -1})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].at.Equal(events[j].at) {
			return events[i].delta > events[j].delta // starts before ends at the same instant
		}
		return events[i].at.Before(events[j].at)
	})

	current, peak := 0, 0
	for _, e := range events {
		current += e.delta
		if current > peak {
			peak = current
		}
	}
	return peak
}

// ToolCombination is one set of tools observed executing within the same
// 5-minute window, at or above the minimum support threshold.
type ToolCombination struct {
	Tools   []string
	Support int
}

const coOccurrenceMinSupport = 3
const coOccurrenceWindow = 5 * time.Minute

// FrequentCombinations buckets records into 5-minute windows, collects the
// distinct tool-id sets that co-occurred within each window, and returns
// every combination observed at least coOccurrenceMinSupport times.
func (o *Observability) FrequentCombinations() []ToolCombination {
	records := o.Records()
	byWindow := make(map[time.Time]map[string]bool)
	for _, r := range records {
		window := r.StartTime.Truncate(coOccurrenceWindow)
		if byWindow[window] == nil {
			byWindow[window] = make(map[string]bool)
		}
		byWindow[window][r.ToolID] = true
	}

	support := make(map[string]int)
	toolsForKey := make(map[string][]string)
	for _, toolSet := range byWindow {
		tools := make([]string, 0, len(toolSet))
		for t := range toolSet {
			tools = append(tools, t)
		}
		if len(tools) < 2 {
			continue
		}
		sort.Strings(tools)
		key := strings.Join(tools, "|")
		support[key]++
		toolsForKey[key] = tools
	}

	out := make([]ToolCombination, 0)
	for key, count := range support {
		if count >= coOccurrenceMinSupport {
			out = append(out, ToolCombination{Tools: toolsForKey[key], Support: count})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Support > out[j].Support })
	return out
}
