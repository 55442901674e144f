package andytools

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"
)

// OutputType classifies a tool result's data shape so the limiter can apply
// a type-specific truncation policy.
type OutputType string

const (
	OutputTypeText           OutputType = "Text"
	OutputTypeFileList       OutputType = "FileList"
	OutputTypeFileContent    OutputType = "FileContent"
	OutputTypeDirectoryTree  OutputType = "DirectoryTree"
	OutputTypeStructuredData OutputType = "StructuredData"
	OutputTypeLogs           OutputType = "Logs"
)

// ClassifyOutputType applies the id/category heuristic of spec.md §4.8 step
// 8 to decide which truncation policy a tool's result should receive.
func ClassifyOutputType(toolID string, category ToolCategory) OutputType {
	id := strings.ToLower(toolID)
	switch {
	case strings.Contains(id, "list") && (strings.Contains(id, "dir") || strings.Contains(id, "file")):
		return OutputTypeFileList
	case strings.Contains(id, "read") && strings.Contains(id, "file"):
		return OutputTypeFileContent
	case strings.Contains(id, "tree") || (strings.Contains(id, "dir") && strings.Contains(id, "structure")):
		return OutputTypeDirectoryTree
	case strings.Contains(id, "log") || strings.Contains(id, "console") || strings.Contains(id, "output"):
		return OutputTypeLogs
	case category == CategoryFileSystem:
		return OutputTypeFileList
	default:
		return OutputTypeText
	}
}

// OutputLimitContext parameterizes one limiting pass.
type OutputLimitContext struct {
	MaxCharacters      int
	MaxBytes           int64
	MaxItems           int
	MaxLines           int
	IncludeSummary     bool
	ProvideSuggestions bool
	ToolContext        string
}

// OutputSummaryStatistics is the FileList/DirectoryTree breakdown embedded
// in a Summary.
type OutputSummaryStatistics struct {
	FileCount       int
	DirectoryCount  int
	UniqueExtensions int
	TopExtensions   []string
}

// OutputGroup is one parent-directory bucket in a FileList/DirectoryTree
// summary.
type OutputGroup struct {
	Directory   string
	Count       int
	SampleNames []string
}

// OutputSummary accompanies a truncated FileList/DirectoryTree/Logs result.
type OutputSummary struct {
	TotalCount int
	ShownCount int
	Statistics *OutputSummaryStatistics
	Groups     []OutputGroup
}

// LimitedOutput is the result of one Output Limiter pass.
type LimitedOutput struct {
	Content         interface{}
	WasTruncated    bool
	OriginalSize    int64
	TruncatedSize   int64
	TruncationReason string
	Summary         *OutputSummary
	Suggestions     []string
}

// OutputLimiter applies type-aware truncation with structural preservation,
// per spec.md §4.4.
type OutputLimiter struct{}

// NewOutputLimiter constructs a stateless limiter.
func NewOutputLimiter() *OutputLimiter {
	return &OutputLimiter{}
}

// EstimateSize sums UTF-8 byte lengths; sequences over 1000 items are
// sampled and extrapolated rather than walked in full.
func (l *OutputLimiter) EstimateSize(data interface{}) int64 {
	switch v := data.(type) {
	case string:
		return int64(len(v))
	case []interface{}:
		return estimateSliceSize(v)
	case map[string]interface{}:
		var total int64
		for k, val := range v {
			total += int64(len(k)) + l.EstimateSize(val)
		}
		return total
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return 0
		}
		return int64(len(b))
	}
}

func estimateSliceSize(items []interface{}) int64 {
	n := len(items)
	if n == 0 {
		return 0
	}
	sampleCount := n
	if sampleCount > 1000 {
		sampleCount = 1000
	}
	var sampleTotal int64
	for i := 0; i < sampleCount; i++ {
		b, err := json.Marshal(items[i])
		if err == nil {
			sampleTotal += int64(len(b))
		}
	}
	if n <= 1000 {
		return sampleTotal
	}
	avg := float64(sampleTotal) / float64(sampleCount)
	return int64(avg * float64(n))
}

// Limit routes data to the policy matching outputType and returns whether
// truncation was necessary plus the resulting LimitedOutput.
func (l *OutputLimiter) Limit(data interface{}, outputType OutputType, ctx OutputLimitContext) LimitedOutput {
	originalSize := l.EstimateSize(data)

	switch outputType {
	case OutputTypeFileList, OutputTypeDirectoryTree:
		return l.limitFileList(data, ctx, originalSize)
	case OutputTypeFileContent:
		return l.limitFileContent(data, ctx, originalSize)
	case OutputTypeStructuredData:
		return l.limitStructuredData(data, ctx, originalSize)
	case OutputTypeLogs:
		return l.limitLogs(data, ctx, originalSize)
	default:
		return l.limitText(data, ctx, originalSize)
	}
}

func (l *OutputLimiter) limitText(data interface{}, ctx OutputLimitContext, originalSize int64) LimitedOutput {
	text := toText(data)
	maxChars := ctx.MaxCharacters
	if maxChars <= 20 {
		maxChars = 50_000
	}
	limit := maxChars - 20
	if limit < 0 {
		limit = 0
	}
	if utf8.RuneCountInString(text) <= limit {
		return LimitedOutput{Content: data, WasTruncated: false, OriginalSize: originalSize, TruncatedSize: originalSize}
	}
	truncated := sliceRunes(text, limit) + "... (truncated)"
	return LimitedOutput{
		Content:          truncated,
		WasTruncated:     true,
		OriginalSize:     originalSize,
		TruncatedSize:    int64(len(truncated)),
		TruncationReason: "text exceeded maxCharacters",
	}
}

func (l *OutputLimiter) limitFileContent(data interface{}, ctx OutputLimitContext, originalSize int64) LimitedOutput {
	text := toText(data)
	lines := strings.Split(text, "\n")
	maxLines := ctx.MaxLines
	if maxLines <= 0 {
		maxLines = 1000
	}
	if len(lines) <= maxLines {
		return LimitedOutput{Content: data, WasTruncated: false, OriginalSize: originalSize, TruncatedSize: originalSize}
	}
	kept := strings.Join(lines[:maxLines], "\n")
	marker := fmt.Sprintf("... (%d more lines)", len(lines)-maxLines)
	content := kept + "\n" + marker
	return LimitedOutput{
		Content:          content,
		WasTruncated:     true,
		OriginalSize:     originalSize,
		TruncatedSize:    int64(len(content)),
		TruncationReason: "line count exceeded maxLines",
	}
}

func (l *OutputLimiter) limitLogs(data interface{}, ctx OutputLimitContext, originalSize int64) LimitedOutput {
	text := toText(data)
	lines := strings.Split(text, "\n")
	maxLines := ctx.MaxLines
	if maxLines <= 0 {
		maxLines = 1000
	}
	if len(lines) <= maxLines {
		return LimitedOutput{Content: data, WasTruncated: false, OriginalSize: originalSize, TruncatedSize: originalSize}
	}

	headCount := maxLines / 2
	tailCount := maxLines - headCount
	omitted := len(lines) - headCount - tailCount
	head := lines[:headCount]
	tail := lines[len(lines)-tailCount:]
	separator := fmt.Sprintf("... (%d lines omitted) ...", omitted)
	content := strings.Join(head, "\n") + "\n" + separator + "\n" + strings.Join(tail, "\n")

	var summary *OutputSummary
	if ctx.IncludeSummary {
		summary = &OutputSummary{TotalCount: len(lines), ShownCount: headCount + tailCount}
	}

	return LimitedOutput{
		Content:          content,
		WasTruncated:     true,
		OriginalSize:     originalSize,
		TruncatedSize:    int64(len(content)),
		TruncationReason: "line count exceeded maxLines",
		Summary:          summary,
	}
}

func (l *OutputLimiter) limitStructuredData(data interface{}, ctx OutputLimitContext, originalSize int64) LimitedOutput {
	pretty, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return LimitedOutput{Content: data, WasTruncated: false, OriginalSize: originalSize, TruncatedSize: originalSize}
	}
	maxChars := ctx.MaxCharacters
	if maxChars <= 0 {
		maxChars = 50_000
	}
	if len(pretty) <= maxChars {
		return LimitedOutput{Content: string(pretty), WasTruncated: false, OriginalSize: originalSize, TruncatedSize: int64(len(pretty))}
	}

	cut := lastCompleteElementBoundary(string(pretty), maxChars)
	content := string(pretty[:cut]) + "\n... (truncated)"
	return LimitedOutput{
		Content:          content,
		WasTruncated:     true,
		OriginalSize:     originalSize,
		TruncatedSize:    int64(len(content)),
		TruncationReason: "structured data exceeded character budget",
	}
}

// lastCompleteElementBoundary finds the rightmost position at or before
// budget where a top-level JSON element closes (a '}' or ']' whose nesting
// depth returns to 1, i.e. still inside the outermost container).
func lastCompleteElementBoundary(text string, budget int) int {
	if budget >= len(text) {
		return len(text)
	}
	limit := budget
	depth := 0
	bestCut := 0
	inString := false
	escaped := false
	for i := 0; i < limit && i < len(text); i++ {
		c := text[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 1 {
				bestCut = i + 1
			}
		}
	}
	if bestCut == 0 {
		return limit
	}
	return bestCut
}

func (l *OutputLimiter) limitFileList(data interface{}, ctx OutputLimitContext, originalSize int64) LimitedOutput {
	items, wrapperKey, wrapper := extractFileListItems(data)

	maxItems := ctx.MaxItems
	if maxItems <= 0 {
		maxItems = 1000
	}
	maxChars := ctx.MaxCharacters
	if maxChars <= 0 {
		maxChars = 50_000
	}

	shown := items
	truncated := false
	var cumChars int64
	cutAt := len(items)
	for i, item := range items {
		cumChars += int64(len(fmt.Sprint(item)))
		if i+1 > maxItems || cumChars > int64(maxChars) {
			cutAt = i
			truncated = true
			break
		}
	}
	if cutAt < len(items) {
		shown = items[:cutAt]
	}

	var content interface{}
	if wrapper != nil {
		out := make(map[string]interface{}, len(wrapper)+2)
		for k, v := range wrapper {
			out[k] = v
		}
		out[wrapperKey] = shown
		out["count"] = len(shown)
		out["total_count"] = len(items)
		content = out
	} else {
		content = shown
	}

	result := LimitedOutput{
		Content:       content,
		WasTruncated:  truncated,
		OriginalSize:  originalSize,
		TruncatedSize: l.EstimateSize(content),
	}
	if truncated {
		result.TruncationReason = "entry count or character budget exceeded"
	}

	if ctx.IncludeSummary && truncated {
		result.Summary = buildFileListSummary(items, shown)
	}
	if ctx.ProvideSuggestions && truncated {
		result.Suggestions = []string{
			"Use a filter pattern to narrow results",
			"Target a more specific directory",
			"Disable recursive traversal",
			"Apply a maximum depth cap",
		}
	}
	return result
}

func extractFileListItems(data interface{}) ([]interface{}, string, map[string]interface{}) {
	switch v := data.(type) {
	case []interface{}:
		return v, "", nil
	case map[string]interface{}:
		if items, ok := v["items"].([]interface{}); ok {
			return items, "items", v
		}
		return nil, "items", v
	default:
		return nil, "", nil
	}
}

func buildFileListSummary(all, shown []interface{}) *OutputSummary {
	stats := &OutputSummaryStatistics{}
	extCounts := make(map[string]int)
	groupCounts := make(map[string]int)
	groupSamples := make(map[string][]string)

	for _, raw := range all {
		name := fmt.Sprint(raw)
		if m, ok := raw.(map[string]interface{}); ok {
			if n, ok := m["path"].(string); ok {
				name = n
			} else if n, ok := m["name"].(string); ok {
				name = n
			}
		}
		dir := filepath.Dir(name)
		if strings.HasSuffix(name, "/") {
			stats.DirectoryCount++
		} else {
			stats.FileCount++
			ext := strings.ToLower(filepath.Ext(name))
			if ext != "" {
				extCounts[ext]++
			}
		}
		groupCounts[dir]++
		if len(groupSamples[dir]) < 3 {
			groupSamples[dir] = append(groupSamples[dir], filepath.Base(name))
		}
	}

	stats.UniqueExtensions = len(extCounts)
	stats.TopExtensions = topKeys(extCounts, 5)

	groups := make([]OutputGroup, 0, len(groupCounts))
	for dir, count := range groupCounts {
		groups = append(groups, OutputGroup{Directory: dir, Count: count, SampleNames: groupSamples[dir]})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Count > groups[j].Count })
	if len(groups) > 10 {
		groups = groups[:10]
	}

	return &OutputSummary{
		TotalCount: len(all),
		ShownCount: len(shown),
		Statistics: stats,
		Groups:     groups,
	}
}

func topKeys(counts map[string]int, limit int) []string {
	type kv struct {
		key   string
		count int
	}
	kvs := make([]kv, 0, len(counts))
	for k, v := range counts {
		kvs = append(kvs, kv{k, v})
	}
	sort.Slice(kvs, func(i, j int) bool {
		if kvs[i].count != kvs[j].count {
			return kvs[i].count > kvs[j].count
		}
		return kvs[i].key < kvs[j].key
	})
	if len(kvs) > limit {
		kvs = kvs[:limit]
	}
	out := make([]string, len(kvs))
	for i, e := range kvs {
		out[i] = e.key
	}
	return out
}

func toText(data interface{}) string {
	switch v := data.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func sliceRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
