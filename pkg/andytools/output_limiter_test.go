package andytools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputLimiter_LimitText(t *testing.T) {
	limiter := NewOutputLimiter()
	longText := strings.Repeat("a", 100)

	limited := limiter.Limit(longText, OutputTypeText, OutputLimitContext{MaxCharacters: 40})
	assert.True(t, limited.WasTruncated)
	assert.LessOrEqual(t, len(limited.Content.(string)), 100)
	assert.Contains(t, limited.Content.(string), "truncated")

	short := limiter.Limit("hi", OutputTypeText, OutputLimitContext{MaxCharacters: 40})
	assert.False(t, short.WasTruncated)
	assert.Equal(t, "hi", short.Content)
}

func TestOutputLimiter_LimitFileContentByLines(t *testing.T) {
	limiter := NewOutputLimiter()
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = "line"
	}
	text := strings.Join(lines, "\n")

	limited := limiter.Limit(text, OutputTypeFileContent, OutputLimitContext{MaxLines: 3})
	require.True(t, limited.WasTruncated)
	assert.Contains(t, limited.Content.(string), "more lines")
	assert.True(t, strings.HasPrefix(limited.Content.(string), "line\nline\nline\n"))
}

func TestOutputLimiter_LimitLogsKeepsHeadAndTail(t *testing.T) {
	limiter := NewOutputLimiter()
	lines := make([]string, 20)
	for i := range lines {
		lines[i] = "entry"
	}
	text := strings.Join(lines, "\n")

	limited := limiter.Limit(text, OutputTypeLogs, OutputLimitContext{MaxLines: 4, IncludeSummary: true})
	require.True(t, limited.WasTruncated)
	assert.Contains(t, limited.Content.(string), "omitted")
	require.NotNil(t, limited.Summary)
	assert.Equal(t, 20, limited.Summary.TotalCount)
	assert.Equal(t, 4, limited.Summary.ShownCount)
}

func TestOutputLimiter_LimitStructuredDataTruncatesAtElementBoundary(t *testing.T) {
	limiter := NewOutputLimiter()
	data := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"id": 1, "name": "alpha"},
			map[string]interface{}{"id": 2, "name": "beta"},
			map[string]interface{}{"id": 3, "name": "gamma"},
		},
	}

	limited := limiter.Limit(data, OutputTypeStructuredData, OutputLimitContext{MaxCharacters: 60})
	require.True(t, limited.WasTruncated)
	content := limited.Content.(string)
	assert.True(t, strings.HasSuffix(strings.TrimRight(content, "\n"), "(truncated)"))
}

func TestOutputLimiter_LimitFileListAppliesItemCap(t *testing.T) {
	limiter := NewOutputLimiter()
	items := make([]interface{}, 10)
	for i := range items {
		items[i] = map[string]interface{}{"name": "file.txt", "path": "/dir/file.txt"}
	}
	data := map[string]interface{}{"items": items}

	limited := limiter.Limit(data, OutputTypeFileList, OutputLimitContext{MaxItems: 3, IncludeSummary: true, ProvideSuggestions: true})
	require.True(t, limited.WasTruncated)
	content := limited.Content.(map[string]interface{})
	assert.Equal(t, 10, content["total_count"])
	shown := content["items"].([]interface{})
	assert.LessOrEqual(t, len(shown), 3)
	require.NotNil(t, limited.Summary)
	assert.NotEmpty(t, limited.Suggestions)
}

func TestOutputLimiter_LimitFileListUnderBudgetIsUntouched(t *testing.T) {
	limiter := NewOutputLimiter()
	data := map[string]interface{}{"items": []interface{}{"a", "b"}}

	limited := limiter.Limit(data, OutputTypeFileList, OutputLimitContext{MaxItems: 100, MaxCharacters: 50000})
	assert.False(t, limited.WasTruncated)
}

func TestClassifyOutputType(t *testing.T) {
	tests := []struct {
		name     string
		toolID   string
		category ToolCategory
		want     OutputType
	}{
		{name: "list directory tool", toolID: "list_directory", category: CategoryUtility, want: OutputTypeFileList},
		{name: "read file tool", toolID: "read_file", category: CategoryUtility, want: OutputTypeFileContent},
		{name: "logs by id", toolID: "tail_logs", category: CategoryUtility, want: OutputTypeLogs},
		{name: "filesystem category fallback", toolID: "stat", category: CategoryFileSystem, want: OutputTypeFileList},
		{name: "default text", toolID: "add", category: CategoryUtility, want: OutputTypeText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyOutputType(tt.toolID, tt.category))
		})
	}
}
