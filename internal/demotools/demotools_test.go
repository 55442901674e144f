package demotools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivoli-ai/andy-tools-sub003/pkg/andytools"
)

func TestEchoTool_ExecuteReturnsMessageUnchanged(t *testing.T) {
	tool := &EchoTool{}
	result, err := tool.Execute(context.Background(), map[string]interface{}{"message": "hello"}, &andytools.ToolExecutionContext{})
	require.NoError(t, err)
	assert.True(t, result.IsSuccessful)
	assert.Equal(t, "hello", result.Data)
}

func TestEchoTool_ValidateParametersRequiresMessage(t *testing.T) {
	tool := &EchoTool{}
	assert.False(t, tool.ValidateParameters(map[string]interface{}{}).IsValid)
	assert.True(t, tool.ValidateParameters(map[string]interface{}{"message": "hi"}).IsValid)
}

func TestSleepTool_ExecuteHonorsContextCancellation(t *testing.T) {
	tool := &SleepTool{}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	result, err := tool.Execute(ctx, map[string]interface{}{"durationMs": int64(1000)}, &andytools.ToolExecutionContext{})
	require.Error(t, err)
	assert.False(t, result.IsSuccessful)
}

func TestSleepTool_ExecuteCompletesBeforeDeadline(t *testing.T) {
	tool := &SleepTool{}
	result, err := tool.Execute(context.Background(), map[string]interface{}{"durationMs": int64(5)}, &andytools.ToolExecutionContext{})
	require.NoError(t, err)
	assert.True(t, result.IsSuccessful)
	assert.Contains(t, result.Data.(string), "slept")
}

func TestSleepTool_ValidateParametersRejectsNegativeDuration(t *testing.T) {
	tool := &SleepTool{}
	result := tool.ValidateParameters(map[string]interface{}{"durationMs": -5})
	assert.False(t, result.IsValid)
}

func TestAllocTool_ExecuteReportsAllocatedSize(t *testing.T) {
	tool := &AllocTool{}
	result, err := tool.Execute(context.Background(), map[string]interface{}{"bytes": int64(1024)}, &andytools.ToolExecutionContext{})
	require.NoError(t, err)
	assert.True(t, result.IsSuccessful)
	assert.Contains(t, result.Data.(string), "1024")
}

func TestAllocTool_ExecuteRejectsNegativeSize(t *testing.T) {
	tool := &AllocTool{}
	_, err := tool.Execute(context.Background(), map[string]interface{}{"bytes": int64(-1)}, &andytools.ToolExecutionContext{})
	assert.Error(t, err)
}

func TestAddTool_ExecuteSumsOperands(t *testing.T) {
	tool := &AddTool{}
	result, err := tool.Execute(context.Background(), map[string]interface{}{"a": 2.0, "b": 3.0}, &andytools.ToolExecutionContext{})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.Data)
}

func TestAddTool_ValidateParametersRequiresBothOperands(t *testing.T) {
	tool := &AddTool{}
	result := tool.ValidateParameters(map[string]interface{}{"a": 1.0})
	assert.False(t, result.IsValid)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "b", result.Errors[0].Path)
}

func TestListTool_ExecuteListsDirectoryEntries(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0o644))

	tool := &ListTool{}
	result, err := tool.Execute(context.Background(), map[string]interface{}{"path": dir}, &andytools.ToolExecutionContext{})
	require.NoError(t, err)
	require.True(t, result.IsSuccessful)

	data := result.Data.(map[string]interface{})
	assert.Equal(t, 1, data["count"])
}

func TestListTool_ExecuteDeniesBlockedPath(t *testing.T) {
	security := andytools.NewSecurityManager()
	tool := &ListTool{security: security}

	execCtx := &andytools.ToolExecutionContext{
		Permissions: andytools.ToolPermissions{FileSystemAccess: true, BlockedPaths: []string{"/etc"}},
	}
	result, err := tool.Execute(context.Background(), map[string]interface{}{"path": "/etc"}, execCtx)
	require.NoError(t, err)
	assert.False(t, result.IsSuccessful)
	assert.NotEmpty(t, result.ErrorMessage)
}

func TestListTool_CanExecuteWithPermissionsRequiresFileSystemAccess(t *testing.T) {
	tool := &ListTool{}
	ok, reasons := tool.CanExecuteWithPermissions(andytools.ToolPermissions{})
	assert.False(t, ok)
	assert.NotEmpty(t, reasons)

	ok, _ = tool.CanExecuteWithPermissions(andytools.ToolPermissions{FileSystemAccess: true})
	assert.True(t, ok)
}

func TestListTool_ValidateParametersRequiresNonEmptyPath(t *testing.T) {
	tool := &ListTool{}
	assert.False(t, tool.ValidateParameters(map[string]interface{}{"path": ""}).IsValid)
	assert.True(t, tool.ValidateParameters(map[string]interface{}{"path": "/tmp"}).IsValid)
}
