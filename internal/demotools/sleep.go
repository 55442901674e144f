package demotools

import (
	"context"
	"fmt"
	"time"

	"github.com/rivoli-ai/andy-tools-sub003/pkg/andytools"
)

// SleepTool blocks for "durationMs" milliseconds, honoring context
// cancellation. Used to drive the timeout cancellation scenario.
type SleepTool struct{}

func NewSleepTool(locator andytools.ServiceLocator) (andytools.Tool, error) {
	return &SleepTool{}, nil
}

func (t *SleepTool) Metadata() andytools.ToolMetadata {
	return andytools.ToolMetadata{
		ID:                   "sleep",
		Name:                 "Sleep",
		Description:          "Blocks for the given duration, useful for exercising timeouts.",
		Version:              "1.0.0",
		Category:             andytools.CategoryUtility,
		RequiredCapabilities: []andytools.Capability{andytools.CapabilityLongRunning},
		Parameters: []andytools.ToolParameter{
			{Name: "durationMs", Type: andytools.ParamTypeInteger, Description: "Milliseconds to sleep", Required: true},
		},
	}
}

func (t *SleepTool) Initialize(ctx context.Context, configuration map[string]interface{}) error {
	return nil
}

func (t *SleepTool) Execute(ctx context.Context, parameters map[string]interface{}, execCtx *andytools.ToolExecutionContext) (andytools.ToolResult, error) {
	durationMs := asInt64(parameters["durationMs"])
	select {
	case <-time.After(time.Duration(durationMs) * time.Millisecond):
		return andytools.ToolResult{IsSuccessful: true, Data: fmt.Sprintf("slept %dms", durationMs)}, nil
	case <-ctx.Done():
		return andytools.ToolResult{}, ctx.Err()
	}
}

func (t *SleepTool) ValidateParameters(parameters map[string]interface{}) andytools.ValidationResult {
	v, ok := parameters["durationMs"]
	if !ok {
		return andytools.ValidationResult{IsValid: false, Errors: []andytools.ValidationIssue{
			{Code: "required", Message: "durationMs is required", Path: "durationMs", Severity: andytools.ValidationSeverityError},
		}}
	}
	if asInt64(v) < 0 {
		return andytools.ValidationResult{IsValid: false, Errors: []andytools.ValidationIssue{
			{Code: "range", Message: "durationMs must be non-negative", Path: "durationMs", Severity: andytools.ValidationSeverityError},
		}}
	}
	return andytools.ValidationResult{IsValid: true}
}

func (t *SleepTool) CanExecuteWithPermissions(permissions andytools.ToolPermissions) (bool, []string) {
	return true, nil
}

func (t *SleepTool) Dispose() error { return nil }

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
