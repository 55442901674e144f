package demotools

import (
	"context"
	"fmt"

	"github.com/rivoli-ai/andy-tools-sub003/pkg/andytools"
)

// AllocTool allocates and holds "bytes" bytes for the duration of the call,
// then reports how much it held. Used to drive the memory-limit scenario
// against the Resource Monitor.
type AllocTool struct{}

func NewAllocTool(locator andytools.ServiceLocator) (andytools.Tool, error) {
	return &AllocTool{}, nil
}

func (t *AllocTool) Metadata() andytools.ToolMetadata {
	return andytools.ToolMetadata{
		ID:          "alloc",
		Name:        "Allocate",
		Description: "Allocates a buffer of the requested size, useful for exercising memory limits.",
		Version:     "1.0.0",
		Category:    andytools.CategoryDiagnostic,
		Parameters: []andytools.ToolParameter{
			{Name: "bytes", Type: andytools.ParamTypeInteger, Description: "Number of bytes to allocate", Required: true},
		},
	}
}

func (t *AllocTool) Initialize(ctx context.Context, configuration map[string]interface{}) error {
	return nil
}

func (t *AllocTool) Execute(ctx context.Context, parameters map[string]interface{}, execCtx *andytools.ToolExecutionContext) (andytools.ToolResult, error) {
	n := asInt64(parameters["bytes"])
	if n < 0 {
		return andytools.ToolResult{}, fmt.Errorf("bytes must be non-negative")
	}
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i)
	}
	return andytools.ToolResult{IsSuccessful: true, Data: fmt.Sprintf("allocated %d bytes", len(buf))}, nil
}

func (t *AllocTool) ValidateParameters(parameters map[string]interface{}) andytools.ValidationResult {
	if _, ok := parameters["bytes"]; !ok {
		return andytools.ValidationResult{IsValid: false, Errors: []andytools.ValidationIssue{
			{Code: "required", Message: "bytes is required", Path: "bytes", Severity: andytools.ValidationSeverityError},
		}}
	}
	return andytools.ValidationResult{IsValid: true}
}

func (t *AllocTool) CanExecuteWithPermissions(permissions andytools.ToolPermissions) (bool, []string) {
	return true, nil
}

func (t *AllocTool) Dispose() error { return nil }
