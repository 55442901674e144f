package demotools

import (
	"context"

	"github.com/rivoli-ai/andy-tools-sub003/pkg/andytools"
)

// AddTool sums "a" and "b". Deterministic and side-effect-free, so it
// doubles as the cache-hit scenario's exercised tool.
type AddTool struct{}

func NewAddTool(locator andytools.ServiceLocator) (andytools.Tool, error) {
	return &AddTool{}, nil
}

func (t *AddTool) Metadata() andytools.ToolMetadata {
	return andytools.ToolMetadata{
		ID:          "add",
		Name:        "Add",
		Description: "Adds two numbers.",
		Version:     "1.0.0",
		Category:    andytools.CategoryUtility,
		Parameters: []andytools.ToolParameter{
			{Name: "a", Type: andytools.ParamTypeNumber, Required: true},
			{Name: "b", Type: andytools.ParamTypeNumber, Required: true},
		},
	}
}

func (t *AddTool) Initialize(ctx context.Context, configuration map[string]interface{}) error {
	return nil
}

func (t *AddTool) Execute(ctx context.Context, parameters map[string]interface{}, execCtx *andytools.ToolExecutionContext) (andytools.ToolResult, error) {
	a := asFloat64(parameters["a"])
	b := asFloat64(parameters["b"])
	return andytools.ToolResult{IsSuccessful: true, Data: a + b}, nil
}

func (t *AddTool) ValidateParameters(parameters map[string]interface{}) andytools.ValidationResult {
	var errs []andytools.ValidationIssue
	for _, name := range []string{"a", "b"} {
		if _, ok := parameters[name]; !ok {
			errs = append(errs, andytools.ValidationIssue{
				Code: "required", Message: name + " is required", Path: name, Severity: andytools.ValidationSeverityError,
			})
		}
	}
	return andytools.ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}

func (t *AddTool) CanExecuteWithPermissions(permissions andytools.ToolPermissions) (bool, []string) {
	return true, nil
}

func (t *AddTool) Dispose() error { return nil }

func asFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	default:
		return 0
	}
}
