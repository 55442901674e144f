// Package demotools provides small reference implementations of the Tool
// interface, used both to exercise the runtime end-to-end and as
// registration examples for hosts embedding the package.
package demotools

import (
	"context"

	"github.com/rivoli-ai/andy-tools-sub003/pkg/andytools"
)

// EchoTool returns its "message" parameter unchanged. Used to drive the
// happy-path pipeline scenario.
type EchoTool struct{}

// NewEchoTool satisfies andytools.ToolFactory.
func NewEchoTool(locator andytools.ServiceLocator) (andytools.Tool, error) {
	return &EchoTool{}, nil
}

func (t *EchoTool) Metadata() andytools.ToolMetadata {
	return andytools.ToolMetadata{
		ID:          "echo",
		Name:        "Echo",
		Description: "Returns the given message unchanged.",
		Version:     "1.0.0",
		Category:    andytools.CategoryUtility,
		Parameters: []andytools.ToolParameter{
			{Name: "message", Type: andytools.ParamTypeString, Description: "Text to echo back", Required: true},
		},
	}
}

func (t *EchoTool) Initialize(ctx context.Context, configuration map[string]interface{}) error {
	return nil
}

func (t *EchoTool) Execute(ctx context.Context, parameters map[string]interface{}, execCtx *andytools.ToolExecutionContext) (andytools.ToolResult, error) {
	message, _ := parameters["message"].(string)
	return andytools.ToolResult{IsSuccessful: true, Data: message}, nil
}

func (t *EchoTool) ValidateParameters(parameters map[string]interface{}) andytools.ValidationResult {
	if _, ok := parameters["message"]; !ok {
		return andytools.ValidationResult{
			IsValid: false,
			Errors: []andytools.ValidationIssue{
				{Code: "required", Message: "message is required", Path: "message", Severity: andytools.ValidationSeverityError},
			},
		}
	}
	return andytools.ValidationResult{IsValid: true}
}

func (t *EchoTool) CanExecuteWithPermissions(permissions andytools.ToolPermissions) (bool, []string) {
	return true, nil
}

func (t *EchoTool) Dispose() error { return nil }
