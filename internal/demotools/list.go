package demotools

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rivoli-ai/andy-tools-sub003/pkg/andytools"
)

// ListTool lists entries under "path", checking security's file-access
// decision before touching the filesystem. Its output shape ("items" plus
// "count") is what the Output Limiter classifies as FileList, and what
// drives the blocked-path and output-truncation scenarios.
type ListTool struct {
	security *andytools.SecurityManager
}

// NewListToolFactory binds a SecurityManager so the tool can enforce
// permission checks before walking the filesystem, mirroring how a real
// tool would consult its host rather than trusting the caller's context.
func NewListToolFactory(security *andytools.SecurityManager) andytools.ToolFactory {
	return func(locator andytools.ServiceLocator) (andytools.Tool, error) {
		return &ListTool{security: security}, nil
	}
}

func (t *ListTool) Metadata() andytools.ToolMetadata {
	return andytools.ToolMetadata{
		ID:                   "list",
		Name:                 "List Directory",
		Description:          "Lists the entries of a directory.",
		Version:              "1.0.0",
		Category:             andytools.CategoryFileSystem,
		RequiredCapabilities: []andytools.Capability{andytools.CapabilityFileSystem},
		Parameters: []andytools.ToolParameter{
			{Name: "path", Type: andytools.ParamTypeString, Description: "Directory to list", Required: true},
		},
	}
}

func (t *ListTool) Initialize(ctx context.Context, configuration map[string]interface{}) error {
	return nil
}

func (t *ListTool) Execute(ctx context.Context, parameters map[string]interface{}, execCtx *andytools.ToolExecutionContext) (andytools.ToolResult, error) {
	path, _ := parameters["path"].(string)

	if t.security != nil && execCtx != nil {
		if allowed, reason := t.security.IsFileAccessAllowed(path, execCtx.Permissions, andytools.AccessRead); !allowed {
			return andytools.ToolResult{IsSuccessful: false, ErrorMessage: reason}, nil
		}
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return andytools.ToolResult{IsSuccessful: false, ErrorMessage: err.Error()}, nil
	}

	items := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		info, statErr := e.Info()
		var size int64
		if statErr == nil {
			size = info.Size()
		}
		items = append(items, map[string]interface{}{
			"name":  e.Name(),
			"path":  filepath.Join(path, e.Name()),
			"isDir": e.IsDir(),
			"size":  size,
		})
	}

	return andytools.ToolResult{
		IsSuccessful: true,
		Data: map[string]interface{}{
			"items": items,
			"count": len(items),
		},
	}, nil
}

func (t *ListTool) ValidateParameters(parameters map[string]interface{}) andytools.ValidationResult {
	if path, ok := parameters["path"].(string); !ok || path == "" {
		return andytools.ValidationResult{IsValid: false, Errors: []andytools.ValidationIssue{
			{Code: "required", Message: "path is required", Path: "path", Severity: andytools.ValidationSeverityError},
		}}
	}
	return andytools.ValidationResult{IsValid: true}
}

func (t *ListTool) CanExecuteWithPermissions(permissions andytools.ToolPermissions) (bool, []string) {
	if !permissions.FileSystemAccess {
		return false, []string{"file system access not granted"}
	}
	return true, nil
}

func (t *ListTool) Dispose() error { return nil }
