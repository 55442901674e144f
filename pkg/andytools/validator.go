package andytools

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

var toolIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)
var versionPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// Validator performs the structural and semantic checks of spec.md §4.1.
// Every method is a pure function over its inputs.
type Validator struct{}

// NewValidator returns a ready-to-use Validator.
func NewValidator() *Validator { return &Validator{} }

func newResult() *ValidationResult {
	return &ValidationResult{IsValid: true}
}

func (r *ValidationResult) addError(code, message, path string, attempted interface{}) {
	r.IsValid = false
	r.Errors = append(r.Errors, ValidationIssue{
		Code: code, Message: message, Path: path, AttemptedValue: attempted,
		Severity: ValidationSeverityError,
	})
}

func (r *ValidationResult) addWarning(code, message, path string, attempted interface{}) {
	r.Warnings = append(r.Warnings, ValidationIssue{
		Code: code, Message: message, Path: path, AttemptedValue: attempted,
		Severity: ValidationSeverityWarning,
	})
}

// ValidateMetadata checks a ToolMetadata for internal consistency before it
// can be accepted by the Registry.
func (v *Validator) ValidateMetadata(m ToolMetadata) ValidationResult {
	result := newResult()

	if strings.TrimSpace(m.ID) == "" {
		result.addError("METADATA_ID_REQUIRED", "Tool id is required", "id", m.ID)
	} else if !toolIDPattern.MatchString(m.ID) {
		result.addError("METADATA_ID_INVALID", fmt.Sprintf("Tool id '%s' must match [A-Za-z0-9_-]{1,100}", m.ID), "id", m.ID)
	}

	if strings.TrimSpace(m.Name) == "" {
		result.addError("METADATA_NAME_REQUIRED", "Tool name is required", "name", m.Name)
	}

	if strings.TrimSpace(m.Description) == "" {
		result.addError("METADATA_DESCRIPTION_REQUIRED", "Tool description is required", "description", m.Description)
	}

	if m.Version != "" && !versionPattern.MatchString(m.Version) {
		result.addError("METADATA_VERSION_INVALID", fmt.Sprintf("Version '%s' is not a dotted numeric version", m.Version), "version", m.Version)
	}

	seen := make(map[string]bool, len(m.Parameters))
	for i, p := range m.Parameters {
		path := fmt.Sprintf("parameters[%d]", i)
		if strings.TrimSpace(p.Name) == "" {
			result.addError("PARAMETER_NAME_REQUIRED", "Parameter name is required", path, p.Name)
			continue
		}
		key := strings.ToLower(p.Name)
		if seen[key] {
			result.addError("PARAMETER_NAME_DUPLICATE", fmt.Sprintf("Parameter name '%s' is duplicated", p.Name), path+".name", p.Name)
		}
		seen[key] = true

		if !isKnownParamType(p.Type) {
			result.addError("PARAMETER_TYPE_INVALID", fmt.Sprintf("Parameter '%s' has invalid type '%s'", p.Name, p.Type), path+".type", p.Type)
		}

		if strings.TrimSpace(p.Description) == "" {
			result.addWarning("PARAMETER_DESCRIPTION_MISSING", fmt.Sprintf("Parameter '%s' has no description", p.Name), path+".description", nil)
		}
	}

	if result.IsValid {
		if err := v.validateExamplesAgainstSchema(m); err != nil {
			result.addError("METADATA_EXAMPLE_INVALID", err.Error(), "examples", nil)
		}
	}

	return *result
}

// validateExamplesAgainstSchema compiles the declared parameters into a JSON
// Schema document and checks every declared example against it, catching
// drift between a tool's documented examples and its own parameter schema.
func (v *Validator) validateExamplesAgainstSchema(m ToolMetadata) error {
	if len(m.Examples) == 0 {
		return nil
	}
	schemaDoc := parametersToJSONSchema(m.Parameters)
	schemaLoader := gojsonschema.NewGoLoader(schemaDoc)
	compiled, err := gojsonschema.NewSchema(schemaLoader)
	if err != nil {
		return fmt.Errorf("failed to compile parameter schema: %w", err)
	}
	for i, ex := range m.Examples {
		docLoader := gojsonschema.NewGoLoader(ex.Parameters)
		res, err := compiled.Validate(docLoader)
		if err != nil {
			return fmt.Errorf("example[%d]: %w", i, err)
		}
		if !res.Valid() {
			msgs := make([]string, 0, len(res.Errors()))
			for _, e := range res.Errors() {
				msgs = append(msgs, e.String())
			}
			return fmt.Errorf("example[%d] does not satisfy the parameter schema: %s", i, strings.Join(msgs, "; "))
		}
	}
	return nil
}

func parametersToJSONSchema(params []ToolParameter) map[string]interface{} {
	properties := make(map[string]interface{}, len(params))
	var required []string
	for _, p := range params {
		prop := map[string]interface{}{"type": jsonSchemaType(p.Type)}
		if len(p.AllowedValues) > 0 {
			prop["enum"] = p.AllowedValues
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func jsonSchemaType(t ParameterType) string {
	switch t {
	case ParamTypeInteger:
		return "integer"
	case ParamTypeNumber:
		return "number"
	case ParamTypeBoolean:
		return "boolean"
	case ParamTypeArray:
		return "array"
	case ParamTypeObject:
		return "object"
	default:
		return "string"
	}
}

func isKnownParamType(t ParameterType) bool {
	switch t {
	case ParamTypeString, ParamTypeInteger, ParamTypeNumber, ParamTypeBoolean, ParamTypeArray, ParamTypeObject:
		return true
	default:
		return false
	}
}

// ValidateParameters checks a request's parameter map against a tool's
// declared schema.
func (v *Validator) ValidateParameters(params []ToolParameter, values map[string]interface{}) ValidationResult {
	result := newResult()

	known := make(map[string]bool, len(params))
	for _, p := range params {
		known[strings.ToLower(p.Name)] = true
		v.validateOneParameter(result, p, values)
	}

	for key := range values {
		if !known[strings.ToLower(key)] {
			result.addWarning("PARAMETER_UNKNOWN", fmt.Sprintf("Unknown parameter '%s' was ignored", key), key, values[key])
		}
	}

	return *result
}

func (v *Validator) validateOneParameter(result *ValidationResult, p ToolParameter, values map[string]interface{}) {
	raw, present := lookupCaseInsensitive(values, p.Name)

	if !present {
		if p.Required {
			result.addError("PARAMETER_REQUIRED", fmt.Sprintf("Required parameter '%s' is missing", p.Name), p.Name, nil)
		}
		return
	}

	if raw == nil {
		if p.Required {
			result.addError("PARAMETER_NULL", fmt.Sprintf("Required parameter '%s' is null", p.Name), p.Name, nil)
		}
		return
	}

	switch p.Type {
	case ParamTypeString:
		v.validateString(result, p, raw)
	case ParamTypeInteger:
		v.validateInteger(result, p, raw)
	case ParamTypeNumber:
		v.validateNumber(result, p, raw)
	case ParamTypeBoolean:
		if _, ok := raw.(bool); !ok {
			result.addError("PARAMETER_TYPE_MISMATCH", fmt.Sprintf("Parameter '%s' must be a boolean", p.Name), p.Name, raw)
		}
	case ParamTypeArray:
		v.validateArray(result, p, raw)
	case ParamTypeObject:
		if _, ok := raw.(map[string]interface{}); !ok {
			result.addError("PARAMETER_TYPE_MISMATCH", fmt.Sprintf("Parameter '%s' must be an object", p.Name), p.Name, raw)
		}
	}

	if len(p.AllowedValues) > 0 && !valueAllowed(raw, p.AllowedValues) {
		result.addError("PARAMETER_VALUE_NOT_ALLOWED", fmt.Sprintf("Parameter '%s' value is not one of the allowed values", p.Name), p.Name, raw)
	}
}

func (v *Validator) validateString(result *ValidationResult, p ToolParameter, raw interface{}) {
	s, ok := raw.(string)
	if !ok {
		result.addError("PARAMETER_TYPE_MISMATCH", fmt.Sprintf("Parameter '%s' must be a string", p.Name), p.Name, raw)
		return
	}
	if p.MinLength != nil && len(s) < *p.MinLength {
		result.addError("PARAMETER_STRING_TOO_SHORT", fmt.Sprintf("Parameter '%s' must be at least %d characters", p.Name, *p.MinLength), p.Name, raw)
	}
	if p.MaxLength != nil && len(s) > *p.MaxLength {
		result.addError("PARAMETER_STRING_TOO_LONG", fmt.Sprintf("Parameter '%s' must be at most %d characters", p.Name, *p.MaxLength), p.Name, raw)
	}
	if p.Pattern != "" {
		re, err := regexp.Compile(p.Pattern)
		if err == nil && !re.MatchString(s) {
			result.addError("PARAMETER_STRING_PATTERN_MISMATCH", fmt.Sprintf("Parameter '%s' does not match the required pattern", p.Name), p.Name, raw)
		}
	}
}

func (v *Validator) validateInteger(result *ValidationResult, p ToolParameter, raw interface{}) {
	f, ok := toFloat(raw)
	if !ok {
		result.addError("PARAMETER_TYPE_MISMATCH", fmt.Sprintf("Parameter '%s' must be numeric", p.Name), p.Name, raw)
		return
	}
	if f != math.Floor(f) {
		result.addError("PARAMETER_NOT_INTEGER", fmt.Sprintf("Parameter '%s' must be an integer", p.Name), p.Name, raw)
		return
	}
	v.validateRange(result, p, f, raw)
}

func (v *Validator) validateNumber(result *ValidationResult, p ToolParameter, raw interface{}) {
	f, ok := toFloat(raw)
	if !ok {
		result.addError("PARAMETER_TYPE_MISMATCH", fmt.Sprintf("Parameter '%s' must be numeric", p.Name), p.Name, raw)
		return
	}
	v.validateRange(result, p, f, raw)
}

func (v *Validator) validateRange(result *ValidationResult, p ToolParameter, f float64, raw interface{}) {
	if p.MinValue != nil && f < *p.MinValue {
		result.addError("PARAMETER_NUMBER_TOO_SMALL", fmt.Sprintf("Parameter '%s' must be >= %v", p.Name, *p.MinValue), p.Name, raw)
	}
	if p.MaxValue != nil && f > *p.MaxValue {
		result.addError("PARAMETER_NUMBER_TOO_LARGE", fmt.Sprintf("Parameter '%s' must be <= %v", p.Name, *p.MaxValue), p.Name, raw)
	}
}

func (v *Validator) validateArray(result *ValidationResult, p ToolParameter, raw interface{}) {
	arr, ok := raw.([]interface{})
	if !ok {
		result.addError("PARAMETER_TYPE_MISMATCH", fmt.Sprintf("Parameter '%s' must be an array", p.Name), p.Name, raw)
		return
	}
	if p.MinLength != nil && len(arr) < *p.MinLength {
		result.addError("PARAMETER_ARRAY_TOO_SHORT", fmt.Sprintf("Parameter '%s' must have at least %d items", p.Name, *p.MinLength), p.Name, raw)
	}
	if p.MaxLength != nil && len(arr) > *p.MaxLength {
		result.addError("PARAMETER_ARRAY_TOO_LONG", fmt.Sprintf("Parameter '%s' must have at most %d items", p.Name, *p.MaxLength), p.Name, raw)
	}
}

// ValidatePermissions checks that the caller's permission profile grants
// every capability a tool declares it requires.
func (v *Validator) ValidatePermissions(m ToolMetadata, permissions ToolPermissions) ValidationResult {
	result := newResult()

	for _, cap := range m.RequiredCapabilities {
		switch cap {
		case CapabilityFileSystem:
			if !permissions.FileSystemAccess {
				result.addError("PERMISSION_FILESYSTEM_DENIED", "File system access is not granted", "permissions.fileSystemAccess", nil)
			}
		case CapabilityNetwork:
			if !permissions.NetworkAccess {
				result.addError("PERMISSION_NETWORK_DENIED", "Network access is not granted", "permissions.networkAccess", nil)
			}
		case CapabilityProcessExecution:
			if !permissions.ProcessExecution {
				result.addError("PERMISSION_PROCESS_DENIED", "Process execution is not granted", "permissions.processExecution", nil)
			}
		case CapabilityEnvironment:
			if !permissions.EnvironmentAccess {
				result.addError("PERMISSION_ENVIRONMENT_DENIED", "Environment access is not granted", "permissions.environmentAccess", nil)
			}
		case CapabilityDestructive:
			if !permissions.customBool("allow_destructive") {
				result.addError("PERMISSION_DESTRUCTIVE_DENIED", "Destructive operations require customPermissions.allow_destructive", "permissions.customPermissions.allow_destructive", nil)
			}
		case CapabilityElevated:
			if !permissions.customBool("allow_elevated") {
				result.addError("PERMISSION_ELEVATED_DENIED", "Elevated operations require customPermissions.allow_elevated", "permissions.customPermissions.allow_elevated", nil)
			}
		}
	}

	return *result
}

// ValidateResourceLimits checks a requested resource-limit profile against
// sane ceilings, producing warnings only (spec.md §4.1).
func (v *Validator) ValidateResourceLimits(limits ToolResourceLimits) ValidationResult {
	result := newResult()
	const hardMemoryCeiling = 4 * 1024 * 1024 * 1024
	const hardFileCountCeiling = 100_000
	const hardFileSizeCeiling = 1024 * 1024 * 1024

	if limits.MaxMemoryBytes > hardMemoryCeiling {
		result.addWarning("RESOURCE_MEMORY_EXCEEDED", "Requested memory limit exceeds the recommended ceiling", "maxMemoryBytes", limits.MaxMemoryBytes)
	}
	if limits.MaxFileCount > hardFileCountCeiling {
		result.addWarning("RESOURCE_FILE_COUNT_EXCEEDED", "Requested file count limit exceeds the recommended ceiling", "maxFileCount", limits.MaxFileCount)
	}
	if limits.MaxFileSizeBytes > hardFileSizeCeiling {
		result.addWarning("RESOURCE_FILE_SIZE_EXCEEDED", "Requested file size limit exceeds the recommended ceiling", "maxFileSizeBytes", limits.MaxFileSizeBytes)
	}
	return *result
}

func lookupCaseInsensitive(values map[string]interface{}, name string) (interface{}, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	for k, v := range values {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return nil, false
}

func valueAllowed(raw interface{}, allowed []interface{}) bool {
	for _, a := range allowed {
		if fmt.Sprintf("%v", a) == fmt.Sprintf("%v", raw) {
			return true
		}
	}
	return false
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
