// Package config loads the runtime configuration for the tool-execution
// host: output limiter ceilings, cache sizing, and framework-wide toggles.
package config

import "time"

// OutputLimiterConfig mirrors the Configuration surface of the Output
// Limiter component.
type OutputLimiterConfig struct {
	MaxOutputCharacters      int    `mapstructure:"max_output_characters"`
	MaxFileListCharacters    int    `mapstructure:"max_file_list_characters"`
	MaxFileListEntries       int    `mapstructure:"max_file_list_entries"`
	MaxFileContentCharacters int    `mapstructure:"max_file_content_characters"`
	MaxLinesPerFile          int    `mapstructure:"max_lines_per_file"`
	EnableSmartSummaries     bool   `mapstructure:"enable_smart_summaries"`
	DefaultStrategy          string `mapstructure:"default_strategy"`
}

// CacheConfig mirrors the Configuration surface of the Execution Cache.
type CacheConfig struct {
	DefaultTimeToLive       time.Duration `mapstructure:"default_time_to_live"`
	MaxSizeBytes            int64         `mapstructure:"max_size_bytes"`
	CleanupInterval         time.Duration `mapstructure:"cleanup_interval"`
	MaxEntriesPerTool       int           `mapstructure:"max_entries_per_tool"`
	UseSlidingExpiration    bool          `mapstructure:"use_sliding_expiration"`
	MemoryPressureThreshold float64       `mapstructure:"memory_pressure_threshold"`
}

// FrameworkConfig is the top-level set of host-wide toggles.
type FrameworkConfig struct {
	AutoDiscoverTools       bool          `mapstructure:"auto_discover_tools"`
	RegisterBuiltInTools    bool          `mapstructure:"register_built_in_tools"`
	EnableSecurity          bool          `mapstructure:"enable_security"`
	EnableResourceMonitoring bool         `mapstructure:"enable_resource_monitoring"`
	EnableObservability     bool          `mapstructure:"enable_observability"`
	SecurityViolationMaxAge time.Duration `mapstructure:"security_violation_max_age"`
}

// RuntimeConfig is the fully-resolved configuration tree, assembled by
// Load from defaults, an optional YAML file, and ANDYTOOLS_* environment
// overrides, in that order of increasing precedence.
type RuntimeConfig struct {
	OutputLimiter     OutputLimiterConfig    `mapstructure:"output_limiter"`
	Cache             CacheConfig            `mapstructure:"cache"`
	Framework         FrameworkConfig        `mapstructure:"framework"`
	DefaultLimits     ResourceLimitsConfig   `mapstructure:"default_resource_limits"`
	DefaultPermissions PermissionsConfig     `mapstructure:"default_permissions"`
}

// ResourceLimitsConfig mirrors ToolResourceLimits for config-file loading.
type ResourceLimitsConfig struct {
	MaxMemoryBytes     int64 `mapstructure:"max_memory_bytes"`
	MaxExecutionTimeMs int64 `mapstructure:"max_execution_time_ms"`
	MaxFileCount       int   `mapstructure:"max_file_count"`
	MaxFileSizeBytes   int64 `mapstructure:"max_file_size_bytes"`
	MaxOutputSizeBytes int64 `mapstructure:"max_output_size_bytes"`
}

// PermissionsConfig mirrors ToolPermissions for config-file loading.
type PermissionsConfig struct {
	FileSystemAccess  bool `mapstructure:"file_system_access"`
	NetworkAccess     bool `mapstructure:"network_access"`
	ProcessExecution  bool `mapstructure:"process_execution"`
	EnvironmentAccess bool `mapstructure:"environment_access"`
}
