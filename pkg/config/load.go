package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "ANDYTOOLS"

// Defaults returns the spec-mandated default configuration.
func Defaults() RuntimeConfig {
	return RuntimeConfig{
		OutputLimiter: OutputLimiterConfig{
			MaxOutputCharacters:      50000,
			MaxFileListCharacters:    50000,
			MaxFileListEntries:       1000,
			MaxFileContentCharacters: 100000,
			MaxLinesPerFile:          1000,
			EnableSmartSummaries:     true,
			DefaultStrategy:          "Intelligent",
		},
		Cache: CacheConfig{
			DefaultTimeToLive:       5 * time.Minute,
			MaxSizeBytes:            100 * 1024 * 1024,
			CleanupInterval:         5 * time.Minute,
			MaxEntriesPerTool:       1000,
			UseSlidingExpiration:    true,
			MemoryPressureThreshold: 0.9,
		},
		Framework: FrameworkConfig{
			AutoDiscoverTools:        true,
			RegisterBuiltInTools:     true,
			EnableSecurity:           true,
			EnableResourceMonitoring: true,
			EnableObservability:      true,
			SecurityViolationMaxAge:  7 * 24 * time.Hour,
		},
		DefaultLimits: ResourceLimitsConfig{
			MaxMemoryBytes:     100 * 1024 * 1024,
			MaxExecutionTimeMs: 30000,
			MaxFileCount:       100,
			MaxFileSizeBytes:   10 * 1024 * 1024,
			MaxOutputSizeBytes: 1 * 1024 * 1024,
		},
		DefaultPermissions: PermissionsConfig{},
	}
}

func applyDefaults(v *viper.Viper, d RuntimeConfig) {
	v.SetDefault("output_limiter.max_output_characters", d.OutputLimiter.MaxOutputCharacters)
	v.SetDefault("output_limiter.max_file_list_characters", d.OutputLimiter.MaxFileListCharacters)
	v.SetDefault("output_limiter.max_file_list_entries", d.OutputLimiter.MaxFileListEntries)
	v.SetDefault("output_limiter.max_file_content_characters", d.OutputLimiter.MaxFileContentCharacters)
	v.SetDefault("output_limiter.max_lines_per_file", d.OutputLimiter.MaxLinesPerFile)
	v.SetDefault("output_limiter.enable_smart_summaries", d.OutputLimiter.EnableSmartSummaries)
	v.SetDefault("output_limiter.default_strategy", d.OutputLimiter.DefaultStrategy)

	v.SetDefault("cache.default_time_to_live", d.Cache.DefaultTimeToLive)
	v.SetDefault("cache.max_size_bytes", d.Cache.MaxSizeBytes)
	v.SetDefault("cache.cleanup_interval", d.Cache.CleanupInterval)
	v.SetDefault("cache.max_entries_per_tool", d.Cache.MaxEntriesPerTool)
	v.SetDefault("cache.use_sliding_expiration", d.Cache.UseSlidingExpiration)
	v.SetDefault("cache.memory_pressure_threshold", d.Cache.MemoryPressureThreshold)

	v.SetDefault("framework.auto_discover_tools", d.Framework.AutoDiscoverTools)
	v.SetDefault("framework.register_built_in_tools", d.Framework.RegisterBuiltInTools)
	v.SetDefault("framework.enable_security", d.Framework.EnableSecurity)
	v.SetDefault("framework.enable_resource_monitoring", d.Framework.EnableResourceMonitoring)
	v.SetDefault("framework.enable_observability", d.Framework.EnableObservability)
	v.SetDefault("framework.security_violation_max_age", d.Framework.SecurityViolationMaxAge)

	v.SetDefault("default_resource_limits.max_memory_bytes", d.DefaultLimits.MaxMemoryBytes)
	v.SetDefault("default_resource_limits.max_execution_time_ms", d.DefaultLimits.MaxExecutionTimeMs)
	v.SetDefault("default_resource_limits.max_file_count", d.DefaultLimits.MaxFileCount)
	v.SetDefault("default_resource_limits.max_file_size_bytes", d.DefaultLimits.MaxFileSizeBytes)
	v.SetDefault("default_resource_limits.max_output_size_bytes", d.DefaultLimits.MaxOutputSizeBytes)

	v.SetDefault("default_permissions.file_system_access", d.DefaultPermissions.FileSystemAccess)
	v.SetDefault("default_permissions.network_access", d.DefaultPermissions.NetworkAccess)
	v.SetDefault("default_permissions.process_execution", d.DefaultPermissions.ProcessExecution)
	v.SetDefault("default_permissions.environment_access", d.DefaultPermissions.EnvironmentAccess)
}

// Load resolves a RuntimeConfig from, in increasing precedence: built-in
// defaults, an optional YAML file at configPath, and ANDYTOOLS_* environment
// variables (e.g. ANDYTOOLS_CACHE_MAX_SIZE_BYTES). An empty configPath skips
// the file layer; a missing file at a non-empty path is not an error, same
// as the teacher's "fall back to defaults" read.
func Load(configPath string) (RuntimeConfig, error) {
	v := viper.New()
	applyDefaults(v, Defaults())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		_ = v.ReadInConfig() // missing file falls back to defaults, same as teacher's load path
	}

	var cfg RuntimeConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return RuntimeConfig{}, err
	}
	return cfg, nil
}
