package main

import (
	"github.com/rivoli-ai/andy-tools-sub003/internal/demotools"
	"github.com/rivoli-ai/andy-tools-sub003/pkg/andytools"
	"github.com/rivoli-ai/andy-tools-sub003/pkg/config"
)

// host bundles the nine components wired together the way a real embedder
// would construct them, built fresh for each CLI invocation.
type host struct {
	cfg       config.RuntimeConfig
	registry  *andytools.Registry
	security  *andytools.SecurityManager
	monitor   *andytools.ResourceMonitor
	limiter   *andytools.OutputLimiter
	obs       *andytools.Observability
	cache     *andytools.ExecutionCache
	executor  *andytools.Executor
	lifecycle *andytools.LifecycleManager
}

func newHost(cfgPath string) (*host, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	registry := andytools.NewRegistry(nil)
	security := andytools.NewSecurityManager()
	monitor := andytools.NewResourceMonitor()
	monitor.Start()
	limiter := andytools.NewOutputLimiter()
	obs := andytools.NewObservability(andytools.ObservabilityOptions{ServiceName: "andytools"})
	cache := andytools.NewExecutionCache(cfg.Cache.MaxSizeBytes, cfg.Cache.UseSlidingExpiration, nil)
	executor := andytools.NewExecutor(registry, security, monitor, limiter, obs, nil, nil)
	executor.SetCache(cache)

	h := &host{
		cfg:      cfg,
		registry: registry,
		security: security,
		monitor:  monitor,
		limiter:  limiter,
		obs:      obs,
		cache:    cache,
		executor: executor,
	}

	lifecycle := andytools.NewLifecycleManager(registry, executor, security, andytools.LifecycleOptions{
		StaticRegistrations:     h.builtInRegistrations(),
		SecurityViolationMaxAge: cfg.Framework.SecurityViolationMaxAge,
		Cache:                   cache,
		Observability:           obs,
	})
	h.lifecycle = lifecycle
	return h, nil
}

func (h *host) builtInRegistrations() []andytools.StaticToolRegistration {
	if !h.cfg.Framework.RegisterBuiltInTools {
		return nil
	}
	listFactory := demotools.NewListToolFactory(h.security)
	return []andytools.StaticToolRegistration{
		{Metadata: (&demotools.EchoTool{}).Metadata(), Factory: demotools.NewEchoTool},
		{Metadata: (&demotools.SleepTool{}).Metadata(), Factory: demotools.NewSleepTool},
		{Metadata: (&demotools.AllocTool{}).Metadata(), Factory: demotools.NewAllocTool},
		{Metadata: (&demotools.AddTool{}).Metadata(), Factory: demotools.NewAddTool},
		{Metadata: (&demotools.ListTool{}).Metadata(), Factory: listFactory},
	}
}

func (h *host) close() {
	h.lifecycle.Shutdown()
	h.monitor.Stop()
	h.obs.Close()
}

func defaultPermissions(cfg config.PermissionsConfig) andytools.ToolPermissions {
	return andytools.ToolPermissions{
		FileSystemAccess:  cfg.FileSystemAccess,
		NetworkAccess:     cfg.NetworkAccess,
		ProcessExecution:  cfg.ProcessExecution,
		EnvironmentAccess: cfg.EnvironmentAccess,
	}
}

func defaultResourceLimits(cfg config.ResourceLimitsConfig) andytools.ToolResourceLimits {
	return andytools.ToolResourceLimits{
		MaxMemoryBytes:     cfg.MaxMemoryBytes,
		MaxExecutionTimeMs: cfg.MaxExecutionTimeMs,
		MaxFileCount:       cfg.MaxFileCount,
		MaxFileSizeBytes:   cfg.MaxFileSizeBytes,
		MaxOutputSizeBytes: cfg.MaxOutputSizeBytes,
	}
}
