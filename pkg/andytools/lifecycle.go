package andytools

import (
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rivoli-ai/andy-tools-sub003/internal/obslog"
)

// StaticToolRegistration is one tool the Lifecycle Manager registers at
// Initialize time, either via a factory with known metadata or via a type
// probe.
type StaticToolRegistration struct {
	Metadata      ToolMetadata
	Factory       ToolFactory
	Configuration map[string]interface{}
	ProbeType     bool
}

// LifecycleOptions configures Initialize/maintenance behavior.
type LifecycleOptions struct {
	StaticRegistrations                 []StaticToolRegistration
	Discovery                           func() ([]StaticToolRegistration, error)
	FailOnExplicitToolRegistrationError bool
	MaintenanceSchedule                 string // cron spec; defaults to hourly
	SecurityViolationMaxAge             time.Duration
	Cache                               *ExecutionCache
	CacheSweepSchedule                  string // cron spec; defaults to every 5 minutes
	Observability                       *Observability
	ObservabilityRetention              time.Duration
}

// LifecycleStatus is the snapshot returned by GetStatus.
type LifecycleStatus struct {
	IsInitialized         bool
	RegisteredToolsCount  int
	ActiveExecutionsCount int
	TotalExecutions       int64
	InitializedAt         time.Time
	LastMaintenanceAt     time.Time
	StartupErrors         []string
}

// LifecycleManager owns startup registration, the hourly maintenance sweep
// and orderly shutdown (C9), per spec.md §4.9.
type LifecycleManager struct {
	registry   *Registry
	executor   *Executor
	security   *SecurityManager
	cron       *cron.Cron
	maintEntry cron.EntryID
	sweepEntry cron.EntryID

	opts LifecycleOptions

	mu                sync.Mutex
	isInitialized     bool
	initializedAt     time.Time
	lastMaintenanceAt time.Time
	startupErrors     []string
}

// NewLifecycleManager wires the manager around an already-constructed
// registry, executor and security manager.
func NewLifecycleManager(registry *Registry, executor *Executor, security *SecurityManager, opts LifecycleOptions) *LifecycleManager {
	if opts.MaintenanceSchedule == "" {
		opts.MaintenanceSchedule = "@hourly"
	}
	if opts.SecurityViolationMaxAge <= 0 {
		opts.SecurityViolationMaxAge = 7 * 24 * time.Hour
	}
	if opts.CacheSweepSchedule == "" {
		opts.CacheSweepSchedule = "0 */5 * * * *"
	}
	if opts.ObservabilityRetention <= 0 {
		opts.ObservabilityRetention = 24 * time.Hour
	}
	c := cron.New(cron.WithSeconds(), cron.WithLogger(cron.VerbosePrintfLogger(log.New(log.Writer(), "MAINTENANCE: ", log.LstdFlags))))
	return &LifecycleManager{
		registry: registry,
		executor: executor,
		security: security,
		cron:     c,
		opts:     opts,
	}
}

// Initialize registers every static and discovered tool, records but does
// not abort on individual registration failures unless
// FailOnExplicitToolRegistrationError is set, then starts the maintenance
// cron schedule.
func (l *LifecycleManager) Initialize() error {
	l.mu.Lock()
	if l.isInitialized {
		l.mu.Unlock()
		return nil
	}
	l.mu.Unlock()

	var errs []string

	registrations := append([]StaticToolRegistration(nil), l.opts.StaticRegistrations...)
	if l.opts.Discovery != nil {
		discovered, err := l.opts.Discovery()
		if err != nil {
			errs = append(errs, "discovery: "+err.Error())
			if l.opts.FailOnExplicitToolRegistrationError {
				return &lifecycleStartupError{messages: errs}
			}
		}
		registrations = append(registrations, discovered...)
	}

	for _, reg := range registrations {
		var err error
		if reg.ProbeType {
			err = l.registry.RegisterFromType(reg.Factory, reg.Configuration)
		} else {
			err = l.registry.RegisterFromFactory(reg.Metadata, reg.Factory, reg.Configuration)
		}
		if err != nil {
			msg := "register '" + reg.Metadata.ID + "': " + err.Error()
			errs = append(errs, msg)
			obslog.Warn("%s", msg)
			if l.opts.FailOnExplicitToolRegistrationError {
				return &lifecycleStartupError{messages: errs}
			}
		}
	}

	entryID, err := l.cron.AddFunc(l.scheduleSpec(), l.performMaintenance)
	if err != nil {
		errs = append(errs, "maintenance schedule: "+err.Error())
	} else {
		l.maintEntry = entryID
	}
	if l.opts.Cache != nil {
		sweepID, err := l.cron.AddFunc(l.opts.CacheSweepSchedule, func() { l.opts.Cache.Sweep() })
		if err != nil {
			errs = append(errs, "cache sweep schedule: "+err.Error())
		} else {
			l.sweepEntry = sweepID
		}
	}
	l.cron.Start()

	l.mu.Lock()
	l.isInitialized = true
	l.initializedAt = time.Now()
	l.startupErrors = errs
	l.mu.Unlock()

	return nil
}

func (l *LifecycleManager) scheduleSpec() string {
	switch l.opts.MaintenanceSchedule {
	case "@hourly":
		return "0 0 * * * *"
	default:
		return l.opts.MaintenanceSchedule
	}
}

// performMaintenance purges expired security violations and observability
// records past retention. Safe to call directly (e.g. from a test) as well
// as from the cron schedule.
func (l *LifecycleManager) performMaintenance() {
	if l.security != nil {
		purged := l.security.ClearOldViolations(l.opts.SecurityViolationMaxAge)
		if purged > 0 {
			obslog.Warn("maintenance: purged %d stale security violations", purged)
		}
	}

	if l.opts.Observability != nil {
		cutoff := time.Now().Add(-l.opts.ObservabilityRetention)
		if stale := l.opts.Observability.RecordsOlderThan(cutoff); len(stale) > 0 {
			obslog.Warn("maintenance: %d execution records are past the %s retention window (ring buffer will age them out naturally)", len(stale), l.opts.ObservabilityRetention)
		}
	}

	l.mu.Lock()
	l.lastMaintenanceAt = time.Now()
	l.mu.Unlock()
}

// Shutdown cancels every in-flight execution best-effort, stops the
// maintenance schedule and marks the manager uninitialized.
func (l *LifecycleManager) Shutdown() {
	ctx := l.cron.Stop()
	<-ctx.Done()

	if l.executor != nil {
		l.executor.Dispose()
	}

	l.mu.Lock()
	l.isInitialized = false
	l.mu.Unlock()
}

// GetStatus reports the manager's current lifecycle state.
func (l *LifecycleManager) GetStatus() LifecycleStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	status := LifecycleStatus{
		IsInitialized:     l.isInitialized,
		InitializedAt:     l.initializedAt,
		LastMaintenanceAt: l.lastMaintenanceAt,
		StartupErrors:     append([]string(nil), l.startupErrors...),
	}
	if l.registry != nil {
		status.RegisteredToolsCount = l.registry.Statistics().Total
	}
	if l.executor != nil {
		status.ActiveExecutionsCount = len(l.executor.RunningExecutions())
		status.TotalExecutions = l.executor.Statistics().Total
	}
	return status
}

// lifecycleStartupError aggregates registration failures surfaced when
// FailOnExplicitToolRegistrationError is set.
type lifecycleStartupError struct {
	messages []string
}

func (e *lifecycleStartupError) Error() string {
	if len(e.messages) == 0 {
		return "lifecycle: startup failed"
	}
	out := "lifecycle: startup failed: " + e.messages[0]
	for _, m := range e.messages[1:] {
		out += "; " + m
	}
	return out
}
