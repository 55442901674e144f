package andytools

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/rivoli-ai/andy-tools-sub003/internal/obslog"
)

// ToolRegistration is one entry the Registry holds: identity, how to build
// an instance, its configuration and enabled state.
type ToolRegistration struct {
	RegistrationID string
	Metadata       ToolMetadata
	Factory        ToolFactory
	Configuration  map[string]interface{}
	Enabled        bool
	Source         string
}

// RegistryStatistics summarizes the current registration set.
type RegistryStatistics struct {
	Total         int
	ByCategory    map[ToolCategory]int
	BySource      map[string]int
	ByCapability  map[Capability]int
	EnabledCount  int
	DisabledCount int
}

// Registry is a thread-safe id→ToolRegistration map. Reads take an RLock;
// every mutation is fully serialized.
type Registry struct {
	broadcaster *broadcaster
	validator   *Validator

	mu    sync.RWMutex
	tools map[string]*ToolRegistration
}

// NewRegistry constructs an empty Registry.
func NewRegistry(b *broadcaster) *Registry {
	if b == nil {
		b = newBroadcaster()
	}
	return &Registry{
		broadcaster: b,
		validator:   NewValidator(),
		tools:       make(map[string]*ToolRegistration),
	}
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// RegisterFromFactory validates metadata and stores a factory-backed
// registration, failing when the id already exists.
func (r *Registry) RegisterFromFactory(metadata ToolMetadata, factory ToolFactory, config map[string]interface{}) error {
	if metadata.ID == "" {
		return fmt.Errorf("tool metadata must declare a non-empty id")
	}
	result := r.validator.ValidateMetadata(metadata)
	if !result.IsValid {
		return &ValidationFailedError{Messages: result.Messages()}
	}

	key := normalizeID(metadata.ID)

	r.mu.Lock()
	if _, exists := r.tools[key]; exists {
		r.mu.Unlock()
		return fmt.Errorf("tool '%s' is already registered", metadata.ID)
	}
	reg := &ToolRegistration{
		RegistrationID: uuid.NewString(),
		Metadata:       metadata,
		Factory:        factory,
		Configuration:  config,
		Enabled:        true,
		Source:         "factory",
	}
	r.tools[key] = reg
	r.mu.Unlock()

	r.broadcaster.fireRegistered(metadata)
	return nil
}

// RegisterFromType instantiates the tool once (via an empty service locator)
// to read its metadata, then delegates to RegisterFromFactory.
func (r *Registry) RegisterFromType(factory ToolFactory, config map[string]interface{}) error {
	probe, err := factory(noopLocator{})
	if err != nil {
		return fmt.Errorf("failed to instantiate tool for registration: %w", err)
	}
	metadata := probe.Metadata()
	if err := probe.Dispose(); err != nil {
		obslog.Warn("probe dispose failed for tool '%s': %v", metadata.ID, err)
	}
	if err := r.RegisterFromFactory(metadata, factory, config); err != nil {
		return err
	}
	r.mu.Lock()
	if reg, ok := r.tools[normalizeID(metadata.ID)]; ok {
		reg.Source = "type"
	}
	r.mu.Unlock()
	return nil
}

// Unregister removes a registration and reports whether one was removed.
func (r *Registry) Unregister(id string) bool {
	key := normalizeID(id)
	r.mu.Lock()
	reg, ok := r.tools[key]
	if ok {
		delete(r.tools, key)
	}
	r.mu.Unlock()
	if ok {
		r.broadcaster.fireUnregistered(reg.Metadata.ID)
	}
	return ok
}

// Get performs a case-insensitive lookup.
func (r *Registry) Get(id string) (*ToolRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.tools[normalizeID(id)]
	return reg, ok
}

// QueryOptions narrows a Query call.
type QueryOptions struct {
	Category     *ToolCategory
	Capabilities []Capability
	Tags         []string
	EnabledOnly  bool
}

// Query returns a snapshot list matching every supplied filter.
func (r *Registry) Query(opts QueryOptions) []ToolRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolRegistration, 0, len(r.tools))
	for _, reg := range r.tools {
		if opts.EnabledOnly && !reg.Enabled {
			continue
		}
		if opts.Category != nil && reg.Metadata.Category != *opts.Category {
			continue
		}
		if !hasAllCapabilities(reg.Metadata, opts.Capabilities) {
			continue
		}
		if !hasAllTags(reg.Metadata, opts.Tags) {
			continue
		}
		out = append(out, *reg)
	}
	return out
}

func hasAllCapabilities(m ToolMetadata, required []Capability) bool {
	for _, c := range required {
		if !m.HasCapability(c) {
			return false
		}
	}
	return true
}

func hasAllTags(m ToolMetadata, required []string) bool {
	for _, want := range required {
		found := false
		for _, have := range m.Tags {
			if strings.EqualFold(have, want) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Search matches term as a case-insensitive substring of name, description
// or any tag, returning results ordered by name.
func (r *Registry) Search(term string, enabledOnly bool) []ToolRegistration {
	term = strings.ToLower(term)
	r.mu.RLock()
	out := make([]ToolRegistration, 0)
	for _, reg := range r.tools {
		if enabledOnly && !reg.Enabled {
			continue
		}
		if matchesSearchTerm(reg.Metadata, term) {
			out = append(out, *reg)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Metadata.Name < out[j].Metadata.Name })
	return out
}

func matchesSearchTerm(m ToolMetadata, term string) bool {
	if strings.Contains(strings.ToLower(m.Name), term) {
		return true
	}
	if strings.Contains(strings.ToLower(m.Description), term) {
		return true
	}
	for _, tag := range m.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}

// SetEnabled toggles whether a registration may be instantiated.
func (r *Registry) SetEnabled(id string, enabled bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.tools[normalizeID(id)]
	if !ok {
		return false
	}
	reg.Enabled = enabled
	return true
}

// UpdateConfiguration replaces a registration's stored configuration.
func (r *Registry) UpdateConfiguration(id string, config map[string]interface{}) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.tools[normalizeID(id)]
	if !ok {
		return false
	}
	reg.Configuration = config
	return true
}

// CreateInstance builds a fresh tool instance for one execution, returning
// nil when the tool is missing, disabled, or the factory errors.
func (r *Registry) CreateInstance(id string, locator ServiceLocator) (Tool, error) {
	reg, ok := r.Get(id)
	if !ok {
		return nil, &ToolNotFoundError{ToolID: id}
	}
	if !reg.Enabled {
		return nil, &ToolDisabledError{ToolID: id}
	}
	instance, err := reg.Factory(locator)
	if err != nil {
		return nil, fmt.Errorf("factory error for tool '%s': %w", id, err)
	}
	return instance, nil
}

// Clear removes every registration, emitting one ToolUnregistered event per
// removed tool.
func (r *Registry) Clear() {
	r.mu.Lock()
	removed := make([]string, 0, len(r.tools))
	for _, reg := range r.tools {
		removed = append(removed, reg.Metadata.ID)
	}
	r.tools = make(map[string]*ToolRegistration)
	r.mu.Unlock()

	for _, id := range removed {
		r.broadcaster.fireUnregistered(id)
	}
}

// Statistics computes totals broken down by category, source and
// capability bit.
func (r *Registry) Statistics() RegistryStatistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := RegistryStatistics{
		ByCategory:   make(map[ToolCategory]int),
		BySource:     make(map[string]int),
		ByCapability: make(map[Capability]int),
	}
	for _, reg := range r.tools {
		stats.Total++
		if reg.Enabled {
			stats.EnabledCount++
		} else {
			stats.DisabledCount++
		}
		stats.ByCategory[reg.Metadata.Category]++
		stats.BySource[reg.Source]++
		for _, c := range reg.Metadata.RequiredCapabilities {
			stats.ByCapability[c]++
		}
	}
	return stats
}

type noopLocator struct{}

func (noopLocator) Resolve(string) (interface{}, bool) { return nil, false }
