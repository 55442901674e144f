package andytools

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// manifestEntry is one line of a registration manifest: which known factory
// to probe and what configuration to hand it.
type manifestEntry struct {
	ID            string                 `yaml:"id"`
	Configuration map[string]interface{} `yaml:"configuration"`
}

type manifestDocument struct {
	Tools []manifestEntry `yaml:"tools"`
}

// LoadManifest reads a YAML file naming tools to register by id, resolving
// each id against a caller-supplied table of known factories. This is the
// "explicit registration list ... loaded from a manifest" discovery path:
// an alternative to compiling StaticRegistrations directly into the host
// binary.
func LoadManifest(path string, factories map[string]ToolFactory) ([]StaticToolRegistration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc manifestDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	registrations := make([]StaticToolRegistration, 0, len(doc.Tools))
	for _, entry := range doc.Tools {
		factory, ok := factories[normalizeID(entry.ID)]
		if !ok {
			return nil, fmt.Errorf("manifest references unknown tool id %q", entry.ID)
		}
		registrations = append(registrations, StaticToolRegistration{
			Factory:       factory,
			Configuration: entry.Configuration,
			ProbeType:     true,
		})
	}
	return registrations, nil
}

// DiscoveryFromManifest builds a LifecycleOptions.Discovery func that reads
// the manifest at path once, at Initialize time.
func DiscoveryFromManifest(path string, factories map[string]ToolFactory) func() ([]StaticToolRegistration, error) {
	return func() ([]StaticToolRegistration, error) {
		return LoadManifest(path, factories)
	}
}
