package api

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrServiceNotFound is returned when no descriptor is registered under the
// requested name.
var ErrServiceNotFound = errors.New("service not found")

// Descriptor points the harness at one target service.
type Descriptor struct {
	Name    string
	BaseURL string
	Token   string
}

// Registry maps service names to descriptors. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	services map[string]Descriptor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: make(map[string]Descriptor)}
}

// Register adds or replaces a descriptor.
func (r *Registry) Register(d Descriptor) {
	r.mu.Lock()
	r.services[d.Name] = d
	r.mu.Unlock()
}

// Resolve looks a descriptor up by service name.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.services[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %s", ErrServiceNotFound, name)
	}
	return d, nil
}

// Seed parses a comma-separated "name=baseURL|token" list (token optional)
// and registers every entry. Used to preload the registry from config.
func (r *Registry) Seed(list string) error {
	if strings.TrimSpace(list) == "" {
		return nil
	}
	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, rest, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return fmt.Errorf("malformed service entry %q", entry)
		}
		baseURL, token, _ := strings.Cut(rest, "|")
		if strings.TrimSpace(baseURL) == "" {
			return fmt.Errorf("malformed service entry %q: empty base url", entry)
		}
		r.Register(Descriptor{
			Name:    strings.TrimSpace(name),
			BaseURL: strings.TrimSpace(baseURL),
			Token:   strings.TrimSpace(token),
		})
	}
	return nil
}
