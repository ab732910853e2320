// Package sourcecontrol implements project.SourceControl on top of command
// line clients.
//
// Providers are looked up by name in a Registry. The default registry knows
// "none", "git", "p4" and "tf"; a "custom" provider runs the status and
// checkout commands configured in quill.yml.
package sourcecontrol

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/simonhull/quill/project"
)

// Runner runs a command and returns its stdout. *exec.Executor satisfies it.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// Commands holds argv templates for the custom provider. The token
// "{path}" is replaced by the file path.
type Commands struct {
	Status   []string
	CheckOut []string
}

// Provider answers status queries and checks files out.
type Provider = project.SourceControl

// Factory builds a provider. A nil provider means "no source control".
type Factory func(r Runner, cmds Commands) (Provider, error)

// Registry maps provider names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding the built-in providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Register("none", func(Runner, Commands) (Provider, error) { return nil, nil })
	_ = r.Register("git", func(run Runner, _ Commands) (Provider, error) { return NewGit(run), nil })
	_ = r.Register("p4", func(run Runner, _ Commands) (Provider, error) { return NewPerforce(run), nil })
	_ = r.Register("tf", func(run Runner, _ Commands) (Provider, error) { return NewTFVC(run), nil })
	_ = r.Register("custom", func(run Runner, cmds Commands) (Provider, error) {
		c, err := NewCustom(run, cmds)
		if err != nil {
			return nil, err
		}
		return c, nil
	})
	return r
}

// Register adds a factory under name.
func (r *Registry) Register(name string, f Factory) error {
	if f == nil {
		return fmt.Errorf("cannot register nil provider")
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("cannot register provider with empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider '%s' is already registered", name)
	}
	r.factories[name] = f
	return nil
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the named provider. An empty name means "none".
func (r *Registry) Open(name string, run Runner, cmds Commands) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "none"
	}

	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown source control provider %q (known: %s)", name, strings.Join(r.Names(), ", "))
	}
	return f(run, cmds)
}
