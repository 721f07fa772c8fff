package commands

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sagebot/sage/pkg/logger"
)

// SettingsStore persists command enablement overrides per application.
type SettingsStore interface {
	LoadCommandSettings(ctx context.Context, appID string) (map[string]bool, error)
	SaveCommandSetting(ctx context.Context, appID, name string, enabled bool) error
}

// ProtectedNames are the commands that can never be disabled.
var ProtectedNames = []string{"enable", "disable"}

// Registry holds the known commands and their enablement state. It is safe for
// concurrent use.
type Registry struct {
	mu        sync.RWMutex
	defs      map[string]*Descriptor
	store     SettingsStore
	appID     string
	protected map[string]struct{}
}

// NewRegistry creates an empty registry whose enablement changes are written
// through to store under appID. store may be nil, in which case changes stay
// in memory.
func NewRegistry(store SettingsStore, appID string) *Registry {
	protected := make(map[string]struct{}, len(ProtectedNames))
	for _, name := range ProtectedNames {
		protected[name] = struct{}{}
	}
	return &Registry{
		defs:      make(map[string]*Descriptor),
		store:     store,
		appID:     appID,
		protected: protected,
	}
}

// Register adds a descriptor.
func (r *Registry) Register(desc Descriptor) error {
	if desc.Name == "" {
		return fmt.Errorf("command name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[desc.Name]; ok {
		return &DuplicateCommandError{Name: desc.Name}
	}
	d := desc
	r.defs[desc.Name] = &d
	return nil
}

// Find looks up a command by exact, case-sensitive name.
func (r *Registry) Find(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.defs[name]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// List returns all descriptors sorted by name.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// IsProtected reports whether name can never be disabled.
func (r *Registry) IsProtected(name string) bool {
	_, ok := r.protected[name]
	return ok
}

// SetEnabled flips a command's enablement and writes it to the settings
// store. If the write fails the in-memory flag is restored and the store
// error is returned.
func (r *Registry) SetEnabled(ctx context.Context, name string, enabled bool) error {
	if r.IsProtected(name) {
		return &ProtectedCommandError{Name: name}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.defs[name]
	if !ok {
		return &UnknownCommandError{Name: name}
	}

	previous := d.Enabled
	d.Enabled = enabled

	if r.store == nil {
		return nil
	}
	if err := r.store.SaveCommandSetting(ctx, r.appID, name, enabled); err != nil {
		d.Enabled = previous
		return fmt.Errorf("saving command setting for %q: %w", name, err)
	}
	return nil
}

// Load applies the persisted enablement overrides. Overrides for unknown or
// protected commands are ignored.
func (r *Registry) Load(ctx context.Context) error {
	if r.store == nil {
		return nil
	}

	settings, err := r.store.LoadCommandSettings(ctx, r.appID)
	if err != nil {
		return fmt.Errorf("loading command settings: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for name, enabled := range settings {
		d, ok := r.defs[name]
		if !ok {
			logger.WarnCF("commands", "Ignoring setting for unknown command", map[string]any{
				"command": name,
			})
			continue
		}
		if _, ok := r.protected[name]; ok {
			continue
		}
		d.Enabled = enabled
	}
	return nil
}
