package llm

import (
	"fmt"
	"strings"
	"sync"
)

// Status is the externally visible view of the registry.
type Status struct {
	ActiveProvider ProviderID            `json:"active_provider"`
	Configured     bool                  `json:"configured"`
	Available      map[ProviderID]bool   `json:"available"`
	Models         map[ProviderID]string `json:"models"`
}

// Registry holds provider credentials and the active selection. Readers get
// value snapshots so an in-flight request is never affected by a later switch.
type Registry struct {
	mu        sync.RWMutex
	providers map[ProviderID]ProviderConfig
	active    ProviderID
	listeners []func(ProviderID)
}

// NewRegistry seeds the registry. Unknown ids in configs are ignored; an
// unknown active id falls back to openai.
func NewRegistry(active ProviderID, configs ...ProviderConfig) *Registry {
	r := &Registry{
		providers: make(map[ProviderID]ProviderConfig, len(KnownProviders)),
		active:    ProviderOpenAI,
	}
	for _, id := range KnownProviders {
		r.providers[id] = ProviderConfig{ID: id, Model: DefaultModel(id)}
	}
	for _, cfg := range configs {
		if _, ok := r.providers[cfg.ID]; !ok {
			continue
		}
		if strings.TrimSpace(cfg.Model) == "" {
			cfg.Model = DefaultModel(cfg.ID)
		}
		r.providers[cfg.ID] = cfg
	}
	if _, ok := r.providers[active]; ok {
		r.active = active
	}
	return r
}

// OnCredentialChange registers fn to run after a credential is replaced.
func (r *Registry) OnCredentialChange(fn func(ProviderID)) {
	if fn == nil {
		return
	}
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Active returns a snapshot of the active provider's config.
func (r *Registry) Active() ProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[r.active]
}

func (r *Registry) Get(id ProviderID) (ProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.providers[id]
	if !ok {
		return ProviderConfig{}, fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	return cfg, nil
}

func (r *Registry) ListAvailable() map[ProviderID]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.availableLocked()
}

func (r *Registry) availableLocked() map[ProviderID]bool {
	out := make(map[ProviderID]bool, len(r.providers))
	for id, cfg := range r.providers {
		out[id] = cfg.Available()
	}
	return out
}

// SetActive switches the active provider. The previous selection is kept on error.
func (r *Registry) SetActive(id ProviderID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.providers[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	if !cfg.Available() {
		return fmt.Errorf("%w: %s", ErrNotConfigured, id)
	}
	r.active = id
	return nil
}

// UpdateCredential replaces the secret for id. An empty secret clears it,
// which makes the provider unavailable.
func (r *Registry) UpdateCredential(id ProviderID, secret string) error {
	r.mu.Lock()
	cfg, ok := r.providers[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownProvider, id)
	}
	cfg.Credential = strings.TrimSpace(secret)
	r.providers[id] = cfg
	listeners := append([]func(ProviderID){}, r.listeners...)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(id)
	}
	return nil
}

func (r *Registry) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make(map[ProviderID]string, len(r.providers))
	for id, cfg := range r.providers {
		models[id] = cfg.model()
	}
	return Status{
		ActiveProvider: r.active,
		Configured:     r.providers[r.active].Available(),
		Available:      r.availableLocked(),
		Models:         models,
	}
}
