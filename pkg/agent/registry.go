package agent

import (
	"sync"

	"github.com/haivist/emma/pkg/config"
	"github.com/haivist/emma/pkg/graph"
	"github.com/haivist/emma/pkg/providers"
	"github.com/haivist/emma/pkg/session"
)

// Registry manages one Companion per session key. Each session gets its own
// knowledge graph and proactive policy; the session manager and archive are
// shared.
type Registry struct {
	companions map[string]*Companion
	mu         sync.RWMutex

	cfg      *config.Config
	provider providers.LLMProvider
	sessions *session.Manager
	archive  *graph.Archive
}

func NewRegistry(cfg *config.Config, provider providers.LLMProvider, sessions *session.Manager, archive *graph.Archive) *Registry {
	return &Registry{
		companions: make(map[string]*Companion),
		cfg:        cfg,
		provider:   provider,
		sessions:   sessions,
		archive:    archive,
	}
}

// GetOrCreate returns the companion for a session key, creating it on first
// contact.
func (r *Registry) GetOrCreate(sessionKey string) *Companion {
	r.mu.RLock()
	c, ok := r.companions[sessionKey]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		c, ok = r.companions[sessionKey]
		if !ok {
			c = NewCompanion(r.cfg, r.provider, r.sessions, r.archive, sessionKey)
			r.companions[sessionKey] = c
		}
		r.mu.Unlock()
	}

	return c
}

// Get returns the companion for a session key without creating one.
func (r *Registry) Get(sessionKey string) (*Companion, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.companions[sessionKey]
	return c, ok
}

// List returns all active companions.
func (r *Registry) List() []*Companion {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Companion, 0, len(r.companions))
	for _, c := range r.companions {
		result = append(result, c)
	}
	return result
}

// Count returns the number of active companions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.companions)
}
