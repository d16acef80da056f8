package assistant

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/allaspectsdev/legalsmart/internal/llm"
)

// DefaultMaxSessions bounds the registry when no size is configured.
const DefaultMaxSessions = 1024

// Registry maps session ids to sessions. The least recently used session is
// dropped once the registry is full.
type Registry struct {
	opts Options
	deps Deps

	mu       sync.Mutex
	sessions *lru.Cache[string, *Session]
}

// NewRegistry creates a registry whose sessions share deps and opts.
func NewRegistry(maxSessions int, opts Options, deps Deps) (*Registry, error) {
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	if deps.Clients == nil {
		return nil, fmt.Errorf("assistant: client source is required")
	}
	c, err := lru.New[string, *Session](maxSessions)
	if err != nil {
		return nil, fmt.Errorf("assistant: creating session registry: %w", err)
	}
	return &Registry{opts: opts, deps: deps, sessions: c}, nil
}

// Get returns the session for id. An unknown but well-formed id starts a new
// session under that id; a blank or malformed one gets a freshly issued id.
// Callers should hand Session.ID back to the client.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := uuid.Parse(id); err == nil {
		if s, ok := r.sessions.Get(id); ok {
			return s, nil
		}
	} else {
		id = uuid.NewString()
	}

	s, err := NewSession(id, r.opts, r.deps)
	if err != nil {
		return nil, err
	}
	r.sessions.Add(id, s)
	return s, nil
}

// Remove drops the session for id.
func (r *Registry) Remove(id string) bool {
	return r.sessions.Remove(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.sessions.Len()
}

// AIEnabled reports whether sessions have a model caller.
func (r *Registry) AIEnabled() bool {
	return r.deps.Caller != nil
}

// DefaultModel is the model new sessions prefer.
func (r *Registry) DefaultModel() llm.Model {
	if !r.opts.DefaultModel.Valid() {
		return llm.ModelSonnet
	}
	return r.opts.DefaultModel
}
