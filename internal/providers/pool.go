package providers

import (
	"fmt"
	"sync"

	"storyforge/internal/infra"
)

// Factory constructs a provider handle. Construction may be expensive (a
// local CPU model load, for instance), so the pool defers it until the kind
// is first selected and then reuses the handle for every later job.
type Factory func() (Provider, error)

// Pool is the process-wide capability table. Kinds with no registered
// factory have no viable implementation and are skipped by the selector.
type Pool struct {
	mu        sync.Mutex
	factories map[Kind]Factory
	handles   map[Kind]Provider
	logger    infra.Logger
}

func NewPool(logger infra.Logger) *Pool {
	return &Pool{
		factories: make(map[Kind]Factory),
		handles:   make(map[Kind]Provider),
		logger:    logger,
	}
}

// Register declares a viable implementation for the kind. Registration
// happens once, at startup, before any job is processed.
func (p *Pool) Register(kind Kind, factory Factory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.factories[kind] = factory
}

// Registered reports whether the kind has a viable implementation.
func (p *Pool) Registered(kind Kind) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.factories[kind]
	return ok
}

// Get returns the shared handle for the kind, constructing it on first use.
// The job-concurrency semaphore keeps construction and use serialized, so
// the handle itself is never mutated concurrently.
func (p *Pool) Get(kind Kind) (Provider, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if handle, ok := p.handles[kind]; ok {
		return handle, nil
	}
	factory, ok := p.factories[kind]
	if !ok {
		return nil, fmt.Errorf("provider kind %q not registered", kind)
	}

	handle, err := factory()
	if err != nil {
		return nil, fmt.Errorf("initialize provider %q: %w", kind, err)
	}
	p.handles[kind] = handle
	p.logger.Info().Str("kind", string(kind)).Msg("providers: handle initialized")
	return handle, nil
}
