// Package registry hands validated run inputs from the POST endpoint to the
// stream endpoint that executes them.
package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/ashstep2/agent-eval-harness/internal/runner"
)

var (
	ErrNotFound = errors.New("evaluation not found")
	ErrExists   = errors.New("evaluation already registered")
)

// Registry is a bounded, expiring store of pending run inputs. Each entry
// has at most one writer and is read once.
type Registry struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, runner.Input]
}

func New(size int, ttl time.Duration) *Registry {
	return &Registry{cache: expirable.NewLRU[string, runner.Input](size, nil, ttl)}
}

func (r *Registry) Create(id string, in runner.Input) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache.Contains(id) {
		return ErrExists
	}
	r.cache.Add(id, in)
	return nil
}

// Take returns the input registered under id and removes it.
func (r *Registry) Take(id string) (runner.Input, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	in, ok := r.cache.Get(id)
	if !ok {
		return runner.Input{}, ErrNotFound
	}
	r.cache.Remove(id)
	return in, nil
}

func (r *Registry) Evict(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Remove(id)
}

func (r *Registry) Len() int {
	return r.cache.Len()
}
