package internal

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lychee-technology/appforge"
	"go.uber.org/zap"
)

// OrchestratorFactory builds the orchestrator for a new session id.
type OrchestratorFactory func(sessionID string) *Orchestrator

// SessionRegistry keeps one orchestrator per session id.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Orchestrator
	factory  OrchestratorFactory

	wg     sync.WaitGroup
	stopMu sync.Mutex
	stop   context.CancelFunc
}

func NewSessionRegistry(factory OrchestratorFactory) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*Orchestrator),
		factory:  factory,
	}
}

// Create starts a session with a fresh random id.
func (r *SessionRegistry) Create() *Orchestrator {
	id := uuid.NewString()
	o := r.factory(id)

	r.mu.Lock()
	r.sessions[id] = o
	r.mu.Unlock()

	zap.S().Debugw("session created", "session", id)
	return o
}

// Get returns the orchestrator for id, or a not found error.
func (r *SessionRegistry) Get(id string) (*Orchestrator, error) {
	r.mu.RLock()
	o, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, appforge.NewSessionNotFoundError(id)
	}
	return o, nil
}

// Delete resets the session's stored spec and forgets the session.
func (r *SessionRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	o, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return appforge.NewSessionNotFoundError(id)
	}
	return o.Reset(ctx)
}

// IDs returns the live session ids in sorted order.
func (r *SessionRegistry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return SortedKeys(r.sessions)
}

// EvictIdle forgets sessions idle for longer than ttl and returns their ids.
// Stored specs and builds are left in the store.
func (r *SessionRegistry) EvictIdle(ttl time.Duration, now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for id, o := range r.sessions {
		if now.Sub(o.LastActive()) > ttl {
			delete(r.sessions, id)
			evicted = append(evicted, id)
		}
	}
	sort.Strings(evicted)
	return evicted
}

// StartJanitor evicts idle sessions every interval until Close is called or
// ctx is cancelled. Calling it again replaces the running janitor.
func (r *SessionRegistry) StartJanitor(ctx context.Context, ttl, interval time.Duration) {
	r.stopJanitor()

	ctx, cancel := context.WithCancel(ctx)
	r.stopMu.Lock()
	r.stop = cancel
	r.stopMu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				if evicted := r.EvictIdle(ttl, now); len(evicted) > 0 {
					zap.S().Infow("evicted idle sessions", "count", len(evicted))
				}
			}
		}
	}()
}

func (r *SessionRegistry) stopJanitor() {
	r.stopMu.Lock()
	stop := r.stop
	r.stop = nil
	r.stopMu.Unlock()
	if stop != nil {
		stop()
	}
	r.wg.Wait()
}

// Close stops the janitor and waits for it to exit.
func (r *SessionRegistry) Close() {
	r.stopJanitor()
}
