package internal

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/lychee-technology/appforge"
)

// MemorySpecStore keeps specs and builds in process memory. Values are
// stored as JSON so callers never share mutable state with the store.
type MemorySpecStore struct {
	mu     sync.RWMutex
	specs  map[string][]byte
	builds map[string][]memoryBuild
	ids    *BuildIDSource
	now    func() time.Time
}

type memoryBuild struct {
	id        string
	result    []byte
	createdAt time.Time
}

var _ appforge.SpecStore = (*MemorySpecStore)(nil)

func NewMemorySpecStore() *MemorySpecStore {
	return &MemorySpecStore{
		specs:  make(map[string][]byte),
		builds: make(map[string][]memoryBuild),
		ids:    NewBuildIDSource(),
		now:    time.Now,
	}
}

func (s *MemorySpecStore) SaveSpec(ctx context.Context, sessionID string, spec *appforge.Specification) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return appforge.NewStorageError("failed to encode specification", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specs[sessionID] = data
	return nil
}

func (s *MemorySpecStore) LoadSpec(ctx context.Context, sessionID string) (*appforge.Specification, error) {
	s.mu.RLock()
	data, ok := s.specs[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, appforge.NewSpecNotFoundError(sessionID)
	}
	var spec appforge.Specification
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, appforge.NewStorageError("failed to decode specification", err)
	}
	return &spec, nil
}

func (s *MemorySpecStore) DeleteSpec(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.specs, sessionID)
	return nil
}

func (s *MemorySpecStore) SaveBuild(ctx context.Context, sessionID string, result *appforge.BuildResult) (*appforge.BuildRecord, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, appforge.NewStorageError("failed to encode build result", err)
	}
	createdAt := s.now().UTC()
	id := s.ids.Next(createdAt)

	s.mu.Lock()
	s.builds[sessionID] = append(s.builds[sessionID], memoryBuild{id: id, result: data, createdAt: createdAt})
	s.mu.Unlock()

	return &appforge.BuildRecord{ID: id, SessionID: sessionID, Result: result, CreatedAt: createdAt}, nil
}

func (s *MemorySpecStore) LatestBuild(ctx context.Context, sessionID string) (*appforge.BuildRecord, error) {
	s.mu.RLock()
	history := s.builds[sessionID]
	if len(history) == 0 {
		s.mu.RUnlock()
		return nil, appforge.NewBuildNotFoundError(sessionID)
	}
	latest := history[len(history)-1]
	s.mu.RUnlock()

	var result appforge.BuildResult
	if err := json.Unmarshal(latest.result, &result); err != nil {
		return nil, appforge.NewStorageError("failed to decode build result", err)
	}
	return &appforge.BuildRecord{ID: latest.id, SessionID: sessionID, Result: &result, CreatedAt: latest.createdAt}, nil
}
