package store

import (
	"sync"

	"github.com/toolloop/toolloop/orchestrator"
)

// RunStore archives terminal runs so callers can fetch a conversation's
// outcome after the fact. The orchestration core never depends on a concrete
// persistence technology; wire a durable implementation here when one is
// needed.
type RunStore interface {
	// Save archives a snapshot of the run.
	Save(run *orchestrator.Run) error
	// Get returns an archived run or *NotFoundError.
	Get(runID string) (*orchestrator.Run, error)
	// List returns the ids of all archived runs.
	List() ([]string, error)
	// Delete removes an archived run. Deleting an unknown id is a no-op.
	Delete(runID string) error
}

// InMemoryStore is a volatile RunStore keeping runs in a process-local map.
// It is safe for concurrent access and best suited for tests or ephemeral
// demo servers. Each stored and returned run is cloned to prevent external
// mutation of internal state.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*orchestrator.Run
}

// NewInMemoryStore constructs an empty in-memory run store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[string]*orchestrator.Run)}
}

// Save stores a clone of the provided run snapshot.
func (s *InMemoryStore) Save(run *orchestrator.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run.Clone()
	return nil
}

// Get returns a clone of an archived run.
func (s *InMemoryStore) Get(runID string) (*orchestrator.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, &NotFoundError{RunID: runID}
	}
	return run.Clone(), nil
}

// List returns the ids of all archived runs in unspecified order.
func (s *InMemoryStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	return ids, nil
}

// Delete removes an archived run.
func (s *InMemoryStore) Delete(runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}
