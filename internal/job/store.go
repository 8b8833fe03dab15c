package job

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown job ids, including ids whose results
// have already been taken.
var ErrNotFound = errors.New("job not found")

// Store is the in-memory job table. RWMutex suits the access pattern: many
// concurrent status polls against a single writer per job.
type Store struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*Job
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		jobs: make(map[uuid.UUID]*Job),
	}
}

// Create allocates a new processing job and returns a snapshot of it.
func (s *Store) Create() Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &Job{
		ID:      uuid.New(),
		Status:  StatusProcessing,
		Message: "Already started.",
	}
	s.jobs[j.ID] = j
	return j.snapshot()
}

// Get returns a consistent snapshot of the job for polling.
func (s *Store) Get(id uuid.UUID) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return j.snapshot(), nil
}

// TakeResults returns the accumulated results and removes the job atomically.
// The read is destructive: a second call with the same id reports ErrNotFound.
func (s *Store) TakeResults(id uuid.UUID) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.jobs, id)
	return j.Results, nil
}

// Update applies a mutation under the write lock. The batch runner that owns
// the job is the sole caller for a given id.
func (s *Store) Update(id uuid.UUID, mutate func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	mutate(j)
	return nil
}
