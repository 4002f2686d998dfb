package solver

import (
	"errors"
	"sync"
	"time"

	"github.com/skyanchor/skyanchor/pkg/models"
)

var (
	ErrJobNotFound  = errors.New("job not found")
	ErrDuplicateJob = errors.New("job already exists")
	// ErrAlreadyTerminal is returned when a second terminal state is
	// published for a job. Jobs transition out of processing exactly once.
	ErrAlreadyTerminal = errors.New("job already resolved")
)

// JobStore holds solver jobs. It is the sole source of truth for job state;
// implementations must be safe for concurrent use. Stored records are
// immutable: Resolve publishes a whole replacement snapshot, never a
// field-by-field mutation, so readers observe either the prior record or
// the fully terminal one.
type JobStore interface {
	Create(job *models.SolverJob) error
	Get(id string) (*models.SolverJob, error)
	Resolve(job *models.SolverJob) error
	List() []*models.SolverJob
	Delete(id string)
}

// MemoryJobStore implements JobStore with a mutex-guarded map. State is
// lost on process restart; that is an accepted property of the service,
// bounded by the janitor's retention sweep.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*models.SolverJob
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*models.SolverJob)}
}

func (s *MemoryJobStore) Create(job *models.SolverJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return ErrDuplicateJob
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryJobStore) Get(id string) (*models.SolverJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Resolve atomically replaces a processing job with its terminal snapshot.
func (s *MemoryJobStore) Resolve(job *models.SolverJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.jobs[job.ID]
	if !ok {
		return ErrJobNotFound
	}
	if current.Terminal() {
		return ErrAlreadyTerminal
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryJobStore) List() []*models.SolverJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.SolverJob, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, job)
	}
	return out
}

func (s *MemoryJobStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

// TerminalBefore returns jobs that reached a terminal state and whose
// submission is older than the cutoff. Used by the janitor.
func TerminalBefore(store JobStore, cutoff time.Time) []*models.SolverJob {
	var expired []*models.SolverJob
	for _, job := range store.List() {
		if job.Terminal() && job.StartTime.Before(cutoff) {
			expired = append(expired, job)
		}
	}
	return expired
}

// Compile-time check that MemoryJobStore implements JobStore.
var _ JobStore = (*MemoryJobStore)(nil)
