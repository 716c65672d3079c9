package registry

import (
	"fmt"
	"sync"

	"github.com/bulkwave/bulkwave/internal/domain"
)

// JobRegistry is the shared jobId -> job map queried by the status
// path. In-memory by default; the interface keeps it swappable for a
// distributed store without touching the job manager.
type JobRegistry interface {
	Register(job *domain.BulkJob) error
	Get(jobID string) (*domain.BulkJob, error)
	Count() int
}

// MemoryRegistry is a mutex-guarded in-process registry. Jobs are kept
// for the process lifetime; there is no persistence across restarts.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*domain.BulkJob
}

var _ JobRegistry = (*MemoryRegistry)(nil)

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		jobs: make(map[string]*domain.BulkJob),
	}
}

func (r *MemoryRegistry) Register(job *domain.BulkJob) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("%w: job with id is required", domain.ErrValidation)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return fmt.Errorf("%w: job %q already registered", domain.ErrConflict, job.ID)
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *MemoryRegistry) Get(jobID string) (*domain.BulkJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %q", domain.ErrNotFound, jobID)
	}
	return job, nil
}

func (r *MemoryRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
