package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/bulkwave/bulkwave/internal/domain"
)

func newJob(id string) *domain.BulkJob {
	in := domain.SubmitBulkJobInput{
		OwnerID:    "owner-1",
		Recipients: []string{"905551112233"},
	}
	in.Normalize()
	return domain.NewBulkJob(id, in, time.Now())
}

func TestMemoryRegistryRegisterAndGet(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	job := newJob("job-1")

	if err := r.Register(job); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}

	got, err := r.Get("job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != job {
		t.Fatal("Get() should return the registered job")
	}
}

func TestMemoryRegistryDuplicateConflicts(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	if err := r.Register(newJob("job-1")); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := r.Register(newJob("job-1")); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Register() duplicate error = %v, want ErrConflict", err)
	}
}

func TestMemoryRegistryMissingJob(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	if _, err := r.Get("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryRegistryRejectsInvalidJobs(t *testing.T) {
	t.Parallel()

	r := NewMemoryRegistry()
	if err := r.Register(nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Register(nil) error = %v, want ErrValidation", err)
	}
	if err := r.Register(newJob("")); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("Register(no id) error = %v, want ErrValidation", err)
	}
}
