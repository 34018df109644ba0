package jobs

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

var ErrDuplicateID = errors.New("job id already exists")
var ErrNotFound = errors.New("job not found")
var ErrInvalidTransition = errors.New("invalid job state transition")

// Store is the in-memory job registry. All transitions happen atomically
// under one mutex, so a reader never sees a half-updated job.
//
// Jobs are never evicted: history grows for the life of the process. With
// no persistence across restarts this is an accepted limitation, not a
// hidden one.
type Store struct {
	log *zap.Logger

	mu   sync.Mutex
	jobs map[string]*Job
}

func NewStore(parentLogger *zap.Logger) *Store {
	return &Store{
		log:  parentLogger.Named("job_store"),
		jobs: make(map[string]*Job),
	}
}

// Create registers a new pending job under id.
func (s *Store) Create(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; ok {
		return Job{}, ErrDuplicateID
	}

	job := &Job{
		ID:        id,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	s.jobs[id] = job

	s.log.With(zap.String("job_id", id)).Debug("job created")
	return *job, nil
}

// Get returns a snapshot of the job.
func (s *Store) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrNotFound
	}
	return *job, nil
}

// MarkProcessing moves a pending job to processing. Only the runner calls
// this, exactly once per job.
func (s *Store) MarkProcessing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status != StatusPending {
		return ErrInvalidTransition
	}

	job.Status = StatusProcessing
	return nil
}

// Complete moves a non-terminal job to completed with its result.
func (s *Store) Complete(id string, result *Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrInvalidTransition
	}

	now := time.Now()
	job.Status = StatusCompleted
	job.CompletedAt = &now
	job.Result = result

	s.log.With(zap.String("job_id", id)).Debug("job completed")
	return nil
}

// Fail moves a non-terminal job to failed with a human-readable message.
// Failing a still-pending job is allowed: submission can fail before the
// runner ever picks the job up.
func (s *Store) Fail(id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return ErrNotFound
	}
	if job.Status.Terminal() {
		return ErrInvalidTransition
	}

	now := time.Now()
	job.Status = StatusFailed
	job.CompletedAt = &now
	job.Error = message

	s.log.With(zap.String("job_id", id), zap.String("job_error", message)).Debug("job failed")
	return nil
}
