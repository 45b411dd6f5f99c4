package cache

import (
	"fmt"
	"sort"
	"sync"
	"time"

	faststock "github.com/OMCHOKSI108/faststock-go"
)

// JobStatus is the lifecycle state of a fetch job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks one asynchronous option-chain fetch
type Job struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Expiry    time.Time `json:"expiry"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobRegistry is an in-memory registry of fetch jobs. Jobs are not
// persisted; a restart forgets them, which matches their advisory role.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	seq  int64

	// retain caps how many finished jobs stay queryable
	retain int
}

// NewJobRegistry creates a job registry keeping at most retain finished
// jobs. retain <= 0 defaults to 256.
func NewJobRegistry(retain int) *JobRegistry {
	if retain <= 0 {
		retain = 256
	}
	return &JobRegistry{
		jobs:   make(map[string]*Job),
		retain: retain,
	}
}

// Create registers a new pending job
func (r *JobRegistry) Create(symbol string, expiry time.Time) Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	now := time.Now().UTC()
	job := &Job{
		ID:        fmt.Sprintf("job-%d-%d", now.Unix(), r.seq),
		Symbol:    symbol,
		Expiry:    expiry,
		Status:    JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.jobs[job.ID] = job
	r.evictLocked()
	return *job
}

// Get returns a job by ID
func (r *JobRegistry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, faststock.ErrJobNotFound)
	}
	return *job, nil
}

// List returns all jobs, newest first
func (r *JobRegistry) List() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// MarkRunning transitions a job to running
func (r *JobRegistry) MarkRunning(id string) error {
	return r.update(id, JobRunning, "")
}

// MarkCompleted transitions a job to completed
func (r *JobRegistry) MarkCompleted(id string) error {
	return r.update(id, JobCompleted, "")
}

// MarkFailed transitions a job to failed with its error message
func (r *JobRegistry) MarkFailed(id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.update(id, JobFailed, msg)
}

func (r *JobRegistry) update(id string, status JobStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, faststock.ErrJobNotFound)
	}
	job.Status = status
	job.Error = errMsg
	job.UpdatedAt = time.Now().UTC()
	return nil
}

// evictLocked drops the oldest finished jobs beyond the retention cap.
// Pending and running jobs are never evicted.
func (r *JobRegistry) evictLocked() {
	if len(r.jobs) <= r.retain {
		return
	}

	finished := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if job.Status == JobCompleted || job.Status == JobFailed {
			finished = append(finished, job)
		}
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].CreatedAt.Before(finished[j].CreatedAt)
	})

	excess := len(r.jobs) - r.retain
	for i := 0; i < excess && i < len(finished); i++ {
		delete(r.jobs, finished[i].ID)
	}
}
