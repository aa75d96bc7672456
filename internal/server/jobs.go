package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Job statuses.
const (
	jobRunning   = "running"
	jobCompleted = "completed"
	jobFailed    = "failed"
)

// Job tracks a background run. ResultID points at the stored
// investigation or merge once the job completes.
type Job struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	ResultID  string    `json:"result_id,omitempty"`
	Error     string    `json:"error,omitempty"`
	Warnings  []string  `json:"warnings,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type jobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

func newJobRegistry() *jobRegistry {
	return &jobRegistry{jobs: map[string]Job{}}
}

func (r *jobRegistry) create(kind string) Job {
	now := time.Now().UTC()
	j := Job{ID: uuid.NewString(), Kind: kind, Status: jobRunning, CreatedAt: now, UpdatedAt: now}
	r.mu.Lock()
	r.jobs[j.ID] = j
	r.mu.Unlock()
	return j
}

func (r *jobRegistry) complete(id, resultID string, warnings []string) {
	r.update(id, func(j *Job) {
		j.Status = jobCompleted
		j.ResultID = resultID
		j.Warnings = warnings
	})
}

func (r *jobRegistry) fail(id, msg string) {
	r.update(id, func(j *Job) {
		j.Status = jobFailed
		j.Error = msg
	})
}

func (r *jobRegistry) update(id string, fn func(*Job)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return
	}
	fn(&j)
	j.UpdatedAt = time.Now().UTC()
	r.jobs[id] = j
}

func (r *jobRegistry) get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	return j, ok
}
