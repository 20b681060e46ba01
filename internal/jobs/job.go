// Package jobs runs long operations, such as model training, on a bounded
// worker pool and tracks their status.
package jobs

import (
	"errors"
	"maps"
	"time"
)

// Status represents the status of a job
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

var (
	ErrQueueFull      = errors.New("job queue is full")
	ErrQueueStopped   = errors.New("job queue is stopped")
	ErrJobNotFound    = errors.New("job not found")
	ErrJobExists      = errors.New("job already exists")
	ErrNotCancellable = errors.New("job cannot be cancelled")
)

// Job represents an async job
type Job struct {
	ID          string            `json:"id"`
	Kind        string            `json:"kind"`
	Status      Status            `json:"status"`
	Progress    int               `json:"progress"`
	Message     string            `json:"message,omitempty"`
	Error       string            `json:"error,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
	Result      any               `json:"result,omitempty"`
	TraceID     string            `json:"trace_id,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Clone returns a copy that shares no maps or time pointers with j.
func (j *Job) Clone() *Job {
	c := *j
	c.Params = maps.Clone(j.Params)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Filter selects jobs in List.
type Filter struct {
	Status Status
	Kind   string
	Since  time.Time
	Limit  int
}

func (f Filter) match(j *Job) bool {
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	if f.Kind != "" && j.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && j.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}
