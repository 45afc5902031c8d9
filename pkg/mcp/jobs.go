package mcp

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Sriram-PR/site-indexer/pkg/pipeline"
)

// JobStatus represents the current state of a background job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobKind names what a job runs
type JobKind string

const (
	JobKindRun    JobKind = "run"    // Full pipeline
	JobKindNotify JobKind = "notify" // Search engine notification only
)

// Job represents a background pipeline job
type Job struct {
	ID             string    `json:"id"`
	SiteKey        string    `json:"site_key"`
	Kind           JobKind   `json:"kind"`
	Status         JobStatus `json:"status"`
	StartedAt      time.Time `json:"started_at"`
	CompletedAt    time.Time `json:"completed_at,omitempty"`
	URLCount       int       `json:"url_count"`
	Verdict        string    `json:"verdict,omitempty"`
	IndexingStatus string    `json:"indexing_status,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`

	ctx    context.Context
	cancel context.CancelFunc
}

func (j *Job) active() bool {
	return j.Status == JobStatusPending || j.Status == JobStatusRunning
}

// JobManager tracks background jobs. At most one job per site is active.
type JobManager struct {
	jobs   map[string]*Job
	mu     sync.RWMutex
	bysite map[string]string // siteKey -> jobID for active jobs
}

// NewJobManager creates a new job manager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:   make(map[string]*Job),
		bysite: make(map[string]string),
	}
}

// CreateJob creates a pending job for a site. When the site already has an active job,
// that job is returned with created == false.
func (m *JobManager) CreateJob(siteKey string, kind JobKind) (job *Job, created bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existingJobID, exists := m.bysite[siteKey]; exists {
		if existing := m.jobs[existingJobID]; existing != nil && existing.active() {
			return existing, false
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	job = &Job{
		ID:        uuid.New().String(),
		SiteKey:   siteKey,
		Kind:      kind,
		Status:    JobStatusPending,
		StartedAt: time.Now(),
		ctx:       ctx,
		cancel:    cancel,
	}
	m.jobs[job.ID] = job
	m.bysite[siteKey] = job.ID
	return job, true
}

// GetJob returns a snapshot of a job by ID, or nil
func (m *JobManager) GetJob(jobID string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if job, ok := m.jobs[jobID]; ok {
		snapshot := *job
		return &snapshot
	}
	return nil
}

// GetJobBySite returns a snapshot of the site's active job, or nil
func (m *JobManager) GetJobBySite(siteKey string) *Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.bysite[siteKey]; exists {
		if job := m.jobs[jobID]; job != nil {
			snapshot := *job
			return &snapshot
		}
	}
	return nil
}

// IsRunning checks if a job is currently active for a site
func (m *JobManager) IsRunning(siteKey string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if jobID, exists := m.bysite[siteKey]; exists {
		job := m.jobs[jobID]
		return job != nil && job.active()
	}
	return false
}

// UpdateStatus updates the status of a job. Terminal statuses free the site for a new job.
func (m *JobManager) UpdateStatus(jobID string, status JobStatus, errorMsg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, exists := m.jobs[jobID]
	if !exists || job.Status == JobStatusCancelled {
		return
	}
	job.Status = status
	if !job.active() {
		job.CompletedAt = time.Now()
		delete(m.bysite, job.SiteKey)
		job.cancel()
	}
	if errorMsg != "" {
		job.ErrorMessage = errorMsg
	}
}

// Finish records a pipeline result and moves the job to its terminal status
func (m *JobManager) Finish(jobID string, r pipeline.SiteResult) {
	m.mu.Lock()
	if job, exists := m.jobs[jobID]; exists {
		job.URLCount = r.URLCount
		if r.Validation != nil {
			job.Verdict = r.Validation.Verdict
		}
		if r.Submission != nil {
			job.IndexingStatus = r.Submission.IndexingStatus
		}
	}
	m.mu.Unlock()

	switch {
	case r.Error == nil:
		m.UpdateStatus(jobID, JobStatusCompleted, "")
	case errors.Is(r.Error, context.Canceled):
		m.UpdateStatus(jobID, JobStatusCancelled, "")
	default:
		m.UpdateStatus(jobID, JobStatusFailed, r.Error.Error())
	}
}

// CancelJob cancels an active job
func (m *JobManager) CancelJob(jobID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if job, exists := m.jobs[jobID]; exists && job.active() {
		job.cancel()
		job.Status = JobStatusCancelled
		job.CompletedAt = time.Now()
		delete(m.bysite, job.SiteKey)
		return true
	}
	return false
}

// CancelAll cancels all active jobs
func (m *JobManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, job := range m.jobs {
		if job.active() {
			job.cancel()
			job.Status = JobStatusCancelled
			job.CompletedAt = time.Now()
		}
	}
	m.bysite = make(map[string]string)
}

// ListJobs returns snapshots of all jobs
func (m *JobManager) ListJobs() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	return jobs
}

// GetContext returns the context a job runs under
func (m *JobManager) GetContext(jobID string) context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if job, exists := m.jobs[jobID]; exists {
		return job.ctx
	}
	return context.Background()
}
