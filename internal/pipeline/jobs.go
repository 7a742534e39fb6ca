package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/docsift/internal/report"
)

// JobStatus represents the state of a collection job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusExtracting JobStatus = "extracting"
	StatusRanking    JobStatus = "ranking"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks the state of one queued collection run.
type Job struct {
	mu sync.Mutex

	ID          string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Persona     string    `json:"persona"`
	JobToBeDone string    `json:"job_to_be_done"`
	Documents   []string  `json:"documents"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	files  MemLoader
	report *report.Report
	errors []string
}

// Progress tracks processing progress.
type Progress struct {
	DocumentsTotal     int      `json:"documents_total"`
	DocumentsProcessed int      `json:"documents_processed"`
	DocumentsOmitted   int      `json:"documents_omitted"`
	Sections           int      `json:"sections"`
	Errors             []string `json:"errors"`
}

// NewJob creates a queued job over uploaded files. Documents are ranked in
// the order given by names.
func NewJob(id, persona, job string, names []string, files MemLoader) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		Status:      StatusQueued,
		Phase:       "queued",
		Persona:     persona,
		JobToBeDone: job,
		Documents:   names,
		Progress:    Progress{DocumentsTotal: len(names)},
		CreatedAt:   now,
		UpdatedAt:   now,
		files:       files,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if now.Sub(job.updatedAt()) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// DocumentDone records one finished extraction.
func (j *Job) DocumentDone(failed bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.DocumentsProcessed++
	if failed {
		j.Progress.DocumentsOmitted++
	}
	j.UpdatedAt = time.Now()
}

// SetSections records how many sections were segmented.
func (j *Job) SetSections(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.Sections = n
	j.UpdatedAt = time.Now()
}

// Complete stores the finished report and marks the job completed.
func (j *Job) Complete(r *report.Report) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.report = r
	j.files = nil
	j.Status = StatusCompleted
	j.Phase = "done"
	j.UpdatedAt = time.Now()
}

// Report returns the finished report, or nil while the job is still running
// or after it failed.
func (j *Job) Report() *report.Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.report
}

// Files returns the uploaded documents.
func (j *Job) Files() MemLoader {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.files
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Persona     string    `json:"persona"`
	JobToBeDone string    `json:"job_to_be_done"`
	Documents   []string  `json:"documents"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	docs := append([]string{}, j.Documents...)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:          j.ID,
		Status:      j.Status,
		Phase:       j.Phase,
		Persona:     j.Persona,
		JobToBeDone: j.JobToBeDone,
		Documents:   docs,
		Progress:    p,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
