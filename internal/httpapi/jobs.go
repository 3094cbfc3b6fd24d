package httpapi

import (
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// JobStatus is a coarse indexing-job lifecycle state for GET /jobs.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job tracks one in-flight or finished collection indexing run, enough
// for the admin surface to report progress without polling the
// Collection Manager's internal state machine directly.
type Job struct {
	ID         string    `json:"id"`
	Collection string    `json:"collection"`
	Status     JobStatus `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	FilesDone  int32     `json:"files_done"`
	Error      string    `json:"error,omitempty"`
}

// JobTracker records indexing jobs in memory for the admin /jobs
// endpoint. It does not persist across restarts; a restarted server
// simply reports no running jobs, which is accurate.
type JobTracker struct {
	mu     sync.RWMutex
	jobs   map[string]*Job
	nextID atomic.Int64
}

func NewJobTracker() *JobTracker {
	return &JobTracker{jobs: make(map[string]*Job)}
}

// Start registers a new running job and returns its id.
func (t *JobTracker) Start(collection string) string {
	id := t.nextID.Add(1)
	job := &Job{
		ID:         formatJobID(id),
		Collection: collection,
		Status:     JobRunning,
		StartedAt:  time.Now(),
	}
	t.mu.Lock()
	t.jobs[job.ID] = job
	t.mu.Unlock()
	return job.ID
}

// Progress sets the file-done counter for a running job to filesDone.
func (t *JobTracker) Progress(id string, filesDone int) {
	t.mu.RLock()
	job, ok := t.jobs[id]
	t.mu.RUnlock()
	if ok {
		atomic.StoreInt32(&job.FilesDone, int32(filesDone))
	}
}

// Finish marks a job Completed or Failed depending on err.
func (t *JobTracker) Finish(id string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	job, ok := t.jobs[id]
	if !ok {
		return
	}
	job.FinishedAt = time.Now()
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
		return
	}
	job.Status = JobCompleted
}

// List returns every tracked job, running jobs first, most recently
// started within each bucket first.
func (t *JobTracker) List() []*Job {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Job, 0, len(t.jobs))
	for _, j := range t.jobs {
		out = append(out, j)
	}
	sortJobs(out)
	return out
}

func sortJobs(jobs []*Job) {
	for i := 1; i < len(jobs); i++ {
		for j := i; j > 0 && jobLess(jobs[j], jobs[j-1]); j-- {
			jobs[j], jobs[j-1] = jobs[j-1], jobs[j]
		}
	}
}

func jobLess(a, b *Job) bool {
	aRunning := a.Status == JobRunning
	bRunning := b.Status == JobRunning
	if aRunning != bRunning {
		return aRunning
	}
	return a.StartedAt.After(b.StartedAt)
}

func formatJobID(n int64) string {
	return "job-" + strconv.FormatInt(n, 10)
}
