package registry

import (
	"errors"
	"sync"

	"github.com/stemscribe/api/internal/model"
)

var (
	// ErrJobNotFound means no job exists under the requested id.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidState means the requested transition is not legal for the
	// job's current status.
	ErrInvalidState = errors.New("invalid job state")
)

// Registry is the in-memory job store. All reads return deep-enough copies
// that callers can't mutate registry state; all writes go through Update so
// each job has a single writer path.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

func New() *Registry {
	return &Registry{jobs: make(map[string]*model.Job)}
}

// Create stores a new job. The registry takes ownership of the value.
func (r *Registry) Create(job *model.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// Get returns a snapshot of the job.
func (r *Registry) Get(jobID string) (model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return model.Job{}, ErrJobNotFound
	}
	return snapshot(job), nil
}

// Update applies fn to the stored job under the write lock and returns the
// resulting snapshot. fn sees and mutates the live record.
func (r *Registry) Update(jobID string, fn func(*model.Job) error) (model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return model.Job{}, ErrJobNotFound
	}
	if err := fn(job); err != nil {
		return model.Job{}, err
	}
	return snapshot(job), nil
}

// SetProgress advances a job's progress, clamped monotonic: progress never
// moves backwards, and terminal jobs are frozen.
func (r *Registry) SetProgress(jobID string, progress int, message string) (model.Job, error) {
	return r.Update(jobID, func(job *model.Job) error {
		if job.Status == model.JobStatusCompleted || job.Status == model.JobStatusFailed {
			return nil
		}
		if progress > job.Progress {
			job.Progress = progress
		}
		if message != "" {
			job.Message = message
		}
		return nil
	})
}

// Delete removes a job that is not mid-processing. The caller is responsible
// for removing the job's files before dropping the registry entry.
func (r *Registry) Delete(jobID string, cleanup func(model.Job) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return ErrJobNotFound
	}
	if job.Status == model.JobStatusProcessing {
		return ErrInvalidState
	}
	if cleanup != nil {
		if err := cleanup(snapshot(job)); err != nil {
			return err
		}
	}
	delete(r.jobs, jobID)
	return nil
}

// List returns snapshots of all jobs, for diagnostics.
func (r *Registry) List() []model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, snapshot(job))
	}
	return out
}

// snapshot copies a job deeply enough that callers can't reach back into
// registry-owned state through slices or pointers.
func snapshot(job *model.Job) model.Job {
	cp := *job
	if job.Error != nil {
		e := *job.Error
		cp.Error = &e
	}
	if job.StartedAt != nil {
		t := *job.StartedAt
		cp.StartedAt = &t
	}
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		cp.CompletedAt = &t
	}
	if job.Outputs != nil {
		cp.Outputs = make([]model.StageArtifacts, len(job.Outputs))
		for i, sa := range job.Outputs {
			cp.Outputs[i] = model.StageArtifacts{Stage: sa.Stage, Paths: append([]string(nil), sa.Paths...)}
		}
	}
	if job.Result != nil {
		res := *job.Result
		res.Instruments = append([]model.InstrumentOutput(nil), job.Result.Instruments...)
		if job.Result.Stems != nil {
			res.Stems = make(map[model.StemKind]model.StemArtifact, len(job.Result.Stems))
			for k, v := range job.Result.Stems {
				res.Stems[k] = v
			}
		}
		cp.Result = &res
	}
	return cp
}
