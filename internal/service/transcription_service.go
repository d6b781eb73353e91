package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/stemscribe/api/internal/config"
	"github.com/stemscribe/api/internal/model"
	"github.com/stemscribe/api/internal/registry"
	"github.com/stemscribe/api/internal/storage"
)

const TaskTypeTranscribe = "transcribe:process"

var (
	// ErrUnsupportedFormat means the uploaded file's extension is not accepted.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrFileTooLarge means the upload exceeds the configured size cap.
	ErrFileTooLarge = errors.New("file too large")
)

// TaskEnqueuer is the slice of the asynq client the service needs to queue
// pipeline work.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TranscriptionService manages the job lifecycle: upload, queueing, status,
// results and deletion.
type TranscriptionService struct {
	registry    *registry.Registry
	layout      storage.Layout
	resolver    *storage.Resolver
	asynqClient TaskEnqueuer
	maxSize     int64
	extensions  map[string]bool
	defaults    config.PipelineConfig
}

func NewTranscriptionService(reg *registry.Registry, layout storage.Layout, resolver *storage.Resolver, asynqClient TaskEnqueuer, cfg *config.Config) *TranscriptionService {
	exts := make(map[string]bool, len(cfg.Upload.Extensions))
	for _, ext := range cfg.Upload.Extensions {
		exts[strings.ToLower(ext)] = true
	}
	return &TranscriptionService{
		registry:    reg,
		layout:      layout,
		resolver:    resolver,
		asynqClient: asynqClient,
		maxSize:     int64(cfg.Upload.MaxSizeMB) << 20,
		extensions:  exts,
		defaults:    cfg.Pipeline,
	}
}

// Upload stores an audio file and registers a new job for it.
func (s *TranscriptionService) Upload(ctx context.Context, fileHeader *multipart.FileHeader) (*model.UploadResponse, error) {
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !s.extensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
	if fileHeader.Size > s.maxSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFileTooLarge, fileHeader.Size)
	}

	jobID := uuid.New().String()
	if err := s.layout.EnsureJobTree(jobID); err != nil {
		return nil, fmt.Errorf("failed to create job storage: %w", err)
	}

	filename := filepath.Base(fileHeader.Filename)
	destPath := filepath.Join(s.layout.JobDir(jobID), filename)
	if err := saveMultipartFile(fileHeader, destPath); err != nil {
		_ = s.layout.RemoveJobTree(jobID)
		return nil, fmt.Errorf("failed to save upload: %w", err)
	}

	now := time.Now()
	job := &model.Job{
		ID:         jobID,
		Status:     model.JobStatusUploaded,
		Progress:   0,
		Filename:   filename,
		SourcePath: destPath,
		FileSize:   fileHeader.Size,
		CreatedAt:  now,
	}
	s.registry.Create(job)

	return &model.UploadResponse{
		JobID:     jobID,
		Message:   "File uploaded successfully",
		Filename:  filename,
		FileSize:  fileHeader.Size,
		CreatedAt: now,
	}, nil
}

// StartTranscription queues the processing pipeline for an uploaded job.
func (s *TranscriptionService) StartTranscription(ctx context.Context, jobID string, req *model.TranscribeRequest) (*model.TranscribeResponse, error) {
	mode := model.PipelineMode(s.defaults.DefaultMode)
	confidence := s.defaults.ConfidenceThreshold
	if req != nil {
		if req.Mode != "" {
			mode = req.Mode
		}
		if req.ConfidenceThreshold > 0 {
			confidence = req.ConfidenceThreshold
		}
	}
	if !validMode(mode) {
		return nil, fmt.Errorf("%w: unknown pipeline mode %q", registry.ErrInvalidState, mode)
	}

	payload, err := json.Marshal(&model.TranscribeJobPayload{
		JobID:               jobID,
		Mode:                mode,
		ConfidenceThreshold: confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	// The status check and the transition to processing happen under one
	// registry lock so concurrent starts cannot both claim the job.
	// Re-running a failed or completed job starts from a clean slate.
	updated, err := s.registry.Update(jobID, func(j *model.Job) error {
		if j.Status == model.JobStatusProcessing {
			return fmt.Errorf("%w: job is already processing", registry.ErrInvalidState)
		}
		j.Status = model.JobStatusProcessing
		j.Progress = 0
		j.Message = "queued"
		j.Error = nil
		j.Result = nil
		j.StartedAt = nil
		j.CompletedAt = nil
		return nil
	})
	if err != nil {
		return nil, err
	}

	task := asynq.NewTask(TaskTypeTranscribe, payload)
	_, err = s.asynqClient.Enqueue(task,
		asynq.Queue("transcribe"),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		// No worker will ever pick the job up; roll it back out of
		// processing so it can be retried or deleted.
		_, _ = s.registry.Update(jobID, func(j *model.Job) error {
			j.Status = model.JobStatusFailed
			j.Message = "failed to queue transcription"
			j.Error = &model.JobError{
				Kind:    model.ErrKindTranscriptionFailed,
				Message: err.Error(),
			}
			return nil
		})
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return &model.TranscribeResponse{
		JobID:   jobID,
		Status:  updated.Status,
		Message: "Transcription started",
	}, nil
}

// ListJobs returns status summaries for every known job, newest first.
func (s *TranscriptionService) ListJobs() []model.StatusResponse {
	jobs := s.registry.List()
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	out := make([]model.StatusResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, model.StatusResponse{
			JobID:    job.ID,
			Status:   job.Status,
			Progress: job.Progress,
			Message:  job.Message,
			Error:    job.Error,
		})
	}
	return out
}

// GetStatus returns the current status of a job.
func (s *TranscriptionService) GetStatus(jobID string) (*model.StatusResponse, error) {
	job, err := s.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	return &model.StatusResponse{
		JobID:    job.ID,
		Status:   job.Status,
		Progress: job.Progress,
		Message:  job.Message,
		Error:    job.Error,
	}, nil
}

// GetResult returns the result document of a completed job.
func (s *TranscriptionService) GetResult(jobID string) (*model.TranscriptionResult, error) {
	job, err := s.registry.Get(jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != model.JobStatusCompleted || job.Result == nil {
		return nil, fmt.Errorf("%w: job is %s", registry.ErrInvalidState, job.Status)
	}
	return job.Result, nil
}

// Delete removes a job and everything stored for it. Jobs that are mid
// pipeline cannot be deleted.
func (s *TranscriptionService) Delete(jobID string) error {
	return s.registry.Delete(jobID, func(job model.Job) error {
		if err := s.layout.RemoveJobTree(job.ID); err != nil {
			return err
		}
		// Published artifacts carry the job id prefix in outputs.
		matches, err := filepath.Glob(filepath.Join(s.layout.OutputsDir, job.ID+"_*"))
		if err != nil {
			return err
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				return err
			}
		}
		return nil
	})
}

// ResolveFile locates a stored artifact by filename for download.
func (s *TranscriptionService) ResolveFile(filename string) (string, error) {
	return s.resolver.Resolve(filename)
}

func validMode(mode model.PipelineMode) bool {
	for _, m := range model.ValidPipelineModes {
		if m == mode {
			return true
		}
	}
	return false
}

func saveMultipartFile(fileHeader *multipart.FileHeader, dest string) error {
	src, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return err
	}
	return out.Close()
}
