package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stemscribe/api/internal/model"
	"github.com/stemscribe/api/internal/pipeline"
	"github.com/stemscribe/api/internal/registry"
	"github.com/stemscribe/api/internal/websocket"
)

// TranscribeWorker processes transcription jobs
type TranscribeWorker struct {
	registry     *registry.Registry
	orchestrator *pipeline.Orchestrator
	hub          *websocket.Hub
}

// NewTranscribeWorker creates a new transcription worker
func NewTranscribeWorker(reg *registry.Registry, orchestrator *pipeline.Orchestrator, hub *websocket.Hub) *TranscribeWorker {
	return &TranscribeWorker{
		registry:     reg,
		orchestrator: orchestrator,
		hub:          hub,
	}
}

// ProcessTask handles transcription task processing
func (w *TranscribeWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload model.TranscribeJobPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	jobID := payload.JobID
	log.Printf("Starting transcription job: %s (mode=%s)", jobID, payload.Mode)

	job, err := w.registry.Update(jobID, func(j *model.Job) error {
		j.Status = model.JobStatusProcessing
		j.Message = "processing"
		now := time.Now()
		j.StartedAt = &now
		return nil
	})
	if err != nil {
		if errors.Is(err, registry.ErrJobNotFound) {
			// Job was deleted between enqueue and pickup; nothing to do.
			log.Printf("Transcription job %s no longer exists, dropping task", jobID)
			return nil
		}
		return err
	}

	opts := pipeline.Options{
		Mode:                payload.Mode,
		ConfidenceThreshold: payload.ConfidenceThreshold,
		Progress: func(progress int, stage, message string) {
			snapshot, err := w.registry.SetProgress(jobID, progress, message)
			if err != nil {
				log.Printf("Failed to update progress for job %s: %v", jobID, err)
				return
			}
			w.hub.BroadcastProgress(jobID, snapshot.Progress, snapshot.Status, message)
		},
		Artifacts: func(stage string, paths []string) {
			if _, err := w.registry.Update(jobID, func(j *model.Job) error {
				j.Outputs = append(j.Outputs, model.StageArtifacts{Stage: stage, Paths: paths})
				return nil
			}); err != nil {
				log.Printf("Failed to record %s artifacts for job %s: %v", stage, jobID, err)
			}
		},
	}

	result, err := w.orchestrator.Run(ctx, job, opts)
	if err != nil {
		w.failJob(jobID, err)
		return err
	}

	completed, err := w.registry.Update(jobID, func(j *model.Job) error {
		j.Status = model.JobStatusCompleted
		j.Progress = 100
		j.Message = "completed"
		j.Result = result
		now := time.Now()
		j.CompletedAt = &now
		return nil
	})
	if err != nil {
		return err
	}

	w.hub.BroadcastComplete(jobID, completed.Result)
	log.Printf("Transcription job %s completed: %d instruments", jobID, len(result.Instruments))
	return nil
}

// failJob records the failure and pins job progress at the value of the last
// stage that completed before the failing one.
func (w *TranscribeWorker) failJob(jobID string, cause error) {
	jobErr := model.JobError{
		Kind:    model.ErrKindTranscriptionFailed,
		Message: cause.Error(),
	}
	var stageErr *pipeline.StageError
	if errors.As(cause, &stageErr) {
		jobErr.Kind = stageErr.Kind
	}

	if _, err := w.registry.Update(jobID, func(j *model.Job) error {
		j.Status = model.JobStatusFailed
		j.Message = jobErr.Message
		j.Error = &jobErr
		if stageErr != nil {
			j.Progress = stageErr.PriorProgress()
		}
		now := time.Now()
		j.CompletedAt = &now
		return nil
	}); err != nil {
		log.Printf("Failed to mark job %s as failed: %v", jobID, err)
	}

	w.hub.BroadcastError(jobID, jobErr)
	log.Printf("Transcription job %s failed: %v", jobID, cause)
}
