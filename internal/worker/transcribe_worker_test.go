package worker

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/stemscribe/api/internal/client"
	"github.com/stemscribe/api/internal/model"
	"github.com/stemscribe/api/internal/pipeline"
	"github.com/stemscribe/api/internal/registry"
	"github.com/stemscribe/api/internal/service"
	"github.com/stemscribe/api/internal/storage"
	"github.com/stemscribe/api/internal/websocket"
)

// brokenEngine fails at a chosen stage so worker failure handling can be
// observed end to end.
type brokenEngine struct {
	separateErr   error
	transcribeErr error
}

func (e *brokenEngine) Separate(ctx context.Context, req *client.SeparateRequest) (*client.SeparateResponse, error) {
	if e.separateErr != nil {
		return nil, e.separateErr
	}
	stems := map[string]string{}
	for _, kind := range model.SeparatedStems {
		stems[string(kind)] = filepath.Join(req.OutputDir, string(kind)+".wav")
	}
	return &client.SeparateResponse{Stems: stems, Separator: "demucs"}, nil
}

func (e *brokenEngine) Transcribe(ctx context.Context, req *client.TranscribeRequest) (*client.TranscribeResponse, error) {
	return nil, e.transcribeErr
}

func (e *brokenEngine) Analyze(ctx context.Context, req *client.AnalyzeRequest) (*client.AnalyzeResponse, error) {
	return &client.AnalyzeResponse{}, nil
}

func (e *brokenEngine) HealthCheck(ctx context.Context) error { return nil }

func setupWorker(t *testing.T, engine client.InferenceEngine) (*TranscribeWorker, *registry.Registry, string) {
	t.Helper()
	base := t.TempDir()
	layout, err := storage.NewLayout(filepath.Join(base, "uploads"), filepath.Join(base, "outputs"))
	if err != nil {
		t.Fatalf("NewLayout failed: %v", err)
	}

	reg := registry.New()
	jobID := "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	reg.Create(&model.Job{
		ID:         jobID,
		Status:     model.JobStatusUploaded,
		Filename:   "song.wav",
		SourcePath: filepath.Join(layout.UploadsDir, "song.wav"),
		CreatedAt:  time.Now(),
	})

	orch := pipeline.New(engine, layout, 1)
	return NewTranscribeWorker(reg, orch, websocket.NewHub()), reg, jobID
}

func transcribeTask(t *testing.T, jobID string) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(&model.TranscribeJobPayload{JobID: jobID, Mode: model.PipelineHybrid})
	if err != nil {
		t.Fatalf("marshal payload failed: %v", err)
	}
	return asynq.NewTask(service.TaskTypeTranscribe, payload)
}

// A transcription failure must leave progress exactly at separation's 30, not
// wherever the in-stage reports had pushed it.
func TestProcessTaskTranscriptionFailureRewindsProgress(t *testing.T) {
	engine := &brokenEngine{transcribeErr: errors.New("oom")}
	w, reg, jobID := setupWorker(t, engine)

	if err := w.ProcessTask(context.Background(), transcribeTask(t, jobID)); err == nil {
		t.Fatal("ProcessTask should fail")
	}

	job, err := reg.Get(jobID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Errorf("status = %q, want failed", job.Status)
	}
	if job.Progress != 30 {
		t.Errorf("progress = %d, want 30", job.Progress)
	}
	if job.Error == nil || job.Error.Kind != model.ErrKindTranscriptionFailed {
		t.Errorf("error = %+v, want transcription failure", job.Error)
	}
}

func TestProcessTaskSeparationFailureRewindsProgress(t *testing.T) {
	engine := &brokenEngine{separateErr: errors.New("model crashed")}
	w, reg, jobID := setupWorker(t, engine)

	if err := w.ProcessTask(context.Background(), transcribeTask(t, jobID)); err == nil {
		t.Fatal("ProcessTask should fail")
	}

	job, err := reg.Get(jobID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if job.Status != model.JobStatusFailed {
		t.Errorf("status = %q, want failed", job.Status)
	}
	if job.Progress != 0 {
		t.Errorf("progress = %d, want 0", job.Progress)
	}
	if job.Error == nil || job.Error.Kind != model.ErrKindSeparationFailed {
		t.Errorf("error = %+v, want separation failure", job.Error)
	}
}

func TestProcessTaskDroppedJobIsIgnored(t *testing.T) {
	engine := &brokenEngine{}
	w, _, _ := setupWorker(t, engine)

	if err := w.ProcessTask(context.Background(), transcribeTask(t, "gone")); err != nil {
		t.Errorf("ProcessTask on a deleted job = %v, want nil", err)
	}
}
