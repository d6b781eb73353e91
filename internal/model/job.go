package model

import "time"

// Job represents a transcription job in the system
type Job struct {
	ID          string               `json:"id"`
	Status      JobStatus            `json:"status"`
	Progress    int                  `json:"progress"`
	Message     string               `json:"message,omitempty"`
	Filename    string               `json:"filename"`
	SourcePath  string               `json:"-"` // owned by the job until deletion
	FileSize    int64                `json:"fileSize"`
	Outputs     []StageArtifacts     `json:"-"`
	Error       *JobError            `json:"error,omitempty"`
	Result      *TranscriptionResult `json:"-"`
	CreatedAt   time.Time            `json:"createdAt"`
	StartedAt   *time.Time           `json:"startedAt,omitempty"`
	CompletedAt *time.Time           `json:"completedAt,omitempty"`
}

// JobError carries the kind and message of the first fatal stage error.
type JobError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// StageArtifacts records the files a pipeline stage produced, in stage order.
type StageArtifacts struct {
	Stage string   `json:"stage"`
	Paths []string `json:"paths"`
}

// TranscribeJobPayload is the Asynq task payload for a transcription job.
type TranscribeJobPayload struct {
	JobID               string       `json:"jobId"`
	Mode                PipelineMode `json:"mode"`
	ConfidenceThreshold float64      `json:"confidenceThreshold"`
}
