package model

import "time"

// UploadResponse is returned after a successful audio upload.
type UploadResponse struct {
	JobID     string    `json:"jobId"`
	Message   string    `json:"message"`
	Filename  string    `json:"filename"`
	FileSize  int64     `json:"fileSize"`
	CreatedAt time.Time `json:"createdAt"`
}

// TranscribeRequest carries optional transcription parameters.
type TranscribeRequest struct {
	Mode                PipelineMode `json:"mode,omitempty" validate:"omitempty,oneof=hybrid stems direct"`
	ConfidenceThreshold float64      `json:"confidenceThreshold" validate:"gte=0,lte=1"`
}

// TranscribeResponse acknowledges an enqueued transcription job.
type TranscribeResponse struct {
	JobID   string    `json:"jobId"`
	Status  JobStatus `json:"status"`
	Message string    `json:"message"`
}

// StatusResponse reports job progress.
type StatusResponse struct {
	JobID    string    `json:"jobId"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	Message  string    `json:"message,omitempty"`
	Error    *JobError `json:"error,omitempty"`
}

// DeleteResponse acknowledges job deletion.
type DeleteResponse struct {
	JobID   string `json:"jobId"`
	Message string `json:"message"`
}
