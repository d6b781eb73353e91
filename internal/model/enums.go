package model

// Job status
type JobStatus string

const (
	JobStatusUploaded   JobStatus = "uploaded"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Stem kinds produced by source separation. StemFull marks audio that was
// never separated (direct mode, or the full-mix MIDI in hybrid mode).
type StemKind string

const (
	StemBass   StemKind = "bass"
	StemDrums  StemKind = "drums"
	StemOther  StemKind = "other"
	StemVocals StemKind = "vocals"
	StemFull   StemKind = "full"
)

// SeparatedStems lists the stems a 4-stem separator produces, in the order
// results are reported.
var SeparatedStems = []StemKind{StemBass, StemDrums, StemOther, StemVocals}

// Pipeline modes
type PipelineMode string

const (
	// PipelineHybrid separates stems for playback but transcribes the full
	// mix once and splits that single MIDI document.
	PipelineHybrid PipelineMode = "hybrid"
	// PipelineStems transcribes each separated stem individually and splits
	// each stem's MIDI under that stem's program constraints.
	PipelineStems PipelineMode = "stems"
	// PipelineDirect skips separation entirely.
	PipelineDirect PipelineMode = "direct"
)

var ValidPipelineModes = []PipelineMode{PipelineHybrid, PipelineStems, PipelineDirect}

// Error kinds recorded on failed jobs and surfaced by status queries.
type ErrorKind string

const (
	ErrKindSeparationFailed    ErrorKind = "SEPARATION_FAILED"
	ErrKindTranscriptionFailed ErrorKind = "TRANSCRIPTION_FAILED"
	ErrKindInvalidProgram      ErrorKind = "INVALID_PROGRAM"
	ErrKindArtifactNotFound    ErrorKind = "ARTIFACT_NOT_FOUND"
	ErrKindJobNotFound         ErrorKind = "JOB_NOT_FOUND"
	ErrKindInvalidState        ErrorKind = "INVALID_STATE"
)
