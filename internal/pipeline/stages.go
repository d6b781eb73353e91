package pipeline

import (
	"fmt"

	"github.com/stemscribe/api/internal/model"
)

// Stage names, in execution order.
const (
	StageSeparating = "separating"
	StageTranscribe = "transcribing"
	StageSplitting  = "splitting"
	StageMetadata   = "extracting_metadata"
	StageAssembling = "assembling"
)

// stageTargets maps each stage to the job progress reached when it completes.
// Progress within a stage interpolates between the previous target and this
// one; a failed stage leaves progress frozen wherever it got to.
var stageTargets = []struct {
	Name   string
	Target int
}{
	{StageSeparating, 30},
	{StageTranscribe, 70},
	{StageSplitting, 85},
	{StageMetadata, 95},
	{StageAssembling, 100},
}

// targetFor returns the completion progress for a stage name.
func targetFor(stage string) int {
	for _, s := range stageTargets {
		if s.Name == stage {
			return s.Target
		}
	}
	return 0
}

// startFor returns the progress a stage begins at.
func startFor(stage string) int {
	prev := 0
	for _, s := range stageTargets {
		if s.Name == stage {
			return prev
		}
		prev = s.Target
	}
	return 0
}

// StageError ties a failure to the stage that produced it and the error kind
// recorded on the job.
type StageError struct {
	Stage string
	Kind  model.ErrorKind
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// PriorProgress returns the progress value of the last stage that completed
// before the failing one. Intra-stage reports may have advanced past it; a
// failed job rewinds to this value.
func (e *StageError) PriorProgress() int { return startFor(e.Stage) }

func stageFailure(stage string, kind model.ErrorKind, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Err: err}
}
