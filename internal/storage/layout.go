package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout fixes the on-disk directory scheme: one tree per job under the
// uploads root, plus a flat outputs directory for final artifacts.
//
//	uploads/{jobID}/             original upload
//	uploads/{jobID}/stems/       separated stem audio
//	uploads/{jobID}/midi/        per-stem and full-mix MIDI
//	uploads/{jobID}/instruments/ split per-instrument MIDI
//	outputs/                     flat, served directly
type Layout struct {
	UploadsDir string
	OutputsDir string
}

// NewLayout creates the two roots if missing.
func NewLayout(uploadsDir, outputsDir string) (Layout, error) {
	l := Layout{UploadsDir: uploadsDir, OutputsDir: outputsDir}
	for _, dir := range []string{uploadsDir, outputsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return Layout{}, fmt.Errorf("create storage root %s: %w", dir, err)
		}
	}
	return l, nil
}

func (l Layout) JobDir(jobID string) string {
	return filepath.Join(l.UploadsDir, jobID)
}

func (l Layout) StemsDir(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "stems")
}

func (l Layout) MidiDir(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "midi")
}

func (l Layout) InstrumentsDir(jobID string) string {
	return filepath.Join(l.JobDir(jobID), "instruments")
}

// EnsureJobTree creates the full per-job directory tree.
func (l Layout) EnsureJobTree(jobID string) error {
	for _, dir := range []string{l.StemsDir(jobID), l.MidiDir(jobID), l.InstrumentsDir(jobID)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create job dir %s: %w", dir, err)
		}
	}
	return nil
}

// RemoveJobTree deletes everything stored for a job.
func (l Layout) RemoveJobTree(jobID string) error {
	if jobID == "" {
		return fmt.Errorf("empty job id")
	}
	if err := os.RemoveAll(l.JobDir(jobID)); err != nil {
		return fmt.Errorf("remove job dir: %w", err)
	}
	return nil
}
