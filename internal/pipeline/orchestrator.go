package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/stemscribe/api/internal/client"
	"github.com/stemscribe/api/internal/midi"
	"github.com/stemscribe/api/internal/model"
	"github.com/stemscribe/api/internal/storage"
)

// ProgressFunc receives stage progress updates during a run. Implementations
// must tolerate repeated values; the orchestrator only guarantees the
// sequence is non-decreasing.
type ProgressFunc func(progress int, stage, message string)

// ArtifactsFunc receives the files a completed stage produced, in stage
// order.
type ArtifactsFunc func(stage string, paths []string)

// Options selects the pipeline variant for one run.
type Options struct {
	Mode                model.PipelineMode
	ConfidenceThreshold float64
	Progress            ProgressFunc
	Artifacts           ArtifactsFunc
}

// Orchestrator drives a job through the five pipeline stages. The inference
// gate serializes calls into the model sidecar across concurrent jobs; the
// models are memory-bound, so over-admitting them stalls the whole host.
type Orchestrator struct {
	engine client.InferenceEngine
	layout storage.Layout
	gate   chan struct{}
}

func New(engine client.InferenceEngine, layout storage.Layout, concurrency int) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		engine: engine,
		layout: layout,
		gate:   make(chan struct{}, concurrency),
	}
}

// transcribed pairs a produced MIDI document path with the stem whose program
// constraints apply to it.
type transcribed struct {
	path string
	stem model.StemKind
}

// Run executes the pipeline for a job and returns the assembled result.
// Stages run strictly in order and the first error aborts the run; progress
// reported up to that point stands.
func (o *Orchestrator) Run(ctx context.Context, job model.Job, opts Options) (*model.TranscriptionResult, error) {
	report := opts.Progress
	if report == nil {
		report = func(int, string, string) {}
	}
	record := opts.Artifacts
	if record == nil {
		record = func(string, []string) {}
	}

	if err := o.layout.EnsureJobTree(job.ID); err != nil {
		return nil, stageFailure(StageSeparating, model.ErrKindSeparationFailed, err)
	}

	result := &model.TranscriptionResult{
		JobID:       job.ID,
		Instruments: []model.InstrumentOutput{},
		Summary: model.ProcessingSummary{
			Pipeline: opts.Mode,
		},
	}

	// Stage 1: separating (0 -> 30)
	stems, err := o.separate(ctx, job, opts.Mode, result, report)
	if err != nil {
		return nil, err
	}
	record(StageSeparating, stemPaths(stems))
	report(targetFor(StageSeparating), StageSeparating, "separation complete")

	// Stage 2: transcribing (30 -> 70)
	docs, err := o.transcribe(ctx, job, opts, stems, result, report)
	if err != nil {
		return nil, err
	}
	record(StageTranscribe, docPaths(docs))
	report(targetFor(StageTranscribe), StageTranscribe, "transcription complete")

	// Stage 3: splitting (70 -> 85)
	if err := o.split(job, docs, result); err != nil {
		return nil, err
	}
	record(StageSplitting, instrumentPaths(result.Instruments))
	report(targetFor(StageSplitting), StageSplitting,
		fmt.Sprintf("%d instruments extracted", len(result.Instruments)))

	// Stage 4: extracting_metadata (85 -> 95). Advisory only: analysis
	// failure never fails a job that already has MIDI.
	o.analyze(ctx, job, result)
	report(targetFor(StageMetadata), StageMetadata, "metadata extracted")

	// Stage 5: assembling (95 -> 100)
	if err := o.assemble(job, result); err != nil {
		return nil, err
	}
	record(StageAssembling, instrumentPaths(result.Instruments))
	report(targetFor(StageAssembling), StageAssembling, "transcription complete")

	return result, nil
}

func (o *Orchestrator) separate(ctx context.Context, job model.Job, mode model.PipelineMode, result *model.TranscriptionResult, report ProgressFunc) (map[model.StemKind]string, error) {
	if mode == model.PipelineDirect {
		log.Printf("[pipeline] job %s: direct mode, skipping separation", job.ID)
		return nil, nil
	}

	report(startFor(StageSeparating)+5, StageSeparating, "separating stems")

	resp, err := withGate(ctx, o.gate, func() (*client.SeparateResponse, error) {
		return o.engine.Separate(ctx, &client.SeparateRequest{
			InputPath: job.SourcePath,
			OutputDir: o.layout.StemsDir(job.ID),
		})
	})
	if err != nil {
		return nil, stageFailure(StageSeparating, model.ErrKindSeparationFailed, err)
	}

	stems := make(map[model.StemKind]string, len(resp.Stems))
	result.Stems = make(map[model.StemKind]model.StemArtifact, len(resp.Stems))
	for _, kind := range model.SeparatedStems {
		path, ok := resp.Stems[string(kind)]
		if !ok {
			return nil, stageFailure(StageSeparating, model.ErrKindSeparationFailed,
				fmt.Errorf("separator returned no %s stem", kind))
		}
		stems[kind] = path
		result.Stems[kind] = model.StemArtifact{
			Stem:      kind,
			AudioPath: path,
			AudioURL:  fileURL(filepath.Base(path)),
			Status:    "separated",
		}
	}
	result.Summary.Separator = resp.Separator
	result.Summary.StemsProcessed = len(stems)
	return stems, nil
}

func (o *Orchestrator) transcribe(ctx context.Context, job model.Job, opts Options, stems map[model.StemKind]string, result *model.TranscriptionResult, report ProgressFunc) ([]transcribed, error) {
	start := startFor(StageTranscribe)
	span := targetFor(StageTranscribe) - start
	midiDir := o.layout.MidiDir(job.ID)

	transcribeOne := func(input, output string) (*client.TranscribeResponse, error) {
		return withGate(ctx, o.gate, func() (*client.TranscribeResponse, error) {
			return o.engine.Transcribe(ctx, &client.TranscribeRequest{
				InputPath:           input,
				OutputPath:          output,
				ConfidenceThreshold: opts.ConfidenceThreshold,
			})
		})
	}

	if opts.Mode == model.PipelineStems {
		docs := make([]transcribed, 0, len(model.SeparatedStems))
		for i, kind := range model.SeparatedStems {
			report(start+span*i/len(model.SeparatedStems), StageTranscribe,
				fmt.Sprintf("transcribing %s", kind))
			out := filepath.Join(midiDir, string(kind)+".mid")
			resp, err := transcribeOne(stems[kind], out)
			if err != nil {
				return nil, stageFailure(StageTranscribe, model.ErrKindTranscriptionFailed,
					fmt.Errorf("stem %s: %w", kind, err))
			}
			result.Summary.Model = resp.Model
			if art, ok := result.Stems[kind]; ok {
				art.MidiPath = resp.MidiPath
				art.MidiURL = fileURL(filepath.Base(resp.MidiPath))
				art.Status = "transcribed"
				result.Stems[kind] = art
			}
			docs = append(docs, transcribed{path: resp.MidiPath, stem: kind})
		}
		return docs, nil
	}

	// Hybrid and direct modes transcribe the full mix once.
	report(start+5, StageTranscribe, "transcribing full mix")
	out := filepath.Join(midiDir, "full_mix.mid")
	resp, err := transcribeOne(job.SourcePath, out)
	if err != nil {
		return nil, stageFailure(StageTranscribe, model.ErrKindTranscriptionFailed, err)
	}
	result.Summary.Model = resp.Model
	result.FullmixMIDI = &model.MIDIArtifact{
		Filename: filepath.Base(resp.MidiPath),
		Path:     resp.MidiPath,
	}
	return []transcribed{{path: resp.MidiPath, stem: model.StemFull}}, nil
}

func (o *Orchestrator) split(job model.Job, docs []transcribed, result *model.TranscriptionResult) error {
	instDir := o.layout.InstrumentsDir(job.ID)
	for _, t := range docs {
		doc, err := midi.ReadDocument(t.path)
		if err != nil {
			return stageFailure(StageSplitting, model.ErrKindTranscriptionFailed, err)
		}
		outputs, err := midi.Split(doc, t.stem, instDir)
		if err != nil {
			kind := model.ErrKindTranscriptionFailed
			if errors.Is(err, midi.ErrInvalidProgram) {
				kind = model.ErrKindInvalidProgram
			}
			return stageFailure(StageSplitting, kind, err)
		}
		result.Instruments = append(result.Instruments, outputs...)
	}
	result.Summary.TotalInstruments = len(result.Instruments)
	return nil
}

func (o *Orchestrator) analyze(ctx context.Context, job model.Job, result *model.TranscriptionResult) {
	resp, err := withGate(ctx, o.gate, func() (*client.AnalyzeResponse, error) {
		return o.engine.Analyze(ctx, &client.AnalyzeRequest{InputPath: job.SourcePath})
	})
	if err != nil {
		log.Printf("[pipeline] job %s: audio analysis failed: %v", job.ID, err)
		resp = &client.AnalyzeResponse{}
	}
	result.SongInfo = model.SongInfo{
		Filename:       job.Filename,
		Duration:       sanitizeFloat(resp.Duration),
		Tempo:          sanitizeFloat(resp.Tempo),
		TotalBeats:     resp.TotalBeats,
		Beats:          sanitizeFloats(resp.Beats),
		StemsSeparated: result.Summary.StemsProcessed,
	}
}

// assemble publishes final artifacts into the flat outputs directory under
// job-prefixed names and rewrites the result to reference them.
func (o *Orchestrator) assemble(job model.Job, result *model.TranscriptionResult) error {
	publish := func(src string) (string, string, error) {
		name := job.ID + "_" + filepath.Base(src)
		dst := filepath.Join(o.layout.OutputsDir, name)
		if err := copyFile(src, dst); err != nil {
			return "", "", err
		}
		return name, dst, nil
	}

	for i := range result.Instruments {
		name, dst, err := publish(result.Instruments[i].MidiPath)
		if err != nil {
			return stageFailure(StageAssembling, model.ErrKindArtifactNotFound, err)
		}
		result.Instruments[i].MidiFilename = name
		result.Instruments[i].MidiPath = dst
		result.Instruments[i].MidiURL = fileURL(name)
	}

	if result.FullmixMIDI != nil {
		name, dst, err := publish(result.FullmixMIDI.Path)
		if err != nil {
			return stageFailure(StageAssembling, model.ErrKindArtifactNotFound, err)
		}
		result.FullmixMIDI = &model.MIDIArtifact{Filename: name, Path: dst, URL: fileURL(name)}
	}

	result.Summary.UniqueFamilies = uniqueFamilies(result.Instruments)
	return nil
}

func withGate[T any](ctx context.Context, gate chan struct{}, fn func() (T, error)) (T, error) {
	var zero T
	select {
	case gate <- struct{}{}:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	defer func() { <-gate }()
	return fn()
}

func stemPaths(stems map[model.StemKind]string) []string {
	paths := make([]string, 0, len(stems))
	for _, kind := range model.SeparatedStems {
		if p, ok := stems[kind]; ok {
			paths = append(paths, p)
		}
	}
	return paths
}

func docPaths(docs []transcribed) []string {
	paths := make([]string, 0, len(docs))
	for _, d := range docs {
		paths = append(paths, d.path)
	}
	return paths
}

func instrumentPaths(instruments []model.InstrumentOutput) []string {
	paths := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		paths = append(paths, inst.MidiPath)
	}
	return paths
}

func uniqueFamilies(instruments []model.InstrumentOutput) []string {
	seen := map[string]struct{}{}
	for _, inst := range instruments {
		seen[inst.Family] = struct{}{}
	}
	families := make([]string, 0, len(seen))
	for f := range seen {
		families = append(families, f)
	}
	sort.Strings(families)
	return families
}

// sanitizeFloat replaces NaN and infinities with zero so the value survives
// JSON encoding.
func sanitizeFloat(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func sanitizeFloats(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = sanitizeFloat(v)
	}
	return out
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	return out.Close()
}

func fileURL(name string) string {
	return "/files/" + name
}
