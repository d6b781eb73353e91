package model

// SongInfo holds advisory audio metadata for the source track.
type SongInfo struct {
	Filename       string    `json:"filename"`
	Duration       float64   `json:"duration"`
	Tempo          float64   `json:"tempo"`
	TotalBeats     int       `json:"totalBeats"`
	Beats          []float64 `json:"beats"`
	StemsSeparated int       `json:"stemsSeparated"`
}

// StemArtifact describes one separated stem's audio output.
type StemArtifact struct {
	Stem      StemKind `json:"stem"`
	AudioPath string   `json:"-"`
	AudioURL  string   `json:"audioUrl"`
	MidiPath  string   `json:"-"`
	MidiURL   string   `json:"midiUrl,omitempty"`
	Status    string   `json:"status"`
}

// MIDIArtifact references a produced MIDI file.
type MIDIArtifact struct {
	Filename string `json:"filename"`
	Path     string `json:"-"`
	URL      string `json:"url"`
}

// InstrumentOutput describes one per-instrument MIDI file produced by the
// splitter.
type InstrumentOutput struct {
	InstrumentName string   `json:"instrumentName"`
	Family         string   `json:"family"`
	Program        int      `json:"program"`
	IsDrum         bool     `json:"isDrum"`
	Stem           StemKind `json:"stem"`
	MidiFilename   string   `json:"midiFilename"`
	MidiPath       string   `json:"-"`
	MidiURL        string   `json:"midiUrl"`
	NoteCount      int      `json:"noteCount"`
	Duration       float64  `json:"duration"`
}

// ProcessingSummary describes which pipeline variant ran and what it found.
type ProcessingSummary struct {
	StemsProcessed   int          `json:"stemsProcessed"`
	TotalInstruments int          `json:"totalInstruments"`
	UniqueFamilies   []string     `json:"uniqueFamilies"`
	Pipeline         PipelineMode `json:"pipeline"`
	Separator        string       `json:"separator"`
	Model            string       `json:"model"`
}

// TranscriptionResult is the final result document for a completed job.
// Created empty at pipeline start, populated stage by stage, immutable once
// the job completes.
type TranscriptionResult struct {
	JobID       string                    `json:"jobId"`
	SongInfo    SongInfo                  `json:"songInfo"`
	Stems       map[StemKind]StemArtifact `json:"stems,omitempty"`
	FullmixMIDI *MIDIArtifact             `json:"fullmixMidi,omitempty"`
	Instruments []InstrumentOutput        `json:"instruments"`
	Summary     ProcessingSummary         `json:"processingSummary"`
}
