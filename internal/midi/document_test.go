package midi

import (
	"math"
	"path/filepath"
	"testing"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

// Only channel 9 (channel 10 in 1-based GM numbering) carries percussion;
// every other channel, including adjacent channel 8, is melodic.
func TestReadDocumentPercussionChannel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mix.mid")

	s := smf.New()
	var tr smf.Track
	tr.Add(0, smf.Message(gomidi.ProgramChange(8, 52)))
	tr.Add(0, smf.Message(gomidi.NoteOn(8, 60, 100)))
	tr.Add(0, smf.Message(gomidi.NoteOn(9, 38, 90)))
	tr.Add(480, smf.Message(gomidi.NoteOff(8, 60)))
	tr.Add(0, smf.Message(gomidi.NoteOff(9, 38)))
	tr.Close(0)
	if err := s.Add(tr); err != nil {
		t.Fatalf("Add track failed: %v", err)
	}
	if err := s.WriteFile(path); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	doc, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument failed: %v", err)
	}
	if len(doc.Notes) != 2 {
		t.Fatalf("notes = %d, want 2", len(doc.Notes))
	}
	for _, n := range doc.Notes {
		switch n.Channel {
		case 9:
			if !n.IsDrum || n.Program != ProgramDrumKit {
				t.Errorf("channel 9 note not classified as drums: %+v", n)
			}
		case 8:
			if n.IsDrum || n.Program != 52 {
				t.Errorf("channel 8 note misclassified: %+v", n)
			}
		default:
			t.Errorf("unexpected channel %d", n.Channel)
		}
	}
}

func TestWriteInstrumentDrumsOnChannelTen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drums.mid")
	notes := []Note{{Key: 38, Velocity: 90, Start: 0, End: 480}}
	desc := Descriptor{Program: ProgramDrumKit, IsDrum: true}
	if err := writeInstrument(path, desc, notes, nil, smf.MetricTicks(960)); err != nil {
		t.Fatalf("writeInstrument failed: %v", err)
	}

	doc, err := ReadDocument(path)
	if err != nil {
		t.Fatalf("ReadDocument failed: %v", err)
	}
	if len(doc.Notes) != 1 {
		t.Fatalf("notes = %d, want 1", len(doc.Notes))
	}
	if doc.Notes[0].Channel != 9 {
		t.Errorf("drum note on channel %d, want 9", doc.Notes[0].Channel)
	}
	if !doc.Notes[0].IsDrum || doc.Notes[0].Program != ProgramDrumKit {
		t.Errorf("drum note = %+v", doc.Notes[0])
	}
}

func TestTimeAtDefaultTempo(t *testing.T) {
	doc := &Document{Resolution: smf.MetricTicks(960)}

	// 120 BPM default: one quarter note (960 ticks) is half a second.
	if got := doc.TimeAt(960); !almostEqual(got, 0.5) {
		t.Errorf("TimeAt(960) = %v, want 0.5", got)
	}
	if got := doc.TimeAt(0); !almostEqual(got, 0) {
		t.Errorf("TimeAt(0) = %v, want 0", got)
	}
}

func TestTimeAtWithTempoChanges(t *testing.T) {
	doc := &Document{
		Resolution: smf.MetricTicks(960),
		Tempos: []TempoChange{
			{Tick: 0, BPM: 120},
			{Tick: 960, BPM: 60},
		},
	}

	// First quarter at 120 BPM (0.5s), second quarter at 60 BPM (1.0s).
	if got := doc.TimeAt(1920); !almostEqual(got, 1.5) {
		t.Errorf("TimeAt(1920) = %v, want 1.5", got)
	}
	if got := doc.TimeAt(960); !almostEqual(got, 0.5) {
		t.Errorf("TimeAt(960) = %v, want 0.5", got)
	}
}

func TestTimeAtFractionalTempo(t *testing.T) {
	doc := &Document{
		Resolution: smf.MetricTicks(480),
		Tempos:     []TempoChange{{Tick: 0, BPM: 92.3}},
	}

	// 89 beats at 92.3 BPM.
	want := 89.0 * 60.0 / 92.3
	got := doc.TimeAt(uint32(89 * 480))
	if math.Abs(got-want) > 1e-3 {
		t.Errorf("TimeAt(89 beats) = %v, want %v", got, want)
	}
}
