package midi

import (
	"fmt"
	"sort"

	gomidi "gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
)

const percussionChannel = 9 // channel 10 in 1-based GM numbering

// Note is a single transcribed note with absolute tick timing.
type Note struct {
	Key      uint8
	Velocity uint8
	Channel  uint8
	Program  int // program active at note start; ProgramDrumKit on the percussion channel
	IsDrum   bool
	Start    uint32 // absolute ticks
	End      uint32
}

// TempoChange is a tempo event at an absolute tick position.
type TempoChange struct {
	Tick uint32
	BPM  float64
}

// Document is a parsed Standard MIDI File reduced to the note and tempo
// material the splitter needs.
type Document struct {
	Resolution smf.MetricTicks
	Tempos     []TempoChange
	Notes      []Note
}

// ReadDocument parses an SMF from disk.
func ReadDocument(path string) (*Document, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read midi file: %w", err)
	}

	res, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("unsupported time format %v in %s", s.TimeFormat, path)
	}

	doc := &Document{Resolution: res}

	for _, track := range s.Tracks {
		var abs uint32
		programs := map[uint8]int{}  // channel -> current program
		open := map[[2]uint8][]int{} // (channel, key) -> indices of pending note-ons

		for _, ev := range track {
			abs += ev.Delta

			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) {
				doc.Tempos = append(doc.Tempos, TempoChange{Tick: abs, BPM: bpm})
				continue
			}

			var ch, key, vel uint8
			switch {
			case ev.Message.GetProgramChange(&ch, &key):
				programs[ch] = int(key)

			case ev.Message.GetNoteStart(&ch, &key, &vel):
				n := Note{
					Key:      key,
					Velocity: vel,
					Channel:  ch,
					Program:  programs[ch],
					IsDrum:   ch == percussionChannel,
					Start:    abs,
				}
				if n.IsDrum {
					n.Program = ProgramDrumKit
				}
				doc.Notes = append(doc.Notes, n)
				k := [2]uint8{ch, key}
				open[k] = append(open[k], len(doc.Notes)-1)

			case ev.Message.GetNoteEnd(&ch, &key):
				k := [2]uint8{ch, key}
				if pending := open[k]; len(pending) > 0 {
					doc.Notes[pending[0]].End = abs
					open[k] = pending[1:]
				}
			}
		}

		// Close any notes left hanging at end of track.
		for _, pending := range open {
			for _, idx := range pending {
				doc.Notes[idx].End = abs
			}
		}
	}

	sort.SliceStable(doc.Tempos, func(i, j int) bool { return doc.Tempos[i].Tick < doc.Tempos[j].Tick })
	sort.SliceStable(doc.Notes, func(i, j int) bool { return doc.Notes[i].Start < doc.Notes[j].Start })

	return doc, nil
}

// TimeAt converts an absolute tick position to seconds using the document's
// tempo map. Defaults to 120 BPM before the first tempo event.
func (d *Document) TimeAt(tick uint32) float64 {
	bpm := 120.0
	var last uint32
	var elapsed float64
	for _, tc := range d.Tempos {
		if tc.Tick >= tick {
			break
		}
		elapsed += d.Resolution.Duration(bpm, tc.Tick-last).Seconds()
		last = tc.Tick
		bpm = tc.BPM
	}
	elapsed += d.Resolution.Duration(bpm, tick-last).Seconds()
	return elapsed
}

// writeInstrument writes a single-instrument SMF containing the given notes,
// carrying over the source tempo map so note timing is preserved exactly.
func writeInstrument(path string, desc Descriptor, notes []Note, tempos []TempoChange, res smf.MetricTicks) error {
	type event struct {
		tick  uint32
		order int // tempo < program < note-off < note-on at equal ticks
		msg   smf.Message
	}

	channel := uint8(0)
	if desc.IsDrum {
		channel = percussionChannel
	}

	events := make([]event, 0, len(notes)*2+len(tempos)+1)
	for _, tc := range tempos {
		events = append(events, event{tick: tc.Tick, order: 0, msg: smf.MetaTempo(tc.BPM)})
	}
	if !desc.IsDrum {
		events = append(events, event{tick: 0, order: 1, msg: smf.Message(gomidi.ProgramChange(channel, uint8(desc.Program)))})
	}
	for _, n := range notes {
		events = append(events, event{tick: n.Start, order: 3, msg: smf.Message(gomidi.NoteOn(channel, n.Key, n.Velocity))})
		events = append(events, event{tick: n.End, order: 2, msg: smf.Message(gomidi.NoteOff(channel, n.Key))})
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].order < events[j].order
	})

	out := smf.New()
	out.TimeFormat = res

	var tr smf.Track
	tr.Add(0, smf.MetaTrackSequenceName(desc.Name()))
	var prev uint32
	for _, ev := range events {
		tr.Add(ev.tick-prev, ev.msg)
		prev = ev.tick
	}
	tr.Close(0)
	if err := out.Add(tr); err != nil {
		return fmt.Errorf("assemble track: %w", err)
	}

	if err := out.WriteFile(path); err != nil {
		return fmt.Errorf("write midi file: %w", err)
	}
	return nil
}
