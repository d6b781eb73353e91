package midi

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/stemscribe/api/internal/model"
)

// Split partitions a document's notes by instrument, corrects each group
// against the stem's allowed program range, and writes one SMF per surviving
// instrument into outDir. Groups that correct to the same descriptor are
// merged. Returns one InstrumentOutput per written file, melodic instruments
// first in program order, drums last. An empty document yields no outputs.
func Split(doc *Document, stem model.StemKind, outDir string) ([]model.InstrumentOutput, error) {
	if doc == nil || len(doc.Notes) == 0 {
		return nil, nil
	}

	groups := map[Descriptor][]Note{}
	for _, n := range doc.Notes {
		d := Correct(Descriptor{Program: n.Program, IsDrum: n.IsDrum}, stem)
		groups[d] = append(groups[d], n)
	}

	descs := make([]Descriptor, 0, len(groups))
	for d := range groups {
		descs = append(descs, d)
	}
	sort.Slice(descs, func(i, j int) bool {
		if descs[i].IsDrum != descs[j].IsDrum {
			return !descs[i].IsDrum
		}
		return descs[i].Program < descs[j].Program
	})

	outputs := make([]model.InstrumentOutput, 0, len(descs))
	for _, d := range descs {
		notes := groups[d]
		sort.SliceStable(notes, func(i, j int) bool { return notes[i].Start < notes[j].Start })

		filename := instrumentFilename(d, stem)
		path := filepath.Join(outDir, filename)
		if err := writeInstrument(path, d, notes, doc.Tempos, doc.Resolution); err != nil {
			return nil, fmt.Errorf("split %s: %w", d.Name(), err)
		}

		var lastEnd uint32
		for _, n := range notes {
			if n.End > lastEnd {
				lastEnd = n.End
			}
		}

		outputs = append(outputs, model.InstrumentOutput{
			InstrumentName: d.Name(),
			Family:         string(d.Family()),
			Program:        d.Program,
			IsDrum:         d.IsDrum,
			Stem:           stem,
			MidiFilename:   filename,
			MidiPath:       path,
			NoteCount:      len(notes),
			Duration:       doc.TimeAt(lastEnd),
		})
	}
	return outputs, nil
}

// instrumentFilename builds the per-instrument output filename. Stem-specific
// documents get a stem prefix so the same instrument appearing in two stems
// produces distinct files.
func instrumentFilename(d Descriptor, stem model.StemKind) string {
	name := FileStem(d.Name()) + ".mid"
	if stem != model.StemFull {
		name = string(stem) + "_" + name
	}
	return name
}
