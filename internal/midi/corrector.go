package midi

import (
	"errors"

	"github.com/stemscribe/api/internal/model"
)

// ErrInvalidProgram marks a malformed instrument descriptor.
var ErrInvalidProgram = errors.New("invalid program")

// Descriptor identifies an instrument by GM program, drum flag and the stem
// it was detected in.
type Descriptor struct {
	Program int
	IsDrum  bool
}

// Name returns the canonical GM instrument name for the descriptor.
func (d Descriptor) Name() string {
	if d.IsDrum {
		return InstrumentName(ProgramDrumKit)
	}
	return InstrumentName(d.Program)
}

// Family returns the descriptor's instrument family.
func (d Descriptor) Family() Family {
	if d.IsDrum {
		return FamilyDrums
	}
	return FamilyOf(d.Program)
}

// Correct enforces the stem's allowed program range on a descriptor.
//
// The transcription model may assign an implausible program to audio that
// separation already proved to be, say, bass-only content; correction trades
// fidelity to the raw model output for plausibility guaranteed by the
// separation stage. Total and deterministic: every input yields exactly one
// output, and Correct(Correct(d, s), s) == Correct(d, s).
func Correct(d Descriptor, stem model.StemKind) Descriptor {
	if stem == model.StemDrums {
		return Descriptor{Program: ProgramDrumKit, IsDrum: true}
	}

	allowed := AllowedPrograms(stem)
	if allowed.Unrestricted() {
		return d
	}

	// A drum track inside a melodic stem is itself a violation; snap it to
	// the stem's canonical program rather than dropping its notes.
	if d.IsDrum || !allowed.Contains(d.Program) {
		return Descriptor{Program: DefaultProgram(stem)}
	}
	return d
}
