package midi

import (
	"fmt"
	"strings"

	"github.com/stemscribe/api/internal/model"
)

// ProgramDrumKit is the sentinel program for tracks mapped to the GM
// percussion channel rather than a melodic program.
const ProgramDrumKit = -1

// Family is a coarse GM instrument category.
type Family string

const (
	FamilyPiano        Family = "Piano"
	FamilyChromatic    Family = "Chromatic Percussion"
	FamilyOrgan        Family = "Organ"
	FamilyGuitar       Family = "Guitar"
	FamilyBass         Family = "Bass"
	FamilyStrings      Family = "Strings"
	FamilyEnsemble     Family = "Ensemble"
	FamilyBrass        Family = "Brass"
	FamilyReed         Family = "Reed"
	FamilyPipe         Family = "Pipe"
	FamilySynthLead    Family = "Synth Lead"
	FamilySynthPad     Family = "Synth Pad"
	FamilySynthFX      Family = "Synth Effects"
	FamilyEthnic       Family = "Ethnic"
	FamilyPercussive   Family = "Percussive"
	FamilySoundFX      Family = "Sound Effects"
	FamilyDrums        Family = "Drums"
)

// GM Level 1 family boundaries: contiguous 8-program blocks covering 0-127.
var families = [16]Family{
	FamilyPiano, FamilyChromatic, FamilyOrgan, FamilyGuitar,
	FamilyBass, FamilyStrings, FamilyEnsemble, FamilyBrass,
	FamilyReed, FamilyPipe, FamilySynthLead, FamilySynthPad,
	FamilySynthFX, FamilyEthnic, FamilyPercussive, FamilySoundFX,
}

// FamilyOf maps a GM program to its family. Total over 0-127 plus the drum
// sentinel; out-of-range values are clamped.
func FamilyOf(program int) Family {
	if program == ProgramDrumKit {
		return FamilyDrums
	}
	if program < 0 {
		program = 0
	}
	if program > 127 {
		program = 127
	}
	return families[program/8]
}

// ValidateProgram rejects values outside the GM program space.
func ValidateProgram(program int) error {
	if program == ProgramDrumKit {
		return nil
	}
	if program < 0 || program > 127 {
		return fmt.Errorf("%w: program %d outside 0-127", ErrInvalidProgram, program)
	}
	return nil
}

// instrumentNames is the GM Level 1 program-to-name table.
var instrumentNames = [128]string{
	"Acoustic Grand Piano", "Bright Acoustic Piano", "Electric Grand Piano", "Honky-tonk Piano",
	"Electric Piano 1", "Electric Piano 2", "Harpsichord", "Clavinet",
	"Celesta", "Glockenspiel", "Music Box", "Vibraphone",
	"Marimba", "Xylophone", "Tubular Bells", "Dulcimer",
	"Drawbar Organ", "Percussive Organ", "Rock Organ", "Church Organ",
	"Reed Organ", "Accordion", "Harmonica", "Tango Accordion",
	"Acoustic Guitar (nylon)", "Acoustic Guitar (steel)", "Electric Guitar (jazz)", "Electric Guitar (clean)",
	"Electric Guitar (muted)", "Overdriven Guitar", "Distortion Guitar", "Guitar Harmonics",
	"Acoustic Bass", "Electric Bass (finger)", "Electric Bass (pick)", "Fretless Bass",
	"Slap Bass 1", "Slap Bass 2", "Synth Bass 1", "Synth Bass 2",
	"Violin", "Viola", "Cello", "Contrabass",
	"Tremolo Strings", "Pizzicato Strings", "Orchestral Harp", "Timpani",
	"String Ensemble 1", "String Ensemble 2", "Synth Strings 1", "Synth Strings 2",
	"Choir Aahs", "Voice Oohs", "Synth Voice", "Orchestra Hit",
	"Trumpet", "Trombone", "Tuba", "Muted Trumpet",
	"French Horn", "Brass Section", "Synth Brass 1", "Synth Brass 2",
	"Soprano Sax", "Alto Sax", "Tenor Sax", "Baritone Sax",
	"Oboe", "English Horn", "Bassoon", "Clarinet",
	"Piccolo", "Flute", "Recorder", "Pan Flute",
	"Blown Bottle", "Shakuhachi", "Whistle", "Ocarina",
	"Lead 1 (square)", "Lead 2 (sawtooth)", "Lead 3 (calliope)", "Lead 4 (chiff)",
	"Lead 5 (charang)", "Lead 6 (voice)", "Lead 7 (fifths)", "Lead 8 (bass + lead)",
	"Pad 1 (new age)", "Pad 2 (warm)", "Pad 3 (polysynth)", "Pad 4 (choir)",
	"Pad 5 (bowed)", "Pad 6 (metallic)", "Pad 7 (halo)", "Pad 8 (sweep)",
	"FX 1 (rain)", "FX 2 (soundtrack)", "FX 3 (crystal)", "FX 4 (atmosphere)",
	"FX 5 (brightness)", "FX 6 (goblins)", "FX 7 (echoes)", "FX 8 (sci-fi)",
	"Sitar", "Banjo", "Shamisen", "Koto",
	"Kalimba", "Bag Pipe", "Fiddle", "Shanai",
	"Tinkle Bell", "Agogo", "Steel Drums", "Woodblock",
	"Taiko Drum", "Melodic Tom", "Synth Drum", "Reverse Cymbal",
	"Guitar Fret Noise", "Breath Noise", "Seashore", "Bird Tweet",
	"Telephone Ring", "Helicopter", "Applause", "Gunshot",
}

// InstrumentName returns the canonical GM name for a program.
func InstrumentName(program int) string {
	if program == ProgramDrumKit {
		return "Drum Kit"
	}
	if program < 0 {
		program = 0
	}
	if program > 127 {
		program = 127
	}
	return instrumentNames[program]
}

// FileStem converts a canonical instrument name into a filename stem,
// e.g. "Electric Bass (finger)" -> "electric_bass_finger".
func FileStem(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ProgramSet is the set of GM programs a stem may carry. The zero value is
// empty; the unrestricted set admits everything.
type ProgramSet struct {
	unrestricted bool
	programs     map[int]struct{}
}

func newProgramSet(ranges ...[2]int) ProgramSet {
	s := ProgramSet{programs: make(map[int]struct{})}
	for _, r := range ranges {
		for p := r[0]; p <= r[1]; p++ {
			s.programs[p] = struct{}{}
		}
	}
	return s
}

func (s ProgramSet) with(programs ...int) ProgramSet {
	for _, p := range programs {
		s.programs[p] = struct{}{}
	}
	return s
}

func (s ProgramSet) without(programs ...int) ProgramSet {
	for _, p := range programs {
		delete(s.programs, p)
	}
	return s
}

// Contains reports whether a program is admitted by the set.
func (s ProgramSet) Contains(program int) bool {
	if s.unrestricted {
		return true
	}
	_, ok := s.programs[program]
	return ok
}

// Unrestricted reports whether the set admits the full program space.
func (s ProgramSet) Unrestricted() bool { return s.unrestricted }

// Per-stem allowed program sets, per GM Level 1 family groupings. Bass gains
// Contrabass (43) and Tuba (58); vocals covers voice plus breath-driven
// families; other is the remaining melodic space.
var (
	allowedDrums = newProgramSet([2]int{112, 119}).with(ProgramDrumKit)
	allowedBass  = newProgramSet([2]int{32, 39}).with(43, 58)
	allowedVocal = newProgramSet([2]int{52, 54}, [2]int{56, 63}, [2]int{64, 71}, [2]int{72, 79})
	allowedOther = newProgramSet(
		[2]int{0, 31},   // piano through guitar
		[2]int{40, 55},  // strings, ensemble
		[2]int{80, 111}, // synth lead/pad/fx, ethnic
	).without(43)
	allowedAll = ProgramSet{unrestricted: true}
)

// AllowedPrograms returns the fixed program set for a stem kind. The full
// stem (and any unknown kind) is unrestricted.
func AllowedPrograms(stem model.StemKind) ProgramSet {
	switch stem {
	case model.StemDrums:
		return allowedDrums
	case model.StemBass:
		return allowedBass
	case model.StemVocals:
		return allowedVocal
	case model.StemOther:
		return allowedOther
	default:
		return allowedAll
	}
}

// DefaultProgram returns the canonical program a corrector snaps violations
// to for a stem kind.
func DefaultProgram(stem model.StemKind) int {
	switch stem {
	case model.StemDrums:
		return ProgramDrumKit
	case model.StemBass:
		return 33 // Electric Bass (finger)
	case model.StemVocals:
		return 52 // Choir Aahs
	default:
		return 0 // Acoustic Grand Piano
	}
}
