package midi

import (
	"testing"

	"github.com/stemscribe/api/internal/model"
)

func TestFamilyOf(t *testing.T) {
	cases := []struct {
		program int
		want    Family
	}{
		{0, FamilyPiano},
		{7, FamilyPiano},
		{8, FamilyChromatic},
		{33, FamilyBass},
		{40, FamilyStrings},
		{56, FamilyBrass},
		{65, FamilyReed},
		{73, FamilyPipe},
		{112, FamilyPercussive},
		{127, FamilySoundFX},
		{ProgramDrumKit, FamilyDrums},
	}
	for _, tc := range cases {
		if got := FamilyOf(tc.program); got != tc.want {
			t.Errorf("FamilyOf(%d) = %q, want %q", tc.program, got, tc.want)
		}
	}
}

func TestInstrumentName(t *testing.T) {
	cases := []struct {
		program int
		want    string
	}{
		{0, "Acoustic Grand Piano"},
		{33, "Electric Bass (finger)"},
		{52, "Choir Aahs"},
		{118, "Synth Drum"},
		{127, "Gunshot"},
		{ProgramDrumKit, "Drum Kit"},
	}
	for _, tc := range cases {
		if got := InstrumentName(tc.program); got != tc.want {
			t.Errorf("InstrumentName(%d) = %q, want %q", tc.program, got, tc.want)
		}
	}
}

func TestInstrumentNamesComplete(t *testing.T) {
	for p, name := range instrumentNames {
		if name == "" {
			t.Errorf("program %d has no name", p)
		}
	}
}

func TestFileStem(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"Acoustic Grand Piano", "acoustic_grand_piano"},
		{"Electric Bass (finger)", "electric_bass_finger"},
		{"Lead 8 (bass + lead)", "lead_8_bass_lead"},
		{"FX 8 (sci-fi)", "fx_8_sci_fi"},
		{"Drum Kit", "drum_kit"},
	}
	for _, tc := range cases {
		if got := FileStem(tc.name); got != tc.want {
			t.Errorf("FileStem(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestValidateProgram(t *testing.T) {
	if err := ValidateProgram(0); err != nil {
		t.Errorf("ValidateProgram(0) = %v", err)
	}
	if err := ValidateProgram(127); err != nil {
		t.Errorf("ValidateProgram(127) = %v", err)
	}
	if err := ValidateProgram(ProgramDrumKit); err != nil {
		t.Errorf("ValidateProgram(drum kit) = %v", err)
	}
	if err := ValidateProgram(128); err == nil {
		t.Error("ValidateProgram(128) should fail")
	}
	if err := ValidateProgram(-2); err == nil {
		t.Error("ValidateProgram(-2) should fail")
	}
}

func TestAllowedPrograms(t *testing.T) {
	bass := AllowedPrograms(model.StemBass)
	for p := 32; p <= 39; p++ {
		if !bass.Contains(p) {
			t.Errorf("bass should allow program %d", p)
		}
	}
	// Contrabass and Tuba play bass lines despite sitting outside the GM
	// bass family block.
	if !bass.Contains(43) || !bass.Contains(58) {
		t.Error("bass should allow contrabass (43) and tuba (58)")
	}
	if bass.Contains(0) {
		t.Error("bass should not allow piano")
	}

	drums := AllowedPrograms(model.StemDrums)
	if !drums.Contains(ProgramDrumKit) {
		t.Error("drums should allow the drum kit sentinel")
	}
	if !drums.Contains(115) {
		t.Error("drums should allow percussive programs")
	}
	if drums.Contains(33) {
		t.Error("drums should not allow bass programs")
	}

	vocals := AllowedPrograms(model.StemVocals)
	if !vocals.Contains(52) || !vocals.Contains(64) || !vocals.Contains(73) {
		t.Error("vocals should allow voice, reed and pipe programs")
	}
	if vocals.Contains(0) {
		t.Error("vocals should not allow piano")
	}

	other := AllowedPrograms(model.StemOther)
	if !other.Contains(0) || !other.Contains(25) || !other.Contains(81) {
		t.Error("other should allow piano, guitar and synth programs")
	}
	if other.Contains(43) {
		t.Error("other should not allow contrabass, it belongs to bass")
	}

	full := AllowedPrograms(model.StemFull)
	if !full.Unrestricted() {
		t.Error("full stem should be unrestricted")
	}
	for p := 0; p < 128; p++ {
		if !full.Contains(p) {
			t.Errorf("full stem should allow program %d", p)
		}
	}
}

func TestDefaultProgramWithinAllowedSet(t *testing.T) {
	stems := []model.StemKind{model.StemBass, model.StemDrums, model.StemOther, model.StemVocals, model.StemFull}
	for _, stem := range stems {
		def := DefaultProgram(stem)
		if !AllowedPrograms(stem).Contains(def) {
			t.Errorf("default program %d for stem %s is outside its allowed set", def, stem)
		}
	}
}
