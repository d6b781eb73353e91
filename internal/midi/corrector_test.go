package midi

import (
	"testing"

	"github.com/stemscribe/api/internal/model"
)

func TestCorrectDrumsStem(t *testing.T) {
	inputs := []Descriptor{
		{Program: 0},
		{Program: 33},
		{Program: 115},
		{Program: ProgramDrumKit, IsDrum: true},
	}
	for _, d := range inputs {
		got := Correct(d, model.StemDrums)
		want := Descriptor{Program: ProgramDrumKit, IsDrum: true}
		if got != want {
			t.Errorf("Correct(%+v, drums) = %+v, want %+v", d, got, want)
		}
	}
}

func TestCorrectFullStemPassesThrough(t *testing.T) {
	inputs := []Descriptor{
		{Program: 0},
		{Program: 127},
		{Program: ProgramDrumKit, IsDrum: true},
	}
	for _, d := range inputs {
		if got := Correct(d, model.StemFull); got != d {
			t.Errorf("Correct(%+v, full) = %+v, want unchanged", d, got)
		}
	}
}

func TestCorrectSnapsOutOfRange(t *testing.T) {
	cases := []struct {
		desc Descriptor
		stem model.StemKind
		want Descriptor
	}{
		// Piano in the bass stem snaps to the canonical bass.
		{Descriptor{Program: 0}, model.StemBass, Descriptor{Program: 33}},
		// Distortion guitar in vocals snaps to choir.
		{Descriptor{Program: 30}, model.StemVocals, Descriptor{Program: 52}},
		// Contrabass belongs to bass, not other.
		{Descriptor{Program: 43}, model.StemOther, Descriptor{Program: 0}},
		// A drum track in a melodic stem snaps to the stem default.
		{Descriptor{Program: ProgramDrumKit, IsDrum: true}, model.StemBass, Descriptor{Program: 33}},
		{Descriptor{Program: ProgramDrumKit, IsDrum: true}, model.StemOther, Descriptor{Program: 0}},
	}
	for _, tc := range cases {
		if got := Correct(tc.desc, tc.stem); got != tc.want {
			t.Errorf("Correct(%+v, %s) = %+v, want %+v", tc.desc, tc.stem, got, tc.want)
		}
	}
}

func TestCorrectKeepsInRange(t *testing.T) {
	cases := []struct {
		desc Descriptor
		stem model.StemKind
	}{
		{Descriptor{Program: 35}, model.StemBass},
		{Descriptor{Program: 43}, model.StemBass},
		{Descriptor{Program: 58}, model.StemBass},
		{Descriptor{Program: 53}, model.StemVocals},
		{Descriptor{Program: 70}, model.StemVocals},
		{Descriptor{Program: 24}, model.StemOther},
		{Descriptor{Program: 104}, model.StemOther},
	}
	for _, tc := range cases {
		if got := Correct(tc.desc, tc.stem); got != tc.desc {
			t.Errorf("Correct(%+v, %s) = %+v, want unchanged", tc.desc, tc.stem, got)
		}
	}
}

// Correction must always land inside the stem's allowed set, and correcting
// twice must change nothing. Exercises every program against every stem.
func TestCorrectTotalAndIdempotent(t *testing.T) {
	stems := []model.StemKind{model.StemBass, model.StemDrums, model.StemOther, model.StemVocals, model.StemFull}
	for _, stem := range stems {
		allowed := AllowedPrograms(stem)
		for p := -1; p < 128; p++ {
			d := Descriptor{Program: p, IsDrum: p == ProgramDrumKit}
			once := Correct(d, stem)
			if !allowed.Contains(once.Program) {
				t.Fatalf("Correct(%+v, %s) = %+v outside allowed set", d, stem, once)
			}
			twice := Correct(once, stem)
			if twice != once {
				t.Fatalf("Correct not idempotent for %+v on %s: %+v != %+v", d, stem, twice, once)
			}
		}
	}
}

func TestDescriptorNameAndFamily(t *testing.T) {
	d := Descriptor{Program: 33}
	if d.Name() != "Electric Bass (finger)" {
		t.Errorf("Name() = %q", d.Name())
	}
	if d.Family() != FamilyBass {
		t.Errorf("Family() = %q", d.Family())
	}

	drum := Descriptor{Program: ProgramDrumKit, IsDrum: true}
	if drum.Name() != "Drum Kit" {
		t.Errorf("drum Name() = %q", drum.Name())
	}
	if drum.Family() != FamilyDrums {
		t.Errorf("drum Family() = %q", drum.Family())
	}
}
