package generator

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/hong8300/onpu-yomail/internal/model"
)

func settingsFor(count int, min, max string) model.SessionSettings {
	return model.SessionSettings{
		TotalQuestions: count,
		NoteRange:      model.NoteRange{Min: min, Max: max},
		Difficulty:     model.DifficultyMedium,
		Clef:           model.ClefBoth,
	}
}

func TestGenerateNoBackToBackRepeats(t *testing.T) {
	g := NewWithSource(rand.NewSource(1))
	notes, err := g.Generate(settingsFor(200, "C4", "G4"), []model.Clef{model.ClefTreble, model.ClefBass})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(notes) != 200 {
		t.Fatalf("expected 200 notes, got %d", len(notes))
	}
	for i := 1; i < len(notes); i++ {
		if notes[i].Name == notes[i-1].Name && notes[i].Octave == notes[i-1].Octave {
			t.Fatalf("back-to-back repeat at %d: %s", i, notes[i])
		}
	}
}

func TestGenerateSingleNotePoolRepeats(t *testing.T) {
	g := NewWithSource(rand.NewSource(1))
	notes, err := g.Generate(settingsFor(5, "C4", "C4"), []model.Clef{model.ClefTreble})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for _, n := range notes {
		if n.String() != "C4" {
			t.Fatalf("expected only C4, got %s", n)
		}
	}
}

func TestGenerateBothClefsSingleNoteRange(t *testing.T) {
	// C4..C4 on both clefs lists C4 twice, once per clef. The pool has
	// two entries but only one distinct note, so the redraw rule must
	// stand down instead of spinning forever.
	g := NewWithSource(rand.NewSource(1))
	notes, err := g.Generate(settingsFor(20, "C4", "C4"), []model.Clef{model.ClefTreble, model.ClefBass})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(notes) != 20 {
		t.Fatalf("expected 20 notes, got %d", len(notes))
	}
	for _, n := range notes {
		if n.String() != "C4" {
			t.Fatalf("expected only C4, got %s", n)
		}
	}
}

func TestGenerateEmptyPool(t *testing.T) {
	g := NewWithSource(rand.NewSource(1))
	// Treble has nothing below A3.
	_, err := g.Generate(settingsFor(5, "C1", "C2"), []model.Clef{model.ClefTreble})
	if !errors.Is(err, ErrNoNotes) {
		t.Fatalf("expected ErrNoNotes, got %v", err)
	}
}

func TestGenerateZeroQuestions(t *testing.T) {
	g := NewWithSource(rand.NewSource(1))
	if _, err := g.Generate(settingsFor(0, "C4", "C5"), []model.Clef{model.ClefTreble}); err == nil {
		t.Fatalf("expected error for zero questions")
	}
}

func TestGenerateInvalidRange(t *testing.T) {
	g := NewWithSource(rand.NewSource(1))
	if _, err := g.Generate(settingsFor(5, "bogus", "C5"), []model.Clef{model.ClefTreble}); err == nil {
		t.Fatalf("expected error for malformed range")
	}
}
