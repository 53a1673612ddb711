// Package generator builds practice question sequences.
package generator

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/hong8300/onpu-yomail/internal/catalog"
	"github.com/hong8300/onpu-yomail/internal/model"
)

// ErrNoNotes is returned when the range/clef combination yields an empty
// candidate pool.
var ErrNoNotes = errors.New("no available notes")

// Generator produces randomized note sequences.
type Generator struct {
	rnd *rand.Rand
}

// New returns a Generator seeded with the current time.
func New() *Generator {
	return &Generator{rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// NewWithSource returns a Generator with a fixed source, for tests.
func NewWithSource(src rand.Source) *Generator {
	return &Generator{rnd: rand.New(src)}
}

// Pool unions the available notes of every requested clef for the range.
func Pool(settings model.SessionSettings, clefs []model.Clef) ([]model.Note, error) {
	var pool []model.Note
	for _, clef := range clefs {
		notes, err := catalog.ListAvailable(clef, settings.NoteRange.Min, settings.NoteRange.Max)
		if err != nil {
			return nil, fmt.Errorf("list notes for %s: %w", clef, err)
		}
		pool = append(pool, notes...)
	}
	return pool, nil
}

// Generate draws settings.TotalQuestions notes from the clefs' candidate
// pool, re-drawing whenever a candidate repeats the previous note's name
// and octave. When every candidate shares one name and octave (a
// single-note range, possibly listed once per clef) repeats are
// unavoidable and the redraw rule is suspended.
func (g *Generator) Generate(settings model.SessionSettings, clefs []model.Clef) ([]model.Note, error) {
	if settings.TotalQuestions <= 0 {
		return nil, fmt.Errorf("question count must be > 0, got %d", settings.TotalQuestions)
	}
	pool, err := Pool(settings, clefs)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoNotes
	}

	notes := make([]model.Note, 0, settings.TotalQuestions)
	var previous *model.Note
	for i := 0; i < settings.TotalQuestions; i++ {
		note := g.draw(pool, previous)
		notes = append(notes, note)
		previous = &notes[len(notes)-1]
	}
	return notes, nil
}

func (g *Generator) draw(pool []model.Note, previous *model.Note) model.Note {
	if previous == nil || !hasAlternative(pool, *previous) {
		return pool[g.rnd.Intn(len(pool))]
	}
	for {
		note := pool[g.rnd.Intn(len(pool))]
		if note.Name == previous.Name && note.Octave == previous.Octave {
			continue
		}
		return note
	}
}

// hasAlternative reports whether any pool entry differs from previous by
// name or octave. A both-clef single-note range yields two entries that
// are the same note, so pool length alone cannot answer this.
func hasAlternative(pool []model.Note, previous model.Note) bool {
	for _, n := range pool {
		if n.Name != previous.Name || n.Octave != previous.Octave {
			return true
		}
	}
	return false
}
