// Package catalog maps natural notes to staff positions per clef.
package catalog

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/hong8300/onpu-yomail/internal/model"
)

// Staff geometry: each diatonic step (line or space) is 5 units, Y 0 is
// the top staff line. Ledger-line count and side are curated per entry
// because spacing and extra lines are visually independent.
var treblePositions = map[string]model.NotePosition{
	"C6": {Y: -10, LedgerLines: 2, LedgerLineAbove: true},
	"B5": {Y: -5, LedgerLines: 1, LedgerLineAbove: true},
	"A5": {Y: 0},
	"G5": {Y: 5},
	"F5": {Y: 10},
	"E5": {Y: 15},
	"D5": {Y: 20},
	"C5": {Y: 25},
	"B4": {Y: 30},
	"A4": {Y: 35},
	"G4": {Y: 40},
	"F4": {Y: 45},
	"E4": {Y: 50},
	"D4": {Y: 55},
	"C4": {Y: 60, LedgerLines: 1}, // middle C
	"B3": {Y: 65, LedgerLines: 1},
	"A3": {Y: 70, LedgerLines: 2},
}

var bassPositions = map[string]model.NotePosition{
	"E4": {Y: -10, LedgerLines: 2, LedgerLineAbove: true},
	"D4": {Y: -5, LedgerLines: 1, LedgerLineAbove: true},
	"C4": {Y: 0, LedgerLines: 1, LedgerLineAbove: true}, // middle C
	"B3": {Y: 5},
	"A3": {Y: 10},
	"G3": {Y: 15},
	"F3": {Y: 20},
	"E3": {Y: 25},
	"D3": {Y: 30},
	"C3": {Y: 35},
	"B2": {Y: 40},
	"A2": {Y: 45},
	"G2": {Y: 50},
	"F2": {Y: 55},
	"E2": {Y: 60, LedgerLines: 1},
	"D2": {Y: 65, LedgerLines: 1},
	"C2": {Y: 70, LedgerLines: 2},
	"B1": {Y: 75, LedgerLines: 2},
	"A1": {Y: 80, LedgerLines: 3},
	"G1": {Y: 85, LedgerLines: 3},
	"F1": {Y: 90, LedgerLines: 4},
	"E1": {Y: 95, LedgerLines: 4},
	"D1": {Y: 100, LedgerLines: 5},
	"C1": {Y: 105, LedgerLines: 5},
}

var diatonicIndex = map[string]int{
	"C": 0, "D": 1, "E": 2, "F": 3, "G": 4, "A": 5, "B": 6,
}

// Default range bounds for ListAvailable.
const (
	DefaultMinNote = "C1"
	DefaultMaxNote = "C6"
)

func positionsFor(clef model.Clef) map[string]model.NotePosition {
	if clef == model.ClefTreble {
		return treblePositions
	}
	return bassPositions
}

// Order returns a total order over natural notes: octave*7 + diatonic
// index of the name. An unknown name yields ok=false.
func Order(name string, octave int) (int, bool) {
	idx, ok := diatonicIndex[name]
	if !ok {
		return 0, false
	}
	return octave*7 + idx, true
}

// ParseNote splits a compact note name like "C4" into name and octave.
func ParseNote(s string) (name string, octave int, err error) {
	if len(s) < 2 {
		return "", 0, fmt.Errorf("invalid note %q", s)
	}
	name = s[:1]
	if _, ok := diatonicIndex[name]; !ok {
		return "", 0, fmt.Errorf("invalid note name %q", s)
	}
	octave, err = strconv.Atoi(s[1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid note octave %q", s)
	}
	return name, octave, nil
}

// PositionOf looks up the staff position of a natural note for a clef.
// Accidentals and out-of-range notes are absent.
func PositionOf(name string, octave int, clef model.Clef) (model.NotePosition, bool) {
	pos, ok := positionsFor(clef)[name+strconv.Itoa(octave)]
	return pos, ok
}

// NewNote builds a catalogued Note, or ok=false when the note has no
// position for the clef.
func NewNote(name string, octave int, clef model.Clef) (model.Note, bool) {
	pos, ok := PositionOf(name, octave, clef)
	if !ok {
		return model.Note{}, false
	}
	return model.Note{Name: name, Octave: octave, Clef: clef, Position: pos}, true
}

// ListAvailable returns all catalog entries for the clef whose order lies
// within [minNote, maxNote] inclusive, sorted in ascending pitch order.
func ListAvailable(clef model.Clef, minNote, maxNote string) ([]model.Note, error) {
	if minNote == "" {
		minNote = DefaultMinNote
	}
	if maxNote == "" {
		maxNote = DefaultMaxNote
	}
	minName, minOct, err := ParseNote(minNote)
	if err != nil {
		return nil, err
	}
	maxName, maxOct, err := ParseNote(maxNote)
	if err != nil {
		return nil, err
	}
	minOrder, _ := Order(minName, minOct)
	maxOrder, _ := Order(maxName, maxOct)

	var notes []model.Note
	for key, pos := range positionsFor(clef) {
		name, octave, err := ParseNote(key)
		if err != nil {
			continue
		}
		order, _ := Order(name, octave)
		if order < minOrder || order > maxOrder {
			continue
		}
		notes = append(notes, model.Note{Name: name, Octave: octave, Clef: clef, Position: pos})
	}
	sort.Slice(notes, func(i, j int) bool {
		oi, _ := Order(notes[i].Name, notes[i].Octave)
		oj, _ := Order(notes[j].Name, notes[j].Octave)
		return oi < oj
	})
	return notes, nil
}
