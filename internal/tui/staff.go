// Package tui provides the Bubble Tea practice interface.
package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/hong8300/onpu-yomail/internal/model"
)

// Staff geometry in catalog units: 5 per diatonic step, lines on
// multiples of 10. The five staff lines span Y 10 through 50 for both
// clefs; ledger lines continue the multiples of 10 outside that band.
const (
	staffTopY    = 10
	staffBottomY = 50
	staffWidth   = 21
	ledgerHalf   = 2
)

const (
	trebleClefSymbol = "𝄞"
	bassClefSymbol   = "𝄢"
)

// NoteResult selects how the displayed note is styled.
type NoteResult int

const (
	NotePending NoteResult = iota
	NoteCorrect
	NoteWrong
)

// NoteRenderer draws a catalogued note for display. Implementations
// outside this package can supply richer staff drawing.
type NoteRenderer interface {
	Render(note model.Note, result NoteResult) string
}

// StaffRenderer is the built-in plain-text staff renderer.
type StaffRenderer struct {
	line    lipgloss.Style
	pending lipgloss.Style
	correct lipgloss.Style
	wrong   lipgloss.Style
}

var _ NoteRenderer = (*StaffRenderer)(nil)

// NewStaffRenderer builds a renderer with the default palette.
func NewStaffRenderer() *StaffRenderer {
	return &StaffRenderer{
		line:    staffStyle,
		pending: noteStyle,
		correct: correctStyle,
		wrong:   wrongStyle,
	}
}

// Render implements NoteRenderer.
func (r *StaffRenderer) Render(note model.Note, result NoteResult) string {
	style := r.pending
	switch result {
	case NoteCorrect:
		style = r.correct
	case NoteWrong:
		style = r.wrong
	}
	return renderStaff(note, r.line, style)
}

func clefSymbol(clef model.Clef) string {
	if clef == model.ClefBass {
		return bassClefSymbol
	}
	return trebleClefSymbol
}

// renderStaff draws a five-line staff with the note at its catalog
// position, including any ledger lines between the note and the staff.
func renderStaff(n model.Note, lineStyle, noteStyle lipgloss.Style) string {
	top := staffTopY
	if n.Position.Y < top {
		top = n.Position.Y
	}
	bottom := staffBottomY
	if n.Position.Y > bottom {
		bottom = n.Position.Y
	}

	center := staffWidth / 2
	var rows []string
	for y := top; y <= bottom; y += 5 {
		rows = append(rows, renderStaffRow(y, n, center, lineStyle, noteStyle))
	}
	return strings.Join(rows, "\n")
}

func renderStaffRow(y int, n model.Note, center int, lineStyle, noteStyle lipgloss.Style) string {
	onLine := y%10 == 0
	inStaff := y >= staffTopY && y <= staffBottomY
	ledger := onLine && !inStaff && betweenNoteAndStaff(y, n.Position.Y)
	hasNote := y == n.Position.Y

	cells := make([]rune, staffWidth)
	for i := range cells {
		cells[i] = ' '
	}
	switch {
	case onLine && inStaff:
		for i := range cells {
			cells[i] = '─'
		}
	case ledger:
		for i := center - ledgerHalf; i <= center+ledgerHalf; i++ {
			cells[i] = '─'
		}
	}

	if !hasNote {
		line := string(cells)
		if inStaff && onLine && y == 30 {
			// Clef marker on the middle line.
			sym := clefSymbol(n.Clef)
			line = sym + strings.Repeat(" ", 1) + string(cells[runewidth.StringWidth(sym)+1:])
		}
		return lineStyle.Render(line)
	}

	left := string(cells[:center])
	right := string(cells[center+1:])
	return lineStyle.Render(left) + noteStyle.Render("●") + lineStyle.Render(right)
}

// betweenNoteAndStaff reports whether a ledger row at y lies on the
// note's side of the staff, no further out than the note itself.
func betweenNoteAndStaff(y, noteY int) bool {
	if noteY < staffTopY {
		return y >= noteY && y < staffTopY
	}
	if noteY > staffBottomY {
		return y <= noteY && y > staffBottomY
	}
	return false
}

// staffRowCount reports how many terminal rows renderStaff will use.
func staffRowCount(n model.Note) int {
	top := staffTopY
	if n.Position.Y < top {
		top = n.Position.Y
	}
	bottom := staffBottomY
	if n.Position.Y > bottom {
		bottom = n.Position.Y
	}
	return (bottom-top)/5 + 1
}
