// Package midi decodes hardware note input and manages device lifecycle.
package midi

// Message is one raw three-byte MIDI tuple as delivered by the transport.
type Message struct {
	Status   byte
	Note     byte
	Velocity byte
}

// NoteEvent is a decoded key press on a natural note.
type NoteEvent struct {
	Name   string
	Octave int
	Number byte
}

const (
	noteOnMin  = 0x90 // note-on, channel 0
	noteOnMax  = 0x9F // note-on, channel 15
	systemMin  = 0xF0 // realtime/system messages start here
)

// Natural pitch classes by semitone within the octave; accidentals
// (1, 3, 6, 8, 10) stay empty and never produce an event.
var pitchClassNames = [12]string{
	0: "C", 2: "D", 4: "E", 5: "F", 7: "G", 9: "A", 11: "B",
}

// DecodeNoteOn turns a raw message into a note press. ok is false for
// system messages (status >= 240), note-off or zero-velocity releases,
// and accidental pitch classes. Note number 60 decodes to C, octave 4.
func DecodeNoteOn(msg Message) (NoteEvent, bool) {
	if msg.Status >= systemMin {
		return NoteEvent{}, false
	}
	if msg.Status < noteOnMin || msg.Status > noteOnMax || msg.Velocity == 0 {
		return NoteEvent{}, false
	}
	name := pitchClassNames[msg.Note%12]
	if name == "" {
		return NoteEvent{}, false
	}
	return NoteEvent{
		Name:   name,
		Octave: int(msg.Note)/12 - 1,
		Number: msg.Note,
	}, true
}
