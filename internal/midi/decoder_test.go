package midi

import "testing"

func TestDecodeMiddleC(t *testing.T) {
	event, ok := DecodeNoteOn(Message{Status: 0x90, Note: 60, Velocity: 100})
	if !ok {
		t.Fatalf("expected note-on to decode")
	}
	if event.Name != "C" || event.Octave != 4 {
		t.Fatalf("note 60 = %s%d, want C4", event.Name, event.Octave)
	}
}

func TestDecodeAllChannels(t *testing.T) {
	for status := byte(0x90); status <= 0x9F; status++ {
		if _, ok := DecodeNoteOn(Message{Status: status, Note: 60, Velocity: 1}); !ok {
			t.Fatalf("status %#x should decode", status)
		}
	}
}

func TestDecodeAccidentalsDropped(t *testing.T) {
	for _, pc := range []byte{1, 3, 6, 8, 10} {
		note := 60 + pc
		if _, ok := DecodeNoteOn(Message{Status: 0x90, Note: note, Velocity: 100}); ok {
			t.Fatalf("accidental pitch class %d should not decode", pc)
		}
	}
}

func TestDecodeSystemMessagesDiscarded(t *testing.T) {
	// 248 is the timing clock, the noisiest realtime message.
	for _, status := range []byte{0xF0, 248, 250, 252, 0xFF} {
		if _, ok := DecodeNoteOn(Message{Status: status, Note: 60, Velocity: 100}); ok {
			t.Fatalf("system status %d should be discarded", status)
		}
	}
}

func TestDecodeReleasesIgnored(t *testing.T) {
	// Note-on with velocity 0 is a release.
	if _, ok := DecodeNoteOn(Message{Status: 0x90, Note: 60, Velocity: 0}); ok {
		t.Fatalf("zero-velocity note-on should not decode")
	}
	// Explicit note-off.
	if _, ok := DecodeNoteOn(Message{Status: 0x80, Note: 60, Velocity: 100}); ok {
		t.Fatalf("note-off should not decode")
	}
}

func TestDecodeOctaveConvention(t *testing.T) {
	cases := []struct {
		note   byte
		name   string
		octave int
	}{
		{0, "C", -1},
		{24, "C", 1},
		{69, "A", 4},
		{83, "B", 5},
		{84, "C", 6},
	}
	for _, tc := range cases {
		event, ok := DecodeNoteOn(Message{Status: 0x90, Note: tc.note, Velocity: 64})
		if !ok {
			t.Fatalf("note %d should decode", tc.note)
		}
		if event.Name != tc.name || event.Octave != tc.octave {
			t.Fatalf("note %d = %s%d, want %s%d", tc.note, event.Name, event.Octave, tc.name, tc.octave)
		}
	}
}
