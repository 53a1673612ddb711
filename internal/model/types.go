// Package model defines shared data structures.
package model

import (
	"strconv"
	"time"
)

// Clef identifies the staff symbol fixing the pitch-to-line mapping.
type Clef string

const (
	ClefTreble Clef = "treble"
	ClefBass   Clef = "bass"
	// ClefBoth is valid only in settings; individual notes always carry
	// a concrete clef.
	ClefBoth Clef = "both"
)

// Difficulty selects the practice difficulty level.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// InputMethod records how an answer was entered.
type InputMethod string

const (
	InputMouse InputMethod = "mouse"
	InputMIDI  InputMethod = "midi"
)

// NotePosition locates a note vertically on a staff. Y is measured in
// fixed steps of 5 per line/space, 0 being the top staff line. Ledger
// metadata is curated per entry, not derived from Y.
type NotePosition struct {
	Y               int  `json:"y"`
	LedgerLines     int  `json:"ledgerLines,omitempty"`
	LedgerLineAbove bool `json:"ledgerLineAbove,omitempty"`
}

// Note is an immutable catalogued note. Name is a natural pitch class
// (C, D, E, F, G, A, B); the catalog never positions accidentals.
type Note struct {
	Name     string       `json:"name"`
	Octave   int          `json:"octave"`
	Clef     Clef         `json:"clef"`
	Position NotePosition `json:"position"`
}

// String returns the compact name+octave form, e.g. "C4".
func (n Note) String() string {
	return n.Name + strconv.Itoa(n.Octave)
}

// NoteRange bounds a practice range by compact note names, e.g. C3..C5.
type NoteRange struct {
	Min string `json:"min"`
	Max string `json:"max"`
}

// SessionSettings resolves the parameters of one practice session.
type SessionSettings struct {
	TotalQuestions int        `json:"totalQuestions"`
	NoteRange      NoteRange  `json:"noteRange"`
	Difficulty     Difficulty `json:"difficulty"`
	Clef           Clef       `json:"clef"`
}

// Question is created when a session is built and mutated exactly once,
// when the learner answers it.
type Question struct {
	ID           string      `json:"id"`
	Note         Note        `json:"note"`
	UserAnswer   string      `json:"userAnswer,omitempty"`
	IsCorrect    *bool       `json:"isCorrect,omitempty"`
	ResponseTime int64       `json:"responseTime,omitempty"`
	InputMethod  InputMethod `json:"inputMethod,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

// Answered reports whether the question has a recorded answer.
func (q Question) Answered() bool {
	return q.UserAnswer != ""
}

// Session is owned by the practice flow until sealed, then handed to the
// history log.
type Session struct {
	ID                   string          `json:"id"`
	StartTime            time.Time       `json:"startTime"`
	EndTime              *time.Time      `json:"endTime,omitempty"`
	Settings             SessionSettings `json:"settings"`
	Questions            []Question      `json:"questions"`
	CurrentQuestionIndex int             `json:"currentQuestionIndex"`
	Results              *SessionResult  `json:"results,omitempty"`
}

// InputMethodStats tallies answers per input method within a session.
type InputMethodStats struct {
	MIDI     int `json:"midi"`
	Keyboard int `json:"keyboard"`
	Mouse    int `json:"mouse"`
}

// SessionResult aggregates one completed session.
type SessionResult struct {
	TotalQuestions      int              `json:"totalQuestions"`
	CorrectAnswers      int              `json:"correctAnswers"`
	Accuracy            float64          `json:"accuracy"`
	TotalTime           int64            `json:"totalTime"`
	AverageResponseTime float64          `json:"averageResponseTime"`
	ProblemNotes        []NoteStatistic  `json:"problemNotes"`
	InputMethodStats    InputMethodStats `json:"inputMethodStats"`
}

// NoteStatistic keys on the compact name+octave form.
type NoteStatistic struct {
	Note                string  `json:"note"`
	Clef                Clef    `json:"clef"`
	Attempts            int     `json:"attempts"`
	Correct             int     `json:"correct"`
	AverageResponseTime float64 `json:"averageResponseTime"`
	ErrorRate           float64 `json:"errorRate"`
}

// OverallStatistics is fully derived from the session log.
type OverallStatistics struct {
	TotalSessions       int        `json:"totalSessions"`
	TotalQuestions      int        `json:"totalQuestions"`
	TotalCorrectAnswers int        `json:"totalCorrectAnswers"`
	OverallAccuracy     float64    `json:"overallAccuracy"`
	TotalPracticeTime   int64      `json:"totalPracticeTime"`
	FavoriteClef        Clef       `json:"favoriteClef"`
	StrongNotes         []string   `json:"strongNotes"`
	WeakNotes           []string   `json:"weakNotes"`
	StreakDays          int        `json:"streakDays"`
	LastPracticeDate    *time.Time `json:"lastPracticeDate"`
}

// LearningHistory is the persisted append-only session log plus its
// derived aggregate.
type LearningHistory struct {
	Sessions     []Session         `json:"sessions"`
	OverallStats OverallStatistics `json:"overallStats"`
	LastUpdated  time.Time         `json:"lastUpdated"`
}

// MidiDevice mirrors one live hardware input port. Not persisted beyond
// the current run, except in the session-scoped snapshot.
type MidiDevice struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer"`
	State        string `json:"state"`
}

// PracticeSettings is the persisted practice half of the settings record.
type PracticeSettings struct {
	TotalQuestions    int        `json:"totalQuestions"`
	NoteRange         NoteRange  `json:"noteRange"`
	Difficulty        Difficulty `json:"difficulty"`
	EnableMidi        bool       `json:"enableMidi"`
	EnableMouse       bool       `json:"enableMouse"`
	AutoAdvance       bool       `json:"autoAdvance"`
	AutoAdvanceDelay  int        `json:"autoAdvanceDelay"`
	EnableAccidentals bool       `json:"enableAccidentals"`
}

// DisplaySettings is the persisted display half of the settings record.
type DisplaySettings struct {
	Theme         string `json:"theme"`
	StaffSize     string `json:"staffSize"`
	ShowDebugInfo bool   `json:"showDebugInfo"`
}

// AppSettings is the persisted settings record.
type AppSettings struct {
	Practice PracticeSettings `json:"practice"`
	Display  DisplaySettings  `json:"display"`
}
