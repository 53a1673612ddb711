// Package session drives the practice session state machine.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hong8300/onpu-yomail/internal/generator"
	"github.com/hong8300/onpu-yomail/internal/model"
	"github.com/hong8300/onpu-yomail/internal/stats"
)

// State names the machine's position. completed is terminal; only Start
// leaves it, by building a fresh session.
type State string

const (
	StateSetup     State = "setup"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

// Auto-advance delays per input method. Device input tolerates less
// latency than pointer input.
const (
	AdvanceDelayMIDI    = 200 * time.Millisecond
	AdvanceDelayPointer = 400 * time.Millisecond
)

var (
	ErrNotStarted = errors.New("no active session")
	ErrNotPlaying = errors.New("session is not playing")
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Scheduler runs fn after d. The machine never cancels a scheduled call;
// the callback re-checks state when it fires.
type Scheduler func(d time.Duration, fn func())

// Option configures a Machine.
type Option func(*Machine)

// WithClock injects the time source.
func WithClock(c Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithScheduler injects the auto-advance timer.
func WithScheduler(s Scheduler) Option {
	return func(m *Machine) { m.schedule = s }
}

// WithAutoAdvance toggles scheduling after each answer.
func WithAutoAdvance(enabled bool) Option {
	return func(m *Machine) { m.autoAdvance = enabled }
}

// WithOnComplete registers the sealed-session consumer. It receives the
// scored session exactly once, before the machine enters completed.
func WithOnComplete(fn func(model.Session)) Option {
	return func(m *Machine) { m.onComplete = fn }
}

// Machine owns the in-progress session. All mutation goes through it.
type Machine struct {
	mu          sync.Mutex
	gen         *generator.Generator
	clock       Clock
	schedule    Scheduler
	autoAdvance bool
	onComplete  func(model.Session)

	state         State
	session       *model.Session
	questionStart time.Time
	// answerShown mirrors "the current question already has a result":
	// further input is ignored until navigation moves on. Together with
	// the mutex it makes a doubled physical key press score once.
	answerShown bool
}

// New builds a Machine in the setup state.
func New(gen *generator.Generator, opts ...Option) *Machine {
	m := &Machine{
		gen:         gen,
		clock:       systemClock{},
		schedule:    func(d time.Duration, fn func()) { time.AfterFunc(d, fn) },
		autoAdvance: true,
		state:       StateSetup,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the active session, or false when none
// exists.
func (m *Machine) Session() (model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return model.Session{}, false
	}
	return copySession(*m.session), true
}

// CurrentQuestion returns a copy of the question at the cursor.
func (m *Machine) CurrentQuestion() (model.Question, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q := m.currentLocked()
	if q == nil {
		return model.Question{}, false
	}
	return *q, true
}

// AnswerShown reports whether the current question's result is on
// display (input is gated until navigation).
func (m *Machine) AnswerShown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.answerShown
}

// Start builds a fresh session from resolved settings and enters
// playing. Malformed settings fail here, surfaced from the generator.
func (m *Machine) Start(settings model.SessionSettings) error {
	clefs := clefsFor(settings.Clef)
	notes, err := m.gen.Generate(settings, clefs)
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	questions := make([]model.Question, len(notes))
	for i, note := range notes {
		questions[i] = model.Question{
			ID:        uuid.NewString(),
			Note:      note,
			Timestamp: now,
		}
	}
	m.session = &model.Session{
		ID:        uuid.NewString(),
		StartTime: now,
		Settings:  settings,
		Questions: questions,
	}
	m.state = StatePlaying
	m.questionStart = now
	m.answerShown = false
	return nil
}

// Answer applies one input event. octave may be nil for inputs that
// carry only a pitch name; when present it must match exactly. The
// return reports whether the event was accepted, and if so whether the
// answer was correct.
func (m *Machine) Answer(name string, octave *int, method model.InputMethod) (accepted, correct bool) {
	m.mu.Lock()
	if m.state != StatePlaying || m.answerShown {
		m.mu.Unlock()
		return false, false
	}
	q := m.currentLocked()
	if q == nil || q.Answered() {
		m.mu.Unlock()
		return false, false
	}

	now := m.clock.Now()
	correct = name == q.Note.Name
	if octave != nil {
		correct = correct && *octave == q.Note.Octave
	}
	isCorrect := correct
	q.UserAnswer = name
	q.IsCorrect = &isCorrect
	q.ResponseTime = now.Sub(m.questionStart).Milliseconds()
	q.InputMethod = method
	q.Timestamp = now
	m.answerShown = true

	shouldSchedule := m.autoAdvance
	sessionID := m.session.ID
	index := m.session.CurrentQuestionIndex
	m.mu.Unlock()

	if shouldSchedule {
		delay := AdvanceDelayPointer
		if method == model.InputMIDI {
			delay = AdvanceDelayMIDI
		}
		m.schedule(delay, func() { m.advanceIfCurrent(sessionID, index) })
	}
	return true, correct
}

// advanceIfCurrent is the auto-advance callback. The timer is never
// cancelled, so it re-validates that the session and cursor it was
// scheduled for are still in place before moving.
func (m *Machine) advanceIfCurrent(sessionID string, index int) {
	m.mu.Lock()
	stale := m.session == nil ||
		m.session.ID != sessionID ||
		m.session.CurrentQuestionIndex != index ||
		m.state == StateCompleted ||
		m.state == StateSetup
	m.mu.Unlock()
	if stale {
		return
	}
	m.Next()
}

// Next moves the cursor forward; past the last question it seals the
// session, hands it to the statistics engine, and enters completed.
func (m *Machine) Next() {
	m.mu.Lock()
	if m.session == nil || m.state == StateCompleted {
		m.mu.Unlock()
		return
	}
	if m.session.CurrentQuestionIndex < len(m.session.Questions)-1 {
		m.session.CurrentQuestionIndex++
		m.answerShown = false
		m.questionStart = m.clock.Now()
		m.mu.Unlock()
		return
	}

	now := m.clock.Now()
	m.session.EndTime = &now
	result := stats.ScoreSession(*m.session)
	m.session.Results = &result
	m.state = StateCompleted
	sealed := copySession(*m.session)
	fn := m.onComplete
	m.mu.Unlock()

	if fn != nil {
		fn(sealed)
	}
}

// Previous moves the cursor back; the prior answer, if any, returns to
// display.
func (m *Machine) Previous() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil || m.state == StateCompleted || m.session.CurrentQuestionIndex == 0 {
		return
	}
	m.session.CurrentQuestionIndex--
	q := m.currentLocked()
	m.answerShown = q != nil && q.Answered()
	m.questionStart = m.clock.Now()
}

// Pause toggles playing to paused. Question data is untouched and
// already-scheduled auto-advance timers keep their appointments.
func (m *Machine) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNotStarted
	}
	if m.state != StatePlaying {
		return ErrNotPlaying
	}
	m.state = StatePaused
	return nil
}

// Resume toggles paused back to playing.
func (m *Machine) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ErrNotStarted
	}
	if m.state != StatePaused {
		return fmt.Errorf("cannot resume from %s", m.state)
	}
	m.state = StatePlaying
	return nil
}

func (m *Machine) currentLocked() *model.Question {
	if m.session == nil {
		return nil
	}
	i := m.session.CurrentQuestionIndex
	if i < 0 || i >= len(m.session.Questions) {
		return nil
	}
	return &m.session.Questions[i]
}

func clefsFor(clef model.Clef) []model.Clef {
	switch clef {
	case model.ClefTreble:
		return []model.Clef{model.ClefTreble}
	case model.ClefBass:
		return []model.Clef{model.ClefBass}
	default:
		return []model.Clef{model.ClefTreble, model.ClefBass}
	}
}

func copySession(s model.Session) model.Session {
	out := s
	out.Questions = make([]model.Question, len(s.Questions))
	copy(out.Questions, s.Questions)
	if s.EndTime != nil {
		end := *s.EndTime
		out.EndTime = &end
	}
	if s.Results != nil {
		result := *s.Results
		result.ProblemNotes = append([]model.NoteStatistic(nil), s.Results.ProblemNotes...)
		out.Results = &result
	}
	return out
}
