package session

import (
	"math/rand"
	"testing"
	"time"

	"github.com/hong8300/onpu-yomail/internal/generator"
	"github.com/hong8300/onpu-yomail/internal/model"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// manualScheduler collects scheduled callbacks for explicit firing.
type manualScheduler struct {
	delays []time.Duration
	fns    []func()
}

func (s *manualScheduler) schedule(d time.Duration, fn func()) {
	s.delays = append(s.delays, d)
	s.fns = append(s.fns, fn)
}

func (s *manualScheduler) fireAll() {
	fns := s.fns
	s.fns = nil
	s.delays = nil
	for _, fn := range fns {
		fn()
	}
}

func testSettings(count int) model.SessionSettings {
	return model.SessionSettings{
		TotalQuestions: count,
		NoteRange:      model.NoteRange{Min: "C3", Max: "C5"},
		Difficulty:     model.DifficultyMedium,
		Clef:           model.ClefBoth,
	}
}

func newTestMachine(t *testing.T, opts ...Option) (*Machine, *fakeClock, *manualScheduler) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	sched := &manualScheduler{}
	base := []Option{WithClock(clock), WithScheduler(sched.schedule)}
	m := New(generator.NewWithSource(rand.NewSource(7)), append(base, opts...)...)
	return m, clock, sched
}

func TestStartBuildsSession(t *testing.T) {
	m, _, _ := newTestMachine(t)
	if m.State() != StateSetup {
		t.Fatalf("initial state = %s", m.State())
	}
	if err := m.Start(testSettings(5)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if m.State() != StatePlaying {
		t.Fatalf("state after start = %s", m.State())
	}
	session, ok := m.Session()
	if !ok || len(session.Questions) != 5 || session.CurrentQuestionIndex != 0 {
		t.Fatalf("unexpected session: %+v", session)
	}
	for _, q := range session.Questions {
		if q.ID == "" || q.Note.Name == "" {
			t.Fatalf("question not initialized: %+v", q)
		}
	}
}

func TestStartSurfacesGeneratorFailure(t *testing.T) {
	m, _, _ := newTestMachine(t)
	bad := testSettings(5)
	bad.NoteRange = model.NoteRange{Min: "C1", Max: "C2"}
	bad.Clef = model.ClefTreble // treble has nothing below A3
	if err := m.Start(bad); err == nil {
		t.Fatalf("expected error for empty candidate pool")
	}
	if m.State() != StateSetup {
		t.Fatalf("failed start must not change state, got %s", m.State())
	}
}

func TestAnswerRecordsResult(t *testing.T) {
	m, clock, _ := newTestMachine(t, WithAutoAdvance(false))
	if err := m.Start(testSettings(3)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	target, _ := m.CurrentQuestion()
	clock.advance(1500 * time.Millisecond)

	accepted, correct := m.Answer(target.Note.Name, nil, model.InputMouse)
	if !accepted || !correct {
		t.Fatalf("expected accepted correct answer, got %v/%v", accepted, correct)
	}
	q, _ := m.CurrentQuestion()
	if !q.Answered() || q.IsCorrect == nil || !*q.IsCorrect {
		t.Fatalf("answer not recorded: %+v", q)
	}
	if q.ResponseTime != 1500 {
		t.Fatalf("response time = %d, want 1500", q.ResponseTime)
	}
}

func TestAnswerOctaveMustMatchWhenSupplied(t *testing.T) {
	m, _, _ := newTestMachine(t, WithAutoAdvance(false))
	if err := m.Start(testSettings(3)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	target, _ := m.CurrentQuestion()
	wrongOctave := target.Note.Octave + 1
	_, correct := m.Answer(target.Note.Name, &wrongOctave, model.InputMIDI)
	if correct {
		t.Fatalf("mismatched octave must be incorrect")
	}
}

func TestAnswerIgnoredWhenAlreadyAnswered(t *testing.T) {
	m, _, _ := newTestMachine(t, WithAutoAdvance(false))
	if err := m.Start(testSettings(3)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	target, _ := m.CurrentQuestion()
	if accepted, _ := m.Answer(target.Note.Name, nil, model.InputMouse); !accepted {
		t.Fatalf("first answer should be accepted")
	}
	if accepted, _ := m.Answer(target.Note.Name, nil, model.InputMouse); accepted {
		t.Fatalf("second answer on same question must be ignored")
	}
}

func TestAnswerIgnoredOutsidePlaying(t *testing.T) {
	m, _, _ := newTestMachine(t, WithAutoAdvance(false))
	if accepted, _ := m.Answer("C", nil, model.InputMouse); accepted {
		t.Fatalf("answer before start must be ignored")
	}
	if err := m.Start(testSettings(3)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if accepted, _ := m.Answer("C", nil, model.InputMouse); accepted {
		t.Fatalf("answer while paused must be ignored")
	}
}

func TestAutoAdvanceDelaysPerInputMethod(t *testing.T) {
	m, _, sched := newTestMachine(t)
	if err := m.Start(testSettings(3)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	target, _ := m.CurrentQuestion()
	m.Answer(target.Note.Name, nil, model.InputMIDI)
	if len(sched.delays) != 1 || sched.delays[0] != AdvanceDelayMIDI {
		t.Fatalf("midi delay = %v, want %v", sched.delays, AdvanceDelayMIDI)
	}
	sched.fireAll()

	target, _ = m.CurrentQuestion()
	m.Answer(target.Note.Name, nil, model.InputMouse)
	if len(sched.delays) != 1 || sched.delays[0] != AdvanceDelayPointer {
		t.Fatalf("pointer delay = %v, want %v", sched.delays, AdvanceDelayPointer)
	}
}

func TestAutoAdvanceMovesCursor(t *testing.T) {
	m, _, sched := newTestMachine(t)
	if err := m.Start(testSettings(3)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	target, _ := m.CurrentQuestion()
	m.Answer(target.Note.Name, nil, model.InputMouse)
	sched.fireAll()
	session, _ := m.Session()
	if session.CurrentQuestionIndex != 1 {
		t.Fatalf("cursor = %d, want 1", session.CurrentQuestionIndex)
	}
	if m.AnswerShown() {
		t.Fatalf("advance must clear the shown answer")
	}
}

func TestStaleAutoAdvanceTimerIsIgnored(t *testing.T) {
	m, _, sched := newTestMachine(t)
	if err := m.Start(testSettings(3)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	target, _ := m.CurrentQuestion()
	m.Answer(target.Note.Name, nil, model.InputMouse)
	// The learner advances by hand before the timer fires.
	m.Next()
	session, _ := m.Session()
	if session.CurrentQuestionIndex != 1 {
		t.Fatalf("cursor = %d, want 1", session.CurrentQuestionIndex)
	}
	sched.fireAll()
	session, _ = m.Session()
	if session.CurrentQuestionIndex != 1 {
		t.Fatalf("stale timer advanced the cursor to %d", session.CurrentQuestionIndex)
	}
}

func TestNextPastLastSealsSession(t *testing.T) {
	var sealed *model.Session
	m, _, _ := newTestMachine(t,
		WithAutoAdvance(false),
		WithOnComplete(func(s model.Session) { sealed = &s }))
	if err := m.Start(testSettings(2)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	for i := 0; i < 2; i++ {
		q, _ := m.CurrentQuestion()
		m.Answer(q.Note.Name, nil, model.InputMouse)
		m.Next()
	}
	if m.State() != StateCompleted {
		t.Fatalf("state = %s, want completed", m.State())
	}
	if sealed == nil {
		t.Fatalf("sealed session was not handed off")
	}
	if sealed.EndTime == nil || sealed.Results == nil {
		t.Fatalf("sealed session missing end time or results: %+v", sealed)
	}
	if sealed.Results.CorrectAnswers != 2 {
		t.Fatalf("results = %+v, want 2 correct", sealed.Results)
	}
	// Terminal: no further movement.
	m.Next()
	if m.State() != StateCompleted {
		t.Fatalf("completed must be terminal")
	}
}

func TestStartFromCompletedBeginsFresh(t *testing.T) {
	m, _, _ := newTestMachine(t, WithAutoAdvance(false))
	if err := m.Start(testSettings(1)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	q, _ := m.CurrentQuestion()
	m.Answer(q.Note.Name, nil, model.InputMouse)
	m.Next()
	if m.State() != StateCompleted {
		t.Fatalf("expected completed")
	}
	if err := m.Start(testSettings(2)); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if m.State() != StatePlaying {
		t.Fatalf("expected fresh playing state")
	}
	session, _ := m.Session()
	if session.CurrentQuestionIndex != 0 || session.Results != nil {
		t.Fatalf("expected fresh session, got %+v", session)
	}
}

func TestPreviousRestoresRecordedAnswer(t *testing.T) {
	m, _, _ := newTestMachine(t, WithAutoAdvance(false))
	if err := m.Start(testSettings(3)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	q, _ := m.CurrentQuestion()
	m.Answer(q.Note.Name, nil, model.InputMouse)
	m.Next()
	if m.AnswerShown() {
		t.Fatalf("new question must not show an answer")
	}
	m.Previous()
	if !m.AnswerShown() {
		t.Fatalf("previous must restore the recorded answer display")
	}
	restored, _ := m.CurrentQuestion()
	if restored.UserAnswer != q.Note.Name {
		t.Fatalf("restored answer = %q, want %q", restored.UserAnswer, q.Note.Name)
	}
}

func TestPauseResumeDoesNotTouchQuestions(t *testing.T) {
	m, _, _ := newTestMachine(t, WithAutoAdvance(false))
	if err := m.Start(testSettings(3)); err != nil {
		t.Fatalf("Start: %v", err)
	}
	q, _ := m.CurrentQuestion()
	m.Answer(q.Note.Name, nil, model.InputMouse)
	before, _ := m.Session()
	if err := m.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if m.State() != StatePaused {
		t.Fatalf("state = %s, want paused", m.State())
	}
	if err := m.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	after, _ := m.Session()
	if len(before.Questions) != len(after.Questions) || before.Questions[0].UserAnswer != after.Questions[0].UserAnswer {
		t.Fatalf("pause/resume mutated question data")
	}
}

func TestPauseWithoutSessionRefused(t *testing.T) {
	m, _, _ := newTestMachine(t)
	if err := m.Pause(); err == nil {
		t.Fatalf("expected error pausing without a session")
	}
	if err := m.Resume(); err == nil {
		t.Fatalf("expected error resuming without a session")
	}
}
