package stats

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/hong8300/onpu-yomail/internal/model"
)

func boolPtr(v bool) *bool { return &v }

func answeredQuestion(note string, octave int, correct bool, responseMs int64) model.Question {
	return model.Question{
		Note:         model.Note{Name: note, Octave: octave, Clef: model.ClefTreble},
		UserAnswer:   note,
		IsCorrect:    boolPtr(correct),
		ResponseTime: responseMs,
		Timestamp:    time.Now(),
	}
}

func sealedSession(questions ...model.Question) model.Session {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	return model.Session{
		ID:        "s1",
		StartTime: start,
		EndTime:   &end,
		Settings: model.SessionSettings{
			TotalQuestions: len(questions),
			Clef:           model.ClefBoth,
		},
		Questions: questions,
	}
}

func TestScoreSessionTwoOfThree(t *testing.T) {
	session := sealedSession(
		answeredQuestion("C", 4, true, 1000),
		answeredQuestion("D", 4, true, 2000),
		answeredQuestion("E", 4, false, 3000),
	)
	result := ScoreSession(session)
	if result.TotalQuestions != 3 || result.CorrectAnswers != 2 {
		t.Fatalf("counts = %d/%d, want 3/2", result.TotalQuestions, result.CorrectAnswers)
	}
	if math.Abs(result.Accuracy-66.666) > 0.1 {
		t.Fatalf("accuracy = %.3f, want ~66.7", result.Accuracy)
	}
	if result.AverageResponseTime != 2000 {
		t.Fatalf("avg response = %.1f, want 2000", result.AverageResponseTime)
	}
	if result.TotalTime != 90_000 {
		t.Fatalf("total time = %d, want 90000", result.TotalTime)
	}
}

func TestScoreSessionIdempotent(t *testing.T) {
	session := sealedSession(
		answeredQuestion("C", 4, true, 1000),
		answeredQuestion("C", 4, false, 1500),
		answeredQuestion("G", 3, false, 500),
	)
	first := ScoreSession(session)
	second := ScoreSession(session)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("scoring is not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestScoreSessionIgnoresUnanswered(t *testing.T) {
	session := sealedSession(
		answeredQuestion("C", 4, true, 1000),
		model.Question{Note: model.Note{Name: "D", Octave: 4, Clef: model.ClefTreble}},
	)
	result := ScoreSession(session)
	if result.TotalQuestions != 1 {
		t.Fatalf("unanswered questions must not count, got %d", result.TotalQuestions)
	}
	if result.Accuracy != 100 {
		t.Fatalf("accuracy = %.1f, want 100", result.Accuracy)
	}
}

func TestScoreSessionEmptyAnswers(t *testing.T) {
	session := sealedSession(
		model.Question{Note: model.Note{Name: "C", Octave: 4}},
	)
	result := ScoreSession(session)
	if result.Accuracy != 0 || result.TotalQuestions != 0 {
		t.Fatalf("expected zero accuracy for no answers, got %+v", result)
	}
}

func TestProblemNotesThresholdAndOrder(t *testing.T) {
	// C4: 2 attempts 0 correct (error 1.0), D4: 2 attempts 1 correct
	// (error 0.5), E4: 3 attempts 3 correct (error 0).
	session := sealedSession(
		answeredQuestion("C", 4, false, 100),
		answeredQuestion("C", 4, false, 100),
		answeredQuestion("D", 4, false, 100),
		answeredQuestion("D", 4, true, 100),
		answeredQuestion("E", 4, true, 100),
		answeredQuestion("E", 4, true, 100),
		answeredQuestion("E", 4, true, 100),
	)
	result := ScoreSession(session)
	if len(result.ProblemNotes) != 2 {
		t.Fatalf("expected 2 problem notes, got %+v", result.ProblemNotes)
	}
	if result.ProblemNotes[0].Note != "C4" || result.ProblemNotes[1].Note != "D4" {
		t.Fatalf("unexpected problem order: %+v", result.ProblemNotes)
	}
}

func TestScoreSessionInputMethodTally(t *testing.T) {
	midiAnswer := answeredQuestion("C", 4, true, 100)
	midiAnswer.InputMethod = model.InputMIDI
	mouseAnswer := answeredQuestion("D", 4, true, 100)
	mouseAnswer.InputMethod = model.InputMouse
	result := ScoreSession(sealedSession(midiAnswer, mouseAnswer))
	if result.InputMethodStats.MIDI != 1 || result.InputMethodStats.Mouse != 1 {
		t.Fatalf("unexpected tally: %+v", result.InputMethodStats)
	}
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil, time.Now())
	if stats.TotalSessions != 0 || stats.OverallAccuracy != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
	if len(stats.StrongNotes) != 0 || len(stats.WeakNotes) != 0 {
		t.Fatalf("expected empty note lists, got %+v", stats)
	}
	if stats.FavoriteClef != model.ClefTreble {
		t.Fatalf("expected treble default, got %s", stats.FavoriteClef)
	}
}

func resultSession(start time.Time, clef model.Clef, result model.SessionResult) model.Session {
	end := start.Add(time.Minute)
	return model.Session{
		StartTime: start,
		EndTime:   &end,
		Settings:  model.SessionSettings{Clef: clef},
		Results:   &result,
	}
}

func TestAggregateTotalsAndFavoriteClef(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sessions := []model.Session{
		resultSession(now.Add(-2*time.Hour), model.ClefBoth, model.SessionResult{TotalQuestions: 10, CorrectAnswers: 8, TotalTime: 60_000}),
		resultSession(now.Add(-26*time.Hour), model.ClefBass, model.SessionResult{TotalQuestions: 10, CorrectAnswers: 6, TotalTime: 60_000}),
		resultSession(now.Add(-50*time.Hour), model.ClefTreble, model.SessionResult{TotalQuestions: 10, CorrectAnswers: 10, TotalTime: 60_000}),
	}
	stats := Aggregate(sessions, now)
	if stats.TotalSessions != 3 || stats.TotalQuestions != 30 || stats.TotalCorrectAnswers != 24 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.OverallAccuracy != 80 {
		t.Fatalf("accuracy = %.1f, want 80", stats.OverallAccuracy)
	}
	// "both" counts toward treble: treble 2, bass 1.
	if stats.FavoriteClef != model.ClefTreble {
		t.Fatalf("favorite clef = %s, want treble", stats.FavoriteClef)
	}
	if stats.StreakDays != 1 {
		t.Fatalf("expected streak day for recent session")
	}
}

func TestAggregateStreakExpires(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sessions := []model.Session{
		resultSession(now.Add(-72*time.Hour), model.ClefTreble, model.SessionResult{TotalQuestions: 5, CorrectAnswers: 5}),
	}
	stats := Aggregate(sessions, now)
	if stats.StreakDays != 0 {
		t.Fatalf("expected no streak for stale session")
	}
}

func TestAggregateSkipsUnscoredSessions(t *testing.T) {
	now := time.Now()
	sessions := []model.Session{
		{StartTime: now},
		resultSession(now, model.ClefTreble, model.SessionResult{TotalQuestions: 4, CorrectAnswers: 2}),
	}
	stats := Aggregate(sessions, now)
	if stats.TotalSessions != 1 || stats.TotalQuestions != 4 {
		t.Fatalf("sessions without results must not count: %+v", stats)
	}
}

func TestAggregateStrongWeakNotes(t *testing.T) {
	now := time.Now()
	result := model.SessionResult{
		TotalQuestions: 20,
		CorrectAnswers: 15,
		ProblemNotes: []model.NoteStatistic{
			{Note: "C4", Attempts: 6, Correct: 6},
			{Note: "D4", Attempts: 4, Correct: 1},
			{Note: "E4", Attempts: 2, Correct: 0},
		},
	}
	stats := Aggregate([]model.Session{resultSession(now, model.ClefTreble, result)}, now)
	if len(stats.StrongNotes) != 1 || stats.StrongNotes[0] != "C4" {
		t.Fatalf("strong notes = %v, want [C4]", stats.StrongNotes)
	}
	// D4 qualifies (4 attempts, 25%); E4 has too few attempts.
	if len(stats.WeakNotes) != 1 || stats.WeakNotes[0] != "D4" {
		t.Fatalf("weak notes = %v, want [D4]", stats.WeakNotes)
	}
}
