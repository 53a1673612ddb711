// Package stats contains statistics calculations and reporting.
package stats

import (
	"sort"
	"time"

	"github.com/hong8300/onpu-yomail/internal/model"
)

const (
	problemErrorRate  = 0.3
	strongMinAttempts = 5
	strongMinAccuracy = 0.9
	weakMinAttempts   = 3
	weakMaxAccuracy   = 0.7
	topNotes          = 5
)

// ScoreSession computes the result of one sealed session. Only questions
// with a recorded answer count. Calling it twice on the same session
// yields identical results.
func ScoreSession(session model.Session) model.SessionResult {
	var answered []model.Question
	for _, q := range session.Questions {
		if q.Answered() {
			answered = append(answered, q)
		}
	}

	correct := 0
	var methods model.InputMethodStats
	for _, q := range answered {
		if q.IsCorrect != nil && *q.IsCorrect {
			correct++
		}
		switch q.InputMethod {
		case model.InputMIDI:
			methods.MIDI++
		default:
			methods.Mouse++
		}
	}

	var totalTime int64
	if session.EndTime != nil {
		totalTime = session.EndTime.Sub(session.StartTime).Milliseconds()
	}

	var responseSum int64
	responseCount := 0
	for _, q := range answered {
		if q.ResponseTime > 0 {
			responseSum += q.ResponseTime
			responseCount++
		}
	}
	averageResponse := 0.0
	if responseCount > 0 {
		averageResponse = float64(responseSum) / float64(responseCount)
	}

	accuracy := 0.0
	if len(answered) > 0 {
		accuracy = float64(correct) / float64(len(answered)) * 100
	}

	return model.SessionResult{
		TotalQuestions:      len(answered),
		CorrectAnswers:      correct,
		Accuracy:            accuracy,
		TotalTime:           totalTime,
		AverageResponseTime: averageResponse,
		ProblemNotes:        problemNotes(answered),
		InputMethodStats:    methods,
	}
}

// problemNotes keys per-note stats on name+octave and keeps every note
// whose error rate exceeds 30%, sorted by error rate descending.
func problemNotes(answered []model.Question) []model.NoteStatistic {
	byNote := map[string]*model.NoteStatistic{}
	var order []string
	for _, q := range answered {
		key := q.Note.String()
		stat, ok := byNote[key]
		if !ok {
			stat = &model.NoteStatistic{Note: key, Clef: q.Note.Clef}
			byNote[key] = stat
			order = append(order, key)
		}
		stat.Attempts++
		if q.IsCorrect != nil && *q.IsCorrect {
			stat.Correct++
		}
		if q.ResponseTime > 0 {
			// Running (avg+new)/2 form, kept compatible with
			// previously exported histories.
			stat.AverageResponseTime = (stat.AverageResponseTime + float64(q.ResponseTime)) / 2
		}
	}

	var problems []model.NoteStatistic
	for _, key := range order {
		stat := byNote[key]
		stat.ErrorRate = float64(stat.Attempts-stat.Correct) / float64(stat.Attempts)
		if stat.ErrorRate > problemErrorRate {
			problems = append(problems, *stat)
		}
	}
	sort.SliceStable(problems, func(i, j int) bool {
		return problems[i].ErrorRate > problems[j].ErrorRate
	})
	return problems
}

// Aggregate recomputes the overall statistics from the full session log.
// Only sessions carrying a result contribute. now anchors the streak
// check.
func Aggregate(sessions []model.Session, now time.Time) model.OverallStatistics {
	zero := model.OverallStatistics{
		FavoriteClef: model.ClefTreble,
		StrongNotes:  []string{},
		WeakNotes:    []string{},
	}
	if len(sessions) == 0 {
		return zero
	}

	var completed []model.Session
	for _, s := range sessions {
		if s.Results != nil {
			completed = append(completed, s)
		}
	}
	if len(completed) == 0 {
		return zero
	}

	stats := zero
	stats.TotalSessions = len(completed)
	for _, s := range completed {
		stats.TotalQuestions += s.Results.TotalQuestions
		stats.TotalCorrectAnswers += s.Results.CorrectAnswers
		stats.TotalPracticeTime += s.Results.TotalTime
	}
	if stats.TotalQuestions > 0 {
		stats.OverallAccuracy = float64(stats.TotalCorrectAnswers) / float64(stats.TotalQuestions) * 100
	}
	stats.FavoriteClef = favoriteClef(completed)
	stats.StrongNotes, stats.WeakNotes = strongAndWeakNotes(completed)

	last := completed[0].StartTime
	for _, s := range completed[1:] {
		if s.StartTime.After(last) {
			last = s.StartTime
		}
	}
	lastCopy := last
	stats.LastPracticeDate = &lastCopy
	// Simplified 0/1 recency check, not a true consecutive-day count.
	if days := int(now.Sub(last).Hours() / 24); days <= 1 {
		stats.StreakDays = 1
	}
	return stats
}

// favoriteClef counts sessions per clef, folding "both" into treble;
// ties resolve to the first-seen clef.
func favoriteClef(sessions []model.Session) model.Clef {
	counts := map[model.Clef]int{}
	var order []model.Clef
	for _, s := range sessions {
		clef := s.Settings.Clef
		if clef == model.ClefBoth {
			clef = model.ClefTreble
		}
		if _, ok := counts[clef]; !ok {
			order = append(order, clef)
		}
		counts[clef]++
	}
	best := model.ClefTreble
	bestCount := 0
	for _, clef := range order {
		if counts[clef] > bestCount {
			best = clef
			bestCount = counts[clef]
		}
	}
	return best
}

// strongAndWeakNotes sums each session's problem notes. Notes a learner
// always got right never appear in any problem list and so accumulate
// nothing here; the undercount is deliberate, matching the recorded
// histories.
func strongAndWeakNotes(sessions []model.Session) (strong, weak []string) {
	type tally struct {
		attempts int
		correct  int
	}
	totals := map[string]*tally{}
	var order []string
	for _, s := range sessions {
		for _, note := range s.Results.ProblemNotes {
			entry, ok := totals[note.Note]
			if !ok {
				entry = &tally{}
				totals[note.Note] = entry
				order = append(order, note.Note)
			}
			entry.attempts += note.Attempts
			entry.correct += note.Correct
		}
	}

	type scored struct {
		note     string
		accuracy float64
		attempts int
	}
	var notes []scored
	for _, key := range order {
		entry := totals[key]
		accuracy := 0.0
		if entry.attempts > 0 {
			accuracy = float64(entry.correct) / float64(entry.attempts)
		}
		notes = append(notes, scored{note: key, accuracy: accuracy, attempts: entry.attempts})
	}

	strong = []string{}
	weak = []string{}

	strongCandidates := filterScored(notes, func(n scored) bool {
		return n.attempts >= strongMinAttempts && n.accuracy >= strongMinAccuracy
	})
	sort.SliceStable(strongCandidates, func(i, j int) bool {
		return strongCandidates[i].accuracy > strongCandidates[j].accuracy
	})
	for i, n := range strongCandidates {
		if i >= topNotes {
			break
		}
		strong = append(strong, n.note)
	}

	weakCandidates := filterScored(notes, func(n scored) bool {
		return n.attempts >= weakMinAttempts && n.accuracy < weakMaxAccuracy
	})
	sort.SliceStable(weakCandidates, func(i, j int) bool {
		return weakCandidates[i].accuracy < weakCandidates[j].accuracy
	})
	for i, n := range weakCandidates {
		if i >= topNotes {
			break
		}
		weak = append(weak, n.note)
	}
	return strong, weak
}

func filterScored[T any](in []T, keep func(T) bool) []T {
	var out []T
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
