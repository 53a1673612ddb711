// Package stats contains statistics calculations and reporting.
package stats

import (
	"fmt"
	"sort"
	"time"

	"github.com/hong8300/onpu-yomail/internal/model"
)

// ReportConfig narrows the session log before rendering.
type ReportConfig struct {
	Since *time.Time
	Last  int
}

// Report contains precomputed data for stats rendering.
type Report struct {
	Sessions []model.Session
	Overall  model.OverallStatistics
	Notes    []model.NoteStatistic
}

// BuildReport prepares a loaded session log for stats rendering.
func BuildReport(h model.LearningHistory, cfg ReportConfig) Report {
	sessions := h.Sessions
	if cfg.Since != nil {
		filtered := make([]model.Session, 0, len(sessions))
		for _, s := range sessions {
			if !s.StartTime.Before(*cfg.Since) {
				filtered = append(filtered, s)
			}
		}
		sessions = filtered
	}
	if cfg.Last > 0 && len(sessions) > cfg.Last {
		sessions = sessions[len(sessions)-cfg.Last:]
	}
	return Report{
		Sessions: sessions,
		Overall:  h.OverallStats,
		Notes:    aggregateNotes(sessions),
	}
}

// aggregateNotes merges per-session problem notes into one row per
// note+clef, most attempts first.
func aggregateNotes(sessions []model.Session) []model.NoteStatistic {
	type key struct {
		note string
		clef model.Clef
	}
	index := map[key]int{}
	var out []model.NoteStatistic
	for _, s := range sessions {
		if s.Results == nil {
			continue
		}
		for _, ns := range s.Results.ProblemNotes {
			k := key{note: ns.Note, clef: ns.Clef}
			i, ok := index[k]
			if !ok {
				index[k] = len(out)
				out = append(out, ns)
				continue
			}
			merged := out[i]
			merged.Attempts += ns.Attempts
			merged.Correct += ns.Correct
			merged.AverageResponseTime = (merged.AverageResponseTime + ns.AverageResponseTime) / 2
			if merged.Attempts > 0 {
				merged.ErrorRate = 1 - float64(merged.Correct)/float64(merged.Attempts)
			}
			out[i] = merged
		}
	}
	sortNotesByAttempts(out)
	return out
}

// AccuracySeries extracts session accuracies in log order, oldest first.
func AccuracySeries(sessions []model.Session) []float64 {
	out := make([]float64, 0, len(sessions))
	for _, s := range sessions {
		if s.Results == nil {
			continue
		}
		out = append(out, s.Results.Accuracy)
	}
	return out
}

var sparklineLevels = []rune("▁▂▃▄▅▆▇█")

// Sparkline renders values as a row of block characters scaled 0-100.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	out := make([]rune, len(values))
	for i, v := range values {
		if v < 0 {
			v = 0
		}
		if v > 100 {
			v = 100
		}
		level := int(v / 100 * float64(len(sparklineLevels)-1))
		out[i] = sparklineLevels[level]
	}
	return string(out)
}

// NoteTableRows formats aggregated note rows for formatTable.
func NoteTableRows(notes []model.NoteStatistic) [][]string {
	rows := make([][]string, 0, len(notes))
	for _, ns := range notes {
		rows = append(rows, []string{
			ns.Note,
			string(ns.Clef),
			fmt.Sprintf("%.1f%%", (1-ns.ErrorRate)*100),
			fmt.Sprintf("%.0f", ns.AverageResponseTime),
			fmt.Sprintf("%d", ns.Correct),
			fmt.Sprintf("%d", ns.Attempts),
		})
	}
	return rows
}

// NoteTableHeaders matches the rows produced by NoteTableRows.
func NoteTableHeaders() []string {
	return []string{"Note", "Clef", "Accuracy", "Avg Response (ms)", "Correct", "Attempts"}
}

func sortNotesByAttempts(notes []model.NoteStatistic) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].Attempts != notes[j].Attempts {
			return notes[i].Attempts > notes[j].Attempts
		}
		return notes[i].Note < notes[j].Note
	})
}
