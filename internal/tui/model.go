// Package tui provides the Bubble Tea practice interface.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hong8300/onpu-yomail/internal/generator"
	"github.com/hong8300/onpu-yomail/internal/history"
	"github.com/hong8300/onpu-yomail/internal/midi"
	"github.com/hong8300/onpu-yomail/internal/model"
	"github.com/hong8300/onpu-yomail/internal/session"
	statsPkg "github.com/hong8300/onpu-yomail/internal/stats"
)

var noteNames = []string{"C", "D", "E", "F", "G", "A", "B"}

var (
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	staffStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	noteStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	correctStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A")).Bold(true)
	wrongStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	buttonStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#B0B0B0")).Padding(0, 1).Border(lipgloss.RoundedBorder(), true).BorderForeground(lipgloss.Color("#4A4A4A"))
	selectedStyle = buttonStyle.Copy().Foreground(lipgloss.Color("#F0F0F0")).Bold(true).BorderForeground(lipgloss.Color("#C89A3A"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
)

type midiNoteMsg midi.NoteEvent

type sessionDoneMsg model.Session

type advanceTickMsg struct{}

// Model implements the Bubble Tea practice UI.
type Model struct {
	machine *session.Machine
	midiSvc *midi.Service
	histSvc *history.Service

	appCfg          model.AppSettings
	sessionSettings model.SessionSettings

	width  int
	height int

	renderer  NoteRenderer
	selection int
	errMsg    string

	overall    model.OverallStatistics
	hasOverall bool

	midiEvents chan midi.NoteEvent
	done       chan model.Session
	sub        midi.Subscription
	subscribed bool
}

// NewModel constructs a practice TUI model. midiSvc may be nil when no
// MIDI backend is available.
func NewModel(gen *generator.Generator, midiSvc *midi.Service, histSvc *history.Service, appCfg model.AppSettings, sessionSettings model.SessionSettings) *Model {
	m := &Model{
		midiSvc:         midiSvc,
		histSvc:         histSvc,
		appCfg:          appCfg,
		sessionSettings: sessionSettings,
		renderer:        NewStaffRenderer(),
		done:            make(chan model.Session, 1),
	}
	m.machine = session.New(gen,
		session.WithAutoAdvance(appCfg.Practice.AutoAdvance),
		session.WithOnComplete(func(s model.Session) {
			select {
			case m.done <- s:
			default:
			}
		}),
	)
	if midiSvc != nil && midiSvc.Supported() && appCfg.Practice.EnableMidi {
		m.midiEvents = make(chan midi.NoteEvent, 16)
		m.sub = midiSvc.Subscribe(func(ev midi.NoteEvent) {
			select {
			case m.midiEvents <- ev:
			default:
			}
		})
		m.subscribed = true
	}
	m.loadOverall()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.waitDone()}
	if m.midiEvents != nil {
		cmds = append(cmds, m.waitMidi())
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case midiNoteMsg:
		cmd := m.handleMidiNote(midi.NoteEvent(msg))
		return m, tea.Batch(m.waitMidi(), cmd)
	case sessionDoneMsg:
		m.persistSession(model.Session(msg))
		return m, m.waitDone()
	case advanceTickMsg:
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	var content string
	switch m.machine.State() {
	case session.StateSetup:
		content = m.viewSetup()
	case session.StateCompleted:
		content = m.viewResults()
	default:
		content = m.viewQuestion()
	}
	if m.width == 0 || m.height == 0 {
		return content
	}
	footer := m.renderFooter()
	if footer == "" || m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	bodyHeight := m.height - 1
	body := lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

// SetRenderer swaps in an alternative note renderer. Must be called
// before the program starts.
func (m *Model) SetRenderer(r NoteRenderer) {
	if r != nil {
		m.renderer = r
	}
}

// Close cancels the MIDI subscription.
func (m *Model) Close() {
	if m.subscribed {
		m.sub.Cancel()
		m.subscribed = false
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
		m.Close()
		return m, tea.Quit
	}

	switch m.machine.State() {
	case session.StateSetup:
		if msg.Type == tea.KeyEnter {
			m.startSession()
		}
		return m, nil
	case session.StateCompleted:
		if msg.Type == tea.KeyEnter || msg.String() == "r" {
			m.startSession()
		}
		return m, nil
	case session.StatePaused:
		if msg.String() == "p" {
			if err := m.machine.Resume(); err != nil {
				m.errMsg = err.Error()
			}
		}
		return m, nil
	}

	// Playing.
	switch msg.String() {
	case "p":
		if err := m.machine.Pause(); err != nil {
			m.errMsg = err.Error()
		}
		return m, nil
	case "left", "h":
		if m.machine.AnswerShown() {
			m.machine.Previous()
		} else {
			m.moveSelection(-1)
		}
		return m, nil
	case "right", "l":
		if m.machine.AnswerShown() {
			m.machine.Next()
		} else {
			m.moveSelection(1)
		}
		return m, nil
	case "enter", " ":
		if m.machine.AnswerShown() {
			m.machine.Next()
			return m, nil
		}
		return m, m.answer(noteNames[m.selection])
	case "c", "d", "e", "f", "g", "a", "b":
		if m.machine.AnswerShown() {
			return m, nil
		}
		name := strings.ToUpper(msg.String())
		for i, n := range noteNames {
			if n == name {
				m.selection = i
			}
		}
		return m, m.answer(name)
	default:
		return m, nil
	}
}

// answer records a pointer-path answer and schedules a refresh for when
// the auto-advance timer is due.
func (m *Model) answer(name string) tea.Cmd {
	accepted, _ := m.machine.Answer(name, nil, model.InputMouse)
	if !accepted || !m.appCfg.Practice.AutoAdvance {
		return nil
	}
	return m.advanceTick(session.AdvanceDelayPointer)
}

func (m *Model) handleMidiNote(ev midi.NoteEvent) tea.Cmd {
	if m.machine.State() != session.StatePlaying || m.machine.AnswerShown() {
		return nil
	}
	octave := ev.Octave
	accepted, _ := m.machine.Answer(ev.Name, &octave, model.InputMIDI)
	if !accepted || !m.appCfg.Practice.AutoAdvance {
		return nil
	}
	return m.advanceTick(session.AdvanceDelayMIDI)
}

func (m *Model) advanceTick(delay time.Duration) tea.Cmd {
	return tea.Tick(delay+50*time.Millisecond, func(time.Time) tea.Msg {
		return advanceTickMsg{}
	})
}

func (m *Model) waitMidi() tea.Cmd {
	if m.midiEvents == nil {
		return nil
	}
	return func() tea.Msg {
		return midiNoteMsg(<-m.midiEvents)
	}
}

func (m *Model) waitDone() tea.Cmd {
	return func() tea.Msg {
		return sessionDoneMsg(<-m.done)
	}
}

func (m *Model) startSession() {
	m.errMsg = ""
	m.selection = 0
	if err := m.machine.Start(m.sessionSettings); err != nil {
		m.errMsg = err.Error()
	}
}

func (m *Model) persistSession(s model.Session) {
	h, err := m.histSvc.Add(context.Background(), s)
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to save session: %v", err)
		return
	}
	m.overall = h.OverallStats
	m.hasOverall = true
}

func (m *Model) loadOverall() {
	h, err := m.histSvc.Load(context.Background())
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to load history: %v", err)
		return
	}
	if h.OverallStats.TotalSessions > 0 {
		m.overall = h.OverallStats
		m.hasOverall = true
	}
}

func (m *Model) viewSetup() string {
	s := m.sessionSettings
	lines := []string{
		titleStyle.Render("Note Reading Practice"),
		"",
		hintStyle.Render(fmt.Sprintf("Clef: %s   Range: %s-%s   Questions: %d",
			s.Clef, s.NoteRange.Min, s.NoteRange.Max, s.TotalQuestions)),
		hintStyle.Render("MIDI: " + m.midiStatus()),
		"",
		"Press enter to start",
	}
	if m.errMsg != "" {
		lines = append(lines, "", errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) midiStatus() string {
	if m.midiSvc == nil || !m.midiSvc.Supported() {
		return "not available"
	}
	if !m.appCfg.Practice.EnableMidi {
		return "disabled"
	}
	if m.midiSvc.Connected() {
		devices := m.midiSvc.Devices()
		if len(devices) > 0 {
			return "connected (" + devices[0].Name + ")"
		}
		return "connected"
	}
	return "disconnected"
}

func (m *Model) viewQuestion() string {
	q, ok := m.machine.CurrentQuestion()
	if !ok {
		return ""
	}
	sess, _ := m.machine.Session()

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Question %d of %d", sess.CurrentQuestionIndex+1, len(sess.Questions))))
	b.WriteString("\n\n")

	result := NotePending
	if q.Answered() && q.IsCorrect != nil {
		if *q.IsCorrect {
			result = NoteCorrect
		} else {
			result = NoteWrong
		}
	}
	b.WriteString(m.renderer.Render(q.Note, result))
	b.WriteString("\n\n")
	b.WriteString(m.renderAnswers(q))
	b.WriteString("\n")
	b.WriteString(m.renderFeedback(q))

	if m.machine.State() == session.StatePaused {
		b.WriteString("\n\n")
		b.WriteString(titleStyle.Render("Paused — press p to resume"))
	}
	if m.errMsg != "" {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(m.errMsg))
	}
	return b.String()
}

func (m *Model) renderAnswers(q model.Question) string {
	parts := make([]string, 0, len(noteNames))
	for i, name := range noteNames {
		style := buttonStyle
		switch {
		case q.Answered() && q.UserAnswer == name && q.IsCorrect != nil && *q.IsCorrect:
			style = selectedStyle.Copy().BorderForeground(lipgloss.Color("#52C41A"))
		case q.Answered() && q.UserAnswer == name:
			style = selectedStyle.Copy().BorderForeground(lipgloss.Color("#FF4D4F"))
		case !q.Answered() && i == m.selection:
			style = selectedStyle
		}
		parts = append(parts, style.Render(name))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderFeedback(q model.Question) string {
	if !q.Answered() || q.IsCorrect == nil {
		return hintStyle.Render("Name the note: c-b keys or arrows + enter")
	}
	if *q.IsCorrect {
		return correctStyle.Render("Correct!")
	}
	return wrongStyle.Render("It was " + q.Note.String())
}

func (m *Model) viewResults() string {
	sess, ok := m.machine.Session()
	if !ok || sess.Results == nil {
		return titleStyle.Render("Session complete")
	}
	r := sess.Results

	lines := []string{
		titleStyle.Render("Session Complete"),
		"",
		fmt.Sprintf("Score: %d/%d (%.1f%%)", r.CorrectAnswers, r.TotalQuestions, r.Accuracy),
		fmt.Sprintf("Average response: %.0f ms", r.AverageResponseTime),
		fmt.Sprintf("Total time: %s", (time.Duration(r.TotalTime) * time.Millisecond).Round(time.Second)),
	}
	if len(r.ProblemNotes) > 0 {
		lines = append(lines, "", hintStyle.Render("Notes to work on:"))
		table := statsPkg.FormatTable(
			statsPkg.NoteTableHeaders(),
			statsPkg.NoteTableRows(r.ProblemNotes),
			map[int]bool{2: true, 3: true, 4: true, 5: true},
		)
		for _, row := range table {
			lines = append(lines, hintStyle.Render(row))
		}
	}
	lines = append(lines, "", "Press enter to practice again, q to quit")
	if m.errMsg != "" {
		lines = append(lines, "", errorStyle.Render(m.errMsg))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderFooter() string {
	segments := []string{}
	if sess, ok := m.machine.Session(); ok && m.machine.State() != session.StateCompleted {
		answered := 0
		for _, q := range sess.Questions {
			if q.Answered() {
				answered++
			}
		}
		progress := 0
		if len(sess.Questions) > 0 {
			progress = answered * 100 / len(sess.Questions)
		}
		segments = append(segments, fmt.Sprintf("Progress %d%%", progress))
	}
	if m.hasOverall {
		segments = append(segments, fmt.Sprintf("All-time %.1f%%", m.overall.OverallAccuracy))
		if m.overall.StreakDays > 0 {
			segments = append(segments, fmt.Sprintf("Streak %dd", m.overall.StreakDays))
		}
	}
	segments = append(segments, "p pause · q quit")
	return footerStyle.Render(strings.Join(segments, "  "))
}

func (m *Model) moveSelection(delta int) {
	next := m.selection + delta
	if next < 0 {
		next = len(noteNames) - 1
	}
	if next >= len(noteNames) {
		next = 0
	}
	m.selection = next
}
