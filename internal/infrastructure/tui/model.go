package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

const maxBarWidth = 60

// Options configures the live view.
type Options struct {
	// Title is shown above the bar, usually the document name.
	Title   string
	NoColor bool
	// OnInterrupt is called when the user presses ctrl+c.
	OnInterrupt func()
}

// Model is the Bubble Tea model of the analysis progress view.
type Model struct {
	opts        Options
	bar         progress.Model
	events      <-chan entities.Progress
	last        entities.Progress
	started     time.Time
	now         time.Time
	interrupted bool
	finished    bool
}

// ProgressMsg wraps a progress update for Bubble Tea.
type ProgressMsg entities.Progress

// doneMsg signals that the progress stream has ended.
type doneMsg struct{}

type tickMsg time.Time

// NewModel constructs a model reading progress updates from events.
func NewModel(events <-chan entities.Progress, opts Options) Model {
	barOpts := []progress.Option{progress.WithWidth(maxBarWidth - 20)}
	if opts.NoColor {
		barOpts = append(barOpts, progress.WithSolidFill("7"), progress.WithFillCharacters('#', '-'))
	} else {
		barOpts = append(barOpts, progress.WithDefaultGradient())
	}
	now := time.Now()
	return Model{
		opts:    opts,
		bar:     progress.New(barOpts...),
		events:  events,
		started: now,
		now:     now,
	}
}

// Init waits for the first update and starts the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForProgress(m.events), tick())
}

// Update consumes progress updates, ticks and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(max(typed.Width-20, 10), maxBarWidth)
		return m, nil
	case tea.KeyMsg:
		if typed.Type == tea.KeyCtrlC {
			m.interrupted = true
			if m.opts.OnInterrupt != nil {
				m.opts.OnInterrupt()
			}
			return m, tea.Quit
		}
		return m, nil
	case ProgressMsg:
		m.last = entities.Progress(typed)
		return m, waitForProgress(m.events)
	case doneMsg:
		m.finished = true
		return m, tea.Quit
	case tickMsg:
		m.now = time.Time(typed)
		return m, tick()
	}
	return m, nil
}

// View renders the title, the bar with counts and the question in flight.
func (m Model) View() string {
	title := m.opts.Title
	if title == "" {
		title = "Analyzing document"
	}
	elapsed := m.now.Sub(m.started).Round(time.Second)
	header := stylize(fmt.Sprintf("%s  %s", title, elapsed), m.opts.NoColor, lipgloss.Color("33"), true)

	counts := fmt.Sprintf("%d/%d", m.last.Done, m.last.Total)
	bar := lipgloss.JoinHorizontal(lipgloss.Center, m.bar.ViewAs(m.last.Fraction()), "  ", counts)

	var status string
	switch {
	case m.interrupted:
		status = stylize("Interrupted", m.opts.NoColor, lipgloss.Color("208"), false)
	case m.finished:
		status = stylize("Done", m.opts.NoColor, lipgloss.Color("70"), false)
	case m.last.Aspect != "":
		status = stylize(m.last.Aspect+": "+m.last.Question, m.opts.NoColor, lipgloss.Color("242"), false)
	default:
		status = stylize("Waiting for the first answer...", m.opts.NoColor, lipgloss.Color("242"), false)
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, bar, status) + "\n"
}

// waitForProgress blocks until an update arrives or the stream closes.
func waitForProgress(events <-chan entities.Progress) tea.Cmd {
	return func() tea.Msg {
		p, ok := <-events
		if !ok {
			return doneMsg{}
		}
		return ProgressMsg(p)
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func stylize(text string, noColor bool, color lipgloss.Color, bold bool) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Bold(bold).Render(text)
}
