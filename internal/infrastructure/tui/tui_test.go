package tui

import (
	"bytes"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

func TestResolveMode(t *testing.T) {
	cases := []struct {
		name     string
		mode     string
		isTTY    bool
		wantLive bool
		wantWarn bool
		wantErr  bool
	}{
		{name: "auto tty", mode: "auto", isTTY: true, wantLive: true},
		{name: "empty is auto", mode: "", isTTY: true, wantLive: true},
		{name: "auto non-tty", mode: "auto", isTTY: false},
		{name: "plain", mode: "plain", isTTY: true},
		{name: "live tty", mode: "LIVE", isTTY: true, wantLive: true},
		{name: "live non-tty warning", mode: "live", isTTY: false, wantWarn: true},
		{name: "invalid", mode: "fancy", wantErr: true},
	}

	original := isTerminal
	t.Cleanup(func() { isTerminal = original })

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			isTerminal = func(io.Writer) bool { return tc.isTTY }
			d, err := ResolveMode(tc.mode, nil)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantLive, d.Live)
			assert.Equal(t, tc.wantWarn, d.Warning != "")
		})
	}
}

func TestDefaultIsTerminal_Buffer(t *testing.T) {
	assert.False(t, defaultIsTerminal(&bytes.Buffer{}))
	assert.False(t, defaultIsTerminal(nil))
}

func TestPlainProgress(t *testing.T) {
	var buf bytes.Buffer
	report := PlainProgress(&buf)
	report(entities.Progress{Done: 1, Total: 2, Aspect: "Security", Question: "Is data encrypted?"})
	report(entities.Progress{Done: 2, Total: 2, Aspect: "Security", Question: "Who holds keys?"})

	assert.Equal(t, "[1/2] Security: Is data encrypted?\n[2/2] Security: Who holds keys?\n", buf.String())
}

func TestModel_ProgressUpdates(t *testing.T) {
	events := make(chan entities.Progress, 1)
	m := NewModel(events, Options{Title: "rfp.docx", NoColor: true})

	view := m.View()
	assert.Contains(t, view, "rfp.docx")
	assert.Contains(t, view, "0/0")
	assert.Contains(t, view, "Waiting")

	next, cmd := m.Update(ProgressMsg{Done: 3, Total: 5, Aspect: "Security", Question: "Is data encrypted?"})
	require.NotNil(t, cmd)
	m = next.(Model)

	view = m.View()
	assert.Contains(t, view, "3/5")
	assert.Contains(t, view, "60%")
	assert.Contains(t, view, "Security: Is data encrypted?")

	// the returned command waits for the next update
	events <- entities.Progress{Done: 4, Total: 5}
	assert.Equal(t, ProgressMsg{Done: 4, Total: 5}, cmd())
}

func TestModel_StreamEndQuits(t *testing.T) {
	events := make(chan entities.Progress)
	close(events)
	m := NewModel(events, Options{NoColor: true})

	msg := waitForProgress(events)()
	assert.Equal(t, doneMsg{}, msg)

	next, cmd := m.Update(msg)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, next.(Model).View(), "Done")
}

func TestModel_CtrlCInterrupts(t *testing.T) {
	interrupted := false
	m := NewModel(nil, Options{NoColor: true, OnInterrupt: func() { interrupted = true }})

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.True(t, interrupted)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Contains(t, next.(Model).View(), "Interrupted")
}

func TestModel_WindowResizeClampsBar(t *testing.T) {
	m := NewModel(nil, Options{NoColor: true})

	next, _ := m.Update(tea.WindowSizeMsg{Width: 500, Height: 40})
	assert.Equal(t, maxBarWidth, next.(Model).bar.Width)

	next, _ = m.Update(tea.WindowSizeMsg{Width: 15, Height: 40})
	assert.Equal(t, 10, next.(Model).bar.Width)
}

func TestModel_TickAdvancesClock(t *testing.T) {
	m := NewModel(nil, Options{NoColor: true})
	later := m.started.Add(65 * time.Second)

	next, cmd := m.Update(tickMsg(later))
	assert.NotNil(t, cmd)
	assert.Contains(t, next.(Model).View(), "1m5s")
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller
	c.Progress(entities.Progress{})
	c.Close()
	c.Wait()
}
