package tui

import (
	"io"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/0xcro3dile/reqcheck/internal/domain/entities"
)

// Controller runs the live view in the background and feeds it progress.
type Controller struct {
	events    chan entities.Progress
	program   *tea.Program
	done      chan struct{}
	closeOnce sync.Once
}

// Start launches the live view writing to out.
func Start(out io.Writer, opts Options) *Controller {
	if out == nil {
		out = os.Stdout
	}
	events := make(chan entities.Progress, 256)
	program := tea.NewProgram(NewModel(events, opts), tea.WithOutput(out))
	c := &Controller{
		events:  events,
		program: program,
		done:    make(chan struct{}),
	}
	go func() {
		_, _ = program.Run()
		close(c.done)
	}()
	return c
}

// Progress forwards an update without blocking the caller. It has the
// signature of usecases.ProgressFunc.
func (c *Controller) Progress(p entities.Progress) {
	if c == nil {
		return
	}
	select {
	case c.events <- p:
	default:
	}
}

// Close ends the progress stream; the view renders its final state and exits.
func (c *Controller) Close() {
	if c == nil {
		return
	}
	c.closeOnce.Do(func() { close(c.events) })
}

// Wait blocks until the view has exited.
func (c *Controller) Wait() {
	if c == nil {
		return
	}
	<-c.done
}
