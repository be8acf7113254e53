package interactive

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/adamancini/hoist/internal/types"
	"github.com/adamancini/hoist/internal/update"
)

const barWidth = 40

var (
	labelStyle = lipgloss.NewStyle().Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

// ProgressView renders coordinator status to a writer. On a terminal the
// current line is redrawn with a progress bar; otherwise one line is
// printed per state change.
type ProgressView struct {
	mu    sync.Mutex
	out   io.Writer
	tty   bool
	bar   progress.Model
	state types.AttemptState
	drawn bool
}

// NewProgressView creates a view writing to out.
func NewProgressView(out io.Writer, tty bool) *ProgressView {
	return &ProgressView{
		out: out,
		tty: tty,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth)),
	}
}

// OnStatus implements update.Observer.
func (v *ProgressView) OnStatus(s update.Status) {
	v.mu.Lock()
	defer v.mu.Unlock()

	changed := s.State != v.state
	v.state = s.State

	if !v.tty {
		if changed && s.IsUpdating {
			_, _ = fmt.Fprintln(v.out, s.Text)
		}
		return
	}

	if changed && v.drawn {
		_, _ = fmt.Fprintln(v.out)
	}
	if !s.IsUpdating {
		v.drawn = false
		return
	}

	line := labelStyle.Render(s.Text)
	switch {
	case s.State == types.StateFetching && s.Indeterminate:
		line += " " + dimStyle.Render("(size unknown)")
	case s.State == types.StateFetching:
		line = v.bar.ViewAs(s.ProgressFraction) + " " + line
	}
	_, _ = fmt.Fprintf(v.out, "\r\033[K%s", line)
	v.drawn = true
}

// OnFinish implements update.Observer.
func (v *ProgressView) OnFinish(r update.Result) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.tty && v.drawn {
		_, _ = fmt.Fprintln(v.out)
		v.drawn = false
	}
	v.state = r.State
}
