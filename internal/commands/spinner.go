package commands

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/ghostbar/internal/tui"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinner handles the animated loading indicator on stderr
type spinner struct {
	out     io.Writer
	message string
	colors  []lipgloss.Color
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	frame   int
	stopped bool
}

// newSpinner creates a spinner coloured by the current theme
func newSpinner(out io.Writer, message string) *spinner {
	theme := tui.CurrentTheme()
	return &spinner{
		out:     out,
		message: message,
		colors:  []lipgloss.Color{theme.Primary, theme.Secondary, theme.Accent},
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start begins the animation
func (s *spinner) start() {
	go func() {
		defer close(s.done)

		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		// Hide cursor
		fmt.Fprint(s.out, "\033[?25l")

		for {
			select {
			case <-s.stop:
				// Clear line and show cursor
				fmt.Fprint(s.out, "\r\033[K\033[?25h")
				return
			case <-ticker.C:
				s.mu.Lock()
				s.render()
				s.frame++
				s.mu.Unlock()
			}
		}
	}()
}

// render draws the current animation frame
func (s *spinner) render() {
	color := s.colors[(s.frame/len(spinnerFrames))%len(s.colors)]
	char := lipgloss.NewStyle().Foreground(color).Bold(true).Render(spinnerFrames[s.frame%len(spinnerFrames)])

	dots := strings.Repeat(".", (s.frame/4)%4)
	msg := lipgloss.NewStyle().Foreground(tui.CurrentTheme().TextDim).Render(s.message + dots)

	fmt.Fprintf(s.out, "\r\033[K%s %s", char, msg)
}

// halt closes the stop channel once and waits for the animation to exit.
// A nil spinner is a no-op so callers need not check decoration.
func (s *spinner) halt() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if !s.stopped {
		close(s.stop)
		s.stopped = true
	}
	s.mu.Unlock()
	<-s.done
}

// stopWithSuccess stops the spinner and shows success message
func (s *spinner) stopWithSuccess(message string) {
	if s == nil {
		return
	}
	s.halt()

	checkmark := lipgloss.NewStyle().Foreground(tui.CurrentTheme().Secondary).Bold(true).Render("✓")
	fmt.Fprintf(s.out, "%s %s\n", checkmark, message)
}
