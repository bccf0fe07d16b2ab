package commands

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	apierrors "github.com/diogo/geminiworkshop/internal/errors"
	"github.com/diogo/geminiworkshop/internal/render"
)

// Gradient colors for animation
var gradientColors = []lipgloss.Color{
	lipgloss.Color("#ff6b6b"),
	lipgloss.Color("#feca57"),
	lipgloss.Color("#48dbfb"),
	lipgloss.Color("#ff9ff3"),
	lipgloss.Color("#54a0ff"),
	lipgloss.Color("#5f27cd"),
	lipgloss.Color("#00d2d3"),
	lipgloss.Color("#1dd1a1"),
}

func themeStyle(pick func(render.TUITheme) lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(pick(render.GetTUITheme()))
}

func successStyle() lipgloss.Style {
	return themeStyle(func(t render.TUITheme) lipgloss.Color { return t.Secondary })
}

func failureStyle() lipgloss.Style {
	return themeStyle(func(t render.TUITheme) lipgloss.Color { return t.Error })
}

func dimStyle() lipgloss.Style {
	return themeStyle(func(t render.TUITheme) lipgloss.Color { return t.TextDim })
}

// spinner handles the animated loading indicator
type spinner struct {
	out     io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
	mu      sync.Mutex
	frame   int
	stopped bool
}

// newSpinner creates a new animated spinner writing to stderr
func newSpinner(message string) *spinner {
	return &spinner{
		out:     os.Stderr,
		message: message,
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
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	barChars := []string{"█", "█", "█", "█", "█", "█", "▓", "▒", "░"}
	theme := render.GetTUITheme()

	spinColor := gradientColors[s.frame%len(gradientColors)]
	spinnerChar := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[s.frame%len(chars)])

	const barWidth = 16
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		colorIdx := (i + s.frame) % len(gradientColors)
		charIdx := (i + s.frame/2) % len(barChars)
		bar.WriteString(lipgloss.NewStyle().Foreground(gradientColors[colorIdx]).Render(barChars[charIdx]))
	}

	var dots strings.Builder
	numDots := (s.frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dots.WriteString(lipgloss.NewStyle().Foreground(gradientColors[(s.frame+i)%len(gradientColors)]).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(theme.TextMute).Render("○"))
		}
	}

	msg := lipgloss.NewStyle().Foreground(theme.Text).Render(s.message)
	fmt.Fprintf(s.out, "\r\033[K%s %s %s %s", spinnerChar, bar.String(), msg, dots.String())
}

// stopOnce safely closes the stop channel only once
func (s *spinner) stopOnce() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		close(s.stop)
		s.stopped = true
	}
}

// stopWithSuccess stops the spinner and shows success message
func (s *spinner) stopWithSuccess(message string) {
	s.stopOnce()
	<-s.done

	checkmark := successStyle().Bold(true).Render("✓")
	fmt.Fprintf(s.out, "%s %s\n", checkmark, successStyle().Render(message))
}

// stopWithError stops the spinner
func (s *spinner) stopWithError() {
	s.stopOnce()
	<-s.done
}

// progress wraps an optional spinner so quiet mode needs no branches
type progress struct {
	quiet bool
	spin  *spinner
}

func (p *progress) begin(message string) {
	if p.quiet {
		return
	}
	p.spin = newSpinner(message)
	p.spin.start()
}

func (p *progress) succeed(message string) {
	if p.spin != nil {
		p.spin.stopWithSuccess(message)
		p.spin = nil
	}
}

func (p *progress) fail() {
	if p.spin != nil {
		p.spin.stopWithError()
		p.spin = nil
	}
}

// formatErrorMessage formats an error with additional context from structured errors
func formatErrorMessage(err error, context string) string {
	if err == nil {
		return ""
	}

	dim := dimStyle()
	var sb strings.Builder
	sb.WriteString(failureStyle().Render(fmt.Sprintf("✗ %s: %s", context, apierrors.Describe(err))))

	if status := apierrors.GetHTTPStatus(err); status > 0 {
		sb.WriteString(dim.Render(fmt.Sprintf("\n  HTTP Status: %d", status)))
	}
	if endpoint := apierrors.GetEndpoint(err); endpoint != "" {
		sb.WriteString(dim.Render(fmt.Sprintf("\n  Endpoint: %s", endpoint)))
	}

	switch {
	case apierrors.IsAuthError(err):
		sb.WriteString(dim.Render("\n  Hint: Set GEMINI_API_KEY or run 'geminiworkshop config init' and add api_key"))
	case apierrors.IsRateLimitError(err):
		sb.WriteString(dim.Render("\n  Hint: You've hit the usage limit. Try again later or use a different model"))
	case apierrors.IsTimeoutError(err):
		sb.WriteString(dim.Render("\n  Hint: Request timed out. Try again or check your connection"))
	case apierrors.IsNetworkError(err):
		sb.WriteString(dim.Render("\n  Hint: Check your internet connection and try again"))
	}

	return sb.String()
}

// printAnswer renders a response the way the chat screen does
func printAnswer(text string, opts render.Options) {
	bubbleWidth := getTerminalWidth() - 4
	if bubbleWidth < 40 {
		bubbleWidth = 40
	}
	if bubbleWidth > 120 {
		bubbleWidth = 120
	}

	theme := render.GetTUITheme()
	label := lipgloss.NewStyle().Foreground(theme.Primary).Bold(true).Render("✦ Gemini")
	bubble := lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(theme.Primary).
		Foreground(theme.Text).
		Padding(0, 1).
		MarginTop(1).
		MarginBottom(1).
		Width(bubbleWidth)

	fmt.Println(label)
	fmt.Println(bubble.Render(render.Answer(text, opts.WithWidth(bubbleWidth-4))))
}
