package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/diogo/geminiworkshop/internal/clipboard"
)

// animationTickMsg advances the loading animation of one screen
type animationTickMsg struct {
	route Route
}

func animationTick(route Route) tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(time.Time) tea.Msg {
		return animationTickMsg{route: route}
	})
}

// renderLoadingAnimation renders the gradient spinner shown while a request is in flight
func renderLoadingAnimation(frame int, label string) string {
	chars := []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}
	barChars := []string{"█", "█", "█", "█", "█", "█", "█", "█", "▓", "▒", "░"}

	spinColor := gradientColors[frame%len(gradientColors)]
	spin := lipgloss.NewStyle().Foreground(spinColor).Bold(true).Render(chars[frame%len(chars)])

	const barWidth = 20
	var bar strings.Builder
	for i := 0; i < barWidth; i++ {
		colorIdx := (i + frame) % len(gradientColors)
		charIdx := (i + frame/2) % len(barChars)
		bar.WriteString(lipgloss.NewStyle().Foreground(gradientColors[colorIdx]).Render(barChars[charIdx]))
	}

	var dots strings.Builder
	numDots := (frame / 3) % 4
	for i := 0; i < 3; i++ {
		if i < numDots {
			dots.WriteString(lipgloss.NewStyle().Foreground(gradientColors[(frame+i)%len(gradientColors)]).Render("●"))
		} else {
			dots.WriteString(lipgloss.NewStyle().Foreground(colorTextMute).Render("○"))
		}
	}

	text := lipgloss.NewStyle().Foreground(colorText).Render(" " + label + " ")
	return fmt.Sprintf("%s %s %s %s", spin, bar.String(), text, dots.String())
}

// clipboardAvailable gates the copy shortcut hint
var clipboardAvailable = func() bool { return !clipboard.Unsupported() }

type shortcut struct {
	key  string
	desc string
}

// renderStatusBar renders the bottom status bar with shortcuts
func renderStatusBar(width int, shortcuts []shortcut) string {
	items := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		items = append(items, statusKeyStyle.Render(s.key)+statusDescStyle.Render(" "+s.desc))
	}
	return statusBarStyle.Width(width).Align(lipgloss.Center).Render(strings.Join(items, "  │  "))
}
