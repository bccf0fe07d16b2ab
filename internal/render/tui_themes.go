package render

import (
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// TUITheme defines the color scheme of the terminal interface
type TUITheme struct {
	Name        string
	Description string

	Surface lipgloss.Color
	Border  lipgloss.Color

	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color

	Text     lipgloss.Color
	TextDim  lipgloss.Color
	TextMute lipgloss.Color
}

// DefaultTUITheme is used when the configured theme is unknown
const DefaultTUITheme = "tokyonight"

var tuiThemes = map[string]TUITheme{
	"tokyonight": {
		Name:        "tokyonight",
		Description: "Tokyo Night, dark with blue accents",
		Surface:     "#24283b",
		Border:      "#414868",
		Primary:     "#7aa2f7",
		Secondary:   "#9ece6a",
		Accent:      "#bb9af7",
		Warning:     "#e0af68",
		Error:       "#f7768e",
		Text:        "#c0caf5",
		TextDim:     "#565f89",
		TextMute:    "#3b4261",
	},
	"catppuccin": {
		Name:        "catppuccin",
		Description: "Catppuccin Mocha, warm pastels",
		Surface:     "#313244",
		Border:      "#45475a",
		Primary:     "#89b4fa",
		Secondary:   "#a6e3a1",
		Accent:      "#cba6f7",
		Warning:     "#f9e2af",
		Error:       "#f38ba8",
		Text:        "#cdd6f4",
		TextDim:     "#6c7086",
		TextMute:    "#45475a",
	},
	"gemini": {
		Name:        "gemini",
		Description: "Gemini blue and violet",
		Surface:     "#1f1f2e",
		Border:      "#3c4043",
		Primary:     "#8ab4f8",
		Secondary:   "#81c995",
		Accent:      "#c58af9",
		Warning:     "#fdd663",
		Error:       "#f28b82",
		Text:        "#e8eaed",
		TextDim:     "#9aa0a6",
		TextMute:    "#5f6368",
	},
}

var (
	themeMu         sync.RWMutex
	currentTUITheme = tuiThemes[DefaultTUITheme]
)

// GetTUITheme returns the active theme
func GetTUITheme() TUITheme {
	themeMu.RLock()
	defer themeMu.RUnlock()
	return currentTUITheme
}

// SetTUITheme activates the named theme. Unknown names leave the theme unchanged.
func SetTUITheme(name string) bool {
	theme, ok := GetTUIThemeByName(name)
	if !ok {
		return false
	}
	themeMu.Lock()
	currentTUITheme = theme
	themeMu.Unlock()
	return true
}

// GetTUIThemeByName looks a theme up case-insensitively
func GetTUIThemeByName(name string) (TUITheme, bool) {
	theme, ok := tuiThemes[strings.ToLower(strings.TrimSpace(name))]
	return theme, ok
}

// TUIThemeNames returns the theme names, sorted
func TUIThemeNames() []string {
	names := make([]string, 0, len(tuiThemes))
	for name := range tuiThemes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
