package render

import (
	"os"
	"strings"
)

// Markdown styles shipped with glamour
const (
	StyleDark       = "dark"
	StyleLight      = "light"
	StyleDracula    = "dracula"
	StyleTokyoNight = "tokyo-night"
	StylePink       = "pink"
	StyleNoTTY      = "notty"
	StyleASCII      = "ascii"
)

// styleAliases maps friendly names onto glamour's style names
var styleAliases = map[string]string{
	"tokyonight": StyleTokyoNight,
	"plain":      StyleNoTTY,
}

// StyleInfo describes a markdown style for display purposes.
type StyleInfo struct {
	Name        string
	Description string
}

// AvailableStyles lists the built-in markdown styles.
func AvailableStyles() []StyleInfo {
	return []StyleInfo{
		{Name: StyleDark, Description: "Dark theme (default)"},
		{Name: StyleLight, Description: "Light theme for bright terminals"},
		{Name: StyleTokyoNight, Description: "Tokyo Night color scheme"},
		{Name: StyleDracula, Description: "Dracula color scheme"},
		{Name: StylePink, Description: "Pink accents"},
		{Name: StyleNoTTY, Description: "Plain text (no styling)"},
		{Name: StyleASCII, Description: "ASCII-only output"},
	}
}

// resolveStyle returns the glamour style name for style and whether it is a
// built-in. Anything that is not built in is treated as a style file path.
func resolveStyle(style string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(style))
	if alias, ok := styleAliases[name]; ok {
		name = alias
	}
	for _, s := range AvailableStyles() {
		if s.Name == name {
			return name, true
		}
	}
	if name == "" {
		return StyleDark, true
	}
	if _, err := os.Stat(style); err != nil {
		// Unknown name and no such file
		return StyleDark, true
	}
	return style, false
}
