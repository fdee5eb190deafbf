package render

import (
	"github.com/charmbracelet/glamour/ansi"
	"github.com/charmbracelet/glamour/styles"
)

// Markdown style names
const (
	ThemeTechTouch = "techtouch"
	ThemeDark      = styles.DarkStyle
	ThemeLight     = styles.LightStyle
	ThemeNoTTY     = styles.NoTTYStyle
)

// techTouchStyle is the dark glamour style with the app accent colors
func techTouchStyle() ansi.StyleConfig {
	cfg := styles.DarkStyleConfig

	accent := "#2ac3de"
	heading := "#7aa2f7"
	margin := uint(1)

	cfg.Document.Margin = &margin
	cfg.H1.Color = &heading
	cfg.H2.Color = &heading
	cfg.H3.Color = &accent
	cfg.Link.Color = &accent
	cfg.LinkText.Color = &accent

	return cfg
}

// IsBuiltinStyle reports whether style names a bundled style rather than a file
func IsBuiltinStyle(style string) bool {
	if style == ThemeTechTouch {
		return true
	}
	_, ok := styles.DefaultStyles[style]
	return ok
}

// ThemeInfo contains information about a theme for display purposes.
type ThemeInfo struct {
	Name        string
	Description string
}

// AvailableThemes returns the markdown styles offered by the config command.
func AvailableThemes() []ThemeInfo {
	return []ThemeInfo{
		{Name: ThemeTechTouch, Description: "TechTouch dark theme (default)"},
		{Name: ThemeDark, Description: "Glamour dark"},
		{Name: ThemeLight, Description: "Light theme for bright terminals"},
		{Name: styles.TokyoNightStyle, Description: "Tokyo Night color scheme"},
		{Name: styles.DraculaStyle, Description: "Dracula color scheme"},
		{Name: ThemeNoTTY, Description: "Plain text (no styling)"},
		{Name: styles.AsciiStyle, Description: "ASCII-only output"},
	}
}

// ThemeNames returns just the theme names for selection.
func ThemeNames() []string {
	themes := AvailableThemes()
	names := make([]string, len(themes))
	for i, t := range themes {
		names[i] = t.Name
	}
	return names
}
