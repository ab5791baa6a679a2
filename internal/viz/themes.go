package viz

import "github.com/charmbracelet/lipgloss"

// Theme is the colour scheme of the live view.
type Theme struct {
	Name   string
	Bodies lipgloss.Color
	Header lipgloss.Color
	Label  lipgloss.Color
	Value  lipgloss.Color
	Graph  lipgloss.Color
	Muted  lipgloss.Color
	Paused lipgloss.Color
	Error  lipgloss.Color
}

var (
	ThemeNebula = Theme{
		Name:   "nebula",
		Bodies: lipgloss.Color("#e0d0ff"),
		Header: lipgloss.Color("#ff79c6"),
		Label:  lipgloss.Color("#8888aa"),
		Value:  lipgloss.Color("#f8f8f2"),
		Graph:  lipgloss.Color("#8be9fd"),
		Muted:  lipgloss.Color("#555577"),
		Paused: lipgloss.Color("#ffb86c"),
		Error:  lipgloss.Color("#ff5555"),
	}

	ThemePhosphor = Theme{
		Name:   "phosphor",
		Bodies: lipgloss.Color("#33ff33"),
		Header: lipgloss.Color("#88ff88"),
		Label:  lipgloss.Color("#00aa00"),
		Value:  lipgloss.Color("#33ff33"),
		Graph:  lipgloss.Color("#00cc00"),
		Muted:  lipgloss.Color("#005500"),
		Paused: lipgloss.Color("#ffff00"),
		Error:  lipgloss.Color("#ff0000"),
	}

	ThemePlain = Theme{
		Name:   "plain",
		Bodies: lipgloss.Color("252"),
		Header: lipgloss.Color("86"),
		Label:  lipgloss.Color("245"),
		Value:  lipgloss.Color("252"),
		Graph:  lipgloss.Color("49"),
		Muted:  lipgloss.Color("240"),
		Paused: lipgloss.Color("214"),
		Error:  lipgloss.Color("196"),
	}

	CurrentTheme = ThemePlain

	Themes = []Theme{
		ThemePlain,
		ThemeNebula,
		ThemePhosphor,
	}
)

// GetTheme returns a theme by name, falling back to the plain one.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemePlain
}

// SetTheme changes the current theme and restyles the live view.
func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
	applyTheme(CurrentTheme)
}

// NextTheme switches to the theme after the current one.
func NextTheme() {
	names := ThemeNames()
	for i, name := range names {
		if name == CurrentTheme.Name {
			SetTheme(names[(i+1)%len(names)])
			return
		}
	}
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}
