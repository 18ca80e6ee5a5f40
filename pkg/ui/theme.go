package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

// Adaptive palette, Dracula in dark terminals and high-contrast in light ones.
var (
	ColorText      = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorMuted     = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}
	ColorFolder    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorHighlight = lipgloss.AdaptiveColor{Light: "#E0E0E0", Dark: "#44475A"}
	ColorSuccess   = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning   = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger    = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
)

// Theme holds the pre-computed styles of the tree view.
type Theme struct {
	Renderer *lipgloss.Renderer

	Base     lipgloss.Style
	Header   lipgloss.Style
	Folder   lipgloss.Style
	File     lipgloss.Style
	Guide    lipgloss.Style // Tree connectors
	Selected lipgloss.Style
	Marked   lipgloss.Style // Entity waiting to be moved
	Match    lipgloss.Style // Search prefix inside a title
	Muted    lipgloss.Style
	Status   lipgloss.Style
	Error    lipgloss.Style
	Prompt   lipgloss.Style
}

// DefaultTheme returns the standard theme for renderer r.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{Renderer: r}

	t.Base = r.NewStyle().Foreground(ColorText)
	t.Header = r.NewStyle().
		Background(ColorPrimary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)
	t.Folder = r.NewStyle().Foreground(ColorFolder).Bold(true)
	t.File = r.NewStyle().Foreground(ColorText)
	t.Guide = r.NewStyle().Foreground(ColorMuted)
	t.Selected = r.NewStyle().
		Background(ColorHighlight).
		Border(lipgloss.ThickBorder(), false, false, false, true).
		BorderForeground(ColorPrimary).
		Bold(true)
	t.Marked = r.NewStyle().Foreground(ColorWarning).Italic(true)
	t.Match = r.NewStyle().Foreground(ThemeFg("#FFD700")).Underline(true)
	t.Muted = r.NewStyle().Foreground(ColorMuted)
	t.Status = r.NewStyle().Foreground(ColorSuccess)
	t.Error = r.NewStyle().Foreground(ColorDanger).Bold(true)
	t.Prompt = r.NewStyle().Foreground(ColorPrimary).Bold(true)

	return t
}

// TestTheme returns a theme suitable for use in tests.
func TestTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(os.Stdout))
}
