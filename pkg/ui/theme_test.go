package ui

import (
	"testing"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
)

func TestDefaultTheme(t *testing.T) {
	renderer := lipgloss.NewRenderer(nil)
	theme := DefaultTheme(renderer)

	if theme.Renderer != renderer {
		t.Error("DefaultTheme renderer mismatch")
	}
	if !theme.Folder.GetBold() {
		t.Error("folders should render bold")
	}
	if !theme.Match.GetUnderline() {
		t.Error("search matches should be underlined")
	}
}

func TestColorProfileDetection(t *testing.T) {
	valid := map[colorprofile.Profile]bool{
		colorprofile.Unknown:   true,
		colorprofile.NoTTY:     true,
		colorprofile.ASCII:     true,
		colorprofile.ANSI:      true,
		colorprofile.ANSI256:   true,
		colorprofile.TrueColor: true,
	}
	if !valid[TermProfile] {
		t.Errorf("TermProfile has unexpected value: %d", TermProfile)
	}
}

func TestThemeFg(t *testing.T) {
	saved := TermProfile
	defer func() { TermProfile = saved }()

	TermProfile = colorprofile.TrueColor
	if got := ThemeFg("#FFD700"); got != lipgloss.Color("#FFD700") {
		t.Errorf("TrueColor: ThemeFg = %v", got)
	}

	TermProfile = colorprofile.ANSI
	if got := ThemeFg("#FFD700"); got != lipgloss.ANSIColor(7) {
		t.Errorf("ANSI: ThemeFg = %v, want ANSI white", got)
	}
}

func TestPadRight(t *testing.T) {
	if got := padRight("ab", 4); got != "ab  " {
		t.Errorf("padRight = %q", got)
	}
	if got := padRight("日本", 3); got != "日本" {
		t.Errorf("wide text already past width should be untouched, got %q", got)
	}
}
