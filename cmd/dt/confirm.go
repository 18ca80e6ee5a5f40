package main

import (
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// confirmFunc asks a yes/no question. Tests replace it.
var confirmFunc = confirmOnTerminal

func confirmOnTerminal(title string) (bool, error) {
	ok := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Value(&ok).
				Affirmative("Delete").
				Negative("Keep"),
		),
	).WithTheme(huh.ThemeDracula())
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		form = form.WithAccessible(true)
	}
	if err := form.Run(); err != nil {
		return false, err
	}
	return ok, nil
}
