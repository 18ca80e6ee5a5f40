package main

import (
	"errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/dirtree/pkg/ui"
)

// AutoCloseEnvVar makes the TUI quit on its own after the given number of
// milliseconds. Used by scripted smoke tests.
const AutoCloseEnvVar = "DT_TUI_AUTOCLOSE_MS"

func runTUIProgram(m ui.Model) error {
	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithoutSignalHandler(),
	)

	runDone := make(chan struct{})
	defer close(runDone)

	// First signal asks the program to quit, a second one (or a stuck
	// shutdown) kills it.
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-runDone:
			return
		case <-sigCh:
		}
		p.Quit()
		select {
		case <-runDone:
			return
		case <-sigCh:
		case <-time.After(5 * time.Second):
		}
		p.Kill()
	}()

	if d := autoCloseAfter(); d > 0 {
		go func() {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-runDone:
				return
			case <-timer.C:
			}
			p.Quit()
			select {
			case <-runDone:
				return
			case <-time.After(2 * time.Second):
			}
			p.Kill()
		}()
	}

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, tea.ErrInterrupted) {
		return nil
	}
	return err
}

func autoCloseAfter() time.Duration {
	v := os.Getenv(AutoCloseEnvVar)
	if v == "" {
		return 0
	}
	ms, err := strconv.Atoi(v)
	if err != nil || ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
