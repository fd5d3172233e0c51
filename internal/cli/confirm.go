package cli

import (
	"errors"
	"fmt"

	"github.com/alexanderramin/strata/internal/cli/formatter"
	"github.com/alexanderramin/strata/internal/domain"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// ConfirmFunc asks the user a yes/no question.
type ConfirmFunc func(title string) (bool, error)

func strataHuhTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Title = lipgloss.NewStyle().Foreground(formatter.ColorHeader).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	t.Focused.FocusedButton = lipgloss.NewStyle().Foreground(formatter.ColorFg).Background(formatter.ColorHeader).Padding(0, 1)
	t.Focused.BlurredButton = lipgloss.NewStyle().Foreground(formatter.ColorDim).Padding(0, 1)

	t.Blurred.Title = lipgloss.NewStyle().Foreground(formatter.ColorDim)
	return t
}

// PromptConfirm runs a huh confirmation on the terminal. Aborting the form
// counts as "no".
func PromptConfirm(title string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithTheme(strataHuhTheme()).WithShowHelp(false).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

// confirmCascade offers to retry a date change as a cascade when err is a
// date conflict and a prompt is wired.
func (a *App) confirmCascade(err error) bool {
	if a.Confirm == nil || !domain.IsCode(err, domain.CodeConflict) {
		return false
	}
	n := len(domain.ConflictIDsOf(err))
	ok, perr := a.Confirm(fmt.Sprintf("%d subtasks fall after the new date. Shift them by the same amount?", n))
	return perr == nil && ok
}
