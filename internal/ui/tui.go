// ABOUTME: TUI initialization and control
// ABOUTME: Runs the dashboard until the user quits or the context ends
package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the dashboard. It returns nil when the user quits or ctx is done.
func Run(ctx context.Context, device Device, tap func() *TapStatus) error {
	p := tea.NewProgram(NewModel(device, tap), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
