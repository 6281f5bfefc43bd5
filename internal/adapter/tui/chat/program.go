package chat

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the chat screen and blocks until the user quits or ctx is
// cancelled.
func Run(ctx context.Context, deps Deps) error {
	model := NewModel(deps)
	program := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	model.notify.send = program.Send

	// Monitor context cancellation to quit the program.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			program.Send(QuitMsg{})
		case <-stop:
		}
	}()

	_, err := program.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
