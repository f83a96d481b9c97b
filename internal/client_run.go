package internal

import (
	tea "github.com/charmbracelet/bubbletea"
)

// RunClient launches the Bubble Tea program and blocks until it exits.
func RunClient(serverSocketURL, roomKey, username string) error {
	model := NewTUIModel(serverSocketURL, roomKey, username)
	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err := program.Run()
	return err
}
