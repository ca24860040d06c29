package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
)

// Run starts the interactive explorer and blocks until the user quits
func Run(ctx context.Context, wf Workflow, opts Options) error {
	m := NewModel(ctx, wf, opts)
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
