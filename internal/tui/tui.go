// Package tui is the interactive clipboard history browser: a bubbletea
// list over the local store with copy, favorite, delete, search and manual
// sync actions.
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/avelichko/clip-keeper/internal/deletion"
	"github.com/avelichko/clip-keeper/internal/logger"
	"github.com/avelichko/clip-keeper/internal/store"
	"github.com/avelichko/clip-keeper/internal/syncer"
)

type TUI struct {
	store        store.LocalStore
	deletions    *deletion.Manager
	orchestrator *syncer.Orchestrator
	logger       *logger.Logger
}

func New(localStore store.LocalStore, deletions *deletion.Manager, o *syncer.Orchestrator, log *logger.Logger) *TUI {
	return &TUI{store: localStore, deletions: deletions, orchestrator: o, logger: log}
}

// Run blocks inside the history browser until the user quits.
func (t *TUI) Run(ctx context.Context) error {
	model := newHistoryModel(ctx, t.store, t.deletions, t.orchestrator)
	_, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	return err
}
