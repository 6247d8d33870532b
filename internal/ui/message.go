package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/plmerge/internal/models"
	"github.com/desertthunder/plmerge/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgGenerationStarted MsgKind = iota
	MsgProgressUpdate
	MsgGenerationDone
	MsgGenerationCancelled
)

type startedData struct {
	gen      *tasks.Generation
	progress <-chan tasks.ProgressUpdate
	err      error
}

type doneData struct {
	result    models.GenerationResult
	cancelled bool
}

// generationStartedMsg is the constructor for [MsgGenerationStarted]
func generationStartedMsg(gen *tasks.Generation, progress <-chan tasks.ProgressUpdate, err error) Msg {
	return Msg{kind: MsgGenerationStarted, data: startedData{gen, progress, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// generationDoneMsg is the constructor for [MsgGenerationDone]; cancelled is set when the
// generation ended without a result.
func generationDoneMsg(result models.GenerationResult, cancelled bool) Msg {
	return Msg{kind: MsgGenerationDone, data: doneData{result, cancelled}}
}

// generationCancelledMsg is the constructor for [MsgGenerationCancelled]
func generationCancelledMsg(err error) Msg {
	return Msg{kind: MsgGenerationCancelled, data: err}
}
