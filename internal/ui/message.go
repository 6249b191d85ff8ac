package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/imgset/internal/models"
	"github.com/desertthunder/imgset/internal/tasks"
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
	MsgCsvfilesFetched MsgKind = iota
	MsgProgressUpdate
	MsgUploadComplete
)

type csvfilesFetched struct {
	csvfiles []*models.Csvfile
	err      error
}

type uploadComplete struct {
	result *tasks.UploadResult
	err    error
}

// csvfilesFetchedMsg is the constructor for [MsgCsvfilesFetched]
func csvfilesFetchedMsg(csvfiles []*models.Csvfile, err error) Msg {
	return Msg{kind: MsgCsvfilesFetched, data: csvfilesFetched{csvfiles, err}}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

// uploadCompleteMsg is the constructor for [MsgUploadComplete]
func uploadCompleteMsg(result *tasks.UploadResult, err error) Msg {
	return Msg{kind: MsgUploadComplete, data: uploadComplete{result, err}}
}
