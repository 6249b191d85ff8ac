// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through one CSV upload:
//  1. [CsvfileListView] : Pick the csvfile to upload into
//  2. [ConfirmView] : Review the column layout and confirm
//  3. [UploadView] : Watch rows convert with a spinner and progress bar
//  4. [ResultView] : See the image count, or the row that aborted the upload
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the upload pipeline, providing non-blocking status reporting.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
