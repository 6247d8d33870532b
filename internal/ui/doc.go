// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI walks through a single generation:
//  1. [SourceListView] : Browse the playlist's media sources
//  2. [ConfirmView] : Confirm the generation
//  3. [ProgressView] : Follow downloads and assembly with a spinner and per-source markers
//  4. [ResultView] : Show the unified media file, or why it could not be produced
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Progress updates flow through a channel from the downloader; the generation's completion handle ends the run.
// Pressing q while a generation runs cancels it, which ends the run without a result.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, y/n, r, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
