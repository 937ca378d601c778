// Package ui implements the interactive player using bubbletea's Elm architecture.
//
// The TUI has two tabs:
//  1. [LibraryTab] : Saved audio, kept live by the library reconciler
//  2. [SearchTab] : Query input, recent searches and results pending conversion
//
// A now-playing bar at the bottom shows the playback slot, the converting indicator and the update channel state.
// Alerts raised by the playback orchestrator arrive through a [Notifier] and render in the status line until the
// next key press.
//
// The (view) [Model] receives playback and library snapshots from their Subscribe channels, re-arming a wait
// command after each message so updates flow without polling.
package ui
