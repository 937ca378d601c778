package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tapedeck/internal/library"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/playback"
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
	MsgPlayback MsgKind = iota
	MsgLibrary
	MsgSearchResults
	MsgHistory
	MsgAlert
	MsgActionDone
)

type searchResult struct {
	response *models.SearchResponse
	err      error
}

// playbackMsg is the constructor for [MsgPlayback]
func playbackMsg(s playback.Snapshot) Msg {
	return Msg{kind: MsgPlayback, data: s}
}

// libraryMsg is the constructor for [MsgLibrary]
func libraryMsg(s library.Snapshot) Msg {
	return Msg{kind: MsgLibrary, data: s}
}

// searchResultsMsg is the constructor for [MsgSearchResults]
func searchResultsMsg(resp *models.SearchResponse, err error) Msg {
	return Msg{kind: MsgSearchResults, data: searchResult{resp, err}}
}

// historyMsg is the constructor for [MsgHistory]
func historyMsg(queries []string) Msg {
	return Msg{kind: MsgHistory, data: queries}
}

// alertMsg is the constructor for [MsgAlert]
func alertMsg(a Alert) Msg {
	return Msg{kind: MsgAlert, data: a}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(err error) Msg {
	return Msg{kind: MsgActionDone, data: err}
}
