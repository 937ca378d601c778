package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/tapedeck/internal/models"
)

var (
	_ list.Item = libraryItem{}
	_ list.Item = videoItem{}
	_ list.Item = historyItem("")
)

// libraryItem wraps [models.LibraryItem] to implement [list.Item].
type libraryItem struct {
	item   models.LibraryItem
	marker string
}

func (i libraryItem) FilterValue() string { return i.item.Title }
func (i libraryItem) Title() string {
	if i.marker != "" {
		return i.marker + " " + i.item.Title
	}
	return i.item.Title
}
func (i libraryItem) Description() string {
	parts := []string{}
	if i.item.Artist != "" {
		parts = append(parts, i.item.Artist)
	}
	if d := i.item.Duration; d != "" {
		parts = append(parts, d)
	} else if i.item.DurationSeconds > 0 {
		parts = append(parts, models.FormatSeconds(i.item.DurationSeconds))
	}
	return strings.Join(parts, " • ")
}

// videoItem wraps [models.VideoResult] to implement [list.Item].
type videoItem struct {
	video  models.VideoResult
	marker string
}

func (i videoItem) FilterValue() string { return i.video.Title }
func (i videoItem) Title() string {
	if i.marker != "" {
		return i.marker + " " + i.video.Title
	}
	return i.video.Title
}
func (i videoItem) Description() string {
	desc := i.video.Author
	if i.video.Duration != "" {
		desc = fmt.Sprintf("%s • %s", desc, i.video.Duration)
	}
	return desc
}

// historyItem is a recent search shown before results arrive.
type historyItem string

func (i historyItem) FilterValue() string { return string(i) }
func (i historyItem) Title() string       { return string(i) }
func (i historyItem) Description() string { return "recent search" }
