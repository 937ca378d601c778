package ui

import "github.com/desertthunder/tapedeck/internal/playback"

// Alert is a user-visible notification.
type Alert struct {
	Title   string
	Message string
}

// Notifier forwards orchestrator alerts to the TUI. Alerts are dropped when the buffer is full.
type Notifier struct {
	ch chan Alert
}

var _ playback.Notifier = (*Notifier)(nil)

func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan Alert, 8)}
}

func (n *Notifier) Alert(title, message string) {
	select {
	case n.ch <- Alert{Title: title, Message: message}:
	default:
	}
}

// Alerts is the receive side consumed by [Model].
func (n *Notifier) Alerts() <-chan Alert { return n.ch }
