package playback

import "github.com/charmbracelet/log"

// Notifier shows user-visible alerts.
type Notifier interface {
	Alert(title, message string)
}

// LogNotifier writes alerts to a logger. Used when no UI is attached.
type LogNotifier struct {
	Logger *log.Logger
}

func (n LogNotifier) Alert(title, message string) {
	n.Logger.Error(title, "message", message)
}

// NotifierFunc adapts a function to [Notifier].
type NotifierFunc func(title, message string)

func (f NotifierFunc) Alert(title, message string) { f(title, message) }
