package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

// EventType enumerates what a [Channel] reports.
type EventType int

const (
	Connected EventType = iota + 1
	Disconnected
	Reconnected
	Error
	ItemAdded
	ItemDeleted
	ListReplaced
)

func (t EventType) String() string {
	switch t {
	case Connected:
		return "connected"
	case Disconnected:
		return "disconnected"
	case Reconnected:
		return "reconnected"
	case Error:
		return "error"
	case ItemAdded:
		return "item_added"
	case ItemDeleted:
		return "item_deleted"
	case ListReplaced:
		return "list_replaced"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// Event is one notification from the channel. Which fields are set depends on Type.
type Event struct {
	Type  EventType
	Item  models.LibraryItem   // ItemAdded
	ID    string               // ItemDeleted
	Items []models.LibraryItem // ListReplaced
	Err   error                // Error
}

// Channel is a persistent connection to the backend's update stream.
type Channel interface {
	// Run connects and delivers events to handle until ctx is done.
	Run(ctx context.Context, handle func(Event)) error

	// Subscribe (re)registers interest in the library stream on the current connection.
	Subscribe(ctx context.Context) error
}

// envelope is the framing used by websocket messages and unnamed SSE messages.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Decode maps a named backend event to an [Event].
// ok is false for names this client does not handle.
func Decode(name string, data []byte) (ev Event, ok bool) {
	name = strings.TrimSpace(name)
	if name == "" || name == "message" {
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			return Event{}, false
		}
		return Decode(env.Event, env.Data)
	}

	switch name {
	case "newAudio", "newItem":
		var item models.LibraryItem
		if err := json.Unmarshal(data, &item); err != nil {
			return badEvent(name, err), true
		}
		if item.ID == "" {
			return badEvent(name, fmt.Errorf("item has no id")), true
		}
		return Event{Type: ItemAdded, Item: item}, true
	case "deletedAudio", "deletedItem":
		id, err := decodeID(data)
		if err != nil {
			return badEvent(name, err), true
		}
		return Event{Type: ItemDeleted, ID: id}, true
	case "libraryUpdate", "fullListUpdate":
		items, err := decodeList(data)
		if err != nil {
			return badEvent(name, err), true
		}
		return Event{Type: ListReplaced, Items: items}, true
	case "error":
		return Event{Type: Error, Err: fmt.Errorf("%w: %s", shared.ErrServiceUnavailable, rawMessage(data))}, true
	}
	return Event{}, false
}

func badEvent(name string, err error) Event {
	return Event{Type: Error, Err: fmt.Errorf("%w: %s: %w", shared.ErrBadEvent, name, err)}
}

// decodeID accepts a bare id, a JSON string, or an object carrying _id or id.
func decodeID(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty id")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", err
		}
		return nonEmpty(s)
	case '{':
		var obj struct {
			MongoID string `json:"_id"`
			ID      string `json:"id"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return "", err
		}
		if obj.MongoID != "" {
			return obj.MongoID, nil
		}
		return nonEmpty(obj.ID)
	default:
		return nonEmpty(string(trimmed))
	}
}

func nonEmpty(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", fmt.Errorf("empty id")
	}
	return id, nil
}

// decodeList accepts a bare array or an object holding it under audios or items.
// Entries that do not decode or carry no id are dropped; only a malformed container is an error.
func decodeList(data []byte) ([]models.LibraryItem, error) {
	trimmed := bytes.TrimSpace(data)
	var list models.LibraryItems
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var wrapped struct {
			Audios *models.LibraryItems `json:"audios"`
			Items  *models.LibraryItems `json:"items"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err != nil {
			return nil, err
		}
		switch {
		case wrapped.Audios != nil:
			list = *wrapped.Audios
		case wrapped.Items != nil:
			list = *wrapped.Items
		}
	} else if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, err
	}

	if list.Items == nil {
		return []models.LibraryItem{}, nil
	}
	return list.Items, nil
}

func rawMessage(data []byte) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(data))
}
