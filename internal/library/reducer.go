package library

import (
	"fmt"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/realtime"
)

// ActionKind enumerates collection mutations.
type ActionKind int

const (
	Loaded ActionKind = iota + 1
	ItemAdded
	ItemDeleted
	ListReplaced
)

func (k ActionKind) String() string {
	switch k {
	case Loaded:
		return "loaded"
	case ItemAdded:
		return "item_added"
	case ItemDeleted:
		return "item_deleted"
	case ListReplaced:
		return "list_replaced"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is one mutation of a [Collection].
type Action struct {
	Kind  ActionKind
	Item  models.LibraryItem
	ID    string
	Items []models.LibraryItem
}

// ActionFromEvent converts channel data events. Lifecycle events return false.
func ActionFromEvent(ev realtime.Event) (Action, bool) {
	switch ev.Type {
	case realtime.ItemAdded:
		return Action{Kind: ItemAdded, Item: ev.Item}, true
	case realtime.ItemDeleted:
		return Action{Kind: ItemDeleted, ID: ev.ID}, true
	case realtime.ListReplaced:
		return Action{Kind: ListReplaced, Items: ev.Items}, true
	default:
		return Action{}, false
	}
}

// Reduce applies a to c and returns the resulting collection. c is never modified.
func Reduce(c Collection, a Action) Collection {
	switch a.Kind {
	case Loaded, ListReplaced:
		return NewCollection(a.Items)
	case ItemAdded:
		if a.Item.ID == "" || c.Has(a.Item.ID) {
			return c
		}
		return c.with(a.Item)
	case ItemDeleted:
		if !c.Has(a.ID) {
			return c
		}
		return c.without(a.ID)
	default:
		return c
	}
}
