// Package realtime delivers library change notifications from the backend.
//
// A [Channel] runs until its context ends, reconnecting on its own, and reports everything it
// sees through a single handler as [Event] values. Handlers are never called concurrently.
//
// Two transports are provided:
//
//   - [SSEChannel] : server-sent events via github.com/r3labs/sse/v2
//   - [WSChannel]  : JSON messages over nhooyr.io/websocket
//
// Both accept the backend's event names and their aliases:
//
//	newAudio      | newItem         -> ItemAdded
//	deletedAudio  | deletedItem     -> ItemDeleted
//	libraryUpdate | fullListUpdate  -> ListReplaced
//
// Connection lifecycle is reported as Connected, Disconnected, Reconnected and Error.
// A payload that cannot be decoded becomes an Error event wrapping [shared.ErrBadEvent].
package realtime
