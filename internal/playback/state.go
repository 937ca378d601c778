package playback

import "fmt"

// State is the phase of the playback slot.
type State int

const (
	Idle State = iota
	Converting
	Loading
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Converting:
		return "converting"
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var transitions = map[State][]State{
	Idle:       {Converting, Loading},
	Converting: {Loading, Idle},
	Loading:    {Playing, Idle},
	Playing:    {Paused, Idle},
	Paused:     {Playing, Idle},
}

// CanTransition reports whether from -> to is allowed. Staying put is always allowed.
func CanTransition(from, to State) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Conversion is the UI-visible conversion indicator.
type Conversion struct {
	InFlight bool
	Title    string
}

// Snapshot is an immutable view of the playback slot.
//
// ActiveTrackID is set exactly when a resource is loaded; IsPlaying implies ActiveTrackID.
type Snapshot struct {
	State          State
	ActiveTrackID  string
	ActiveTitle    string
	LoadedRef      string
	IsPlaying      bool
	PendingTrackID string
	Conversion     Conversion
	LastError      error
}
