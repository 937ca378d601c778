// Package playback owns the single "now playing" slot.
//
// The [Orchestrator] accepts play requests for library items (already converted) and search
// results (converted on demand through a [services.AudioSource]) and funnels both through one
// transition routine that drives a [player.Engine].
//
// # States
//
//	Idle -> Converting -> Loading -> Playing <-> Paused
//	  ^         |            |          |          |
//	  +---------+------------+----------+----------+
//
// Converting is skipped when the track already has an audio reference. Any failure or a
// natural end of stream returns the slot to Idle. Transitions outside this table are logged
// and ignored.
//
// # Supersession
//
// Every play request takes a generation number. A newer request (or Stop) bumps the
// generation; work finishing under an old generation is discarded and reported as
// [shared.ErrSuperseded], which is never shown to the user. Engine completion watchers apply
// only while their generation and track id are still current.
//
// # Conversions
//
// Concurrent conversions of the same source URL share one backend call (singleflight), bounded
// by the configured conversion timeout. The snapshot's Conversion indicator is reference counted
// and always clears once every conversion has settled.
//
// # Errors
//
// Operations return an [*Error] whose [Kind] classifies the failure; the same failure is sent to
// the [Notifier] unless it was a supersession or a caller cancellation.
package playback
