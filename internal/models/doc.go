// Package models defines the domain types shared by the tapedeck client.
//
// There are three kinds of playable content, all satisfying [TrackRef]:
//
//   - [LibraryItem] : audio already converted and saved by the backend. Its
//     audio reference is known, so it can be handed straight to the playback engine.
//   - [VideoResult] : a search result pointing at un-converted video. It has a
//     source URL but no audio reference until the backend converts it.
//   - [PreviewTrack] : a catalogue track whose audio reference is the absolute
//     URL of a short preview clip. It bypasses the backend entirely.
//
// The remaining types mirror the backend's JSON envelopes ([ConvertRequest],
// [ConvertResponse], [LibraryResponse], [SearchResponse]).
//
// # Wire Compatibility
//
// The backend is not strict about its field names. [LibraryItem] decodes
// both `_id` and `id`, and both `addedAt` and `createdAt` (addedAt wins).
// [VideoResult] accepts numeric or string ids and normalizes them to strings.
package models
