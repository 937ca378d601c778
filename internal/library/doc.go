// Package library keeps the local view of saved audio consistent with the backend.
//
// [Collection] is an immutable, recency-ordered set of library items unique by id. Every change
// is expressed as an [Action] and applied by the pure function [Reduce], so reconciliation can be
// tested without a live connection:
//
//	Loaded / ListReplaced : replace everything (first occurrence of a duplicate id wins)
//	ItemAdded             : insert if the id is absent, otherwise no-op
//	ItemDeleted           : remove if present, otherwise no-op
//
// The [Store] publishes each resulting collection as a new [Snapshot]. The [Reconciler] feeds the
// store from an initial load (local cache, then network), from [realtime.Channel] events, from
// manual refreshes and optionally from a periodic gocron resync, writing every change through to
// a [Cache].
//
// Channel errors are logged and recorded on the snapshot; the last known collection stays in
// place until a reconnect or refresh replaces it.
package library
