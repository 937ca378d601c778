// Package repositories implements SQLite persistence for the local library cache and search history.
//
// Key Implementations:
//   - [LibraryRepository] : read-through cache of saved audio, mirrored by the library reconciler
//   - [SearchHistoryRepository] : recent search queries, deduplicated and ordered newest first
//
// Search history entries carry a sequence number from [NextSequence] so repeated searches can be
// reordered without relying on timestamp resolution.
package repositories
