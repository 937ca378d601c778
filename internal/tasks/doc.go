// Package tasks runs long library operations with real-time progress reporting.
//
// # Core Operations
//
//  1. [Engine.BulkDownload] : Offline copies of saved audio
//     - Downloads items concurrently through an errgroup worker limit
//     - Paces requests with a token bucket limiter
//     - Skips files that already exist unless asked to overwrite
//     - Writes a JSON manifest describing every item
//
//  2. [Engine.ExportLibrary] : Snapshot of the saved library
//     - Fetches the full listing from the backend
//     - Writes it as text, CSV, Markdown or JSON
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
// The [ProgressUpdate] struct contains phase, step counters and a message; updates use select with default so
// a slow reader never stalls a download.
package tasks
