// Package services implements the HTTP clients tapedeck uses to reach its external collaborators.
//
// # Remote Audio Source
//
// [AudioService] implements [AudioSource] against the conversion backend:
//
//   - POST /api/audio/convert          : convert a video URL, returns {success, audioId, message}
//   - GET  /api/audio/audios           : list saved audio, returns {success, audios}
//   - GET  /api/audio/audios/{id}      : one saved item
//   - GET  /api/audio/download/{id}    : the audio bytes
//
// Conversions pass through a [rate.Limiter] so a burst of play requests cannot flood the backend.
//
// # Search
//
// [SearchService] implements [Searcher] against GET /api/search?q=.
//
// [PreviewService] implements [PreviewSearcher] against the Deezer catalogue's
// GET /search?q=. Its results play straight from their 30-second clip URL.
//
// # Raw Requests
//
// [APIService] issues untyped requests for the `api` debug command.
//
// # Transport
//
// Every request carries an X-Request-ID (uuid) and the configured User-Agent.
// [NewHTTPClient] attaches a static bearer token through golang.org/x/oauth2 when one is configured.
//
// # Error Handling
//
// Services wrap sentinels from the shared package:
//   - [shared.ErrConversionFailed] : network error, non-2xx, or success=false from convert
//   - [shared.ErrItemNotFound] : 404 on a saved item or download
//   - [shared.ErrAPIRequest] : any other non-2xx response
//   - [shared.ErrInvalidInput] : blank search query
package services
