// package models defines the data model for the tapedeck client
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TrackRef identifies a piece of playable content.
type TrackRef interface {
	// TrackID is the identifier playback is keyed on.
	TrackID() string
	// AudioRef is the backend audio id, empty until converted.
	AudioRef() string
	// SourceURL locates un-converted video content.
	SourceURL() string
	Metadata() TrackMetadata
	DisplayTitle() string
}

var (
	_ TrackRef = LibraryItem{}
	_ TrackRef = VideoResult{}
)

// TrackMetadata is the display metadata forwarded to the conversion backend.
type TrackMetadata struct {
	Title           string
	Author          string
	Thumbnail       string
	Duration        string
	DurationSeconds int
}

// LibraryItem is audio persisted by the backend.
type LibraryItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist"`
	Thumbnail       string    `json:"thumbnail"`
	Duration        string    `json:"duration"`
	AudioURL        string    `json:"audioUrl,omitempty"`
	OriginalURL     string    `json:"originalUrl,omitempty"`
	DurationSeconds int       `json:"durationInSeconds,omitempty"`
	AddedAt         time.Time `json:"addedAt"`
}

type libraryItemWire struct {
	MongoID         string          `json:"_id"`
	ID              string          `json:"id"`
	Title           string          `json:"title"`
	Artist          string          `json:"artist"`
	Thumbnail       string          `json:"thumbnail"`
	Duration        json.RawMessage `json:"duration"`
	AudioURL        string          `json:"audioUrl"`
	OriginalURL     string          `json:"originalUrl"`
	DurationSeconds json.RawMessage `json:"durationInSeconds"`
	CreatedAt       *time.Time      `json:"createdAt"`
	AddedAt         *time.Time      `json:"addedAt"`
}

// UnmarshalJSON decodes the backend's library item shape.
//
// Only malformed JSON is an error. A missing id leaves ID empty and an unreadable
// durationInSeconds decodes as zero; callers decide whether such an item is usable.
func (i *LibraryItem) UnmarshalJSON(data []byte) error {
	var w libraryItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id := w.MongoID
	if id == "" {
		id = w.ID
	}

	*i = LibraryItem{
		ID:              id,
		Title:           w.Title,
		Artist:          w.Artist,
		Thumbnail:       w.Thumbnail,
		Duration:        rawString(w.Duration),
		AudioURL:        w.AudioURL,
		OriginalURL:     w.OriginalURL,
		DurationSeconds: seconds(w.DurationSeconds),
	}
	switch {
	case w.AddedAt != nil:
		i.AddedAt = *w.AddedAt
	case w.CreatedAt != nil:
		i.AddedAt = *w.CreatedAt
	}
	return nil
}

func (i LibraryItem) TrackID() string  { return i.ID }
func (i LibraryItem) AudioRef() string { return i.ID }
func (i LibraryItem) SourceURL() string {
	return i.OriginalURL
}

func (i LibraryItem) Metadata() TrackMetadata {
	return TrackMetadata{
		Title:           i.Title,
		Author:          i.Artist,
		Thumbnail:       i.Thumbnail,
		Duration:        i.Duration,
		DurationSeconds: i.DurationSeconds,
	}
}

func (i LibraryItem) DisplayTitle() string { return displayTitle(i.Title, i.Artist) }

// LibraryItems is a listing decoded one element at a time. Elements that are not valid
// items or have no id are dropped and counted in Skipped, so the rest of the listing survives.
type LibraryItems struct {
	Items   []LibraryItem
	Skipped int
}

func (l *LibraryItems) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	l.Items = make([]LibraryItem, 0, len(raw))
	l.Skipped = 0
	for _, r := range raw {
		var item LibraryItem
		if err := json.Unmarshal(r, &item); err != nil || item.ID == "" {
			l.Skipped++
			continue
		}
		l.Items = append(l.Items, item)
	}
	return nil
}

func (l LibraryItems) MarshalJSON() ([]byte, error) {
	if l.Items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.Items)
}

// VideoResult is a search result pending conversion. It is never persisted by the client.
type VideoResult struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	AuthorURL       string `json:"authorUrl,omitempty"`
	Thumbnail       string `json:"thumbnail"`
	Duration        string `json:"duration"`
	DurationSeconds int    `json:"durationInSeconds"`
	URL             string `json:"url"`
	Views           string `json:"views,omitempty"`
	UploadedAt      string `json:"uploadedAt,omitempty"`
}

// UnmarshalJSON accepts numeric or string ids and numeric or string view counts.
func (v *VideoResult) UnmarshalJSON(data []byte) error {
	type alias VideoResult
	var w struct {
		alias
		ID              json.RawMessage `json:"id"`
		Views           json.RawMessage `json:"views"`
		DurationSeconds json.RawMessage `json:"durationInSeconds"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*v = VideoResult(w.alias)
	v.ID = rawString(w.ID)
	v.Views = rawString(w.Views)
	v.DurationSeconds = seconds(w.DurationSeconds)
	if v.ID == "" {
		v.ID = v.URL
	}
	return nil
}

func (v VideoResult) TrackID() string   { return v.ID }
func (v VideoResult) AudioRef() string  { return "" }
func (v VideoResult) SourceURL() string { return v.URL }

func (v VideoResult) Metadata() TrackMetadata {
	return TrackMetadata{
		Title:           v.Title,
		Author:          v.Author,
		Thumbnail:       v.Thumbnail,
		Duration:        v.Duration,
		DurationSeconds: v.DurationSeconds,
	}
}

func (v VideoResult) DisplayTitle() string { return displayTitle(v.Title, v.Author) }

// ConvertRequest is the body of a conversion call.
type ConvertRequest struct {
	URL             string `json:"url"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	Thumbnail       string `json:"thumbnail"`
	Duration        string `json:"duration"`
	DurationSeconds int    `json:"durationInSeconds"`
}

// NewConvertRequest builds the conversion body for a source URL.
func NewConvertRequest(videoURL string, meta TrackMetadata) ConvertRequest {
	return ConvertRequest{
		URL:             videoURL,
		Title:           meta.Title,
		Artist:          meta.Author,
		Thumbnail:       meta.Thumbnail,
		Duration:        meta.Duration,
		DurationSeconds: meta.DurationSeconds,
	}
}

// ConvertResponse is the backend's reply to a conversion call.
type ConvertResponse struct {
	Success bool   `json:"success"`
	AudioID string `json:"audioId,omitempty"`
	Message string `json:"message,omitempty"`
}

// LibraryResponse is the backend's saved-audio listing.
type LibraryResponse struct {
	Success bool         `json:"success"`
	Audios  LibraryItems `json:"audios"`
	Message string       `json:"message,omitempty"`
}

// ItemResponse wraps a single saved audio.
type ItemResponse struct {
	Success bool         `json:"success"`
	Audio   *LibraryItem `json:"audio,omitempty"`
	Message string       `json:"message,omitempty"`
}

// SearchResponse is the search API's reply.
type SearchResponse struct {
	Success      bool          `json:"success"`
	Query        string        `json:"query"`
	TotalResults int           `json:"totalResults"`
	Results      []VideoResult `json:"results"`
}

// FormatSeconds renders seconds as m:ss, or h:mm:ss past an hour.
func FormatSeconds(total int) string {
	if total <= 0 {
		return "0:00"
	}
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func displayTitle(title, author string) string {
	if author == "" {
		return title
	}
	return author + " - " + title
}

// rawString renders a JSON scalar as a plain string; strings are unquoted, numbers kept verbatim.
func rawString(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

// seconds reads a number or numeric string, truncating fractions. Anything else is zero.
func seconds(raw json.RawMessage) int {
	s := strings.TrimSpace(rawString(raw))
	if s == "" {
		return 0
	}
	if i, err := strconv.Atoi(s); err == nil {
		return max(i, 0)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0
	}
	return int(f)
}
