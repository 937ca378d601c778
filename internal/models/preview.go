package models

import "encoding/json"

var _ TrackRef = PreviewTrack{}

// PreviewTrack is a catalogue track with a short hosted preview clip.
//
// Previews play straight from their clip URL and are never sent for conversion.
type PreviewTrack struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Artist          string `json:"artist"`
	ArtistFans      int    `json:"artistFans,omitempty"`
	Album           string `json:"album,omitempty"`
	Cover           string `json:"cover,omitempty"`
	Link            string `json:"link,omitempty"`
	Preview         string `json:"preview,omitempty"`
	DurationSeconds int    `json:"durationSeconds"`
}

// UnmarshalJSON reads the catalogue shape, where artist and album are nested objects
// and ids are numbers.
func (p *PreviewTrack) UnmarshalJSON(data []byte) error {
	var w struct {
		ID       json.RawMessage `json:"id"`
		Title    string          `json:"title"`
		Link     string          `json:"link"`
		Preview  string          `json:"preview"`
		Duration json.RawMessage `json:"duration"`
		Artist   struct {
			Name  string `json:"name"`
			NbFan int    `json:"nb_fan"`
		} `json:"artist"`
		Album struct {
			Title       string `json:"title"`
			Cover       string `json:"cover"`
			CoverMedium string `json:"cover_medium"`
		} `json:"album"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*p = PreviewTrack{
		ID:              rawString(w.ID),
		Title:           w.Title,
		Artist:          w.Artist.Name,
		ArtistFans:      w.Artist.NbFan,
		Album:           w.Album.Title,
		Cover:           fallbackString(w.Album.CoverMedium, w.Album.Cover),
		Link:            w.Link,
		Preview:         w.Preview,
		DurationSeconds: seconds(w.Duration),
	}
	return nil
}

// HasPreview reports whether the track carries a playable clip.
func (p PreviewTrack) HasPreview() bool { return p.Preview != "" }

// TrackID is namespaced so a catalogue id never collides with a saved audio id.
func (p PreviewTrack) TrackID() string {
	if p.ID == "" {
		return ""
	}
	return "preview:" + p.ID
}

func (p PreviewTrack) AudioRef() string  { return p.Preview }
func (p PreviewTrack) SourceURL() string { return "" }

func (p PreviewTrack) Metadata() TrackMetadata {
	return TrackMetadata{
		Title:           p.Title,
		Author:          p.Artist,
		Thumbnail:       p.Cover,
		Duration:        FormatSeconds(p.DurationSeconds),
		DurationSeconds: p.DurationSeconds,
	}
}

func (p PreviewTrack) DisplayTitle() string { return displayTitle(p.Title, p.Artist) }

// PreviewResponse is the catalogue search envelope. Error is set instead of Data on failure.
type PreviewResponse struct {
	Data  []PreviewTrack `json:"data"`
	Total int            `json:"total"`
	Next  string         `json:"next,omitempty"`
	Error *CatalogError  `json:"error,omitempty"`
}

// CatalogError is the error object the catalogue returns with a 200 status.
type CatalogError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *CatalogError) Error() string { return e.Type + ": " + e.Message }

func fallbackString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
