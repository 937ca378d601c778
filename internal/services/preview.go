package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

var _ PreviewSearcher = (*PreviewService)(nil)

const defaultCatalogURL = "https://api.deezer.com"

// PreviewService searches the Deezer catalogue for tracks with 30-second preview clips.
//
// With an API key set it talks to the RapidAPI proxy, which expects the key and the proxy
// host as headers. The public endpoint needs neither.
type PreviewService struct {
	client
	limit  int
	logger *log.Logger
}

// NewPreviewService creates a catalogue client from the search settings.
func NewPreviewService(cfg shared.SearchConfig, userAgent string, httpClient *http.Client) *PreviewService {
	base := cfg.DeezerURL
	if base == "" {
		base = defaultCatalogURL
	}
	c := newClient(base, userAgent, httpClient)
	if cfg.DeezerKey != "" {
		c.header = http.Header{}
		c.header.Set("X-RapidAPI-Key", cfg.DeezerKey)
		if u, err := url.Parse(c.baseURL); err == nil && u.Host != "" {
			c.header.Set("X-RapidAPI-Host", u.Host)
		}
	}
	return &PreviewService{
		client: c,
		limit:  cfg.PreviewLimit,
		logger: shared.NewLogger(nil).With("component", "services"),
	}
}

// SetLogger replaces the logger used to report dropped results.
func (p *PreviewService) SetLogger(l *log.Logger) {
	if l != nil {
		p.logger = l
	}
}

// SearchPreviews returns catalogue tracks matching query, in catalogue order.
//
// Tracks without an id are dropped. Tracks without a preview clip are kept so callers can
// show them as unavailable. An error object in a 200 response is returned as an error.
func (p *PreviewService) SearchPreviews(ctx context.Context, query string) ([]models.PreviewTrack, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}

	path := "/search?q=" + url.QueryEscape(query)
	if p.limit > 0 {
		path += "&limit=" + strconv.Itoa(p.limit)
	}

	var resp models.PreviewResponse
	if err := p.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("preview search %q: %w", query, err)
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("preview search %q: %w: %w", query, shared.ErrAPIRequest, resp.Error)
	}

	tracks := make([]models.PreviewTrack, 0, len(resp.Data))
	for _, t := range resp.Data {
		if t.ID == "" {
			continue
		}
		tracks = append(tracks, t)
	}
	if dropped := len(resp.Data) - len(tracks); dropped > 0 {
		p.logger.Warn("dropped catalogue results without an id", "dropped", dropped)
	}
	if p.limit > 0 && len(tracks) > p.limit {
		tracks = tracks[:p.limit]
	}
	return tracks, nil
}
