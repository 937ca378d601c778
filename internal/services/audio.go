package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"golang.org/x/time/rate"
)

var _ AudioSource = (*AudioService)(nil)

// AudioService talks to the conversion backend.
type AudioService struct {
	client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewAudioService creates a backend client from cfg. A nil httpClient uses [http.DefaultClient].
//
// Conversions are throttled to cfg.ConversionRate per second; zero or less disables throttling.
func NewAudioService(cfg shared.BackendConfig, httpClient *http.Client) *AudioService {
	limit := rate.Inf
	if cfg.ConversionRate > 0 {
		limit = rate.Limit(cfg.ConversionRate)
	}
	return &AudioService{
		client:  newClient(cfg.BaseURL, cfg.UserAgent, httpClient),
		limiter: rate.NewLimiter(limit, 1),
		logger:  shared.NewLogger(nil).With("component", "services"),
	}
}

// SetLogger replaces the logger used to report skipped listing entries.
func (a *AudioService) SetLogger(l *log.Logger) {
	a.logger = l.With("component", "services")
}

// Convert posts a conversion request and returns the backend's audio id.
//
// Every failure wraps [shared.ErrConversionFailed]; transport errors keep their cause so
// callers can detect context deadlines.
func (a *AudioService) Convert(ctx context.Context, videoURL string, meta models.TrackMetadata) (string, error) {
	if strings.TrimSpace(videoURL) == "" {
		return "", fmt.Errorf("%w: %w: empty video url", shared.ErrConversionFailed, shared.ErrInvalidArgument)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrConversionFailed, err)
	}

	var resp models.ConvertResponse
	err := a.doJSON(ctx, http.MethodPost, "/api/audio/convert", models.NewConvertRequest(videoURL, meta), &resp)
	if err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Message != "" {
			return "", fmt.Errorf("%w: %s", shared.ErrConversionFailed, se.Message)
		}
		return "", fmt.Errorf("%w: %w", shared.ErrConversionFailed, err)
	}

	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "backend rejected conversion"
		}
		return "", fmt.Errorf("%w: %s", shared.ErrConversionFailed, msg)
	}
	if resp.AudioID == "" {
		return "", fmt.Errorf("%w: response has no audio id", shared.ErrConversionFailed)
	}
	return resp.AudioID, nil
}

// ListSaved fetches the backend's saved audio listing.
func (a *AudioService) ListSaved(ctx context.Context) ([]models.LibraryItem, error) {
	var resp models.LibraryResponse
	if err := a.doJSON(ctx, http.MethodGet, "/api/audio/audios", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list saved audio: %w", err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: %s", shared.ErrAPIRequest, fallback(resp.Message, "listing rejected"))
	}
	if resp.Audios.Skipped > 0 {
		a.logger.Warn("skipped malformed library entries", "skipped", resp.Audios.Skipped, "kept", len(resp.Audios.Items))
	}
	if resp.Audios.Items == nil {
		return []models.LibraryItem{}, nil
	}
	return resp.Audios.Items, nil
}

// GetSaved fetches one saved item.
func (a *AudioService) GetSaved(ctx context.Context, id string) (*models.LibraryItem, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: audio id", shared.ErrInvalidArgument)
	}

	var resp models.ItemResponse
	if err := a.doJSON(ctx, http.MethodGet, "/api/audio/audios/"+url.PathEscape(id), nil, &resp); err != nil {
		var se *statusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
		}
		return nil, fmt.Errorf("failed to get saved audio: %w", err)
	}
	if !resp.Success || resp.Audio == nil {
		return nil, fmt.Errorf("%w: %s", shared.ErrItemNotFound, id)
	}
	if resp.Audio.ID == "" {
		resp.Audio.ID = id
	}
	return resp.Audio, nil
}

// FetchAudioStream opens the audio download. The caller closes the returned reader.
func (a *AudioService) FetchAudioStream(ctx context.Context, audioRef string) (io.ReadCloser, int64, error) {
	if audioRef == "" {
		return nil, 0, fmt.Errorf("%w: audio ref", shared.ErrInvalidArgument)
	}

	req, err := a.newRequest(ctx, http.MethodGet, a.DownloadURL(audioRef), nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "audio/*")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		se := newStatusError(resp)
		if se.Code == http.StatusNotFound {
			return nil, 0, fmt.Errorf("%w: %s", shared.ErrItemNotFound, audioRef)
		}
		return nil, 0, fmt.Errorf("failed to fetch audio: %w", se)
	}
	return resp.Body, resp.ContentLength, nil
}

// DownloadURL returns {base}/api/audio/download/{audioRef}. Absolute URLs are returned unchanged.
func (a *AudioService) DownloadURL(audioRef string) string {
	if strings.HasPrefix(audioRef, "http://") || strings.HasPrefix(audioRef, "https://") {
		return audioRef
	}
	return a.baseURL + "/api/audio/download/" + url.PathEscape(audioRef)
}

func fallback(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
