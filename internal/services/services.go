// package services implements HTTP clients for the conversion backend and the search API
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
	"golang.org/x/oauth2"
)

const (
	defaultBaseURL   = "http://127.0.0.1:5000"
	defaultUserAgent = "tapedeck/0.1"
)

// AudioSource is the remote backend that turns video references into playable audio.
type AudioSource interface {
	// Convert asks the backend to convert videoURL and returns the resulting audio id.
	Convert(ctx context.Context, videoURL string, meta models.TrackMetadata) (string, error)

	// ListSaved returns every previously converted item.
	ListSaved(ctx context.Context) ([]models.LibraryItem, error)

	// GetSaved returns a single saved item by id.
	GetSaved(ctx context.Context, id string) (*models.LibraryItem, error)

	// FetchAudioStream opens the audio bytes for audioRef along with the content length (-1 if unknown).
	FetchAudioStream(ctx context.Context, audioRef string) (io.ReadCloser, int64, error)

	// DownloadURL is the URI a playback engine loads for audioRef.
	DownloadURL(audioRef string) string
}

// Searcher queries the track-search API.
type Searcher interface {
	Search(ctx context.Context, query string) (*models.SearchResponse, error)
}

// PreviewSearcher queries the music catalogue for tracks with short preview clips.
type PreviewSearcher interface {
	SearchPreviews(ctx context.Context, query string) ([]models.PreviewTrack, error)
}

// NewHTTPClient builds the HTTP client used for backend calls.
//
// When token is set, requests carry it as a bearer token via [oauth2.StaticTokenSource].
func NewHTTPClient(token string, timeout time.Duration) *http.Client {
	client := &http.Client{}
	if token != "" {
		src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
		client = oauth2.NewClient(context.Background(), src)
	}
	client.Timeout = timeout
	return client
}

// client holds what every backend request shares: base URL, headers and transport.
type client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	header     http.Header
}

func newClient(baseURL, userAgent string, httpClient *http.Client) client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		userAgent:  userAgent,
		httpClient: httpClient,
	}
}

func (c client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

// newRequest tags every request with a fresh X-Request-ID and the configured User-Agent.
func (c client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("X-Request-ID", shared.GenerateID())
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.header {
		req.Header[k] = v
	}
	return req, nil
}

// doJSON sends in (if non-nil) as JSON and decodes a 2xx response into out.
//
// Non-2xx responses return a [statusError] so callers can map specific codes.
func (c client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// statusError is a non-2xx backend response.
type statusError struct {
	Code    int
	Message string
}

func newStatusError(resp *http.Response) *statusError {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
		Detail  string `json:"detail"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	se := &statusError{Code: resp.StatusCode}
	if err := json.Unmarshal(data, &payload); err == nil {
		for _, m := range []string{payload.Message, payload.Error, payload.Detail} {
			if m != "" {
				se.Message = m
				break
			}
		}
	}
	return se
}

func (e *statusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("status %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("status %d", e.Code)
}

func (e *statusError) Unwrap() error { return shared.ErrAPIRequest }
