package services

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/tapedeck/internal/shared"
)

const catalogueBody = `{"data":[
	{"id":3135556,"title":"Harder, Better, Faster, Stronger","link":"https://www.deezer.com/track/3135556",
	 "preview":"https://cdns-preview.dzcdn.net/stream/c-1.mp3","duration":224,
	 "artist":{"name":"Daft Punk","nb_fan":4200000},
	 "album":{"title":"Discovery","cover":"https://e/cover.jpg","cover_medium":"https://e/cover_250.jpg"}},
	{"id":3135557,"title":"Crescendolls","preview":"","duration":"211","artist":{"name":"Daft Punk"},"album":{"title":"Discovery","cover":"https://e/c.jpg"}},
	{"title":"orphan","preview":"https://cdns-preview.dzcdn.net/stream/x.mp3"}
],"total":3}`

func TestPreviewService(t *testing.T) {
	ctx := context.Background()

	t.Run("SearchPreviews", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/search" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if r.URL.Query().Get("q") != "daft punk" {
				t.Errorf("expected query 'daft punk', got %q", r.URL.Query().Get("q"))
			}
			if r.URL.Query().Get("limit") != "10" {
				t.Errorf("expected limit 10, got %q", r.URL.Query().Get("limit"))
			}
			if r.Header.Get("X-RapidAPI-Key") != "" {
				t.Error("expected no proxy key without configuration")
			}
			w.Write([]byte(catalogueBody))
		}))
		defer server.Close()

		var logs bytes.Buffer
		srv := NewPreviewService(shared.SearchConfig{DeezerURL: server.URL, PreviewLimit: 10}, "", nil)
		srv.SetLogger(log.New(&logs))

		tracks, err := srv.SearchPreviews(ctx, " daft punk ")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(tracks) != 2 {
			t.Fatalf("expected 2 tracks, got %d", len(tracks))
		}

		first := tracks[0]
		if first.ID != "3135556" || first.Artist != "Daft Punk" || first.Album != "Discovery" {
			t.Errorf("unexpected first track %+v", first)
		}
		if first.Cover != "https://e/cover_250.jpg" {
			t.Errorf("expected medium cover, got %q", first.Cover)
		}
		if first.AudioRef() != first.Preview || first.SourceURL() != "" {
			t.Errorf("expected preview clip as audio ref, got %q / %q", first.AudioRef(), first.SourceURL())
		}
		if first.TrackID() != "preview:3135556" {
			t.Errorf("unexpected track id %q", first.TrackID())
		}

		second := tracks[1]
		if second.HasPreview() {
			t.Error("expected track without clip to report no preview")
		}
		if second.DurationSeconds != 211 || second.Cover != "https://e/c.jpg" {
			t.Errorf("unexpected second track %+v", second)
		}
		if !strings.Contains(logs.String(), "dropped=1") {
			t.Errorf("expected dropped result to be logged, got %q", logs.String())
		}
	})

	t.Run("Proxy Headers", func(t *testing.T) {
		var key, host string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, host = r.Header.Get("X-RapidAPI-Key"), r.Header.Get("X-RapidAPI-Host")
			w.Write([]byte(`{"data":[],"total":0}`))
		}))
		defer server.Close()

		srv := NewPreviewService(shared.SearchConfig{DeezerURL: server.URL, DeezerKey: "k"}, "", nil)
		tracks, err := srv.SearchPreviews(ctx, "anything")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if tracks == nil || len(tracks) != 0 {
			t.Errorf("expected empty non-nil result, got %#v", tracks)
		}
		if key != "k" {
			t.Errorf("expected proxy key, got %q", key)
		}
		if host != strings.TrimPrefix(server.URL, "http://") {
			t.Errorf("expected proxy host %q, got %q", server.URL, host)
		}
	})

	t.Run("Catalogue Error Object", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"error":{"type":"Exception","message":"Quota limit exceeded","code":4}}`))
		}))
		defer server.Close()

		_, err := NewPreviewService(shared.SearchConfig{DeezerURL: server.URL}, "", nil).SearchPreviews(ctx, "x")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if err == nil || !strings.Contains(err.Error(), "Quota limit exceeded") {
			t.Errorf("expected catalogue message in error, got %v", err)
		}
	})

	t.Run("Status Error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"message":"You are not subscribed to this API."}`))
		}))
		defer server.Close()

		_, err := NewPreviewService(shared.SearchConfig{DeezerURL: server.URL}, "", nil).SearchPreviews(ctx, "x")
		var se *statusError
		if !errors.As(err, &se) || se.Code != http.StatusForbidden {
			t.Errorf("expected 403 status error, got %v", err)
		}
	})

	t.Run("Blank Query", func(t *testing.T) {
		_, err := NewPreviewService(shared.SearchConfig{}, "", nil).SearchPreviews(ctx, "   ")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Default Catalogue", func(t *testing.T) {
		srv := NewPreviewService(shared.SearchConfig{}, "", nil)
		if srv.baseURL != defaultCatalogURL {
			t.Errorf("expected %s, got %s", defaultCatalogURL, srv.baseURL)
		}
	})
}
