package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/tapedeck/internal/models"
	"github.com/desertthunder/tapedeck/internal/shared"
)

var _ Searcher = (*SearchService)(nil)

// SearchService queries the track-search API.
type SearchService struct {
	client
}

// NewSearchService creates a search client. A nil httpClient uses [http.DefaultClient].
func NewSearchService(baseURL, userAgent string, httpClient *http.Client) *SearchService {
	return &SearchService{client: newClient(baseURL, userAgent, httpClient)}
}

// Search runs a free-text query. A response with success=false yields zero results, not an error.
func (s *SearchService) Search(ctx context.Context, query string) (*models.SearchResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty search query", shared.ErrInvalidInput)
	}

	var resp models.SearchResponse
	if err := s.doJSON(ctx, http.MethodGet, "/api/search?q="+url.QueryEscape(query), nil, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	if resp.Query == "" {
		resp.Query = query
	}
	if !resp.Success || resp.Results == nil {
		resp.Results = []models.VideoResult{}
		resp.TotalResults = 0
	}
	return &resp, nil
}
