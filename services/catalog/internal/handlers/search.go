package handlers

import (
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/storyhub/internal/platform/analytics"
	"github.com/example/storyhub/internal/platform/api"
	"github.com/example/storyhub/internal/platform/httpserver"
	"github.com/example/storyhub/internal/platform/metrics"
	"github.com/example/storyhub/services/catalog/internal/filter"
	"github.com/example/storyhub/services/catalog/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	optionsCacheKey = "filter-options"

	// maxPage keeps (page-1)*limit inside int.
	maxPage = math.MaxInt / maxPageSize
)

type searchResponse struct {
	Stories     []store.Story `json:"stories"`
	TotalPages  int64         `json:"totalPages"`
	CurrentPage int           `json:"currentPage"`
	Total       int64         `json:"total"`
}

// SearchStories handles GET /v1/filter/stories
func SearchStories(ss store.StoryStore, pub *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		qs := r.URL.Query()

		params, err := filter.ParseParams(qs)
		if err != nil {
			if errors.Is(err, filter.ErrMalformedFilterInput) {
				api.BadRequest(w, "MALFORMED_FILTER", err.Error(), rid, nil)
				return
			}
			api.Internal(w, rid)
			return
		}

		page, limit := pageParams(qs)
		sortOrder := store.ParseSort(qs.Get("sort"))

		query := filter.NewStoryContext().Apply(filter.Query{}, params)
		res, err := ss.Search(r.Context(), store.SearchRequest{
			Query:  query,
			Sort:   sortOrder,
			Offset: (page - 1) * limit,
			Limit:  limit,
		})
		if err != nil {
			api.Internal(w, rid)
			return
		}
		metrics.StorySearchTotal.WithLabelValues(string(sortOrder)).Inc()

		pub.Publish(analytics.SubjectSearchPerformed, "search_performed", callerID(r), map[string]any{
			"search":  params.Search,
			"genre":   params.Genre,
			"sort":    string(sortOrder),
			"page":    page,
			"results": res.Total,
		})

		api.WriteJSON(w, http.StatusOK, newSearchResponse(res, page, limit))
	}
}

// FilterOptions handles GET /v1/filter/options
func FilterOptions(ss store.StoryStore, cache Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		if cached, ok := cache.Get(optionsCacheKey); ok {
			api.WriteJSON(w, http.StatusOK, cached)
			return
		}

		opts, err := ss.Options(r.Context())
		if err != nil {
			api.Internal(w, rid)
			return
		}
		cache.Set(optionsCacheKey, opts)
		api.WriteJSON(w, http.StatusOK, opts)
	}
}

func newSearchResponse(res store.SearchResult, page, limit int) searchResponse {
	return searchResponse{
		Stories:     res.Stories,
		TotalPages:  (res.Total + int64(limit) - 1) / int64(limit),
		CurrentPage: page,
		Total:       res.Total,
	}
}

// pageParams reads page and limit, falling back to page 1 of defaultPageSize.
func pageParams(qs url.Values) (page, limit int) {
	page = min(positiveInt(qs.Get("page"), 1), maxPage)
	limit = min(positiveInt(qs.Get("limit"), defaultPageSize), maxPageSize)
	return page, limit
}

// positiveInt parses s, returning fallback when s is empty, malformed or < 1.
func positiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
