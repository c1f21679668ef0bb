package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/example/storyhub/internal/platform/api"
	"github.com/example/storyhub/internal/platform/httpserver"
	"github.com/example/storyhub/services/analytics/internal/sink"
)

const (
	defaultTopLimit = 10
	maxTopLimit     = 100
)

type topStoriesResponse struct {
	By      sink.Ranking      `json:"by"`
	Stories []sink.StoryStats `json:"stories"`
}

// TopStories handles GET /v1/admin/analytics/stories/top?by=views|comments&limit=N
func TopStories(s sink.EventSink) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		qs := r.URL.Query()

		by := sink.ParseRanking(strings.ToLower(strings.TrimSpace(qs.Get("by"))))
		limit := defaultTopLimit
		if n, err := strconv.Atoi(strings.TrimSpace(qs.Get("limit"))); err == nil && n > 0 {
			limit = min(n, maxTopLimit)
		}

		stories, err := s.TopStories(r.Context(), by, limit)
		if err != nil {
			api.Internal(w, rid)
			return
		}
		if stories == nil {
			stories = []sink.StoryStats{}
		}
		api.WriteJSON(w, http.StatusOK, topStoriesResponse{By: by, Stories: stories})
	}
}
