package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/storyhub/internal/platform/analytics"
	"github.com/example/storyhub/internal/platform/api"
	"github.com/example/storyhub/internal/platform/auth"
	"github.com/example/storyhub/internal/platform/httpserver"
	"github.com/example/storyhub/services/reader/internal/progress"
)

type updateProgressRequest struct {
	UserID    string `json:"userId" validate:"required"`
	StoryID   string `json:"storyId" validate:"required"`
	ChapterID int    `json:"chapterId" validate:"required,min=1"`
}

type progressResponse struct {
	ChapterID int `json:"chapterId"`
}

type messageResponse struct {
	Message string `json:"message"`
}

var validate = api.NewValidator()

// UpdateProgress handles POST /v1/progress
func UpdateProgress(cache *progress.Cache, pub *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		var req updateProgressRequest
		if !api.DecodeJSON(w, r, rid, &req) {
			return
		}
		if err := validate.Struct(req); err != nil {
			api.BadRequest(w, "INVALID_ARGUMENT", "userId, storyId and chapterId are required", rid, api.ValidationDetails(err))
			return
		}
		if !auth.CanActFor(r.Context(), canonicalID(req.UserID)) {
			api.Forbidden(w, "FORBIDDEN", "cannot update another reader's progress", rid)
			return
		}

		if err := cache.Update(req.UserID, req.StoryID, req.ChapterID); err != nil {
			if errors.Is(err, progress.ErrInvalidArgument) {
				api.BadRequest(w, "INVALID_ARGUMENT", err.Error(), rid, nil)
				return
			}
			api.Internal(w, rid)
			return
		}

		callerID, _ := auth.UserIDFromContext(r.Context())
		pub.Publish(analytics.SubjectProgressUpdated, "progress_updated", callerID, map[string]any{
			"user_id":    canonicalID(req.UserID),
			"story_id":   canonicalID(req.StoryID),
			"chapter_id": req.ChapterID,
		})
		api.WriteJSON(w, http.StatusOK, messageResponse{Message: "reading progress updated"})
	}
}

// GetProgress handles GET /v1/progress/{user_id}/{story_id}
func GetProgress(cache *progress.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())

		userID := strings.TrimSpace(chi.URLParam(r, "user_id"))
		storyID := strings.TrimSpace(chi.URLParam(r, "story_id"))
		if userID == "" || storyID == "" {
			api.BadRequest(w, "MISSING_ID", "user_id and story_id are required", rid, nil)
			return
		}
		if !auth.CanActFor(r.Context(), canonicalID(userID)) {
			api.Forbidden(w, "FORBIDDEN", "cannot read another reader's progress", rid)
			return
		}

		pos := cache.Get(userID, storyID)
		api.WriteJSON(w, http.StatusOK, progressResponse{ChapterID: pos.ChapterPosition})
	}
}

// canonicalID returns the hyphenated lowercase form of a UUID, or id unchanged.
func canonicalID(id string) string {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return id
	}
	return u.String()
}
