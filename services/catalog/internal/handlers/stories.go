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
	"github.com/example/storyhub/services/catalog/internal/store"
)

var validate = api.NewValidator()

// GetStory handles GET /v1/stories/{story_id}. Each call counts as one view.
func GetStory(ss store.StoryStore, pub *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := storyID(w, r, rid)
		if !ok {
			return
		}

		st, err := ss.View(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, rid)
			return
		}
		pub.Publish(analytics.SubjectStoryViewed, "story_viewed", callerID(r), map[string]any{
			"story_id": st.ID.String(),
			"genre":    st.Genre,
		})
		api.WriteJSON(w, http.StatusOK, st)
	}
}

// CreateStory handles POST /v1/admin/stories
func CreateStory(ss store.StoryStore, cache Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		in, ok := decodeStoryInput(w, r, rid)
		if !ok {
			return
		}

		st, err := ss.Create(r.Context(), in)
		if err != nil {
			api.Internal(w, rid)
			return
		}
		cache.Purge()
		api.WriteJSON(w, http.StatusCreated, st)
	}
}

// UpdateStory handles PUT /v1/admin/stories/{story_id}
func UpdateStory(ss store.StoryStore, cache Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := storyID(w, r, rid)
		if !ok {
			return
		}
		in, ok := decodeStoryInput(w, r, rid)
		if !ok {
			return
		}

		st, err := ss.Update(r.Context(), id, in)
		if err != nil {
			writeStoreError(w, err, rid)
			return
		}
		cache.Purge()
		api.WriteJSON(w, http.StatusOK, st)
	}
}

// DeleteStory handles DELETE /v1/admin/stories/{story_id}
func DeleteStory(ss store.StoryStore, cache Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := storyID(w, r, rid)
		if !ok {
			return
		}

		if err := ss.Delete(r.Context(), id); err != nil {
			writeStoreError(w, err, rid)
			return
		}
		cache.Purge()
		w.WriteHeader(http.StatusNoContent)
	}
}

func storyID(w http.ResponseWriter, r *http.Request, rid string) (uuid.UUID, bool) {
	return pathUUID(w, r, "story_id", rid)
}

// pathUUID reads the named chi URL param as a UUID, writing a 400 when it is
// missing or malformed.
func pathUUID(w http.ResponseWriter, r *http.Request, param, rid string) (uuid.UUID, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	if raw == "" {
		api.BadRequest(w, "MISSING_ID", param+" is required", rid, nil)
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		api.BadRequest(w, "INVALID_ID", param+" must be a UUID", rid, nil)
		return uuid.Nil, false
	}
	return id, true
}

func decodeStoryInput(w http.ResponseWriter, r *http.Request, rid string) (store.StoryInput, bool) {
	var in store.StoryInput
	if !api.DecodeJSON(w, r, rid, &in) {
		return store.StoryInput{}, false
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Genre = strings.TrimSpace(in.Genre)
	in.Status = strings.ToLower(strings.TrimSpace(in.Status))
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	if err := validate.Struct(in); err != nil {
		api.BadRequest(w, "VALIDATION_FAILED", "invalid story", rid, api.ValidationDetails(err))
		return store.StoryInput{}, false
	}
	return in, true
}

func writeStoreError(w http.ResponseWriter, err error, rid string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "story not found", rid)
	case errors.Is(err, store.ErrChapterNotFound):
		api.NotFound(w, "CHAPTER_NOT_FOUND", "chapter not found", rid)
	case errors.Is(err, store.ErrGenreNotFound):
		api.NotFound(w, "GENRE_NOT_FOUND", "genre not found", rid)
	case errors.Is(err, store.ErrDuplicateChapter):
		api.Conflict(w, "CHAPTER_EXISTS", err.Error(), rid, nil)
	case errors.Is(err, store.ErrDuplicateGenre):
		api.Conflict(w, "GENRE_EXISTS", err.Error(), rid, nil)
	default:
		api.Internal(w, rid)
	}
}

// callerID is the authenticated user, or "" on public routes.
func callerID(r *http.Request) string {
	uid, _ := auth.UserIDFromContext(r.Context())
	return uid
}
