package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/example/storyhub/internal/platform/analytics"
	"github.com/example/storyhub/internal/platform/api"
	"github.com/example/storyhub/internal/platform/httpserver"
	"github.com/example/storyhub/services/catalog/internal/store"
)

type chapterListResponse struct {
	StoryID  uuid.UUID       `json:"storyId"`
	Chapters []store.Chapter `json:"chapters"`
}

// ListChapters handles GET /v1/stories/{story_id}/chapters
func ListChapters(cs store.ChapterStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := storyID(w, r, rid)
		if !ok {
			return
		}

		chapters, err := cs.ListChapters(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, chapterListResponse{StoryID: id, Chapters: chapters})
	}
}

// GetChapter handles GET /v1/chapters/{chapter_id}
func GetChapter(cs store.ChapterStore, pub *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := pathUUID(w, r, "chapter_id", rid)
		if !ok {
			return
		}

		ch, err := cs.GetChapter(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, rid)
			return
		}
		pub.Publish(analytics.SubjectChapterRead, "chapter_read", callerID(r), map[string]any{
			"story_id":       ch.StoryID.String(),
			"chapter_number": ch.Number,
		})
		api.WriteJSON(w, http.StatusOK, ch)
	}
}

// CreateChapter handles POST /v1/admin/stories/{story_id}/chapters
func CreateChapter(cs store.ChapterStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := storyID(w, r, rid)
		if !ok {
			return
		}
		in, ok := decodeChapterInput(w, r, rid)
		if !ok {
			return
		}

		ch, err := cs.CreateChapter(r.Context(), id, in)
		if err != nil {
			writeStoreError(w, err, rid)
			return
		}
		api.WriteJSON(w, http.StatusCreated, ch)
	}
}

// UpdateChapter handles PUT /v1/admin/chapters/{chapter_id}
func UpdateChapter(cs store.ChapterStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := pathUUID(w, r, "chapter_id", rid)
		if !ok {
			return
		}
		in, ok := decodeChapterInput(w, r, rid)
		if !ok {
			return
		}

		ch, err := cs.UpdateChapter(r.Context(), id, in)
		if err != nil {
			writeStoreError(w, err, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, ch)
	}
}

// DeleteChapter handles DELETE /v1/admin/chapters/{chapter_id}
func DeleteChapter(cs store.ChapterStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := pathUUID(w, r, "chapter_id", rid)
		if !ok {
			return
		}
		if err := cs.DeleteChapter(r.Context(), id); err != nil {
			writeStoreError(w, err, rid)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeChapterInput(w http.ResponseWriter, r *http.Request, rid string) (store.ChapterInput, bool) {
	var in store.ChapterInput
	if !api.DecodeJSON(w, r, rid, &in) {
		return store.ChapterInput{}, false
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validate.Struct(in); err != nil {
		api.BadRequest(w, "VALIDATION_FAILED", "invalid chapter", rid, api.ValidationDetails(err))
		return store.ChapterInput{}, false
	}
	return in, true
}
