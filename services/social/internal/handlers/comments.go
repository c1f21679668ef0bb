package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/storyhub/internal/platform/analytics"
	"github.com/example/storyhub/internal/platform/api"
	"github.com/example/storyhub/internal/platform/auth"
	"github.com/example/storyhub/internal/platform/httpserver"
	"github.com/example/storyhub/services/social/internal/store"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100

	// maxPage keeps (page-1)*limit inside int.
	maxPage = math.MaxInt / maxPageSize
)

var validate = api.NewValidator()

type createCommentRequest struct {
	Body      string  `json:"body" validate:"required,max=5000"`
	ChapterID *int    `json:"chapter_id,omitempty" validate:"omitempty,min=1"`
	ParentID  *string `json:"parent_id,omitempty"`
}

type updateCommentRequest struct {
	Body string `json:"body" validate:"required,max=5000"`
}

type threadResponse struct {
	Comments    []store.CommentTreeNode `json:"comments"`
	TotalPages  int64                   `json:"totalPages"`
	CurrentPage int                     `json:"currentPage"`
	Total       int64                   `json:"total"`
}

// ListComments handles GET /v1/stories/{story_id}/comments
func ListComments(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		storyID, ok := pathID(w, r, "story_id", rid)
		if !ok {
			return
		}

		qs := r.URL.Query()
		page := min(positiveInt(qs.Get("page"), 1), maxPage)
		limit := min(positiveInt(qs.Get("limit"), defaultPageSize), maxPageSize)

		q := store.ThreadQuery{StoryID: storyID, Offset: (page - 1) * limit, Limit: limit}
		if raw := strings.TrimSpace(qs.Get("chapter_id")); raw != "" {
			ch, err := strconv.Atoi(raw)
			if err != nil || ch < 1 {
				api.BadRequest(w, "INVALID_CHAPTER", "chapter_id must be a positive integer", rid, nil)
				return
			}
			q.ChapterID = &ch
		}

		res, err := cs.ListThread(r.Context(), q)
		if err != nil {
			api.Internal(w, rid)
			return
		}
		if res.Nodes == nil {
			res.Nodes = []store.CommentTreeNode{}
		}
		api.WriteJSON(w, http.StatusOK, threadResponse{
			Comments:    res.Nodes,
			TotalPages:  (res.Total + int64(limit) - 1) / int64(limit),
			CurrentPage: page,
			Total:       res.Total,
		})
	}
}

// CreateComment handles POST /v1/stories/{story_id}/comments
func CreateComment(cs store.CommentStore, pub *analytics.Publisher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		storyID, ok := pathID(w, r, "story_id", rid)
		if !ok {
			return
		}

		var req createCommentRequest
		if !api.DecodeJSON(w, r, rid, &req) {
			return
		}
		req.Body = strings.TrimSpace(req.Body)
		if err := validate.Struct(req); err != nil {
			api.BadRequest(w, "VALIDATION_FAILED", "invalid comment", rid, api.ValidationDetails(err))
			return
		}
		if req.ParentID != nil {
			pid, err := uuid.Parse(strings.TrimSpace(*req.ParentID))
			if err != nil {
				api.BadRequest(w, "INVALID_PARENT", "parent_id must be a UUID", rid, nil)
				return
			}
			canonical := pid.String()
			req.ParentID = &canonical
		}

		created, err := cs.Create(r.Context(), store.Comment{
			StoryID:   storyID,
			ChapterID: req.ChapterID,
			UserID:    userID,
			ParentID:  req.ParentID,
			Body:      req.Body,
		})
		if err != nil {
			if errors.Is(err, store.ErrInvalidParent) {
				api.BadRequest(w, "INVALID_PARENT", err.Error(), rid, nil)
				return
			}
			api.Internal(w, rid)
			return
		}

		props := map[string]any{"story_id": storyID, "comment_id": created.ID, "reply": created.ParentID != nil}
		if created.ChapterID != nil {
			props["chapter_id"] = *created.ChapterID
		}
		pub.Publish(analytics.SubjectCommentCreated, "comment_created", userID, props)
		api.WriteJSON(w, http.StatusCreated, created)
	}
}

// UpdateComment handles PUT /v1/comments/{comment_id}
func UpdateComment(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		commentID, ok := pathID(w, r, "comment_id", rid)
		if !ok {
			return
		}

		var req updateCommentRequest
		if !api.DecodeJSON(w, r, rid, &req) {
			return
		}
		req.Body = strings.TrimSpace(req.Body)
		if err := validate.Struct(req); err != nil {
			api.BadRequest(w, "VALIDATION_FAILED", "invalid comment", rid, api.ValidationDetails(err))
			return
		}

		if err := cs.UpdateBody(r.Context(), commentID, userID, req.Body); err != nil {
			writeOwnershipError(w, err, rid)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteComment handles DELETE /v1/comments/{comment_id}. Admins may
// delete any comment.
func DeleteComment(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		commentID, ok := pathID(w, r, "comment_id", rid)
		if !ok {
			return
		}

		if err := cs.SoftDelete(r.Context(), commentID, userID, auth.IsAdmin(r.Context())); err != nil {
			writeOwnershipError(w, err, rid)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// LikeComment handles POST /v1/comments/{comment_id}/like
func LikeComment(cs store.CommentStore) http.HandlerFunc {
	return toggleLike(cs.Like)
}

// UnlikeComment handles DELETE /v1/comments/{comment_id}/like
func UnlikeComment(cs store.CommentStore) http.HandlerFunc {
	return toggleLike(cs.Unlike)
}

func toggleLike(apply func(ctx context.Context, commentID, userID string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		userID, ok := requireUser(w, r, rid)
		if !ok {
			return
		}
		commentID, ok := pathID(w, r, "comment_id", rid)
		if !ok {
			return
		}

		if err := apply(r.Context(), commentID, userID); err != nil {
			if errors.Is(err, store.ErrNotFoundOrForbidden) {
				api.NotFound(w, "NOT_FOUND", "comment not found", rid)
				return
			}
			api.Internal(w, rid)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func requireUser(w http.ResponseWriter, r *http.Request, rid string) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
		return "", false
	}
	return userID, true
}

// pathID reads a UUID path parameter and returns it in canonical form.
func pathID(w http.ResponseWriter, r *http.Request, name, rid string) (string, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		api.BadRequest(w, "MISSING_ID", name+" is required", rid, nil)
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		api.BadRequest(w, "INVALID_ID", name+" must be a UUID", rid, nil)
		return "", false
	}
	return id.String(), true
}

func writeOwnershipError(w http.ResponseWriter, err error, rid string) {
	if errors.Is(err, store.ErrNotFoundOrForbidden) {
		api.Forbidden(w, "FORBIDDEN", "not found or not the author", rid)
		return
	}
	api.Internal(w, rid)
}

// positiveInt parses s, returning fallback when s is empty, malformed or < 1.
func positiveInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
