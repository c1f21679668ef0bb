package handlers

import (
	"net/http"
	"strings"

	"github.com/example/storyhub/internal/platform/api"
	"github.com/example/storyhub/internal/platform/httpserver"
	"github.com/example/storyhub/services/catalog/internal/filter"
	"github.com/example/storyhub/services/catalog/internal/store"
)

type genreListResponse struct {
	Genres []store.Genre `json:"genres"`
}

// ListGenres handles GET /v1/genres
func ListGenres(gs store.GenreStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		genres, err := gs.ListGenres(r.Context())
		if err != nil {
			api.Internal(w, rid)
			return
		}
		if genres == nil {
			genres = []store.Genre{}
		}
		api.WriteJSON(w, http.StatusOK, genreListResponse{Genres: genres})
	}
}

// GetGenre handles GET /v1/genres/{genre_id}
func GetGenre(gs store.GenreStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := pathUUID(w, r, "genre_id", rid)
		if !ok {
			return
		}
		g, err := gs.GetGenre(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, g)
	}
}

// GenreStories handles GET /v1/genres/{genre_id}/stories. It pages and sorts
// like /v1/filter/stories, restricted to the genre's current name.
func GenreStories(gs store.GenreStore, ss store.StoryStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := pathUUID(w, r, "genre_id", rid)
		if !ok {
			return
		}
		g, err := gs.GetGenre(r.Context(), id)
		if err != nil {
			writeStoreError(w, err, rid)
			return
		}

		qs := r.URL.Query()
		page, limit := pageParams(qs)
		res, err := ss.Search(r.Context(), store.SearchRequest{
			Query:  filter.Query{filter.FieldGenre: filter.Eq(g.Name)},
			Sort:   store.ParseSort(qs.Get("sort")),
			Offset: (page - 1) * limit,
			Limit:  limit,
		})
		if err != nil {
			api.Internal(w, rid)
			return
		}
		api.WriteJSON(w, http.StatusOK, newSearchResponse(res, page, limit))
	}
}

// CreateGenre handles POST /v1/admin/genres
func CreateGenre(gs store.GenreStore, cache Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		in, ok := decodeGenreInput(w, r, rid)
		if !ok {
			return
		}
		g, err := gs.CreateGenre(r.Context(), in)
		if err != nil {
			writeStoreError(w, err, rid)
			return
		}
		cache.Purge()
		api.WriteJSON(w, http.StatusCreated, g)
	}
}

// RenameGenre handles PUT /v1/admin/genres/{genre_id}
func RenameGenre(gs store.GenreStore, cache Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := pathUUID(w, r, "genre_id", rid)
		if !ok {
			return
		}
		in, ok := decodeGenreInput(w, r, rid)
		if !ok {
			return
		}
		g, err := gs.RenameGenre(r.Context(), id, in)
		if err != nil {
			writeStoreError(w, err, rid)
			return
		}
		cache.Purge()
		api.WriteJSON(w, http.StatusOK, g)
	}
}

// DeleteGenre handles DELETE /v1/admin/genres/{genre_id}
func DeleteGenre(gs store.GenreStore, cache Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rid := httpserver.RequestIDFromContext(r.Context())
		id, ok := pathUUID(w, r, "genre_id", rid)
		if !ok {
			return
		}
		if err := gs.DeleteGenre(r.Context(), id); err != nil {
			writeStoreError(w, err, rid)
			return
		}
		cache.Purge()
		w.WriteHeader(http.StatusNoContent)
	}
}

func decodeGenreInput(w http.ResponseWriter, r *http.Request, rid string) (store.GenreInput, bool) {
	var in store.GenreInput
	if !api.DecodeJSON(w, r, rid, &in) {
		return store.GenreInput{}, false
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validate.Struct(in); err != nil {
		api.BadRequest(w, "VALIDATION_FAILED", "invalid genre", rid, api.ValidationDetails(err))
		return store.GenreInput{}, false
	}
	return in, true
}
