package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/example/storyhub/internal/platform/api"
	"github.com/example/storyhub/services/catalog/internal/store"
)

func TestChapterLifecycle(t *testing.T) {
	s, ids := seededStore()
	sid := ids["Dune"].String()
	storyParam := map[string]string{"story_id": sid}

	rr := httptest.NewRecorder()
	CreateChapter(s).ServeHTTP(rr, chiReq(http.MethodPost, "/v1/admin/stories/"+sid+"/chapters",
		`{"number":1,"title":"  Arrakis ","content":"A beginning is the time..."}`, storyParam))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created store.Chapter
	_ = json.NewDecoder(rr.Body).Decode(&created)
	if created.Title != "Arrakis" || created.StoryID != ids["Dune"] {
		t.Fatalf("unexpected chapter: %+v", created)
	}
	cid := created.ID.String()

	rr = httptest.NewRecorder()
	CreateChapter(s).ServeHTTP(rr, chiReq(http.MethodPost, "/", `{"number":1,"title":"Dup","content":"x"}`, storyParam))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate number, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	ListChapters(s).ServeHTTP(rr, chiReq(http.MethodGet, "/v1/stories/"+sid+"/chapters", "", storyParam))
	var list chapterListResponse
	_ = json.NewDecoder(rr.Body).Decode(&list)
	if rr.Code != http.StatusOK || len(list.Chapters) != 1 || list.Chapters[0].Content != "" {
		t.Fatalf("expected one chapter without content, got %d %+v", rr.Code, list)
	}

	rr = httptest.NewRecorder()
	UpdateChapter(s).ServeHTTP(rr, chiReq(http.MethodPut, "/v1/admin/chapters/"+cid,
		`{"number":2,"title":"Arrakis","content":"rewritten"}`, map[string]string{"chapter_id": cid}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	GetChapter(s, noopPub).ServeHTTP(rr, chiReq(http.MethodGet, "/v1/chapters/"+cid, "", map[string]string{"chapter_id": cid}))
	var got store.Chapter
	_ = json.NewDecoder(rr.Body).Decode(&got)
	if rr.Code != http.StatusOK || got.Number != 2 || got.Content != "rewritten" {
		t.Fatalf("unexpected chapter read: %d %+v", rr.Code, got)
	}

	rr = httptest.NewRecorder()
	GetStory(s, noopPub).ServeHTTP(rr, chiReq(http.MethodGet, "/", "", storyParam))
	var st store.Story
	_ = json.NewDecoder(rr.Body).Decode(&st)
	if st.NumberOfChapters != 1 || st.LatestChapter != 2 {
		t.Fatalf("expected story counters 1/2, got %d/%d", st.NumberOfChapters, st.LatestChapter)
	}

	rr = httptest.NewRecorder()
	DeleteChapter(s).ServeHTTP(rr, chiReq(http.MethodDelete, "/", "", map[string]string{"chapter_id": cid}))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	GetChapter(s, noopPub).ServeHTTP(rr, chiReq(http.MethodGet, "/", "", map[string]string{"chapter_id": cid}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestChapterErrors(t *testing.T) {
	s, _ := seededStore()
	missing := uuid.NewString()
	cases := map[string]struct {
		h    http.HandlerFunc
		req  *http.Request
		want int
		code string
	}{
		"list unknown story":   {ListChapters(s), chiReq(http.MethodGet, "/", "", map[string]string{"story_id": missing}), http.StatusNotFound, "NOT_FOUND"},
		"create unknown story": {CreateChapter(s), chiReq(http.MethodPost, "/", `{"number":1,"title":"t","content":"c"}`, map[string]string{"story_id": missing}), http.StatusNotFound, "NOT_FOUND"},
		"create invalid":       {CreateChapter(s), chiReq(http.MethodPost, "/", `{"number":0,"title":"","content":"c"}`, map[string]string{"story_id": missing}), http.StatusBadRequest, "VALIDATION_FAILED"},
		"get bad id":           {GetChapter(s, noopPub), chiReq(http.MethodGet, "/", "", map[string]string{"chapter_id": "nope"}), http.StatusBadRequest, "INVALID_ID"},
		"update missing":       {UpdateChapter(s), chiReq(http.MethodPut, "/", `{"number":1,"title":"t","content":"c"}`, map[string]string{"chapter_id": missing}), http.StatusNotFound, "CHAPTER_NOT_FOUND"},
		"delete missing":       {DeleteChapter(s), chiReq(http.MethodDelete, "/", "", map[string]string{"chapter_id": missing}), http.StatusNotFound, "CHAPTER_NOT_FOUND"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			tc.h.ServeHTTP(rr, tc.req)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
			var env api.ErrorResponse
			_ = json.NewDecoder(rr.Body).Decode(&env)
			if env.Error.Code != tc.code {
				t.Fatalf("expected code %s, got %q", tc.code, env.Error.Code)
			}
		})
	}
}

func TestGenreLifecycle(t *testing.T) {
	s, _ := seededStore()
	cache := NewTTLCache(time.Minute, nil, "", nil)

	rr := httptest.NewRecorder()
	CreateGenre(s, cache).ServeHTTP(rr, chiReq(http.MethodPost, "/v1/admin/genres", `{"name":" Manga "}`, nil))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var manga store.Genre
	_ = json.NewDecoder(rr.Body).Decode(&manga)
	gid := manga.ID.String()
	genreParam := map[string]string{"genre_id": gid}

	rr = httptest.NewRecorder()
	CreateGenre(s, cache).ServeHTTP(rr, chiReq(http.MethodPost, "/", `{"name":"MANGA"}`, nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate genre, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	GenreStories(s, s).ServeHTTP(rr, chiReq(http.MethodGet, "/v1/genres/"+gid+"/stories?sort=popular&limit=1", "", genreParam))
	resp := decodeSearch(t, rr)
	if resp.Total != 2 || resp.TotalPages != 2 || len(resp.Stories) != 1 || resp.Stories[0].Title != "Naruto" {
		t.Fatalf("unexpected genre listing: %+v", resp)
	}

	cache.Set(optionsCacheKey, "stale")
	rr = httptest.NewRecorder()
	RenameGenre(s, cache).ServeHTTP(rr, chiReq(http.MethodPut, "/", `{"name":"Shonen"}`, genreParam))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if _, ok := cache.Get(optionsCacheKey); ok {
		t.Fatal("rename must purge the options cache")
	}

	rr = httptest.NewRecorder()
	GenreStories(s, s).ServeHTTP(rr, chiReq(http.MethodGet, "/", "", genreParam))
	if resp := decodeSearch(t, rr); resp.Total != 2 {
		t.Fatalf("expected renamed genre to keep its stories, got %+v", resp)
	}

	rr = httptest.NewRecorder()
	ListGenres(s).ServeHTTP(rr, chiReq(http.MethodGet, "/v1/genres", "", nil))
	var list genreListResponse
	_ = json.NewDecoder(rr.Body).Decode(&list)
	if len(list.Genres) != 1 || list.Genres[0].Name != "Shonen" {
		t.Fatalf("unexpected genres: %+v", list)
	}

	rr = httptest.NewRecorder()
	DeleteGenre(s, cache).ServeHTTP(rr, chiReq(http.MethodDelete, "/", "", genreParam))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	rr = httptest.NewRecorder()
	GetGenre(s).ServeHTTP(rr, chiReq(http.MethodGet, "/", "", genreParam))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rr.Code)
	}
}

func TestListGenres_EmptyIsArray(t *testing.T) {
	rr := httptest.NewRecorder()
	ListGenres(store.NewInMemoryStoryStore()).ServeHTTP(rr, chiReq(http.MethodGet, "/v1/genres", "", nil))

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(rr.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(raw["genres"]) != "[]" {
		t.Fatalf("expected empty array, got %s", raw["genres"])
	}
}
