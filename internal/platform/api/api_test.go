package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
)

func TestWriteError_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	BadRequest(rr, "INVALID_ARGUMENT", "chapterId must be positive", "req-1", map[string]any{"chapterId": "gt=0"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Fatalf("expected JSON content type, got %q", ct)
	}
	var body ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != "INVALID_ARGUMENT" || body.Error.RequestID != "req-1" {
		t.Fatalf("unexpected envelope: %+v", body.Error)
	}
	if body.Error.Details["chapterId"] != "gt=0" {
		t.Fatalf("unexpected details: %v", body.Error.Details)
	}
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Body string `json:"body"`
	}
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"body":"hi"}`))
	if !DecodeJSON(rr, req, "", &dst) || dst.Body != "hi" {
		t.Fatalf("expected successful decode, got %+v", dst)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"body":`))
	if DecodeJSON(rr, req, "", &dst) {
		t.Fatal("expected decode failure")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestValidationDetails(t *testing.T) {
	type req struct {
		StoryID string `validate:"required,uuid"`
		Chapter int    `validate:"gt=0"`
	}
	err := validator.New().Struct(req{StoryID: "nope", Chapter: 0})
	details := ValidationDetails(err)
	if details["StoryID"] != "uuid" {
		t.Fatalf("expected uuid rule for StoryID, got %v", details)
	}
	if details["Chapter"] != "gt=0" {
		t.Fatalf("expected gt=0 rule for Chapter, got %v", details)
	}
	if ValidationDetails(errors.New("other")) != nil {
		t.Fatal("expected nil details for non-validation errors")
	}
}

func TestNewValidator_UsesJSONNames(t *testing.T) {
	type req struct {
		Title  string `json:"title" validate:"required"`
		Hidden string `json:"-" validate:"required"`
	}
	details := ValidationDetails(NewValidator().Struct(req{}))
	if details["title"] != "required" {
		t.Fatalf("expected json name 'title' in details, got %v", details)
	}
	if _, ok := details["Title"]; ok {
		t.Fatalf("struct field name must not leak into details: %v", details)
	}
}
