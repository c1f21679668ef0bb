package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/storyhub/internal/platform/api"
	"github.com/example/storyhub/internal/platform/httpserver"
)

var testSecret = []byte("test-secret-key-32-bytes-long!!!")

func makeToken(subject, role string, exp time.Time) string {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		Role: role,
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, _ := tok.SignedString(testSecret)
	return signed
}

func newVerifier() JWTVerifier { return JWTVerifier{Secret: testSecret} }

// ─── JWTVerifier ────────────────────────────────────────────────────────────

func TestJWTVerifier_ValidToken(t *testing.T) {
	tok := makeToken("reader-1", "user", time.Now().Add(time.Hour))
	claims, err := newVerifier().Parse(tok)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Subject != "reader-1" {
		t.Fatalf("expected subject 'reader-1', got %q", claims.Subject)
	}
	if claims.Role != "user" {
		t.Fatalf("expected role 'user', got %q", claims.Role)
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	tok := makeToken("reader-1", "user", time.Now().Add(-time.Hour))
	if _, err := newVerifier().Parse(tok); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestJWTVerifier_WrongSecret(t *testing.T) {
	tok := makeToken("reader-1", "user", time.Now().Add(time.Hour))
	if _, err := (JWTVerifier{Secret: []byte("wrong-secret")}).Parse(tok); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestJWTVerifier_EmptySecret(t *testing.T) {
	tok := makeToken("reader-1", "user", time.Now().Add(time.Hour))
	if _, err := (JWTVerifier{}).Parse(tok); err == nil {
		t.Fatal("expected error when verifier has no secret")
	}
}

func TestJWTVerifier_TamperedPayload(t *testing.T) {
	tok := makeToken("reader-1", "admin", time.Now().Add(time.Hour))
	parts := strings.Split(tok, ".")
	if len(parts) != 3 {
		t.Fatal("expected 3 JWT parts")
	}
	tampered := parts[0] + ".dGFtcGVyZWQ." + parts[2]
	if _, err := newVerifier().Parse(tampered); err == nil {
		t.Fatal("expected error for tampered token")
	}
}

// ─── RequireUser ────────────────────────────────────────────────────────────

func callRequireUser(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	RequireUser(newVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, _ := UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(uid))
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireUser_ValidBearer(t *testing.T) {
	tok := makeToken("reader-42", "user", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	rr := callRequireUser(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Body.String() != "reader-42" {
		t.Fatalf("expected 'reader-42' in body, got %q", rr.Body.String())
	}
}

func TestRequireUser_Rejections(t *testing.T) {
	cases := map[string]string{
		"missing header": "",
		"basic scheme":   "Basic dXNlcjpwYXNz",
		"garbage token":  "Bearer invalid.token.here",
		"expired token":  "Bearer " + makeToken("reader-1", "user", time.Now().Add(-time.Hour)),
		"empty subject":  "Bearer " + makeToken("", "user", time.Now().Add(time.Hour)),
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := callRequireUser(req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			var body api.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode error envelope: %v", err)
			}
			if body.Error.Code == "" {
				t.Fatal("expected error code in envelope")
			}
		})
	}
}

func TestRequireUser_InjectsRoleIntoContext(t *testing.T) {
	tok := makeToken("reader-99", "admin", time.Now().Add(time.Hour))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)

	var capturedRole string
	rr := httptest.NewRecorder()
	RequireUser(newVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedRole, _ = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)

	if capturedRole != "admin" {
		t.Fatalf("expected role 'admin', got %q", capturedRole)
	}
}

// ─── RequireAdmin ───────────────────────────────────────────────────────────

func callRequireAdmin(ctx context.Context) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin", nil).WithContext(ctx)
	rr := httptest.NewRecorder()
	RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})).ServeHTTP(rr, req)
	return rr
}

func TestRequireAdmin(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{"admin", http.StatusOK},
		{"Admin", http.StatusOK},
		{"ADMIN", http.StatusOK},
		{"user", http.StatusForbidden},
		{"", http.StatusForbidden},
	}
	for _, tc := range cases {
		ctx := context.Background()
		if tc.role != "" {
			ctx = WithRole(ctx, tc.role)
		}
		if rr := callRequireAdmin(ctx); rr.Code != tc.want {
			t.Fatalf("role %q: expected %d, got %d", tc.role, tc.want, rr.Code)
		}
	}
}

func TestRejectionsCarryRequestID(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	cases := map[string]struct {
		handler http.Handler
		want    int
	}{
		"require user":  {RequireUser(newVerifier())(ok), http.StatusUnauthorized},
		"require admin": {RequireUser(newVerifier())(RequireAdmin(ok)), http.StatusForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("X-Request-Id", "req-77")
			if tc.want == http.StatusForbidden {
				req.Header.Set("Authorization", "Bearer "+makeToken("reader-1", "user", time.Now().Add(time.Hour)))
			}
			rr := httptest.NewRecorder()
			httpserver.RequestIDMiddleware("X-Request-Id")(tc.handler).ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, rr.Code)
			}
			var body api.ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode error envelope: %v", err)
			}
			if body.Error.RequestID != "req-77" {
				t.Fatalf("expected request_id req-77 in envelope, got %q", body.Error.RequestID)
			}
		})
	}
}

// ─── CanActFor ──────────────────────────────────────────────────────────────

func TestCanActFor(t *testing.T) {
	owner := WithUserID(context.Background(), "reader-1")
	if !CanActFor(owner, "reader-1") {
		t.Fatal("owner should act for itself")
	}
	if CanActFor(owner, "reader-2") {
		t.Fatal("owner must not act for another reader")
	}
	admin := WithRole(WithUserID(context.Background(), "staff-1"), "Admin")
	if !CanActFor(admin, "reader-2") {
		t.Fatal("admin should act for any reader")
	}
	if CanActFor(context.Background(), "reader-1") {
		t.Fatal("anonymous context must not act for anyone")
	}
}

// ─── OptionalUser ───────────────────────────────────────────────────────────

func TestOptionalUser(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"no header", "", ""},
		{"valid token", "Bearer " + makeToken("reader-7", "user", time.Now().Add(time.Hour)), "reader-7"},
		{"expired token", "Bearer " + makeToken("reader-7", "user", time.Now().Add(-time.Hour)), ""},
		{"wrong scheme", "Basic abc", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			var got string
			rr := httptest.NewRecorder()
			OptionalUser(newVerifier())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = UserIDFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rr.Code)
			}
			if got != tc.want {
				t.Fatalf("expected user %q, got %q", tc.want, got)
			}
		})
	}
}
