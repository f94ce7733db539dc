package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/information-sharing-networks/wiki-harness/internal/auth"
)

const registerPath = "/api/Auth/Register"

// registerStub reads the whole body like the register handler's JSON decoder does.
func registerStub(w http.ResponseWriter, r *http.Request) {
	if _, err := io.ReadAll(r.Body); err != nil {
		http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func registerBody(passwordLen int) string {
	return `{"userName":"newuser","email":"newuser@example.com","password":"` + strings.Repeat("p", passwordLen) + `"}`
}

func TestRequestSizeLimit(t *testing.T) {
	const limit = 128

	router := chi.NewRouter()
	router.Use(RequestSizeLimit(limit))
	router.Post(registerPath, registerStub)
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name          string
		method        string
		path          string
		body          string
		contentLength int64 // -1 sends the body without a declared length
		wantCode      int
	}{
		{"registration within limit", http.MethodPost, registerPath, registerBody(8), 0, http.StatusOK},
		{"declared length over limit", http.MethodPost, registerPath, registerBody(200), 0, http.StatusRequestEntityTooLarge},
		{"undeclared length over limit", http.MethodPost, registerPath, registerBody(200), -1, http.StatusRequestEntityTooLarge},
		{"probe without body", http.MethodGet, "/health", "", 0, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			if tt.contentLength < 0 {
				req.ContentLength = -1
			}

			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Errorf("got status %d, want %d", rr.Code, tt.wantCode)
			}
			if got := rr.Header().Get("X-Max-Request-Size"); got != "128" {
				t.Errorf("X-Max-Request-Size = %q, want 128", got)
			}
		})
	}
}

func TestRateLimitExemptsProbes(t *testing.T) {
	router := chi.NewRouter()
	router.Use(RateLimit(1, 2, "/health", "/ready"))
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	router.Post("/api/Auth/Login", ok)
	router.Get("/health", ok)
	router.Get("/ready", ok)

	do := func(method, path string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(method, path, nil))
		return rr
	}

	for i := range 2 {
		if rr := do(http.MethodPost, "/api/Auth/Login"); rr.Code != http.StatusOK {
			t.Fatalf("login %d: got status %d within the burst", i+1, rr.Code)
		}
	}

	rr := do(http.MethodPost, "/api/Auth/Login")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("got status %d once the burst is spent, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rr.Header().Get("Retry-After"))
	}

	for _, path := range []string{"/health", "/ready"} {
		for range 10 {
			if rr := do(http.MethodGet, path); rr.Code != http.StatusOK {
				t.Fatalf("%s was rate limited: got status %d", path, rr.Code)
			}
		}
	}
}

func TestRateLimitDisabled(t *testing.T) {
	for _, rps := range []int32{0, -1} {
		router := chi.NewRouter()
		router.Use(RateLimit(rps, 1))
		router.Post("/api/Auth/Login", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		for i := range 20 {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/Auth/Login", nil))
			if rr.Code != http.StatusOK {
				t.Fatalf("rps %d, request %d: got status %d", rps, i+1, rr.Code)
			}
		}
	}
}

func TestRequireAuth(t *testing.T) {
	tokens := auth.NewTokenIssuer("0123456789abcdef0123456789abcdef", "wiki-server", "wiki-server", time.Hour)
	validToken, _, err := tokens.Issue("user-1", "admin", []string{"Admin"})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	otherIssuer := auth.NewTokenIssuer("fedcba9876543210fedcba9876543210", "wiki-server", "wiki-server", time.Hour)
	foreignToken, _, err := otherIssuer.Issue("user-1", "admin", []string{"Admin"})
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}

	router := chi.NewRouter()
	router.With(RequireAuth(tokens)).Get("/api/Auth/CurrentUser", func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ContextClaims(r.Context())
		if !ok {
			t.Error("claims missing from request context")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte(claims.Name))
	})

	tests := []struct {
		name     string
		header   string
		wantCode int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + validToken, http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer not-a-token", http.StatusUnauthorized},
		{"token from another secret", "Bearer " + foreignToken, http.StatusUnauthorized},
		{"valid token", "Bearer " + validToken, http.StatusOK},
		{"lower case scheme", "bearer " + validToken, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/Auth/CurrentUser", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("got status %d, want %d", rr.Code, tt.wantCode)
			}

			if tt.wantCode == http.StatusOK {
				if rr.Body.String() != "admin" {
					t.Errorf("expected body admin, got %q", rr.Body.String())
				}
				return
			}

			var body struct {
				Code    int    `json:"code"`
				Message string `json:"message"`
			}
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode error body: %v", err)
			}
			if body.Code != http.StatusUnauthorized || body.Message == "" {
				t.Errorf("unexpected error body %+v", body)
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	tests := []struct {
		environment string
		path        string
		wantHSTS    bool
		wantNoStore bool
	}{
		{"dev", "/scalar", false, false},
		{"test", "/api/Auth/Login", false, true},
		{"prod", "/api/UserProfile/", true, true},
		{"staging", "/health", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.environment+tt.path, func(t *testing.T) {
			handler := SecurityHeaders(tt.environment)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("X-Content-Type-Options not set")
			}
			if rr.Header().Get("X-Frame-Options") != "DENY" {
				t.Error("X-Frame-Options not set")
			}
			if got := rr.Header().Get("Strict-Transport-Security") != ""; got != tt.wantHSTS {
				t.Errorf("HSTS set = %v, want %v", got, tt.wantHSTS)
			}
			if got := rr.Header().Get("Cache-Control") == "no-store"; got != tt.wantNoStore {
				t.Errorf("Cache-Control no-store = %v, want %v", got, tt.wantNoStore)
			}
		})
	}
}
