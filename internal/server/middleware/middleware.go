package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/time/rate"

	"github.com/information-sharing-networks/wiki-harness/internal/auth"
	"github.com/information-sharing-networks/wiki-harness/internal/logger"
	"github.com/information-sharing-networks/wiki-harness/internal/server/response"
)

// RequestSizeLimit caps request bodies at maxBytes.
//
// A declared Content-Length over the cap is answered with 413 before the handler runs.
// Bodies without a usable Content-Length are wrapped in a MaxBytesReader, so decoding
// fails once the cap is passed. Every response carries X-Max-Request-Size.
func RequestSizeLimit(maxBytes int64) func(http.Handler) http.Handler {
	limit := strconv.FormatInt(maxBytes, 10)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Max-Request-Size", limit)

			if r.ContentLength > maxBytes {
				logger.ContextWithLogAttrs(r.Context(), slog.Int64("content_length", r.ContentLength))
				response.Error(w, r, http.StatusRequestEntityTooLarge,
					fmt.Sprintf("request body of %d bytes exceeds the %d byte limit", r.ContentLength, maxBytes),
					nil,
				)
				return
			}
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// SecurityHeaders sets the browser hardening headers. HSTS is only sent from prod and staging.
// API responses carry tokens and per-user data and are marked no-store.
func SecurityHeaders(environment string) func(http.Handler) http.Handler {
	hsts := environment == "prod" || environment == "staging"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if hsts {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}
			if strings.HasPrefix(r.URL.Path, "/api/") {
				h.Set("Cache-Control", "no-store")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit shares one token bucket of requestsPerSecond (with burst) across all clients.
// Requests to exemptPaths, such as the health and readiness probes, are never limited.
// A non-positive rate disables the limiter.
func RateLimit(requestsPerSecond, burst int32, exemptPaths ...string) func(http.Handler) http.Handler {
	if requestsPerSecond <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	limiter := rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst))
	exempt := make(map[string]bool, len(exemptPaths))
	for _, p := range exemptPaths {
		exempt[p] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if exempt[r.URL.Path] || limiter.Allow() {
				next.ServeHTTP(w, r)
				return
			}

			logger.ContextRequestLogger(r.Context()).Warn("rate limit exceeded",
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
			)
			logger.ContextWithLogAttrs(r.Context(), slog.String("remote_addr", r.RemoteAddr))

			w.Header().Set("Retry-After", "1")
			response.Error(w, r, http.StatusTooManyRequests, "too many requests, retry later", nil)
		})
	}
}

// RequireAuth rejects requests without a valid bearer token and stores the token claims
// in the request context (see auth.ContextClaims).
func RequireAuth(tokens *auth.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			scheme, token, found := strings.Cut(header, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				response.Error(w, r, http.StatusUnauthorized, "authentication required", nil)
				return
			}

			claims, err := tokens.Verify(strings.TrimSpace(token))
			if err != nil {
				response.Error(w, r, http.StatusUnauthorized, "invalid or expired token", err)
				return
			}

			logger.ContextWithLogAttrs(r.Context(), slog.String("user_id", claims.UserID))

			next.ServeHTTP(w, r.WithContext(auth.ContextWithClaims(r.Context(), claims)))
		})
	}
}
