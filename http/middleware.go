package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/lockerd/lockerd/session"
)

type identityKey struct{}

// IdentityFromContext returns the authenticated username placed into the
// request context by RequireSession.
func IdentityFromContext(ctx context.Context) (string, bool) {
	identity, ok := ctx.Value(identityKey{}).(string)
	return identity, ok
}

// RequireSession gates a route group on a live session. Requests without a
// valid, unexpired session cookie are short-circuited with
// 401 {"success":false,"error":"Login required"} before any downstream
// work; on success the session's identity is placed into the context.
func RequireSession(store session.Store, codec *session.CookieCodec, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(cookieName)
			if err != nil {
				WriteFailure(w, http.StatusUnauthorized, "Login required")
				return
			}

			token, err := codec.Decode(cookie.Value)
			if err != nil {
				WriteFailure(w, http.StatusUnauthorized, "Login required")
				return
			}

			sess, err := store.Get(r.Context(), token)
			if err != nil {
				WriteFailure(w, http.StatusUnauthorized, "Login required")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, sess.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// RequestLogger logs every request with a generated request id, method,
// path, status, and duration.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()

		wrapped := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		slog.Info("request",
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", wrapped.status),
			slog.Duration("duration", time.Since(start)),
		)
	})
}
