package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// requestScope carries identity resolved by downstream middleware back up to
// the logger. Authenticate fills it once the API key is validated, so access
// logs are attributable to a user even though auth runs inside the logger.
type requestScope struct {
	userID uuid.UUID
	authed bool
}

func markAuthenticated(ctx context.Context, userID uuid.UUID) {
	if sc, ok := ctx.Value(requestScopeKey).(*requestScope); ok {
		sc.userID = userID
		sc.authed = true
	}
}

func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		scope := &requestScope{}
		r = r.WithContext(context.WithValue(r.Context(), requestScopeKey, scope))

		next.ServeHTTP(rec, r)

		attrs := []any{
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		}
		if scope.authed {
			attrs = append(attrs, "user_id", scope.userID)
		}
		slog.Info("request", attrs...)
	})
}
