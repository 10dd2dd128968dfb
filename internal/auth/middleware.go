package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/learnloop/internal/apperror"
)

// contextKey is unexported so only this package can read or write the
// identity stored on a request context.
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext returns the verified caller, or false when the
// request is anonymous.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok && id.Email != ""
}

// RequireAuth verifies the Authorization header before the handler runs.
//
// No header at all is a 401. A header that is present but malformed, badly
// signed or expired is a 403, which is what the LearnLoop frontend expects
// when it decides between "log in" and "log in again".
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := identityFromRequest(r, tokens)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// AdminChecker decides whether an email may use admin routes.
type AdminChecker interface {
	RequireAdmin(ctx context.Context, email string) error
}

// RequireAdmin must run after RequireAuth. The role is looked up on every
// request, so a demotion takes effect immediately.
func RequireAdmin(checker AdminChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeAuthError(w, apperror.Unauthenticated("unauthorized access"))
				return
			}

			if err := checker.RequireAdmin(r.Context(), id.Email); err != nil {
				if !apperror.IsExpected(err) {
					logger.Error("admin check failed",
						slog.String("email", id.Email),
						slog.String("error", err.Error()),
					)
				}
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identityFromRequest(r *http.Request, tokens *TokenService) (Identity, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Identity{}, apperror.Unauthenticated("unauthorized access")
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return Identity{}, apperror.Forbidden("forbidden access")
	}

	id, err := tokens.Validate(strings.TrimSpace(token))
	if err != nil {
		return Identity{}, apperror.Forbidden("forbidden access")
	}
	return id, nil
}

// writeAuthError renders the same {"error","message"} shape as the API
// handlers. Unknown errors become an opaque 500.
func writeAuthError(w http.ResponseWriter, err error) {
	status, kind, msg := http.StatusInternalServerError, "internal_error", "An internal error occurred"

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		switch {
		case errors.Is(err, apperror.ErrUnauthenticated):
			status, kind, msg = http.StatusUnauthorized, "unauthorized", appErr.Message
		case errors.Is(err, apperror.ErrForbidden):
			status, kind, msg = http.StatusForbidden, "forbidden", appErr.Message
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": kind, "message": msg})
}
