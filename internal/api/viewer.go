package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

type viewerKey struct{}

// iapPrefix is prepended to emails by Google's identity-aware proxy.
const iapPrefix = "accounts.google.com:"

// WithViewer returns a context carrying the signed-in user's id.
func WithViewer(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, viewerKey{}, userID)
}

// ViewerID returns the signed-in user's id, or "" for anonymous requests.
func ViewerID(ctx context.Context) string {
	id, _ := ctx.Value(viewerKey{}).(string)
	return id
}

// viewerMiddleware resolves the email in header to a user, creating the user on first
// sight. Requests without the header stay anonymous. Authentication happens upstream;
// the header is trusted.
func viewerMiddleware(header string, users UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := strings.TrimPrefix(strings.TrimSpace(r.Header.Get(header)), iapPrefix)
			if email == "" {
				next.ServeHTTP(w, r)
				return
			}
			user, err := users.GetOrCreateUserByEmail(r.Context(), email)
			if err != nil {
				slog.Error("Failed to resolve viewer", "error", err)
				writeError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithViewer(r.Context(), user.ID)))
		})
	}
}

// requireViewer rejects anonymous requests.
func requireViewer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ViewerID(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, "AuthRequired", "Sign in to do this")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// resolveUserID maps the "me" path segment to the viewer.
func resolveUserID(r *http.Request, id string) string {
	if id == "me" {
		return ViewerID(r.Context())
	}
	return id
}
