package middleware

import "net/http"

// RequireScope guards a route group with an API key scope, e.g.
// workspace:write for the editing endpoints or preview:read for the
// preview fetch. Browser sessions carry JWTs and are governed by roles
// instead, so requests without an API key pass through. HasScope treats
// a nil scope list as unrestricted, covering keys minted before scopes
// existed.
func RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key := APIKeyFromContext(r.Context()); key != nil && !key.HasScope(scope) {
				http.Error(w, `{"error":"insufficient scope"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
