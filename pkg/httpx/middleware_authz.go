package httpx

import "net/http"

// RequireSelf lets the request through only when the path wildcard named
// param equals the authenticated user id. Must run after AuthnMiddleware.
func RequireSelf(param string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := UserIDFromContext(r.Context())
			if uid == "" {
				writeBearerError(w, "missing bearer token")
				return
			}
			if r.PathValue(param) != uid {
				WriteError(w, http.StatusForbidden, "permission_denied", "not the owner of this resource")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
