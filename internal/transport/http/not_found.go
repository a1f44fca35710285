package http

import "net/http"

// NotFoundHandler answers unmatched routes with the same JSON error shape as
// every other endpoint.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
}
