package http

import (
	"log"
	"net/http"
	"time"
)

// RequestLogger logs one line per request: method, path, final status and
// how long the handler took.
func RequestLogger(next http.Handler, logger *log.Logger) http.Handler {
	if logger == nil {
		logger = log.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		logger.Printf(
			"http method=%s path=%s status=%d took=%s",
			r.Method,
			r.URL.Path,
			sw.status,
			time.Since(start),
		)
	})
}

// statusWriter remembers the status code a handler wrote. Handlers that never
// call WriteHeader implicitly answer 200.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
