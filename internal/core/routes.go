package core

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzhttp"
)

// MountRoutes registers the global middleware chain, the liveness endpoint,
// and the application routes supplied by the caller. Handler packages
// register themselves through registrar functions; this indirection avoids
// an import cycle between core and the handler packages.
func (s *Server) MountRoutes(registrars ...func(chi.Router)) {
	s.registerGlobalMiddleware()

	s.router.Get("/healthz", handleHealthz)

	for _, registrar := range registrars {
		registrar(s.router)
	}
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering rationale:
//  1. Recoverer     - catches panics; outermost to catch all failures.
//  2. RequestID     - generates/propagates the correlation ID for tracing.
//  3. RequestLogger - structured logging with the final status code.
//  4. Gzip          - transparent response compression.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(func(h http.Handler) http.Handler { return gzhttp.GzipHandler(h) })
}

// handleHealthz is the liveness probe: plain "ok" with no dependency checks,
// so a wedged relay or database cannot take the process out of rotation.
func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// MountStatic exposes the local upload directory over HTTP. The route prefix
// mirrors the on-disk path, so URLs minted by the local store resolve without
// translation. Call after MountRoutes; chi rejects routes registered before
// middleware.
func (s *Server) MountStatic(dir string) {
	prefix := staticPrefix(dir)
	fs := http.StripPrefix(prefix, http.FileServer(http.Dir(filepath.Clean(dir))))

	s.router.Get(prefix+"*", func(w http.ResponseWriter, r *http.Request) {
		// Files only; directory listings stay closed.
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

// staticPrefix derives the URL prefix for a local upload directory, with
// exactly one leading and one trailing slash regardless of how the directory
// was spelled.
func staticPrefix(dir string) string {
	clean := filepath.ToSlash(filepath.Clean(dir))
	return "/" + strings.TrimPrefix(clean, "/") + "/"
}
