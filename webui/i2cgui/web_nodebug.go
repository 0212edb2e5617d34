//go:build !debug

package main

import (
	"net/http"
	"path"
	"strconv"
	"time"
)

// MaxAge lets the browser cache the embedded scripts and styles for a day. Pages are
// always revalidated so a new build shows up on reload.
func MaxAge(h http.Handler) http.Handler {
	day := strconv.Itoa(int((24 * time.Hour).Seconds()))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch path.Ext(r.URL.Path) {
		case ".css", ".js":
			w.Header().Set("Cache-Control", "max-age="+day+", public, must-revalidate")
		default:
			w.Header().Set("Cache-Control", "no-cache")
		}
		h.ServeHTTP(w, r)
	})
}
