// Package ui serves the built-in preview console.
package ui

import (
	_ "embed"
	"net/http"
	"path"
)

//go:embed index.html
var indexHTML []byte

// Handler serves the console page at the root. Any other path that has no
// file extension is treated as a client route and gets the same page.
func Handler() (http.Handler, error) {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := path.Clean(r.URL.Path)
		if p != "/" && path.Ext(p) != "" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(indexHTML)
	}), nil
}
