// Package ui embeds the API documentation served next to the prediction
// endpoint.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:docs
var docsFS embed.FS

// DocsFS returns the embedded docs/ filesystem with the "docs" prefix stripped.
func DocsFS() (fs.FS, error) {
	return fs.Sub(docsFS, "docs")
}

// Handler serves the documentation page at prefix and its assets below it,
// e.g. prefix "/docs" serves index.html at /docs and openapi.json at
// /docs/openapi.json. Missing files return 404.
func Handler(prefix string) (http.Handler, error) {
	sub, err := DocsFS()
	if err != nil {
		return nil, err
	}
	fileServer := http.FileServerFS(sub)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := strings.TrimPrefix(path.Clean(r.URL.Path), prefix)
		p = strings.TrimPrefix(p, "/")
		if p == "" || p == "." {
			// Serve index.html directly; FileServer would redirect "/index.html".
			data, err := fs.ReadFile(sub, "index.html")
			if err != nil {
				http.NotFound(w, r)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(data)
			return
		}
		if _, err := fs.Stat(sub, p); err != nil {
			http.NotFound(w, r)
			return
		}
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/" + p
		fileServer.ServeHTTP(w, r2)
	}), nil
}
