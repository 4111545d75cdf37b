// Package ui embeds the browser viewer served at the server root.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var content embed.FS

// GetHandler returns an http.Handler that serves the viewer's static files.
// The "static" prefix of the embedded filesystem is stripped, so index.html is
// served at "/".
func GetHandler() http.Handler {
	fsys, err := fs.Sub(content, "static")
	if err != nil {
		panic(err) // Should never happen with embed
	}
	return http.FileServer(http.FS(fsys))
}
