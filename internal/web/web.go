// Package web serves the browser front end: the index page and its static assets.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// PageData is rendered into the index template.
type PageData struct {
	Title       string
	PenUpZ      float64
	AuthEnabled bool
}

// Pages renders the HTML templates.
type Pages struct {
	index *template.Template
	data  PageData
}

// NewPages parses the embedded templates.
func NewPages(data PageData) (*Pages, error) {
	if data.Title == "" {
		data.Title = "Pen Plotter"
	}
	tmpl, err := template.ParseFS(templateFS, "templates/index.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	return &Pages{index: tmpl, data: data}, nil
}

// Index renders the main page. Output is buffered so a template error never leaves a half-written 200.
func (p *Pages) Index(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := p.index.Execute(&buf, p.data); err != nil {
		http.Error(w, "template render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// StaticHandler serves the embedded assets. Mount it with the URL prefix stripped.
func StaticHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("web: static assets missing: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || r.URL.Path == "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Cache-Control", "public, max-age=3600")
		fileServer.ServeHTTP(w, r)
	})
}
