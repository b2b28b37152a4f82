// Package render executes the embedded HTML templates. Every page is the
// shared layout plus one page template defining "content".
package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/juwel66/eventreg/internal/ctxlog"
	"github.com/juwel66/eventreg/internal/http/session"
)

//go:embed templates/*.html
var templateFS embed.FS

const layout = "layout.html"

// View is what every template receives. Data is page specific.
type View struct {
	Title   string
	IsAdmin bool
	Flashes []session.Flash
	Data    any
}

type Renderer struct {
	pages    map[string]*template.Template
	sessions *session.Manager
}

// New parses every page template against the layout up front, so a broken
// template fails at startup rather than on first request.
func New(sm *session.Manager) (*Renderer, error) {
	names, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("render: glob templates: %w", err)
	}

	pages := make(map[string]*template.Template, len(names))
	for _, name := range names {
		base := path.Base(name)
		if base == layout {
			continue
		}
		t, err := template.New(layout).ParseFS(templateFS, "templates/"+layout, name)
		if err != nil {
			return nil, fmt.Errorf("render: parse %s: %w", base, err)
		}
		pages[strings.TrimSuffix(base, ".html")] = t
	}

	return &Renderer{pages: pages, sessions: sm}, nil
}

// Page renders page with status. Pending flashes are popped here, which
// writes the session cookie, so this has to run before any body write.
func (rd *Renderer) Page(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	log := ctxlog.FromContext(r.Context())

	t, ok := rd.pages[page]
	if !ok {
		log.Error("unknown template", slog.String("page", page))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	flashes, err := rd.sessions.Flashes(w, r)
	if err != nil {
		log.Warn("could not pop flashes", slog.String("error", err.Error()))
	}

	var buf bytes.Buffer
	err = t.ExecuteTemplate(&buf, layout, View{
		Title:   title,
		IsAdmin: session.PrincipalFrom(r.Context()).IsAdmin,
		Flashes: flashes,
		Data:    data,
	})
	if err != nil {
		log.Error("template execution failed",
			slog.String("page", page),
			slog.String("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// Error renders the generic error page.
func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, status int) {
	rd.Page(w, r, status, "error", http.StatusText(status), map[string]any{
		"Status":  status,
		"Message": http.StatusText(status),
	})
}

// NotFound renders a 404.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.Error(w, r, http.StatusNotFound)
}
