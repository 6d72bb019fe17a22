package handlers

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/barrancos/models"
	"github.com/padraicbc/barrancos/records"
)

//go:embed views/*.html
var viewsFS embed.FS

// pages are rendered inside views/layout.html.
var pages = []string{"index.html", "form.html"}

// Renderer renders the HTML views for echo.
type Renderer struct {
	pages map[string]*template.Template
}

// NewRenderer parses the embedded views.
func NewRenderer() (*Renderer, error) {
	base, err := template.New("layout.html").Funcs(funcMap).ParseFS(viewsFS, "views/layout.html")
	if err != nil {
		return nil, fmt.Errorf("parse layout: %w", err)
	}

	r := &Renderer{pages: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		clone, err := base.Clone()
		if err != nil {
			return nil, err
		}
		t, err := clone.ParseFS(viewsFS, "views/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		r.pages[page] = t
	}
	return r, nil
}

// Render implements echo.Renderer.
func (r *Renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	t, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	return t.ExecuteTemplate(w, "layout", data)
}

var difficultyLabels = map[models.Difficulty]string{
	models.DifficultyLow:    "Baja",
	models.DifficultyMedium: "Media",
	models.DifficultyHigh:   "Alta",
}

var funcMap = template.FuncMap{
	"difficulty": func(d models.Difficulty) string {
		if l, ok := difficultyLabels[d]; ok {
			return l
		}
		return string(d)
	},
	"overhang": func(b bool) string {
		if b {
			return "Sí"
		}
		return "No"
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	"lengths": records.FormatLengths,
}
