package web

import (
	"embed"
	"html/template"
	"io"
	"io/fs"

	"github.com/labstack/echo/v4"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

var pageTmpl = template.Must(template.New("index.html").ParseFS(templatesFS, "templates/index.html"))

type renderer struct {
	tmpl *template.Template
}

func (r renderer) Render(w io.Writer, name string, data interface{}, c echo.Context) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

// StaticFS exposes the stylesheet and other page assets.
func StaticFS() fs.FS {
	return echo.MustSubFS(staticFS, "static")
}
