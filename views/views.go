// Package views holds the embedded page templates.
package views

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"time"
)

//go:embed templates/*.html
var files embed.FS

// Funcs are available in every template.
var Funcs = template.FuncMap{
	"date":     func(v any) string { return format(v, "2006-01-02") },
	"datetime": func(v any) string { return format(v, "2006-01-02 15:04") },
	"hasRole":  hasRole,
	"add":      func(a, b int) int { return a + b },
}

// Load parses every page. Each page is a named template that pulls in the
// shared header and footer.
func Load() (*template.Template, error) {
	return template.New("").Funcs(Funcs).ParseFS(files, "templates/*.html")
}

// Must is Load for program start-up.
func Must() *template.Template {
	return template.Must(Load())
}

func format(v any, layout string) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(layout)
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format(layout)
	}
	return ""
}

type roleHolder interface {
	HasRole(roles ...string) bool
}

// hasRole is false for anonymous pages.
func hasRole(identity any, roles ...string) bool {
	h, ok := identity.(roleHolder)
	return ok && h.HasRole(roles...)
}

//go:embed static
var static embed.FS

// Static serves the page scripts under /static.
func Static() http.FileSystem {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}
