package mailer

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path"
	"strings"
)

//go:embed templates/*.html
var defaultTemplates embed.FS

// ErrUnknownTemplate is returned when a notification names a template that
// was never loaded.
var ErrUnknownTemplate = errors.New("mailer: unknown template")

// Templates renders email bodies by template reference. The reference is the
// file name without the .html extension.
type Templates struct {
	byRef map[string]*template.Template
}

// LoadTemplates parses the built-in templates and then any *.html file in dir,
// which replaces the built-in template of the same name. An empty dir uses the
// built-ins only.
func LoadTemplates(dir string) (*Templates, error) {
	t := &Templates{byRef: make(map[string]*template.Template)}

	builtin, err := fs.Sub(defaultTemplates, "templates")
	if err != nil {
		return nil, err
	}
	if err := t.parseFS(builtin); err != nil {
		return nil, err
	}

	if dir != "" {
		if err := t.parseFS(os.DirFS(dir)); err != nil {
			return nil, fmt.Errorf("mailer: load templates from %s: %w", dir, err)
		}
	}
	return t, nil
}

func (t *Templates) parseFS(fsys fs.FS) error {
	files, err := fs.Glob(fsys, "*.html")
	if err != nil {
		return err
	}
	for _, file := range files {
		body, err := fs.ReadFile(fsys, file)
		if err != nil {
			return err
		}
		ref := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New(ref).Option("missingkey=zero").Parse(string(body))
		if err != nil {
			return fmt.Errorf("mailer: parse %s: %w", file, err)
		}
		t.byRef[ref] = tmpl
	}
	return nil
}

// Has reports whether ref is loaded.
func (t *Templates) Has(ref string) bool {
	_, ok := t.byRef[ref]
	return ok
}

// Render executes the template ref with vars.
func (t *Templates) Render(ref string, vars map[string]string) (string, error) {
	tmpl, ok := t.byRef[ref]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, ref)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("mailer: render %s: %w", ref, err)
	}
	return buf.String(), nil
}
