// Package renderer fills a template body with a subscriber/context dict and
// applies a pre-render URL-shortening hook on a "url" field. Grounded on
// MessageProcessorService.fill_template (jinja2) and services/url_shorter.py,
// re-expressed over the standard library's text/template — no Jinja-equivalent
// templating engine appears anywhere in the retrieved corpus (see DESIGN.md).
package renderer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
)

// Shortener abstracts the URL-shortening collaborator. On any failure the
// renderer keeps the unshortened URL rather than failing the render.
type Shortener interface {
	Shorten(ctx context.Context, url string) (string, error)
}

// NoopShortener returns the URL unchanged. Used when no shortener is
// configured.
type NoopShortener struct{}

func (NoopShortener) Shorten(_ context.Context, url string) (string, error) {
	return url, nil
}

// Renderer renders template bodies against a subscriber/context dict.
type Renderer struct {
	shortener Shortener
}

func New(shortener Shortener) *Renderer {
	if shortener == nil {
		shortener = NoopShortener{}
	}
	return &Renderer{shortener: shortener}
}

// ValidateTemplate parses body and returns a non-nil error if it is not
// valid template source. Called by the template admin handler on create and
// update, per the
// invariant that render errors at runtime should never stem from a bad
// template.
func ValidateTemplate(body string) error {
	_, err := template.New("validate").Parse(body)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return nil
}

// Render applies the url-shortening hook to vars["url"] (if present and a
// string), then renders body against the resulting context. Unknown
// template variables render as empty, matching Jinja's default for
// undefined variables.
func (r *Renderer) Render(ctx context.Context, body string, vars map[string]any) (string, error) {
	if raw, ok := vars["url"]; ok {
		if s, ok := raw.(string); ok {
			short, err := r.shortener.Shorten(ctx, s)
			if err == nil {
				vars = mergeOverride(vars, "url", short)
			}
		}
	}

	tmpl, err := template.New("body").Option("missingkey=zero").Parse(body)
	if err != nil {
		return "", fmt.Errorf("parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	// text/template prints a missing map key as "<no value>" even with
	// missingkey=zero, so strip that marker to render unknown variables empty.
	return strings.ReplaceAll(buf.String(), "<no value>", ""), nil
}

// mergeOverride returns a shallow copy of vars with key overridden, so the
// caller's map is never mutated out from under it.
func mergeOverride(vars map[string]any, key string, value any) map[string]any {
	out := make(map[string]any, len(vars))
	for k, v := range vars {
		out[k] = v
	}
	out[key] = value
	return out
}
