package renderer_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/notifyhub/pipeline/internal/renderer"
)

func TestRenderer_RenderSubstitutesVars(t *testing.T) {
	r := renderer.New(nil)
	out, err := r.Render(context.Background(), "Hi {{.first_name}}, welcome!", map[string]any{"first_name": "Ada"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hi Ada, welcome!" {
		t.Fatalf("unexpected render: %q", out)
	}
}

func TestRenderer_UnknownVariableRendersEmpty(t *testing.T) {
	r := renderer.New(nil)
	out, err := r.Render(context.Background(), "Hi {{.missing}}!", map[string]any{})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hi !" {
		t.Fatalf("unexpected render for missing var: %q", out)
	}
}

func TestRenderer_InvalidTemplateBodyErrors(t *testing.T) {
	if err := renderer.ValidateTemplate("Hi {{.name"); err == nil {
		t.Fatal("expected parse error for malformed template")
	}
}

type stubShortener struct {
	short string
	err   error
}

func (s stubShortener) Shorten(_ context.Context, _ string) (string, error) {
	return s.short, s.err
}

func TestRenderer_ShortensURLField(t *testing.T) {
	r := renderer.New(stubShortener{short: "https://s.hort/abc"})
	out, err := r.Render(context.Background(), "Link: {{.url}}", map[string]any{"url": "https://example.com/very/long/path"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Link: https://s.hort/abc" {
		t.Fatalf("expected shortened url, got %q", out)
	}
}

func TestRenderer_ShortenerFailureKeepsOriginalURL(t *testing.T) {
	r := renderer.New(stubShortener{err: errors.New("boom")})
	out, err := r.Render(context.Background(), "Link: {{.url}}", map[string]any{"url": "https://example.com/x"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Link: https://example.com/x" {
		t.Fatalf("expected original url kept on shortener failure, got %q", out)
	}
}

func TestHTTPShortener_Shorten(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"short_url": "https://s.hort/xyz"})
	}))
	defer srv.Close()

	s := renderer.NewHTTPShortener(srv.URL, time.Second)
	got, err := s.Shorten(context.Background(), "https://example.com/long")
	if err != nil {
		t.Fatal(err)
	}
	if got != "https://s.hort/xyz" {
		t.Fatalf("unexpected shortened url: %q", got)
	}
}

func TestHTTPShortener_InvalidURLErrors(t *testing.T) {
	s := renderer.NewHTTPShortener("http://unused", time.Second)
	if _, err := s.Shorten(context.Background(), "not-a-url"); err == nil {
		t.Fatal("expected error for invalid url")
	}
}
