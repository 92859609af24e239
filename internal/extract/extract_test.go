package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/chatdex/internal/domain"
)

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		want     domain.Format
		wantErr  bool
	}{
		{name: "txt", filename: "notes.txt", want: domain.FormatText},
		{name: "markdown short", filename: "README.md", want: domain.FormatMarkdown},
		{name: "markdown long", filename: "doc.markdown", want: domain.FormatMarkdown},
		{name: "html", filename: "page.html", want: domain.FormatHTML},
		{name: "htm", filename: "page.htm", want: domain.FormatHTML},
		{name: "uppercase extension", filename: "NOTES.TXT", want: domain.FormatText},
		{name: "unsupported", filename: "report.pdf", wantErr: true},
		{name: "no extension", filename: "Makefile", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(tt.filename)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrUnsupportedFormat) {
					t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegistry_PlainText(t *testing.T) {
	r := NewRegistry()

	text, err := r.Extract(domain.FormatText, []byte("  hello world\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "hello world" {
		t.Errorf("got %q", text)
	}
}

func TestRegistry_InvalidUTF8(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extract(domain.FormatText, []byte{0xff, 0xfe, 0x01})
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestRegistry_EmptyDocument(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extract(domain.FormatMarkdown, []byte("   \n\t  "))
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("expected ErrExtraction, got %v", err)
	}
}

func TestRegistry_HTML(t *testing.T) {
	r := NewRegistry()

	html := `<html><head><title>Test</title></head><body>
		<article><p>First paragraph of the article body with enough text to matter.</p>
		<p>Second paragraph continues the story with more detail.</p></article>
	</body></html>`

	text, err := r.Extract(domain.FormatHTML, []byte(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(text, "First paragraph") {
		t.Errorf("extracted text missing article content: %q", text)
	}
	if strings.Contains(text, "<p>") {
		t.Errorf("extracted text contains markup: %q", text)
	}
}

func TestRegistry_UnsupportedFormat(t *testing.T) {
	r := NewRegistry()

	_, err := r.Extract(domain.Format("pdf"), []byte("data"))
	if !errors.Is(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}
